package keys

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sanitizeKey replaces spaces with hyphens and lowercases the string.
// You could expand this to strip other characters if needed.
func sanitizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "-"))
}

// Audio returns a unique object key for a farmer voice note. Keys are scoped
// per farmer when an ID is known so recordings stay grouped in the bucket.
func Audio(farmerID, filename string) string {
	name := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeKey(filename))
	if farmerID == "" {
		return fmt.Sprintf("audio/%s", name)
	}
	return fmt.Sprintf("audio/%s/%s", sanitizeKey(farmerID), name)
}

// Snapshot returns the canonical key for a ranked-options snapshot produced
// by an alert sweep.
func Snapshot(farmerEmail, crop string, at time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.json",
		sanitizeKey(farmerEmail),
		sanitizeKey(crop),
		at.UTC().Format("2006-01-02T15-04-05"),
	)
}
