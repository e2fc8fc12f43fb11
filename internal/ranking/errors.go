package ranking

import (
	"fmt"
	"strings"
)

// ValidationError reports required request fields that were left empty. It is
// returned before any network call is made.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// NoDataError means every filter level was queried without producing a usable
// record: either the dataset had nothing, or every returned record lacked a
// valid price or a resolvable distance.
type NoDataError struct {
	State     string
	Commodity string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no mandi data found for %s in %s", e.Commodity, e.State)
}

// TransportError means every filter level failed at the HTTP layer, so the
// engine never got a chance to see data. It wraps the last provider error for
// diagnosis.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("price dataset unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
