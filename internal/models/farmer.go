package models

// Location is a farmer's administrative address plus the coordinates and
// pincode derived from it. Latitude/Longitude are nil until the location has
// been geocoded.
type Location struct {
	State     string   `json:"state"`
	District  string   `json:"district,omitempty"`
	Village   string   `json:"village,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Pincode   string   `json:"pincode,omitempty"`
}

// FarmerProfile is the persisted record for one farmer, keyed by email.
type FarmerProfile struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Crops    []string `json:"crops,omitempty"`
}

// HasCoordinates reports whether the profile location has been geocoded.
func (p FarmerProfile) HasCoordinates() bool {
	return p.Location.Latitude != nil && p.Location.Longitude != nil
}
