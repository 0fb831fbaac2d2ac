package profile

import "time"

// Profile is the one-to-one business record extending an identity with
// marketplace fields. Its ID always equals the owning identity's ID.
type Profile struct {
	ID                string
	Name              string
	Designation       string
	Phone             string
	AlternateContact  string
	CompanyName       string
	BusinessType      string
	Website           string
	GSTNumber         string
	IECCode           string
	PANNumber         string
	Country           string
	Currency          string
	RegisteredAddress string
	City              string
	State             string
	PostalCode        string
	DispatchAddress   string
	UpdatedAt         time.Time
}

// UpdateParams carries every writable profile column. Updates are full
// overwrites: zero-valued fields are written as-is, not skipped.
type UpdateParams struct {
	Name              string
	Designation       string
	Phone             string
	AlternateContact  string
	CompanyName       string
	BusinessType      string
	Website           string
	GSTNumber         string
	IECCode           string
	PANNumber         string
	Country           string
	Currency          string
	RegisteredAddress string
	City              string
	State             string
	PostalCode        string
	DispatchAddress   string
	UpdatedAt         time.Time
}
