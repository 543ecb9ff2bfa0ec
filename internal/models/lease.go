package models

import (
	"fmt"
	"time"
)

// LeaseUnit is a rentable unit within a property
type LeaseUnit struct {
	ID          string     `json:"id"`
	PropertyID  string     `json:"property_id"`
	Name        string     `json:"name"`
	TotalFloors int        `json:"total_floors"`
	Spaces      []Space    `json:"spaces,omitempty"`
	Term        *LeaseTerm `json:"term,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Space describes one space entry of a lease unit (bedrooms, bathrooms, ...)
type Space struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Count int    `json:"count"`
	Floor int    `json:"floor"`
}

// Validate checks a space against its unit before persistence
func (sp *Space) Validate(unit *LeaseUnit) error {
	if sp.Type == "" {
		return fmt.Errorf("space type is required")
	}
	if sp.Count <= 0 {
		return fmt.Errorf("space count must be positive")
	}
	if sp.Floor < 0 {
		return fmt.Errorf("floor cannot be negative")
	}
	if unit.TotalFloors > 0 && sp.Floor > unit.TotalFloors {
		return fmt.Errorf("floor number %d exceeds total floors %d", sp.Floor, unit.TotalFloors)
	}
	return nil
}

// LeaseTerm is the submitted rental terms for a unit
type LeaseTerm struct {
	ID                string    `json:"id"`
	UnitID            string    `json:"unit_id"`
	ExpectedRent      float64   `json:"expected_rent"`
	SecurityDeposit   float64   `json:"security_deposit"`
	Currency          string    `json:"currency"`
	AvailableFrom     time.Time `json:"available_from"`
	MinimumStayMonths int       `json:"minimum_stay_months"`
	CreatedAt         time.Time `json:"created_at"`
}

// Validate checks the term before persistence; failures never reach storage
func (t *LeaseTerm) Validate() error {
	if t.ExpectedRent <= 0 {
		return fmt.Errorf("expected rent must be positive")
	}
	if t.SecurityDeposit < 0 {
		return fmt.Errorf("security deposit cannot be negative")
	}
	if t.AvailableFrom.IsZero() {
		return fmt.Errorf("available from date is required")
	}
	if t.MinimumStayMonths < 0 {
		return fmt.Errorf("minimum stay cannot be negative")
	}
	return nil
}

// CreateLeaseUnitRequest represents a request to register a lease unit
type CreateLeaseUnitRequest struct {
	PropertyID  string `json:"property_id"`
	Name        string `json:"name"`
	TotalFloors int    `json:"total_floors"`
}
