package address

import (
	"errors"
	"strings"
)

type Type string

const (
	TypeHome   Type = "Home"
	TypeOffice Type = "Office"
)

type Address struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Pincode   string `json:"pincode"`
	Address   string `json:"address"`
	Locality  string `json:"locality"`
	City      string `json:"city"`
	State     string `json:"state"`
	Type      Type   `json:"type"`
	IsDefault bool   `json:"isDefault"`
}

// ValidationError carries a message meant for the shopper.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var ErrIncomplete = &ValidationError{Message: "Please fill in all fields"}

var ErrNotFound = errors.New("address not found")

// Validate requires every user-entered field to be non-blank.
func (a Address) Validate() error {
	fields := []string{a.Name, a.Phone, a.Pincode, a.Address, a.Locality, a.City, a.State, string(a.Type)}
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return ErrIncomplete
		}
	}
	if a.Type != TypeHome && a.Type != TypeOffice {
		return &ValidationError{Message: "Address type must be Home or Office"}
	}
	return nil
}
