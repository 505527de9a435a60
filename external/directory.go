package external

import (
	"context"
	"fmt"
)

// Directory is the e-commerce platform's customer store as seen by the signup flow
type Directory interface {
	// Search returns the customers matching a "field:value" query
	Search(ctx context.Context, query string) ([]Customer, error)
	// Create registers a new customer. Errors carry the platform's message verbatim
	Create(ctx context.Context, c NewCustomer) (*Customer, error)
	// CreateMetafield attaches one named attribute to an existing customer
	CreateMetafield(ctx context.Context, customerID string, m Metafield) (*Metafield, error)
}

// Customer is a customer record held by the platform. ID is opaque to us
type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NewCustomer holds the fields sent when creating a customer
type NewCustomer struct {
	FirstName            string
	LastName             string
	Email                string
	Phone                string
	VerifiedEmail        bool
	Password             string
	PasswordConfirmation string
	SendEmailWelcome     bool
}

// Metafield is a namespaced, typed attribute attached to a customer
type Metafield struct {
	ID        string `json:"id,omitempty"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// APIError is returned when the platform rejects a request
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// EmailQuery builds the search expression matching a customer's email
func EmailQuery(email string) string {
	return fmt.Sprintf("email:%s", email)
}

// PhoneQuery builds the search expression matching a customer's phone
func PhoneQuery(phone string) string {
	return fmt.Sprintf("phone:%s", phone)
}
