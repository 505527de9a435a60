// Package externaltest provides an in-memory Directory for tests
package externaltest

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/zllovesuki/signup/external"
)

var _ external.Directory = &Directory{}

// Call records one request made against the Directory
type Call struct {
	Method     string
	Query      string
	CustomerID string
	Customer   external.NewCustomer
	Metafield  external.Metafield
}

// Directory is a goroutine-safe fake. Customers created through it become
// visible to Search unless HideCreated is set
type Directory struct {
	mu        sync.Mutex
	nextID    int
	customers []external.Customer
	fields    map[string][]external.Metafield
	calls     []Call

	// SearchErr fails Search for queries with a matching "field:" prefix, or all when the key is ""
	SearchErr map[string]error
	// CreateErr fails every Create
	CreateErr error
	// MetafieldErr fails CreateMetafield for the given keys
	MetafieldErr map[string]error
	// UniqueEmail rejects Create when a customer with the same email exists
	UniqueEmail bool
	// HideCreated keeps created customers out of Search results, simulating
	// a search index that has not caught up yet
	HideCreated bool

	hidden map[string]bool
}

// New returns an empty Directory
func New() *Directory {
	return &Directory{
		nextID:       1000,
		fields:       make(map[string][]external.Metafield),
		SearchErr:    make(map[string]error),
		MetafieldErr: make(map[string]error),
		hidden:       make(map[string]bool),
	}
}

// Seed adds an existing customer
func (d *Directory) Seed(c external.Customer) external.Customer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.ID == "" {
		d.nextID++
		c.ID = strconv.Itoa(d.nextID)
	}
	d.customers = append(d.customers, c)
	return c
}

func (d *Directory) Search(ctx context.Context, query string) ([]external.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Method: "Search", Query: query})

	field, value := query, ""
	if idx := strings.Index(query, ":"); idx >= 0 {
		field, value = query[:idx], query[idx+1:]
	}
	if err, ok := d.SearchErr[field]; ok {
		return nil, err
	}
	if err, ok := d.SearchErr[""]; ok {
		return nil, err
	}

	results := make([]external.Customer, 0)
	for _, c := range d.customers {
		if d.hidden[c.ID] {
			continue
		}
		switch field {
		case "email":
			if c.Email == value {
				results = append(results, c)
			}
		case "phone":
			if c.Phone == value {
				results = append(results, c)
			}
		}
	}
	return results, nil
}

func (d *Directory) Create(ctx context.Context, nc external.NewCustomer) (*external.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Method: "Create", Customer: nc})

	if d.CreateErr != nil {
		return nil, d.CreateErr
	}
	if d.UniqueEmail {
		for _, c := range d.customers {
			if c.Email == nc.Email {
				return nil, &external.APIError{
					StatusCode: 422,
					Message:    "email has already been taken",
				}
			}
		}
	}

	d.nextID++
	c := external.Customer{
		ID:        strconv.Itoa(d.nextID),
		Email:     nc.Email,
		Phone:     nc.Phone,
		FirstName: nc.FirstName,
		LastName:  nc.LastName,
	}
	d.customers = append(d.customers, c)
	if d.HideCreated {
		d.hidden[c.ID] = true
	}
	return &c, nil
}

func (d *Directory) CreateMetafield(ctx context.Context, customerID string, m external.Metafield) (*external.Metafield, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Method: "CreateMetafield", CustomerID: customerID, Metafield: m})

	if err, ok := d.MetafieldErr[m.Key]; ok {
		return nil, err
	}
	m.ID = customerID + "/" + m.Key
	d.fields[customerID] = append(d.fields[customerID], m)
	return &m, nil
}

// Reveal makes previously hidden customers searchable
func (d *Directory) Reveal() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hidden = make(map[string]bool)
}

// Calls returns the recorded calls, optionally filtered by method
func (d *Directory) Calls(method string) []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, 0, len(d.calls))
	for _, c := range d.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Metafields returns the attributes attached to a customer
func (d *Directory) Metafields(customerID string) []external.Metafield {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]external.Metafield(nil), d.fields[customerID]...)
}

// Customers returns every stored customer
func (d *Directory) Customers() []external.Customer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]external.Customer(nil), d.customers...)
}
