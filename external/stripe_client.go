package external

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

var _ Directory = &StripeDirectory{}

// NewStripeClient returns a Stripe API client. backends may be nil to use Stripe's defaults
func NewStripeClient(key string, backends *stripe.Backends) *client.API {
	sc := &client.API{}
	sc.Init(key, backends)
	return sc
}

// StripeDirectory keeps customers in Stripe, with attributes stored as customer metadata
type StripeDirectory struct {
	client *client.API
	logger *zap.Logger
}

// NewStripeDirectory wraps an initialized Stripe client as a Directory
func NewStripeDirectory(sc *client.API, logger *zap.Logger) (*StripeDirectory, error) {
	if sc == nil {
		return nil, fmt.Errorf("nil StripeClient is invalid")
	}
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &StripeDirectory{
		client: sc,
		logger: logger,
	}, nil
}

// Search accepts the same "field:value" expressions as Shopify and translates
// them to Stripe's search syntax
func (s *StripeDirectory) Search(ctx context.Context, query string) ([]Customer, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   stripeSearchQuery(query),
			Limit:   stripe.Int64(1),
			Single:  true,
		},
	}

	// one match is enough to call the customer a duplicate
	customers := make([]Customer, 0, 1)
	iter := s.client.Customers.Search(params)
	for iter.Next() {
		customers = append(customers, fromStripeCustomer(iter.Customer()))
	}
	if err := iter.Err(); err != nil {
		return nil, toAPIError(err)
	}
	return customers, nil
}

// Create registers a new Stripe customer. Password and welcome email have no
// Stripe equivalent and are dropped
func (s *StripeDirectory) Create(ctx context.Context, c NewCustomer) (*Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Name: stripe.String(strings.TrimSpace(c.FirstName + " " + c.LastName)),
	}
	if c.Email != "" {
		params.Email = stripe.String(c.Email)
	}
	if c.Phone != "" {
		params.Phone = stripe.String(c.Phone)
	}

	cust, err := s.client.Customers.New(params)
	if err != nil {
		s.logger.Warn("Stripe returned error",
			zap.Error(err),
		)
		return nil, toAPIError(err)
	}

	out := fromStripeCustomer(cust)
	out.FirstName = c.FirstName
	out.LastName = c.LastName
	return &out, nil
}

// CreateMetafield stores the attribute as customer metadata under its bare key
func (s *StripeDirectory) CreateMetafield(ctx context.Context, customerID string, m Metafield) (*Metafield, error) {
	key := metadataKey(m)
	if len(key) > MaxStripeMetadataKeyLength {
		return nil, &APIError{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("Metadata key %q is longer than %d characters", key, MaxStripeMetadataKeyLength),
		}
	}

	params := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	params.AddMetadata(key, m.Value)

	if _, err := s.client.Customers.Update(customerID, params); err != nil {
		return nil, toAPIError(err)
	}

	out := m
	out.ID = customerID + "/" + key
	return &out, nil
}

// MaxStripeMetadataKeyLength is the longest metadata key Stripe accepts
const MaxStripeMetadataKeyLength = 40

// metadataKey drops the namespace to stay within MaxStripeMetadataKeyLength
func metadataKey(m Metafield) string {
	return m.Key
}

// stripeSearchQuery turns "email:bob@example.com" into "email:'bob@example.com'"
func stripeSearchQuery(query string) string {
	idx := strings.Index(query, ":")
	if idx < 0 {
		return query
	}
	field, value := query[:idx], query[idx+1:]
	value = strings.ReplaceAll(value, "'", "\\'")
	return fmt.Sprintf("%s:'%s'", field, value)
}

func fromStripeCustomer(c *stripe.Customer) Customer {
	return Customer{
		ID:    c.ID,
		Email: c.Email,
		Phone: c.Phone,
	}
}

func toAPIError(err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return &APIError{
			StatusCode: stripeErr.HTTPStatusCode,
			Message:    stripeErr.Msg,
		}
	}
	return err
}
