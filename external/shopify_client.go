package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

var _ Directory = &ShopifyClient{}

// DefaultShopifyAPIVersion is used when ShopifyOptions.APIVersion is empty
const DefaultShopifyAPIVersion = "2024-01"

// ShopifyOptions contains the configuration for the Shopify Admin API client
type ShopifyOptions struct {
	ShopName   string
	APIKey     string
	Password   string
	APIVersion string
	// BaseURL overrides https://<shop>.myshopify.com
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// ShopifyClient talks to the Shopify Admin REST API with private app credentials
type ShopifyClient struct {
	ShopifyOptions
	base string
}

type shopifyCustomer struct {
	ID        json.Number `json:"id"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
}

func (c shopifyCustomer) toCustomer() Customer {
	return Customer{
		ID:        c.ID.String(),
		Email:     c.Email,
		Phone:     c.Phone,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

type shopifyNewCustomer struct {
	FirstName            string `json:"first_name,omitempty"`
	LastName             string `json:"last_name,omitempty"`
	Email                string `json:"email,omitempty"`
	Phone                string `json:"phone,omitempty"`
	VerifiedEmail        bool   `json:"verified_email"`
	Password             string `json:"password,omitempty"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
	SendEmailWelcome     bool   `json:"send_email_welcome"`
}

type shopifyMetafield struct {
	ID            json.Number `json:"id,omitempty"`
	OwnerResource string      `json:"owner_resource,omitempty"`
	Namespace     string      `json:"namespace"`
	Key           string      `json:"key"`
	Value         string      `json:"value"`
	Type          string      `json:"type"`
}

// NewShopifyClient returns a Directory backed by the Shopify Admin API
func NewShopifyClient(option ShopifyOptions) (*ShopifyClient, error) {
	if option.ShopName == "" && option.BaseURL == "" {
		return nil, fmt.Errorf("empty ShopName is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.APIVersion == "" {
		option.APIVersion = DefaultShopifyAPIVersion
	}
	if option.HTTPClient == nil {
		option.HTTPClient = &http.Client{}
	}

	base := option.BaseURL
	if base == "" {
		host := option.ShopName
		if !strings.Contains(host, ".") {
			host += ".myshopify.com"
		}
		base = "https://" + host
	}

	return &ShopifyClient{
		ShopifyOptions: option,
		base:           strings.TrimRight(base, "/") + "/admin/api/" + option.APIVersion,
	}, nil
}

// Search runs a customer search query such as "email:bob@example.com"
func (s *ShopifyClient) Search(ctx context.Context, query string) ([]Customer, error) {
	var out struct {
		Customers []shopifyCustomer `json:"customers"`
	}
	path := "/customers/search.json?query=" + url.QueryEscape(query)
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	customers := make([]Customer, 0, len(out.Customers))
	for _, c := range out.Customers {
		customers = append(customers, c.toCustomer())
	}
	return customers, nil
}

// Create registers a new customer in the shop
func (s *ShopifyClient) Create(ctx context.Context, c NewCustomer) (*Customer, error) {
	in := struct {
		Customer shopifyNewCustomer `json:"customer"`
	}{
		Customer: shopifyNewCustomer(c),
	}
	var out struct {
		Customer shopifyCustomer `json:"customer"`
	}
	if err := s.do(ctx, http.MethodPost, "/customers.json", in, &out); err != nil {
		return nil, err
	}

	cust := out.Customer.toCustomer()
	return &cust, nil
}

// CreateMetafield attaches a metafield to the customer
func (s *ShopifyClient) CreateMetafield(ctx context.Context, customerID string, m Metafield) (*Metafield, error) {
	in := struct {
		Metafield shopifyMetafield `json:"metafield"`
	}{
		Metafield: shopifyMetafield{
			OwnerResource: "customer",
			Namespace:     m.Namespace,
			Key:           m.Key,
			Value:         m.Value,
			Type:          m.Type,
		},
	}
	var out struct {
		Metafield shopifyMetafield `json:"metafield"`
	}
	path := "/customers/" + url.PathEscape(customerID) + "/metafields.json"
	if err := s.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}

	return &Metafield{
		ID:        out.Metafield.ID.String(),
		Namespace: out.Metafield.Namespace,
		Key:       out.Metafield.Key,
		Value:     out.Metafield.Value,
		Type:      out.Metafield.Type,
	}, nil
}

func (s *ShopifyClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return extErrors.Wrap(err, "Cannot encode request body")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return extErrors.Wrap(err, "Cannot build Shopify request")
	}
	req.SetBasicAuth(s.APIKey, s.Password)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return extErrors.Wrap(err, "Cannot read Shopify response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseShopifyError(resp.StatusCode, raw)
		s.Logger.Debug("Shopify returned error",
			zap.String("Method", method),
			zap.String("Path", path),
			zap.Int("StatusCode", resp.StatusCode),
			zap.ByteString("Body", raw),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return extErrors.Wrap(err, "Cannot decode Shopify response")
	}
	return nil
}

// parseShopifyError flattens the "errors" member Shopify returns on failure.
// It can be a string, a list of strings, or a map of field to messages.
func parseShopifyError(status int, raw []byte) *APIError {
	fallback := &APIError{
		StatusCode: status,
		Message:    fmt.Sprintf("Response code %d (%s)", status, http.StatusText(status)),
	}

	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Errors) == 0 {
		return fallback
	}

	var msg string
	var asString string
	var asList []string
	var asMap map[string]json.RawMessage
	switch {
	case json.Unmarshal(envelope.Errors, &asString) == nil:
		msg = asString
	case json.Unmarshal(envelope.Errors, &asList) == nil:
		msg = strings.Join(asList, "; ")
	case json.Unmarshal(envelope.Errors, &asMap) == nil:
		fields := make([]string, 0, len(asMap))
		for field := range asMap {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			var one string
			var many []string
			if json.Unmarshal(asMap[field], &many) == nil {
				for _, m := range many {
					parts = append(parts, field+" "+m)
				}
			} else if json.Unmarshal(asMap[field], &one) == nil {
				parts = append(parts, field+" "+one)
			}
		}
		msg = strings.Join(parts, "; ")
	}

	if msg == "" {
		return fallback
	}
	return &APIError{
		StatusCode: status,
		Message:    msg,
	}
}
