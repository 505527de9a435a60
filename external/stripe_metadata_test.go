package external_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/zllovesuki/signup/customer"
	"github.com/zllovesuki/signup/external"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
	"go.uber.org/zap"
)

func TestStripeAcceptsEveryCustomAttribute(t *testing.T) {
	var mu sync.Mutex
	keys := make([]string, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		for k := range r.PostForm {
			if strings.HasPrefix(k, "metadata[") {
				keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(k, "metadata["), "]"))
			}
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": "cus_456", "object": "customer"}`)
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        srv.Client(),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
		URL:               stripe.String(srv.URL),
	})
	d, err := external.NewStripeDirectory(external.NewStripeClient("sk_test_123", &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	}), zap.NewNop())
	require.NoError(t, err)

	attributes := customer.BuildAttributes(customer.FormSubmission{})
	for _, m := range attributes {
		_, err := d.CreateMetafield(context.Background(), "cus_456", m)
		assert.NoError(t, err, m.Key)
	}

	require.Len(t, keys, len(attributes))
	for _, k := range keys {
		assert.LessOrEqual(t, len(k), external.MaxStripeMetadataKeyLength, k)
	}
}
