package customer

import (
	"context"
	"errors"
	"testing"

	"github.com/zllovesuki/signup/external/externaltest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildAttributes(t *testing.T) {
	form := FormSubmission{
		FieldWebsiteSocial:   "@shop",
		FieldWholesaleTiming: "monthly",
		FieldWantToSell:      "candles",
		FieldCategories:      "home",
		FieldStoreName:       "Acme",
		FieldBusiness:        "retail",
	}

	attrs := BuildAttributes(form)
	require.Len(t, attrs, 6)

	keys := make([]string, 0, len(attrs))
	values := make([]string, 0, len(attrs))
	for _, a := range attrs {
		assert.Equal(t, "custom", a.Namespace)
		assert.Equal(t, "single_line_text_field", a.Type)
		assert.Empty(t, a.ID)
		keys = append(keys, a.Key)
		values = append(values, a.Value)
	}
	assert.Equal(t, []string{
		"website_social",
		"when_purchasing_wholesale_products",
		"want_to_sell_more_of",
		"top_categories",
		"business_name",
		"business_type",
	}, keys)
	assert.Equal(t, []string{"@shop", "monthly", "candles", "home", "Acme", "retail"}, values)
}

func TestBuildAttributesDefaultsToEmpty(t *testing.T) {
	attrs := BuildAttributes(FormSubmission{FieldStoreName: "Acme"})
	require.Len(t, attrs, 6)
	for _, a := range attrs {
		if a.Key == "business_name" {
			assert.Equal(t, "Acme", a.Value)
			continue
		}
		assert.Equal(t, "", a.Value, a.Key)
	}
}

func TestAttach(t *testing.T) {
	dir := externaltest.New()
	attacher, err := NewAttacher(dir, zap.NewNop())
	require.NoError(t, err)

	results := attacher.Attach(context.Background(), "42", FormSubmission{FieldCategories: "toys"})
	require.Len(t, results, 6)
	for _, r := range results {
		assert.True(t, r.OK(), r.Key)
		require.NotNil(t, r.Metafield)
		assert.NotEmpty(t, r.Metafield.ID)
	}

	calls := dir.Calls("CreateMetafield")
	require.Len(t, calls, 6)
	for i, c := range calls {
		assert.Equal(t, "42", c.CustomerID)
		assert.Equal(t, attributeSources[i].Key, c.Metafield.Key)
	}
	assert.Equal(t, "toys", calls[3].Metafield.Value)
	assert.Len(t, dir.Metafields("42"), 6)
}

func TestAttachContinuesAfterFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	dir := externaltest.New()
	dir.MetafieldErr["want_to_sell_more_of"] = errors.New("value is too long")

	attacher, err := NewAttacher(dir, zap.New(core))
	require.NoError(t, err)

	results := attacher.Attach(context.Background(), "42", FormSubmission{})
	require.Len(t, results, 6)

	assert.Len(t, dir.Calls("CreateMetafield"), 6)
	assert.Len(t, dir.Metafields("42"), 5)

	for _, r := range results {
		if r.Key == "want_to_sell_more_of" {
			assert.False(t, r.OK())
			assert.Nil(t, r.Metafield)
			continue
		}
		assert.True(t, r.OK(), r.Key)
	}

	entries := logs.FilterMessage("Failed to create metafield").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "want_to_sell_more_of", entries[0].ContextMap()["Key"])
	assert.Equal(t, "42", entries[0].ContextMap()["CustomerID"])
}

func TestAttachAllFail(t *testing.T) {
	dir := externaltest.New()
	for _, src := range attributeSources {
		dir.MetafieldErr[src.Key] = errors.New("unavailable")
	}
	attacher, err := NewAttacher(dir, zap.NewNop())
	require.NoError(t, err)

	results := attacher.Attach(context.Background(), "7", FormSubmission{})
	result := RegistrationResult{Success: true, CustomerID: "7", Attributes: results}

	assert.Equal(t, 0, result.AttachedCount())
	assert.Len(t, result.FailedAttributes(), 6)
	assert.Equal(t, "unavailable", result.FailedAttributes()["business_type"])
}
