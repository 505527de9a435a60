package customer

import (
	"context"
	"fmt"

	"github.com/zllovesuki/signup/external"

	"go.uber.org/zap"
)

// Every attribute is a single line of text in the "custom" namespace
const (
	AttributeNamespace = "custom"
	AttributeType      = "single_line_text_field"
)

// attributeSources maps attribute keys to the form fields feeding them, in attach order
var attributeSources = []struct {
	Key   string
	Field string
}{
	{Key: "website_social", Field: FieldWebsiteSocial},
	{Key: "when_purchasing_wholesale_products", Field: FieldWholesaleTiming},
	{Key: "want_to_sell_more_of", Field: FieldWantToSell},
	{Key: "top_categories", Field: FieldCategories},
	{Key: "business_name", Field: FieldStoreName},
	{Key: "business_type", Field: FieldBusiness},
}

// BuildAttributes returns the six custom attributes for a form
func BuildAttributes(form FormSubmission) []external.Metafield {
	fields := make([]external.Metafield, 0, len(attributeSources))
	for _, src := range attributeSources {
		fields = append(fields, external.Metafield{
			Namespace: AttributeNamespace,
			Key:       src.Key,
			Value:     form.Get(src.Field),
			Type:      AttributeType,
		})
	}
	return fields
}

// Attacher attaches the custom attributes to a newly created customer
type Attacher struct {
	directory external.Directory
	logger    *zap.Logger
}

// NewAttacher returns an Attacher writing to the given directory
func NewAttacher(directory external.Directory, logger *zap.Logger) (*Attacher, error) {
	if directory == nil {
		return nil, fmt.Errorf("nil Directory is invalid")
	}
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Attacher{
		directory: directory,
		logger:    logger,
	}, nil
}

// Attach creates each attribute in turn. A failure is logged and recorded,
// then the next attribute is attempted. Nothing is retried or rolled back
func (a *Attacher) Attach(ctx context.Context, customerID string, form FormSubmission) []AttachResult {
	logger := a.logger.With(zap.String("CustomerID", customerID))

	attributes := BuildAttributes(form)
	results := make([]AttachResult, 0, len(attributes))
	for _, m := range attributes {
		logger.Debug("Creating metafield",
			zap.String("Key", m.Key),
			zap.String("Value", m.Value),
		)

		created, err := a.directory.CreateMetafield(ctx, customerID, m)
		if err != nil {
			logger.Error("Failed to create metafield",
				zap.String("Key", m.Key),
				zap.Error(err),
			)
			results = append(results, AttachResult{Key: m.Key, Err: err})
			continue
		}

		logger.Debug("Metafield created",
			zap.String("Key", m.Key),
		)
		results = append(results, AttachResult{Key: m.Key, Metafield: created})
	}
	return results
}
