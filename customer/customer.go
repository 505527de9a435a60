package customer

import (
	"encoding/json"
	"sort"

	"github.com/zllovesuki/signup/external"
)

// Form fields read by the signup flow
const (
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldWebsiteSocial   = "website_social"
	FieldWholesaleTiming = "when_purchasing_wholesale_products"
	FieldWantToSell      = "want_to_sell_more_of"
	FieldCategories      = "categories"
	FieldStoreName       = "store_name"
	FieldBusiness        = "business"
)

// FormSubmission is the signup form as posted by the browser. Nothing is
// required; absent fields read as empty strings
type FormSubmission map[string]string

// UnmarshalJSON accepts any JSON object. Non-string values keep their JSON text,
// null becomes the empty string
func (f *FormSubmission) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(FormSubmission, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	*f = out
	return nil
}

// Get returns the value of field, or "" when absent
func (f FormSubmission) Get(field string) string {
	return f[field]
}

// Fields lists the submitted field names in sorted order
func (f FormSubmission) Fields() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MatchReason names the field that matched an existing customer
type MatchReason string

// define constants
const (
	ReasonEmail MatchReason = "email"
	ReasonPhone MatchReason = "phone"
)

// DuplicateCheckResult tells whether a customer with the same email or phone exists
type DuplicateCheckResult struct {
	Exists bool        `json:"exists"`
	Reason MatchReason `json:"reason,omitempty"`
}

// Outcome classifies a finished registration attempt
type Outcome string

// define constants
const (
	OutcomeCreated    Outcome = "created"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeRejected   Outcome = "rejected"
	OutcomeInProgress Outcome = "in_progress"
)

// RegistrationResult is the single outcome of a signup
type RegistrationResult struct {
	Success    bool   `json:"success"`
	CustomerID string `json:"customer_id,omitempty"`
	Error      string `json:"error,omitempty"`

	Outcome    Outcome        `json:"-"`
	Attributes []AttachResult `json:"-"`
}

// AttachResult is the diagnostic record of one attribute attachment
type AttachResult struct {
	Key       string
	Metafield *external.Metafield
	Err       error
}

// OK reports whether the attribute was attached
func (a AttachResult) OK() bool {
	return a.Err == nil
}

// FailedAttributes maps each attribute key that failed to its error text
func (r RegistrationResult) FailedAttributes() map[string]string {
	failed := make(map[string]string)
	for _, a := range r.Attributes {
		if !a.OK() {
			failed[a.Key] = a.Err.Error()
		}
	}
	return failed
}

// AttachedCount returns how many attributes were attached
func (r RegistrationResult) AttachedCount() int {
	n := 0
	for _, a := range r.Attributes {
		if a.OK() {
			n++
		}
	}
	return n
}
