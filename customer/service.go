package customer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	resp "github.com/zllovesuki/signup/response"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

const (
	msgCreated = "Customer created successfully!"
	msgFailed  = "Failed to create customer"
)

// Options contains the configuration for Service router
type Options struct {
	CustomerManager *Manager
	Logger          *zap.Logger
}

// Service is the signup form API router
type Service struct {
	Options
}

// CreatedResponse is the body returned when the customer was created
type CreatedResponse struct {
	Message    string `json:"message"`
	CustomerID string `json:"customer_id"`
}

// NewService will create an instance of the signup form API router
func NewService(option Options) (*Service, error) {
	if option.CustomerManager == nil {
		return nil, fmt.Errorf("nil CustomerManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

func (s *Service) submitForm(w http.ResponseWriter, r *http.Request) {
	logger := s.Logger.With(zap.String("RequestID", middleware.GetReqID(r.Context())))

	var form FormSubmission
	if err := decodeForm(r.Body, &form); err != nil {
		logger.Info("Unable to decode form data",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrInvalidJson().WithMessage(msgFailed))
		return
	}

	logger.Info("Form data received",
		zap.String("Email", form.Get(FieldEmail)),
		zap.Strings("Fields", form.Fields()),
	)

	// the registration runs to completion even if the client goes away
	ctx := context.WithoutCancel(r.Context())
	result := s.CustomerManager.Register(ctx, form)

	if !result.Success {
		resp.WriteError(w, r, resp.ErrBadRequest().WithMessage(msgFailed).WithReason(result.Error))
		return
	}

	resp.WriteResponse(w, r, CreatedResponse{
		Message:    msgCreated,
		CustomerID: result.CustomerID,
	})
}

// decodeForm reads exactly one JSON object from body
func decodeForm(body io.Reader, form *FormSubmission) error {
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(form); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON object")
	}
	return nil
}

// Router will return the routes under the signup form API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.submitForm)

	return r
}
