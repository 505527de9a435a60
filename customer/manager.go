package customer

import (
	"context"
	"fmt"
	"time"

	"github.com/zllovesuki/signup/external"

	"go.uber.org/zap"
)

const msgInProgress = "A registration for this email is already in progress."

// Attempt describes one finished registration
type Attempt struct {
	Email  string
	Phone  string
	Result RegistrationResult
	At     time.Time
}

// Journal keeps a record of registration attempts
type Journal interface {
	Record(ctx context.Context, attempt Attempt) error
}

// Publisher announces successful registrations
type Publisher interface {
	PublishRegistered(ctx context.Context, attempt Attempt) error
}

// Guard serializes concurrent submissions for the same email. When held is
// false another submission owns the email and release is nil
type Guard interface {
	Acquire(ctx context.Context, email string) (held bool, release func(), err error)
}

// ManagerOptions contains the configuration for Manager. Journal, Publisher
// and Guard are optional
type ManagerOptions struct {
	Directory external.Directory
	Logger    *zap.Logger

	Journal   Journal
	Publisher Publisher
	Guard     Guard
}

// Manager registers customers with the directory
type Manager struct {
	ManagerOptions
	checker  *Checker
	attacher *Attacher
}

// NewManager returns a new Manager for customers
func NewManager(option ManagerOptions) (*Manager, error) {
	checker, err := NewChecker(option.Directory, option.Logger)
	if err != nil {
		return nil, err
	}
	attacher, err := NewAttacher(option.Directory, option.Logger)
	if err != nil {
		return nil, err
	}
	return &Manager{
		ManagerOptions: option,
		checker:        checker,
		attacher:       attacher,
	}, nil
}

// Register checks for duplicates, creates the customer and attaches the
// custom attributes. Once the customer exists the registration succeeds,
// however many attributes were attached
func (m *Manager) Register(ctx context.Context, form FormSubmission) RegistrationResult {
	email := form.Get(FieldEmail)
	logger := m.Logger.With(zap.String("Email", email))

	if m.Guard != nil {
		held, release, err := m.Guard.Acquire(ctx, email)
		switch {
		case err != nil:
			logger.Error("Unable to acquire submission lock, continuing without it",
				zap.Error(err),
			)
		case !held:
			result := RegistrationResult{
				Outcome: OutcomeInProgress,
				Error:   msgInProgress,
			}
			m.finish(ctx, logger, form, result)
			return result
		default:
			defer release()
		}
	}

	result := m.register(ctx, logger, form)
	m.finish(ctx, logger, form, result)
	return result
}

func (m *Manager) register(ctx context.Context, logger *zap.Logger, form FormSubmission) RegistrationResult {
	dup := m.checker.Check(ctx, form.Get(FieldEmail), form.Get(FieldPhone))
	if dup.Exists {
		logger.Info("Customer already exists",
			zap.String("Reason", string(dup.Reason)),
		)
		return RegistrationResult{
			Outcome: OutcomeDuplicate,
			Error:   fmt.Sprintf("Customer with the same %s already exists.", dup.Reason),
		}
	}

	cust, err := m.Directory.Create(ctx, external.NewCustomer{
		FirstName:            form.Get(FieldFirstName),
		LastName:             form.Get(FieldLastName),
		Email:                form.Get(FieldEmail),
		Phone:                form.Get(FieldPhone),
		VerifiedEmail:        true,
		Password:             form.Get(FieldPassword),
		PasswordConfirmation: form.Get(FieldConfirmPassword),
		SendEmailWelcome:     true,
	})
	if err != nil {
		logger.Warn("Error creating customer",
			zap.Error(err),
		)
		return RegistrationResult{
			Outcome: OutcomeRejected,
			Error:   err.Error(),
		}
	}

	logger = logger.With(zap.String("CustomerID", cust.ID))
	logger.Info("Customer created")

	attributes := m.attacher.Attach(ctx, cust.ID, form)

	result := RegistrationResult{
		Success:    true,
		CustomerID: cust.ID,
		Outcome:    OutcomeCreated,
		Attributes: attributes,
	}
	if failed := result.FailedAttributes(); len(failed) > 0 {
		logger.Warn("Some custom attributes were not attached",
			zap.Int("Attached", result.AttachedCount()),
			zap.Int("Failed", len(failed)),
		)
	}
	return result
}

func (m *Manager) finish(ctx context.Context, logger *zap.Logger, form FormSubmission, result RegistrationResult) {
	attempt := Attempt{
		Email:  form.Get(FieldEmail),
		Phone:  form.Get(FieldPhone),
		Result: result,
		At:     time.Now().UTC(),
	}

	if m.Journal != nil {
		if err := m.Journal.Record(ctx, attempt); err != nil {
			logger.Error("Unable to record registration attempt",
				zap.Error(err),
			)
		}
	}

	if m.Publisher != nil && result.Success {
		if err := m.Publisher.PublishRegistered(ctx, attempt); err != nil {
			logger.Error("Unable to publish registration event",
				zap.Error(err),
			)
		}
	}
}
