package customer

import (
	"context"
	"fmt"

	"github.com/zllovesuki/signup/external"

	"go.uber.org/zap"
)

type lookupOutcome int

const (
	lookupNotFound lookupOutcome = iota
	lookupFound
	lookupFailed
)

type lookup struct {
	outcome lookupOutcome
	err     error
}

// Checker looks for existing customers with the same email or phone
type Checker struct {
	directory external.Directory
	logger    *zap.Logger
}

// NewChecker returns a Checker searching the given directory
func NewChecker(directory external.Directory, logger *zap.Logger) (*Checker, error) {
	if directory == nil {
		return nil, fmt.Errorf("nil Directory is invalid")
	}
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Checker{
		directory: directory,
		logger:    logger,
	}, nil
}

// Check searches by email and by phone concurrently. An email match is
// reported without waiting for the phone search
func (c *Checker) Check(ctx context.Context, email, phone string) DuplicateCheckResult {
	emailChan := make(chan lookup, 1)
	phoneChan := make(chan lookup, 1)

	go func() {
		emailChan <- c.lookup(ctx, external.EmailQuery(email))
	}()
	go func() {
		phoneChan <- c.lookup(ctx, external.PhoneQuery(phone))
	}()

	byEmail := <-emailChan
	if byEmail.outcome == lookupFound {
		return resolve(byEmail, lookup{})
	}
	return resolve(byEmail, <-phoneChan)
}

func (c *Checker) lookup(ctx context.Context, query string) lookup {
	customers, err := c.directory.Search(ctx, query)
	if err != nil {
		c.logger.Error("Error checking customer existence",
			zap.String("Query", query),
			zap.Error(err),
		)
		return lookup{outcome: lookupFailed, err: err}
	}
	if len(customers) > 0 {
		return lookup{outcome: lookupFound}
	}
	return lookup{outcome: lookupNotFound}
}

// resolve applies the duplicate policy. An email match always wins,
// otherwise a failed lookup counts as no duplicate
func resolve(byEmail, byPhone lookup) DuplicateCheckResult {
	switch {
	case byEmail.outcome == lookupFound:
		return DuplicateCheckResult{Exists: true, Reason: ReasonEmail}
	case byEmail.outcome == lookupFailed, byPhone.outcome == lookupFailed:
		return DuplicateCheckResult{Exists: false}
	case byPhone.outcome == lookupFound:
		return DuplicateCheckResult{Exists: true, Reason: ReasonPhone}
	default:
		return DuplicateCheckResult{Exists: false}
	}
}
