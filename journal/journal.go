// Package journal records every registration attempt in PostgreSQL
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zllovesuki/signup/customer"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

var _ customer.Journal = &Journal{}

// Registration is one journaled attempt
type Registration struct {
	ID                 string `gorm:"primaryKey"`
	Email              string `gorm:"index"`
	Phone              string
	Outcome            string `gorm:"index"`
	CustomerID         string
	Error              string
	AttributesAttached int
	AttributeErrors    AttributeErrors
	CreatedAt          time.Time
}

// quietLogger drops ErrRecordNotFound so it never reaches zap/sentry
type quietLogger struct {
	zapgorm2.Logger
}

func (l *quietLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	l.Logger.Trace(ctx, begin, fc, err)
}

// Journal writes registrations through gorm
type Journal struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to PostgreSQL and prepares the registrations table
func Open(logger *zap.Logger, uri string) (*Journal, error) {
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{
		Logger: &quietLogger{
			Logger: zapgorm2.Logger{
				ZapLogger:        logger,
				LogLevel:         gormlogger.Warn,
				SlowThreshold:    time.Second,
				SkipCallerLookup: false,
			},
		},
	})
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to database")
	}
	pool, err := db.DB()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot get the connection pool")
	}
	pool.SetMaxIdleConns(1)
	pool.SetMaxOpenConns(10)
	pool.SetConnMaxLifetime(time.Hour)

	return New(logger, db)
}

// New returns a Journal on an existing connection, migrating the schema
func New(logger *zap.Logger, db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if err := db.AutoMigrate(&Registration{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize journal")
	}
	return &Journal{
		db:     db,
		logger: logger,
	}, nil
}

// Record stores the attempt
func (j *Journal) Record(ctx context.Context, attempt customer.Attempt) error {
	row := fromAttempt(attempt)
	result := j.db.WithContext(ctx).Create(&row)
	if result.Error != nil {
		return extErrors.Wrap(result.Error, "Cannot record registration")
	}
	j.logger.Debug("Registration recorded",
		zap.String("ID", row.ID),
		zap.String("Outcome", row.Outcome),
	)
	return nil
}

// Close releases the connection pool
func (j *Journal) Close() error {
	pool, err := j.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

func fromAttempt(attempt customer.Attempt) Registration {
	return Registration{
		ID:                 uuid.New().String(),
		Email:              attempt.Email,
		Phone:              attempt.Phone,
		Outcome:            string(attempt.Result.Outcome),
		CustomerID:         attempt.Result.CustomerID,
		Error:              attempt.Result.Error,
		AttributesAttached: attempt.Result.AttachedCount(),
		AttributeErrors:    AttributeErrors(attempt.Result.FailedAttributes()),
		CreatedAt:          attempt.At,
	}
}
