// Package guard keeps two submissions for the same email from registering at once
package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zllovesuki/signup/customer"

	"github.com/go-redis/redis/v7"
	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

var _ customer.Guard = &Guard{}

const keyPrefix = "signup:email:"

// only the owner of the lock may delete it
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Client is the subset of redis.UniversalClient used by Guard
type Client interface {
	SetNX(key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(script string, keys []string, args ...interface{}) *redis.Cmd
}

// Options provides initialization parameters for Guard
type Options struct {
	Redis  Client
	Logger *zap.Logger
	TTL    time.Duration
}

// Guard holds a short-lived Redis lock per email while a submission is processed
type Guard struct {
	Options
}

// New returns a Guard
func New(option Options) (*Guard, error) {
	if option.Redis == nil {
		return nil, fmt.Errorf("nil Redis is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.TTL <= 0 {
		return nil, fmt.Errorf("non-positive TTL is invalid")
	}
	return &Guard{
		Options: option,
	}, nil
}

// Key returns the lock key for an email
func Key(email string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Acquire takes the lock for email. Submissions without an email are not serialized
func (g *Guard) Acquire(ctx context.Context, email string) (bool, func(), error) {
	if strings.TrimSpace(email) == "" {
		return true, func() {}, nil
	}

	key := Key(email)
	token := uuid.New().String()

	ok, err := g.Redis.SetNX(key, token, g.TTL).Result()
	if err != nil {
		return false, nil, extErrors.Wrap(err, "Cannot acquire submission lock")
	}
	if !ok {
		return false, nil, nil
	}

	release := func() {
		if err := g.Redis.Eval(releaseScript, []string{key}, token).Err(); err != nil {
			g.Logger.Error("Unable to release submission lock",
				zap.String("Key", key),
				zap.Error(err),
			)
		}
	}
	return true, release, nil
}
