package customer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zllovesuki/signup/external"
	"github.com/zllovesuki/signup/external/externaltest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolve(t *testing.T) {
	found := lookup{outcome: lookupFound}
	notFound := lookup{outcome: lookupNotFound}
	failed := lookup{outcome: lookupFailed, err: errors.New("boom")}

	cases := []struct {
		name    string
		byEmail lookup
		byPhone lookup
		want    DuplicateCheckResult
	}{
		{"neither", notFound, notFound, DuplicateCheckResult{}},
		{"email only", found, notFound, DuplicateCheckResult{Exists: true, Reason: ReasonEmail}},
		{"phone only", notFound, found, DuplicateCheckResult{Exists: true, Reason: ReasonPhone}},
		{"both match reports email", found, found, DuplicateCheckResult{Exists: true, Reason: ReasonEmail}},
		{"email match with phone failure", found, failed, DuplicateCheckResult{Exists: true, Reason: ReasonEmail}},
		{"email failure hides phone match", failed, found, DuplicateCheckResult{}},
		{"phone failure", notFound, failed, DuplicateCheckResult{}},
		{"both fail", failed, failed, DuplicateCheckResult{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolve(tc.byEmail, tc.byPhone))
		})
	}
}

func TestNewCheckerRequiresDependencies(t *testing.T) {
	_, err := NewChecker(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewChecker(externaltest.New(), nil)
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	dir := externaltest.New()
	dir.Seed(external.Customer{Email: "a@x.com", Phone: "+15550001"})
	dir.Seed(external.Customer{Email: "b@x.com", Phone: "+15550002"})

	checker, err := NewChecker(dir, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, DuplicateCheckResult{Exists: true, Reason: ReasonEmail},
		checker.Check(ctx, "a@x.com", "+19999999"))
	assert.Equal(t, DuplicateCheckResult{Exists: true, Reason: ReasonPhone},
		checker.Check(ctx, "new@x.com", "+15550002"))
	assert.Equal(t, DuplicateCheckResult{Exists: true, Reason: ReasonEmail},
		checker.Check(ctx, "a@x.com", "+15550002"))
	assert.Equal(t, DuplicateCheckResult{Exists: false},
		checker.Check(ctx, "new@x.com", "+19999999"))
}

func TestCheckSearchesByEmailAndPhone(t *testing.T) {
	dir := externaltest.New()
	checker, err := NewChecker(dir, zap.NewNop())
	require.NoError(t, err)

	checker.Check(context.Background(), "c@x.com", "+15550003")

	queries := make([]string, 0)
	for _, c := range dir.Calls("Search") {
		queries = append(queries, c.Query)
	}
	assert.ElementsMatch(t, []string{"email:c@x.com", "phone:+15550003"}, queries)
}

func TestCheckTreatsSearchFailureAsNotFound(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	dir := externaltest.New()
	dir.Seed(external.Customer{Email: "a@x.com", Phone: "+15550001"})
	dir.SearchErr["email"] = errors.New("search unavailable")

	checker, err := NewChecker(dir, zap.New(core))
	require.NoError(t, err)

	result := checker.Check(context.Background(), "a@x.com", "+15550001")
	assert.False(t, result.Exists)
	assert.Empty(t, result.Reason)

	entries := logs.FilterMessage("Error checking customer existence").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "email:a@x.com", entries[0].ContextMap()["Query"])
}

func TestCheckPhoneFailureStillReportsEmailMatch(t *testing.T) {
	dir := externaltest.New()
	dir.Seed(external.Customer{Email: "a@x.com"})
	dir.SearchErr["phone"] = errors.New("search unavailable")

	checker, err := NewChecker(dir, zap.NewNop())
	require.NoError(t, err)

	result := checker.Check(context.Background(), "a@x.com", "+15550001")
	assert.Equal(t, DuplicateCheckResult{Exists: true, Reason: ReasonEmail}, result)
}

// stalledPhoneDirectory blocks phone searches until release is closed
type stalledPhoneDirectory struct {
	*externaltest.Directory
	release chan struct{}
}

func (d *stalledPhoneDirectory) Search(ctx context.Context, query string) ([]external.Customer, error) {
	if strings.HasPrefix(query, "phone:") {
		<-d.release
	}
	return d.Directory.Search(ctx, query)
}

func TestCheckEmailMatchDoesNotWaitForPhone(t *testing.T) {
	dir := &stalledPhoneDirectory{
		Directory: externaltest.New(),
		release:   make(chan struct{}),
	}
	defer close(dir.release)
	dir.Seed(external.Customer{Email: "a@x.com", Phone: "+15550001"})

	checker, err := NewChecker(dir, zap.NewNop())
	require.NoError(t, err)

	done := make(chan DuplicateCheckResult, 1)
	go func() {
		done <- checker.Check(context.Background(), "a@x.com", "+15550001")
	}()

	select {
	case result := <-done:
		assert.Equal(t, DuplicateCheckResult{Exists: true, Reason: ReasonEmail}, result)
	case <-time.After(2 * time.Second):
		t.Fatal("Check waited for the phone search after an email match")
	}
}

func TestCheckWaitsForPhoneWithoutEmailMatch(t *testing.T) {
	dir := &stalledPhoneDirectory{
		Directory: externaltest.New(),
		release:   make(chan struct{}),
	}
	dir.Seed(external.Customer{Phone: "+15550001"})

	checker, err := NewChecker(dir, zap.NewNop())
	require.NoError(t, err)

	done := make(chan DuplicateCheckResult, 1)
	go func() {
		done <- checker.Check(context.Background(), "new@x.com", "+15550001")
	}()

	select {
	case <-done:
		t.Fatal("Check returned before the phone search finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(dir.release)
	assert.Equal(t, DuplicateCheckResult{Exists: true, Reason: ReasonPhone}, <-done)
}
