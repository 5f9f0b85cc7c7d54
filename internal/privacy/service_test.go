package privacy

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu       sync.Mutex
	cutoffs  []time.Time
	reports  int64
	feedback int64
	err      error
}

func (f *fakeStore) DeleteReportsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.reports, f.err
}

func (f *fakeStore) DeleteFeedbackBefore(_ context.Context, _ time.Time) (int64, error) {
	return f.feedback, nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

type recorder struct {
	reports, feedback int64
}

func (r *recorder) RecordRetentionPurge(reports, feedback int64) {
	r.reports += reports
	r.feedback += feedback
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCleanup(t *testing.T) {
	store := &fakeStore{reports: 3, feedback: 1}
	rec := &recorder{}
	ps := NewService(store, rec, clockwork.NewFakeClockAt(now), 30)

	result, err := ps.Cleanup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, now.AddDate(0, 0, -30), result.Cutoff)
	assert.Equal(t, int64(3), result.ReportsDeleted)
	assert.Equal(t, int64(1), result.FeedbackDeleted)
	assert.Equal(t, int64(3), rec.reports)
	assert.Equal(t, int64(1), rec.feedback)
}

func TestCleanupDisabled(t *testing.T) {
	store := &fakeStore{}
	ps := NewService(store, nil, clockwork.NewFakeClockAt(now), 0)

	result, err := ps.Cleanup(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Disabled)
	assert.Zero(t, store.calls())
	assert.False(t, ps.Policy().RetentionActive)
	assert.Equal(t, "disabled", ps.Policy().CleanupSchedule)
}

func TestCleanupStoreError(t *testing.T) {
	store := &fakeStore{err: stderrors.New("disk full")}
	ps := NewService(store, nil, clockwork.NewFakeClockAt(now), 7)

	_, err := ps.Cleanup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRedactReport(t *testing.T) {
	report := database.Report{ID: "r1", PhoneNumber: "0176 1", Email: "me@example.org"}

	redacted := RedactReport(report)
	assert.Empty(t, redacted.Email)
	assert.Equal(t, "0176 1", redacted.PhoneNumber)
	assert.Equal(t, "me@example.org", report.Email, "original untouched")

	list := RedactReports([]database.Report{report, report})
	for _, r := range list {
		assert.Empty(t, r.Email)
	}
}

func TestPolicy(t *testing.T) {
	ps := NewService(&fakeStore{}, nil, clockwork.NewFakeClock(), 90)
	policy := ps.Policy()

	assert.Equal(t, 90, policy.RetentionDays)
	assert.True(t, policy.RetentionActive)
	assert.Contains(t, policy.PrivateFields, "email")
	assert.NotContains(t, policy.PublicFields, "email")
}

func TestScheduleCleanup(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	store := &fakeStore{reports: 1}
	ps := NewService(store, nil, clock, 30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var refreshed sync.WaitGroup
	refreshed.Add(2)

	go func() {
		defer close(done)
		ps.ScheduleCleanup(ctx, refreshed.Done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, store.calls(), "runs once at start")

	clock.Advance(24 * time.Hour)
	refreshed.Wait()
	assert.Equal(t, 2, store.calls())

	cancel()
	<-done
}
