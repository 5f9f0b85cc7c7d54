package ranking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	apperrors "github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu      sync.Mutex
	reports []database.Report
	calls   int
	err     error
}

func (f *fakeSource) ListReportsInInsertOrder(ctx context.Context) ([]database.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]database.Report, len(f.reports))
	copy(out, f.reports)
	return out, nil
}

func (f *fakeSource) add(r database.Report) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingObserver struct {
	mu           sync.Mutex
	hits, misses int
}

func (o *countingObserver) IncrementCacheHit() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits++
}

func (o *countingObserver) IncrementCacheMiss() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses++
}

func newTestService(t *testing.T, src *fakeSource) (*Service, *clockwork.FakeClock, *countingObserver) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(now)
	observer := &countingObserver{}
	cache := NewRankingCache(time.Minute, clock, observer)
	t.Cleanup(cache.Close)

	return NewService(src, cache, clock, HomeView{Days: 7, Limit: 5}, HomeView{Days: 0, Limit: 5}), clock, observer
}

func TestService_CityRankingCachesUntilInvalidated(t *testing.T) {
	src := &fakeSource{reports: []database.Report{
		report("1", "", "10115", "Berlin", 5, time.Hour),
		report("2", "", "20095", "Hamburg", 5, time.Hour),
		report("3", "", "20095", "Hamburg", 7, time.Hour),
	}}
	svc, _, observer := newTestService(t, src)
	ctx := context.Background()

	stats, err := svc.CityRanking(ctx, 7, 1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Hamburg", stats[0].Name)

	src.add(report("4", "", "10115", "Berlin", 5, time.Minute))
	src.add(report("5", "", "10115", "Berlin", 5, time.Minute))

	stats, err = svc.CityRanking(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", stats[0].Name, "served from cache")
	assert.Equal(t, 1, src.callCount())
	assert.Equal(t, 1, observer.hits)

	svc.Invalidate()

	stats, err = svc.CityRanking(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "Berlin", stats[0].Name)
	assert.Equal(t, 2, src.callCount())
}

// blockingSource pauses every read after taking its snapshot until released
type blockingSource struct {
	*fakeSource
	reading chan struct{}
	release chan struct{}
}

func (b *blockingSource) ListReportsInInsertOrder(ctx context.Context) ([]database.Report, error) {
	out, err := b.fakeSource.ListReportsInInsertOrder(ctx)
	b.reading <- struct{}{}
	<-b.release
	return out, err
}

func TestService_InvalidateDuringComputeDropsStaleResult(t *testing.T) {
	inner := &fakeSource{reports: []database.Report{
		report("0171", "", "10115", "Berlin", 5, time.Hour),
	}}
	src := &blockingSource{fakeSource: inner, reading: make(chan struct{}), release: make(chan struct{})}

	clock := clockwork.NewFakeClockAt(now)
	cache := NewRankingCache(time.Minute, clock, nil)
	t.Cleanup(cache.Close)
	svc := NewService(src, cache, clock)
	ctx := context.Background()

	type outcome struct {
		stats []CityStat
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		stats, err := svc.CityRanking(ctx, 0, 0)
		done <- outcome{stats, err}
	}()

	<-src.reading
	inner.add(report("0172", "", "10115", "Berlin", 5, time.Minute))
	svc.Invalidate()
	close(src.release)

	first := <-done
	require.NoError(t, first.err)
	require.Len(t, first.stats, 1)
	assert.Equal(t, 1, first.stats[0].Count)

	// the next read must see the write instead of the result computed before it
	go func() { <-src.reading }()
	stats, err := svc.CityRanking(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, 2, inner.callCount())
}

func TestService_StoresWhenGenerationUnchanged(t *testing.T) {
	src := &fakeSource{reports: []database.Report{
		report("0171", "", "10115", "Berlin", 5, time.Hour),
	}}
	svc, _, observer := newTestService(t, src)
	ctx := context.Background()

	_, err := svc.PhoneStats(ctx, "0171")
	require.NoError(t, err)
	_, err = svc.PhoneStats(ctx, "0171")
	require.NoError(t, err)

	assert.Equal(t, 1, src.callCount())
	assert.Equal(t, 1, observer.hits)
}

func TestService_TimeWindowFollowsClock(t *testing.T) {
	src := &fakeSource{reports: []database.Report{
		report("1", "", "10115", "Berlin", 5, 0),
	}}
	svc, clock, _ := newTestService(t, src)
	ctx := context.Background()

	stats, err := svc.CityRanking(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, stats, 1)

	clock.Advance(48 * time.Hour)
	svc.Invalidate()

	stats, err = svc.CityRanking(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, stats)

	stats, err = svc.CityRanking(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, stats, 1)
}

func TestService_PhoneQueries(t *testing.T) {
	src := &fakeSource{reports: []database.Report{
		report("0171 1", "Alpha", "10115", "Berlin", 4, 0),
		report("01711", "", "10115", "Berlin", 8, 0),
	}}
	svc, _, _ := newTestService(t, src)
	ctx := context.Background()

	stat, err := svc.PhoneStats(ctx, "01711")
	require.NoError(t, err)
	assert.Equal(t, PhoneStat{Count: 2, AvgScore: 6}, stat)

	numbers, err := svc.CityNumbers(ctx, "BERLIN")
	require.NoError(t, err)
	assert.Len(t, numbers, 2)

	profile, err := svc.PhoneProfile(ctx, "0171 1")
	require.NoError(t, err)
	assert.Equal(t, 2, profile.TotalCount)

	_, err = svc.PhoneProfile(ctx, "0000")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_SourceErrorIsInternal(t *testing.T) {
	src := &fakeSource{err: errors.New("disk on fire")}
	svc, _, _ := newTestService(t, src)

	_, err := svc.CityRanking(context.Background(), 0, 5)
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryInternal, apperrors.ToAppError(err).Category)
}

func TestService_WarmCacheAndAutoRefresh(t *testing.T) {
	src := &fakeSource{reports: []database.Report{
		report("1", "", "10115", "Berlin", 5, 0),
	}}
	svc, clock, _ := newTestService(t, src)

	svc.WarmCache(context.Background())
	assert.Equal(t, 2, src.callCount())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.AutoRefresh(ctx, 10*time.Minute)
		close(done)
	}()

	// one ticker from the cache cleanup, one from AutoRefresh
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(10 * time.Minute)

	assert.Eventually(t, func() bool { return src.callCount() == 4 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
