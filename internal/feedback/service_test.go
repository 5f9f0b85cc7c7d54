package feedback

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/security"
	"github.com/ZanzyTHEbar/karten-melder/internal/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ created int }

func (c *counter) IncrementFeedbackCreated() { c.created++ }

func newTestService(t *testing.T) (*Service, *clockwork.FakeClock, *counter) {
	t.Helper()

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC))
	c := &counter{}
	svc := NewService(database.NewRepository(db), security.NewSecurityMiddleware(security.DefaultSecurityConfig()), c, clock)
	return svc, clock, c
}

func TestSubmitAndList(t *testing.T) {
	svc, clock, c := newTestService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, types.FeedbackRequest{Name: "Anna", Message: "Super Seite"})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	second, err := svc.Submit(ctx, types.FeedbackRequest{Email: "b@example.org", Message: "  Bitte Dark Mode  "})
	require.NoError(t, err)
	assert.Equal(t, "Bitte Dark Mode", second.Message)

	entries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, 2, c.created)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.Name)

	require.NoError(t, svc.Delete(ctx, first.ID))
	_, err = svc.Get(ctx, first.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(svc.Delete(ctx, first.ID)))
}

func TestSubmitValidation(t *testing.T) {
	svc, _, c := newTestService(t)

	tests := []struct {
		name string
		req  types.FeedbackRequest
	}{
		{"empty message", types.FeedbackRequest{Message: "   "}},
		{"markup only", types.FeedbackRequest{Message: "<b></b>"}},
		{"bad email", types.FeedbackRequest{Email: "x", Message: "hi"}},
		{"too long", types.FeedbackRequest{Message: strings.Repeat("a", 2001)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, errors.CategoryValidation, errors.ToAppError(err).Category)
		})
	}
	assert.Zero(t, c.created)
}

func TestSubmitDisabled(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	settings, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.FeedbackEnabled, "enabled by default")

	_, err = svc.UpdateSettings(ctx, database.Settings{FeedbackEnabled: false})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, types.FeedbackRequest{Message: "hallo"})
	require.Error(t, err)
	appErr := errors.ToAppError(err)
	assert.Equal(t, errors.CategoryForbidden, appErr.Category)
	assert.Equal(t, 403, appErr.HTTPStatus)

	_, err = svc.UpdateSettings(ctx, database.Settings{FeedbackEnabled: true})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, types.FeedbackRequest{Message: "hallo"})
	assert.NoError(t, err)
}

func TestPreview(t *testing.T) {
	short := "kurz"
	exact := strings.Repeat("ü", PreviewLength)
	long := strings.Repeat("ä", PreviewLength+5)

	assert.Equal(t, short, Preview(short))
	assert.Equal(t, exact, Preview(exact))
	assert.Equal(t, strings.Repeat("ä", PreviewLength)+"...", Preview(long))
}

func TestListSummaries(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, types.FeedbackRequest{Message: strings.Repeat("x", 100)})
	require.NoError(t, err)

	summaries, err := svc.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Len(t, summaries[0].Preview, PreviewLength+3)
}
