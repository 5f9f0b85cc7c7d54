package feedback

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/types"
	"github.com/jonboulle/clockwork"
)

// PreviewLength is the number of runes shown in admin list previews
const PreviewLength = 60

// Store persists feedback and site settings
type Store interface {
	InsertFeedback(ctx context.Context, f *database.Feedback) error
	GetFeedback(ctx context.Context, id string) (*database.Feedback, error)
	ListFeedback(ctx context.Context) ([]database.Feedback, error)
	DeleteFeedback(ctx context.Context, id string) error
	GetSettings(ctx context.Context) (database.Settings, error)
	SaveSettings(ctx context.Context, settings database.Settings) error
}

// InputChecker validates and cleans free text
type InputChecker interface {
	ValidateFields(fields map[string]string, messages map[string]string) error
	SanitizeInput(input string) string
}

// Counter records received feedback
type Counter interface {
	IncrementFeedbackCreated()
}

// Summary is a feedback entry as shown in the admin list
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"timestamp"`
}

// Service handles the feedback form and its on/off switch
type Service struct {
	store   Store
	input   InputChecker
	counter Counter
	clock   clockwork.Clock
}

// NewService creates a new feedback service. counter may be nil.
func NewService(store Store, input InputChecker, counter Counter, clock clockwork.Clock) *Service {
	return &Service{store: store, input: input, counter: counter, clock: clock}
}

// Settings returns the site settings
func (s *Service) Settings(ctx context.Context) (database.Settings, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return database.Settings{}, errors.NewInternalError("failed to load settings", err)
	}
	return settings, nil
}

// UpdateSettings stores new site settings
func (s *Service) UpdateSettings(ctx context.Context, settings database.Settings) (database.Settings, error) {
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return database.Settings{}, errors.NewInternalError("failed to save settings", err)
	}
	slog.Info("Settings updated", "feedback_enabled", settings.FeedbackEnabled)
	return settings, nil
}

// Submit stores a message from the public feedback form
func (s *Service) Submit(ctx context.Context, req types.FeedbackRequest) (*database.Feedback, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.FeedbackEnabled {
		return nil, errors.NewForbiddenError("Das Feedback-Formular ist derzeit deaktiviert")
	}

	if err := s.input.ValidateFields(
		map[string]string{"name": req.Name, "email": req.Email},
		map[string]string{"message": req.Message},
	); err != nil {
		return nil, err
	}

	message := s.input.SanitizeInput(req.Message)
	if message == "" {
		return nil, errors.NewValidationError("Bitte eine Nachricht eingeben", "message")
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("Bitte eine gültige E-Mail-Adresse angeben", "email")
	}

	entry := database.NewFeedback(s.input.SanitizeInput(req.Name), email, message, s.clock.Now())
	if err := s.store.InsertFeedback(ctx, entry); err != nil {
		return nil, errors.NewInternalError("failed to save feedback", err)
	}
	if s.counter != nil {
		s.counter.IncrementFeedbackCreated()
	}

	slog.Info("Feedback received", "feedback_id", entry.ID)
	return entry, nil
}

// List returns all feedback, newest first
func (s *Service) List(ctx context.Context) ([]database.Feedback, error) {
	entries, err := s.store.ListFeedback(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list feedback", err)
	}
	return entries, nil
}

// ListSummaries returns all feedback with truncated messages
func (s *Service) ListSummaries(ctx context.Context) ([]Summary, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, Summary{
			ID:        e.ID,
			Name:      e.Name,
			Email:     e.Email,
			Preview:   Preview(e.Message),
			CreatedAt: e.CreatedAt,
		})
	}
	return summaries, nil
}

// Get returns one feedback entry
func (s *Service) Get(ctx context.Context, id string) (*database.Feedback, error) {
	entry, err := s.store.GetFeedback(ctx, id)
	if err != nil {
		return nil, storeError(err, id, "failed to load feedback")
	}
	return entry, nil
}

// Delete removes one feedback entry
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteFeedback(ctx, id); err != nil {
		return storeError(err, id, "failed to delete feedback")
	}
	slog.Info("Feedback deleted", "feedback_id", id)
	return nil
}

// Preview shortens message to PreviewLength runes followed by "..."
func Preview(message string) string {
	if utf8.RuneCountInString(message) <= PreviewLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:PreviewLength]) + "..."
}

func storeError(err error, id, message string) error {
	if stderrors.Is(err, database.ErrNotFound) {
		return errors.NewNotFoundError("feedback", id)
	}
	return errors.NewInternalError(message, err)
}
