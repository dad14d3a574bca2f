package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindwell-backend/internal/llm"
	"mindwell-backend/internal/model"
	"mindwell-backend/internal/storage"
	"mindwell-backend/pkg/logger"
)

// SummaryNotifier is notified after a daily summary is upserted. The
// Postgres backend publishes over NOTIFY; a nil notifier disables this.
type SummaryNotifier interface {
	Notify(ctx context.Context, patientID, date string) error
}

// SummaryService produces the clinician-facing daily digest of a
// patient's chat activity: one row per (patient, day), regenerated after
// each exchange.
type SummaryService struct {
	storage  storage.Storage
	llm      llm.Client
	notifier SummaryNotifier
	now      func() time.Time
}

func NewSummaryService(store storage.Storage, client llm.Client, notifier SummaryNotifier) *SummaryService {
	return &SummaryService{
		storage:  store,
		llm:      client,
		notifier: notifier,
		now:      time.Now,
	}
}

// GenerateDaily rebuilds the patient's summary for the given date
// (YYYY-MM-DD) from that day's transcript and upserts it. A day with no
// messages is a no-op.
func (s *SummaryService) GenerateDaily(ctx context.Context, patientID, date string) error {
	transcript, err := s.dayTranscript(ctx, patientID, date)
	if err != nil {
		return err
	}
	if transcript == "" {
		return nil
	}

	resp, err := s.llm.Chat(ctx, []llm.Message{
		{Role: "system", Content: SummaryInstruction},
		{Role: "user", Content: transcript},
	})
	if err != nil {
		return fmt.Errorf("summary generation failed: %w", err)
	}

	summary := parseSummary(resp)
	summary.ID = uuid.New().String()
	summary.PatientID = patientID
	summary.SummaryDate = date
	summary.UpdatedAt = s.now()

	if err := s.storage.UpsertDailySummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, patientID, date); err != nil {
			logger.Warnf("Summary notification failed for patient %s: %v", patientID, err)
		}
	}
	return nil
}

// Get returns the stored summary for the date, or storage.ErrSummaryNotFound.
func (s *SummaryService) Get(ctx context.Context, patientID, date string) (*model.DailySummary, error) {
	return s.storage.GetDailySummary(ctx, patientID, date)
}

// dayTranscript collects the patient's messages created on the given date
// across all of their conversations, in order, as "user:"/"bot:" lines.
func (s *SummaryService) dayTranscript(ctx context.Context, patientID, date string) (string, error) {
	conversations, err := s.storage.ListConversations(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("failed to list conversations: %w", err)
	}

	var b strings.Builder
	for i := len(conversations) - 1; i >= 0; i-- {
		messages, err := s.storage.GetMessages(ctx, conversations[i].ID)
		if err != nil {
			return "", fmt.Errorf("failed to fetch messages: %w", err)
		}
		for _, msg := range messages {
			if msg.CreatedAt.Format("2006-01-02") != date {
				continue
			}
			b.WriteString(string(msg.Sender))
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// parseSummary decodes the model's JSON digest, tolerating fenced code
// blocks and falling back to the raw text as summary_text when the JSON
// is unusable.
func parseSummary(resp string) *model.DailySummary {
	text := strings.TrimSpace(resp)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var parsed struct {
		SummaryText    string   `json:"summary_text"`
		MoodIndicators []string `json:"mood_indicators"`
		KeyConcerns    []string `json:"key_concerns"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil || parsed.SummaryText == "" {
		return &model.DailySummary{
			SummaryText:    strings.TrimSpace(resp),
			MoodIndicators: []string{},
			KeyConcerns:    []string{},
		}
	}

	if parsed.MoodIndicators == nil {
		parsed.MoodIndicators = []string{}
	}
	if parsed.KeyConcerns == nil {
		parsed.KeyConcerns = []string{}
	}
	return &model.DailySummary{
		SummaryText:    parsed.SummaryText,
		MoodIndicators: parsed.MoodIndicators,
		KeyConcerns:    parsed.KeyConcerns,
	}
}
