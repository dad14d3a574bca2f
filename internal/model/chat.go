package model

import "time"

// Sender identifies who authored a message. There are exactly two
// senders: the patient ("user") and the assistant ("bot").
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether s is one of the two known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// Conversation is a thread of messages owned by one user. At most one
// conversation per user is marked active at a time.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `json:"is_active"`
}

// Message is one entry in a conversation's append-only log. Messages are
// never mutated after creation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// DailySummary is the clinician-facing digest of one patient's chat
// activity for a single calendar day, keyed on (patient_id, summary_date).
type DailySummary struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	SummaryDate    string    `json:"summary_date"` // YYYY-MM-DD
	SummaryText    string    `json:"summary_text"`
	MoodIndicators []string  `json:"mood_indicators"`
	KeyConcerns    []string  `json:"key_concerns"`
	UpdatedAt      time.Time `json:"updated_at"`
}
