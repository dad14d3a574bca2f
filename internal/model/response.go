package model

import "time"

type SendMessageResponse struct {
	ConversationID string   `json:"conversation_id"`
	UserMessage    *Message `json:"user_message"`
	BotMessage     *Message `json:"bot_message"`
}

type ConversationResponse struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	IsActive       bool      `json:"is_active"`
}

// ConversationGroup is one labeled recency bucket in the sidebar listing.
type ConversationGroup struct {
	Label         string          `json:"label"`
	Conversations []*Conversation `json:"conversations"`
}
