package model

type SendMessageRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type QuickChatRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
	Message    string `json:"message" binding:"required"`
}
