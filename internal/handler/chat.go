package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mindwell-backend/internal/model"
	"mindwell-backend/internal/service"
	"mindwell-backend/internal/session"
	"mindwell-backend/internal/storage"
	"mindwell-backend/pkg/logger"
)

type ChatHandler struct {
	conversations *service.ConversationService
	relay         *service.RelayService
	summaries     *service.SummaryService
	quick         *session.Cache
}

func NewChatHandler(conversations *service.ConversationService, relay *service.RelayService, summaries *service.SummaryService, quick *session.Cache) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		relay:         relay,
		summaries:     summaries,
		quick:         quick,
	}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.relay.Send(c.Request.Context(), userID(c), req.ConversationID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty."})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "You're sending messages too quickly. Please wait a moment."})
		case errors.Is(err, storage.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
		default:
			logger.Errorf("Send failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req model.CreateConversationRequest
	// An empty body is fine; the default title applies.
	_ = c.ShouldBindJSON(&req)

	conv, err := h.conversations.CreateConversation(c.Request.Context(), userID(c), req.Title)
	if err != nil {
		logger.Errorf("Create conversation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create conversation."})
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations, err := h.conversations.ListConversations(c.Request.Context(), userID(c))
	if err != nil {
		logger.Errorf("List conversations failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load conversations."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *ChatHandler) GroupedConversations(c *gin.Context) {
	conversations, err := h.conversations.ListConversations(c.Request.Context(), userID(c))
	if err != nil {
		logger.Errorf("List conversations failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load conversations."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": h.conversations.GroupByRecency(conversations)})
}

func (h *ChatHandler) EnsureActiveConversation(c *gin.Context) {
	conv, err := h.conversations.EnsureTodayActive(c.Request.Context(), userID(c))
	if err != nil {
		logger.Errorf("Ensure active conversation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not prepare a conversation."})
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.conversations.GetConversation(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
			return
		}
		logger.Errorf("Get conversation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load conversation."})
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) SelectConversation(c *gin.Context) {
	conv, err := h.conversations.SelectConversation(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
			return
		}
		logger.Errorf("Select conversation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not select conversation."})
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	next, err := h.conversations.DeleteConversation(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
			return
		}
		logger.Errorf("Delete conversation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete conversation."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":             "Conversation deleted",
		"active_conversation": next,
	})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	messages, err := h.conversations.FetchMessages(c.Request.Context(), userID(c), conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
			return
		}
		logger.Errorf("Fetch messages failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load messages."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        messages,
	})
}

func (h *ChatHandler) QuickSend(c *gin.Context) {
	var req model.QuickChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.relay.QuickSend(c.Request.Context(), userID(c), req.SessionKey, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty."})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "You're sending messages too quickly. Please wait a moment."})
		default:
			logger.Errorf("Quick send failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": reply})
}

func (h *ChatHandler) QuickHistory(c *gin.Context) {
	key := c.Query("session_key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_key is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": h.quick.Messages(userID(c), key)})
}

func (h *ChatHandler) QuickClear(c *gin.Context) {
	key := c.Query("session_key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_key is required"})
		return
	}

	h.quick.Clear(userID(c), key)
	c.JSON(http.StatusOK, gin.H{"messages": h.quick.Messages(userID(c), key)})
}

func (h *ChatHandler) TodaySummary(c *gin.Context) {
	h.summaryFor(c, time.Now().Format("2006-01-02"))
}

func (h *ChatHandler) SummaryByDate(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date must be YYYY-MM-DD."})
		return
	}
	h.summaryFor(c, date)
}

func (h *ChatHandler) summaryFor(c *gin.Context, date string) {
	summary, err := h.summaries.Get(c.Request.Context(), userID(c), date)
	if err != nil {
		if errors.Is(err, storage.ErrSummaryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No summary for this date yet."})
			return
		}
		logger.Errorf("Get summary failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load summary."})
		return
	}

	c.JSON(http.StatusOK, summary)
}
