package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mindwell-backend/internal/auth"
	"mindwell-backend/internal/config"
	"mindwell-backend/internal/llm"
	"mindwell-backend/internal/model"
	"mindwell-backend/internal/ratelimit"
	"mindwell-backend/internal/service"
	"mindwell-backend/internal/session"
	"mindwell-backend/internal/storage"
)

type scriptedLLM struct {
	reply string
	err   error
}

func (s *scriptedLLM) Chat(context.Context, []llm.Message) (string, error) {
	return s.reply, s.err
}

func newTestRouter(client llm.Client, limiter *ratelimit.Limiter) *gin.Engine {
	return newTestRouterWithStore(client, limiter, storage.NewMemoryStorage())
}

func newTestRouterWithStore(client llm.Client, limiter *ratelimit.Limiter, store storage.Storage) *gin.Engine {
	gin.SetMode(gin.TestMode)

	conversations := service.NewConversationService(store, config.ChatConfig{
		DefaultTitlePrefix: "Chat",
		TitleMaxLen:        50,
	})
	quick := session.NewCache(session.NewMemorySlotStore(), service.DefaultGreeting)
	summaries := service.NewSummaryService(store, client, nil)
	relay := service.NewRelayService(client, conversations, limiter, quick, nil, 10)
	chatHandler := NewChatHandler(conversations, relay, summaries, quick)

	verifier := &auth.StaticVerifier{Tokens: map[string]string{
		"good-token": "u1",
		"bob-token":  "u2",
	}}

	router := gin.New()
	api := router.Group("/api")
	api.Use(AuthRequired(verifier))
	{
		chat := api.Group("/chat")
		{
			chat.POST("/send", chatHandler.SendMessage)
			chat.POST("/conversations", chatHandler.CreateConversation)
			chat.GET("/conversations", chatHandler.ListConversations)
			chat.GET("/conversations/:id", chatHandler.GetConversation)
			chat.POST("/conversations/:id/select", chatHandler.SelectConversation)
			chat.DELETE("/conversations/:id", chatHandler.DeleteConversation)
			chat.GET("/messages/:conversation_id", chatHandler.GetMessages)
		}
		quickGroup := api.Group("/quickchat")
		{
			quickGroup.POST("/send", chatHandler.QuickSend)
			quickGroup.GET("/history", chatHandler.QuickHistory)
			quickGroup.DELETE("/history", chatHandler.QuickClear)
		}
		summaryGroup := api.Group("/summaries")
		{
			summaryGroup.GET("/:date", chatHandler.SummaryByDate)
		}
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestAuthRequired_RejectsMissingAndUnknownTokens(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "hi"}, nil)

	for _, token := range []string{"", "bogus"} {
		w := doJSON(t, router, http.MethodGet, "/api/chat/conversations", token, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want 401", token, w.Code)
		}
		if got := decodeBody(t, w)["error"]; got != "Please sign in to continue." {
			t.Fatalf("token %q: error = %v", token, got)
		}
	}
}

func TestSendMessage_HappyPath(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "I'm here with you."}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/chat/send", "good-token", `{"message":"I had a rough night"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["conversation_id"] == "" {
		t.Fatal("response missing conversation_id")
	}
	bot, ok := body["bot_message"].(map[string]any)
	if !ok {
		t.Fatalf("bot_message missing: %v", body)
	}
	if bot["content"] != "I'm here with you." {
		t.Fatalf("bot content = %v", bot["content"])
	}
}

func TestSendMessage_EmptyAfterSanitization(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "unused"}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/chat/send", "good-token", `{"message":"<script>alert(1)</script>"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "Message cannot be empty." {
		t.Fatalf("error = %v", got)
	}
}

func TestSendMessage_RateLimited(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "ok"}, ratelimit.New(time.Minute, 2))

	for i := 0; i < 2; i++ {
		w := doJSON(t, router, http.MethodPost, "/api/chat/send", "good-token", `{"message":"hello"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("send %d: status = %d", i+1, w.Code)
		}
	}

	w := doJSON(t, router, http.MethodPost, "/api/chat/send", "good-token", `{"message":"one more"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "You're sending messages too quickly. Please wait a moment." {
		t.Fatalf("error = %v", got)
	}
}

func TestGetConversation_UnknownIDIsNotFound(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "ok"}, nil)

	w := doJSON(t, router, http.MethodGet, "/api/chat/conversations/no-such-id", "good-token", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDeleteConversation_ReturnsNextActive(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "ok"}, nil)

	created := doJSON(t, router, http.MethodPost, "/api/chat/conversations", "good-token", `{}`)
	if created.Code != http.StatusOK {
		t.Fatalf("create: status = %d", created.Code)
	}
	id, _ := decodeBody(t, created)["id"].(string)
	if id == "" {
		t.Fatalf("create response missing id: %s", created.Body.String())
	}

	w := doJSON(t, router, http.MethodDelete, "/api/chat/conversations/"+id, "good-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d, body = %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	next, ok := body["active_conversation"].(map[string]any)
	if !ok {
		t.Fatalf("active_conversation missing: %v", body)
	}
	if next["id"] == id {
		t.Fatal("replacement conversation reused the deleted id")
	}
}

func TestQuickChat_SendHistoryClear(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "I'm listening."}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/quickchat/send", "good-token", `{"session_key":"tab-1","message":"rough day"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("send: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/quickchat/history?session_key=tab-1", "good-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history: status = %d", w.Code)
	}
	messages, _ := decodeBody(t, w)["messages"].([]any)
	// greeting + user + bot
	if len(messages) != 3 {
		t.Fatalf("history has %d messages, want 3", len(messages))
	}

	w = doJSON(t, router, http.MethodDelete, "/api/quickchat/history?session_key=tab-1", "good-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear: status = %d", w.Code)
	}
	messages, _ = decodeBody(t, w)["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("cleared history has %d messages, want the greeting only", len(messages))
	}

	w = doJSON(t, router, http.MethodGet, "/api/quickchat/history", "good-token", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("history without session_key: status = %d, want 400", w.Code)
	}
}

func TestQuickChat_SessionKeyDoesNotLeakAcrossUsers(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "I'm listening."}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/quickchat/send", "good-token", `{"session_key":"tab-1","message":"my private struggle"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("send: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Another authenticated user presenting the same session key must see a
	// fresh session, never the first user's transcript.
	w = doJSON(t, router, http.MethodGet, "/api/quickchat/history?session_key=tab-1", "bob-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history: status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "my private struggle") {
		t.Fatalf("another user read the transcript: %s", w.Body.String())
	}
	messages, _ := decodeBody(t, w)["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("other user's session has %d messages, want the greeting only", len(messages))
	}

	// Nor can they clear it.
	w = doJSON(t, router, http.MethodDelete, "/api/quickchat/history?session_key=tab-1", "bob-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear: status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/quickchat/history?session_key=tab-1", "good-token", "")
	if !strings.Contains(w.Body.String(), "my private struggle") {
		t.Fatalf("owner's transcript was cleared by another user: %s", w.Body.String())
	}
}

type brokenConversationStore struct {
	*storage.MemoryStorage
}

func (b *brokenConversationStore) GetConversation(context.Context, string) (*model.Conversation, error) {
	return nil, errors.New("connection reset")
}

func TestConversationReads_StorageFailureIsNot404(t *testing.T) {
	router := newTestRouterWithStore(&scriptedLLM{reply: "ok"}, nil, &brokenConversationStore{storage.NewMemoryStorage()})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/chat/conversations/c1"},
		{http.MethodPost, "/api/chat/conversations/c1/select"},
		{http.MethodGet, "/api/chat/messages/c1"},
	}
	for _, tc := range paths {
		w := doJSON(t, router, tc.method, tc.path, "good-token", "")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s: status = %d, want 500 for a storage failure", tc.method, tc.path, w.Code)
		}
	}
}

func TestSummaryByDate_ValidatesDateFormat(t *testing.T) {
	router := newTestRouter(&scriptedLLM{reply: "ok"}, nil)

	w := doJSON(t, router, http.MethodGet, "/api/summaries/not-a-date", "good-token", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/summaries/2025-06-01", "good-token", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unwritten summary", w.Code)
	}
}
