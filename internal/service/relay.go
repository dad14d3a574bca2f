package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mindwell-backend/internal/llm"
	"mindwell-backend/internal/model"
	"mindwell-backend/internal/ratelimit"
	"mindwell-backend/internal/session"
	"mindwell-backend/internal/storage"
	"mindwell-backend/pkg/logger"
)

var (
	// ErrRateLimited means the caller exhausted their sliding window.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmptyMessage means the message was empty after sanitization; no
	// provider call is made.
	ErrEmptyMessage = errors.New("empty message")
)

// Only this one pattern is stripped. This is defense in depth against
// stored script injection, not a full HTML sanitizer.
var scriptPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)

// Sanitize removes <script>...</script> fragments from a message.
func Sanitize(message string) string {
	return scriptPattern.ReplaceAllString(message, "")
}

// RelayService forwards sanitized user text plus trailing conversation
// history to the generative-text provider, translating provider failures
// into safe static fallback text. It never logs message content, only
// lengths.
type RelayService struct {
	llm           llm.Client
	conversations *ConversationService
	limiter       *ratelimit.Limiter
	quick         *session.Cache
	summarizer    *SummaryService
	historyLimit  int
}

func NewRelayService(client llm.Client, conversations *ConversationService, limiter *ratelimit.Limiter, quick *session.Cache, summarizer *SummaryService, historyLimit int) *RelayService {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &RelayService{
		llm:           client,
		conversations: conversations,
		limiter:       limiter,
		quick:         quick,
		summarizer:    summarizer,
		historyLimit:  historyLimit,
	}
}

// Send relays one user message within a persistent conversation. With an
// empty conversationID, today's active conversation is used (created if
// needed). The returned bot message is nil only when the conversation was
// deleted while the provider call was in flight.
func (s *RelayService) Send(ctx context.Context, userID, conversationID, rawMessage string) (*model.SendMessageResponse, error) {
	message := strings.TrimSpace(Sanitize(rawMessage))
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if s.limiter != nil && !s.limiter.Allow(userID) {
		return nil, ErrRateLimited
	}

	if conversationID == "" {
		conv, err := s.conversations.EnsureTodayActive(ctx, userID)
		if err != nil {
			return nil, err
		}
		conversationID = conv.ID
	}

	history, err := s.conversations.FetchMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.conversations.AddMessage(ctx, userID, conversationID, model.SenderUser, message)
	if err != nil {
		return nil, err
	}

	reply := s.generate(ctx, historyToTurns(history, s.historyLimit), message)

	botMsg, err := s.conversations.AddMessage(ctx, userID, conversationID, model.SenderBot, reply)
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			// The conversation was deleted while the provider call was in
			// flight. Policy: drop the reply, log, succeed for the user
			// message that did persist.
			logger.Warnf("Dropping bot reply for deleted conversation %s", conversationID)
			return &model.SendMessageResponse{
				ConversationID: conversationID,
				UserMessage:    userMsg,
			}, nil
		}
		return nil, err
	}

	if s.summarizer != nil {
		date := userMsg.CreatedAt.Format("2006-01-02")
		go func() {
			if err := s.summarizer.GenerateDaily(context.Background(), userID, date); err != nil {
				logger.Warnf("Daily summary generation failed for user %s: %v", userID, err)
			}
		}()
	}

	return &model.SendMessageResponse{
		ConversationID: conversationID,
		UserMessage:    userMsg,
		BotMessage:     botMsg,
	}, nil
}

// QuickSend relays a message in the zero-persistence chat variant backed
// by the session cache.
func (s *RelayService) QuickSend(ctx context.Context, userID, sessionKey, rawMessage string) (*model.Message, error) {
	message := strings.TrimSpace(Sanitize(rawMessage))
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if s.limiter != nil && !s.limiter.Allow(userID) {
		return nil, ErrRateLimited
	}

	history := s.quick.Messages(userID, sessionKey)
	s.quick.Append(userID, sessionKey, model.SenderUser, message)

	turns := make([]llm.Message, 0, len(history))
	for _, msg := range tail(history, s.historyLimit) {
		turns = append(turns, llm.Message{Role: roleFor(msg.Sender), Content: msg.Content})
	}

	reply := s.generate(ctx, turns, message)
	botMsg := s.quick.Append(userID, sessionKey, model.SenderBot, reply)
	return &botMsg, nil
}

// generate performs the provider round trip and maps failures to static
// fallback text per the error taxonomy: 429 keeps crisis resources
// visible, 400 asks to rephrase, anything else apologizes.
func (s *RelayService) generate(ctx context.Context, history []llm.Message, message string) string {
	turns := make([]llm.Message, 0, len(history)+2)
	turns = append(turns, llm.Message{Role: "system", Content: SystemPrompt})
	turns = append(turns, history...)
	turns = append(turns, llm.Message{Role: "user", Content: message})

	start := time.Now()
	reply, err := s.llm.Chat(ctx, turns)
	if err != nil {
		switch llm.StatusCode(err) {
		case http.StatusTooManyRequests:
			reply = RateLimitedMessage
		case http.StatusBadRequest:
			reply = RephraseMessage
		default:
			reply = ApologyMessage
		}
		logger.WithFields(logrus.Fields{
			"message_len": len(message),
			"status":      llm.StatusCode(err),
		}).Warnf("Provider call failed: %v", err)
		return reply
	}

	logger.WithFields(logrus.Fields{
		"message_len":  len(message),
		"response_len": len(reply),
		"elapsed":      time.Since(start).Round(time.Millisecond),
	}).Debug("Provider call completed")
	return reply
}

// historyToTurns converts the trailing limit messages into role-tagged
// provider turns.
func historyToTurns(history []*model.Message, limit int) []llm.Message {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	turns := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		turns = append(turns, llm.Message{Role: roleFor(msg.Sender), Content: msg.Content})
	}
	return turns
}

func roleFor(sender model.Sender) string {
	if sender == model.SenderBot {
		return "assistant"
	}
	return "user"
}

func tail(messages []model.Message, limit int) []model.Message {
	if len(messages) > limit {
		return messages[len(messages)-limit:]
	}
	return messages
}
