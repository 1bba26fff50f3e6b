package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultWahaURL = "http://waha:3000"

// WahaService sends WhatsApp messages through a WAHA gateway
type WahaService struct {
	baseURL     string
	apiKey      string
	session     string
	countryCode string
	client      *http.Client

	// pauses between the seen/typing steps of SendMessage
	seenDelay, typingDelay, stopDelay time.Duration
}

// NewWahaService targets baseURL (WAHA_BASE_URL). countryCode replaces a
// leading 0 in local phone numbers.
func NewWahaService(baseURL, apiKey, countryCode string) *WahaService {
	if baseURL == "" {
		baseURL = defaultWahaURL
	}
	return &WahaService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		session:     "default",
		countryCode: countryCode,
		client:      &http.Client{Timeout: 15 * time.Second},
		seenDelay:   100 * time.Millisecond,
		typingDelay: 150 * time.Millisecond,
		stopDelay:   50 * time.Millisecond,
	}
}

func (s *WahaService) makeRequest(ctx context.Context, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *WahaService) chatRequest(ctx context.Context, endpoint, chatID string) error {
	return s.makeRequest(ctx, endpoint, map[string]string{
		"chatId":  chatID,
		"session": s.session,
	})
}

func (s *WahaService) sendText(ctx context.Context, chatID, text string) error {
	return s.makeRequest(ctx, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": s.session,
	})
}

// NormalizeChatID adds the WhatsApp suffix to a chat id and rewrites a local
// number starting with 0 to start with countryCode.
func NormalizeChatID(chatID, countryCode string) string {
	chatID = strings.TrimSpace(chatID)

	// If it's already a group ID, it's correct
	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	chatID = strings.TrimPrefix(chatID, "+")

	if countryCode != "" && strings.HasPrefix(chatID, "0") {
		chatID = countryCode + strings.TrimPrefix(chatID, "0")
	}

	return chatID + "@c.us"
}

// SendMessage sends a message with authentic behavior (seen -> typing -> stop typing -> send)
func (s *WahaService) SendMessage(ctx context.Context, chatID, text string) error {
	chatID = NormalizeChatID(chatID, s.countryCode)

	if err := s.chatRequest(ctx, "/api/sendSeen", chatID); err != nil {
		return fmt.Errorf("failed to send seen: %w", err)
	}
	if err := sleep(ctx, s.seenDelay); err != nil {
		return err
	}

	if err := s.chatRequest(ctx, "/api/startTyping", chatID); err != nil {
		return fmt.Errorf("failed to start typing: %w", err)
	}
	if err := sleep(ctx, s.typingDelay); err != nil {
		return err
	}

	if err := s.chatRequest(ctx, "/api/stopTyping", chatID); err != nil {
		return fmt.Errorf("failed to stop typing: %w", err)
	}
	if err := sleep(ctx, s.stopDelay); err != nil {
		return err
	}

	if err := s.sendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
