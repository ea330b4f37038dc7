package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dimasraya/live-orders/internal/events"
)

// HTTPReplier posts a comment reply through the platform graph API.
type HTTPReplier struct {
	BaseURL     string
	AccessToken string
	HTTP        *http.Client
}

func NewHTTPReplier(baseURL, token string) *HTTPReplier {
	return &HTTPReplier{
		BaseURL:     baseURL,
		AccessToken: token,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPReplier) SendPaymentPrompt(ctx context.Context, o events.OrderPendingPayload) error {
	msg := fmt.Sprintf("%s, order confirmed: %s x%d, total %d.%02d. Please check your inbox for payment details.",
		o.AuthorName, o.Code, o.Quantity, o.SubtotalCents/100, o.SubtotalCents%100)

	body, err := json.Marshal(map[string]string{
		"message":      msg,
		"access_token": r.AccessToken,
	})
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/%s/comments", r.BaseURL, o.CommentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send reply: status %d", resp.StatusCode)
	}
	return nil
}
