package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultPostmarkURL = "https://api.postmarkapp.com"

// Postmark implements the Mailer interface using the Postmark transactional
// email API
type Postmark struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewPostmark creates a new Postmark Mailer instance. baseURL is overridable
// for tests; empty means the public API.
func NewPostmark(token string, baseURL string, timeout time.Duration) (*Postmark, error) {
	if token == "" {
		return nil, fmt.Errorf("postmark server token is required")
	}
	if baseURL == "" {
		baseURL = defaultPostmarkURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Postmark{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type postmarkRequest struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody,omitempty"`
	TextBody      string `json:"TextBody,omitempty"`
	MessageStream string `json:"MessageStream"`
}

type postmarkResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// Send delivers one message through the Postmark email endpoint
func (p *Postmark) Send(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(postmarkRequest{
		From:          msg.From,
		To:            msg.To,
		Subject:       msg.Subject,
		HtmlBody:      msg.HtmlBody,
		TextBody:      msg.TextBody,
		MessageStream: "outbound",
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/email", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling postmark API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var pmResp postmarkResponse
	if err := json.Unmarshal(respBody, &pmResp); err != nil {
		return "", fmt.Errorf("postmark API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if resp.StatusCode != http.StatusOK || pmResp.ErrorCode != 0 {
		return "", fmt.Errorf("postmark API error (status %d, code %d): %s",
			resp.StatusCode, pmResp.ErrorCode, pmResp.Message)
	}

	return pmResp.MessageID, nil
}
