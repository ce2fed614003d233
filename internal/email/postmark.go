package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint. Used by tests.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
}

// SendLoginCode mails a parent their 6-digit sign-in code.
func (c *Client) SendLoginCode(toEmail, code string) error {
	body := fmt.Sprintf("Din kode til Min Dagsplan er: %s\n\nKoden udløber om 15 minutter.", code)
	return c.send(toEmail, "Din kode til Min Dagsplan", body)
}

// SendRedemptionNotice tells a parent their child has claimed a reward.
func (c *Client) SendRedemptionNotice(toEmail, childName, rewardTitle string, pointsSpent, pointsLeft int) error {
	subject := fmt.Sprintf("🎉 %s har indløst en præmie!", childName)
	body := fmt.Sprintf(`Hej!

%s har lige indløst en præmie! 🎁

Præmie: %s
Stjerner brugt: %d ⭐
Stjerner tilbage: %d ⭐

Log ind på Min Dagsplan for at se præmien og markere den som givet når I har leveret den.

Mvh,
Min Dagsplan`, childName, rewardTitle, pointsSpent, pointsLeft)
	return c.send(toEmail, subject, body)
}

// send posts one email to Postmark, retrying transient failures with
// exponential backoff.
func (c *Client) send(toEmail, subject, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		TextBody: textBody,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Postmark-Server-Token", c.serverToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send email: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("postmark returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("postmark returned %d", resp.StatusCode)
		}
		return nil
	})
}
