package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkEndpoint = "https://api.postmarkapp.com/email"

// Client sends transactional mail through Postmark's REST API.
type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
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

type message struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendMagicLink sends the sign-in link for a login attempt.
func (c *Client) SendMagicLink(toEmail, token string) error {
	link := fmt.Sprintf("%s/auth/verify?token=%s", c.baseURL, token)
	return c.deliver(message{
		From:    c.fromEmail,
		To:      toEmail,
		Subject: "Sign in to OpenSpot",
		TextBody: fmt.Sprintf(
			"Click the link below to sign in to OpenSpot:\n\n%s\n\nThis link expires in 15 minutes.",
			link,
		),
		HtmlBody: fmt.Sprintf(
			`<p>Click the link below to sign in to OpenSpot:</p><p><a href="%s">Sign in</a></p><p>This link expires in 15 minutes.</p>`,
			link,
		),
	})
}

func (c *Client) deliver(msg message) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, postmarkEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("postmark returned status %d", resp.StatusCode)
	}
	return nil
}
