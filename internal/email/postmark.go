package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
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
	From     string            `json:"From"`
	To       string            `json:"To"`
	Subject  string            `json:"Subject"`
	HtmlBody string            `json:"HtmlBody"`
	TextBody string            `json:"TextBody"`
	Tag      string            `json:"Tag,omitempty"`
	Headers  []postmarkHeader  `json:"Headers,omitempty"`
	Metadata map[string]string `json:"Metadata,omitempty"`
}

type postmarkHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// Invite is a team invitation.
type Invite struct {
	To        string
	TeamName  string
	Inviter   string
	Role      string
	JoinURL   string
	ExpiresAt time.Time
}

// SendInvite sends a team invitation containing the join link.
func (c *Client) SendInvite(ctx context.Context, inv Invite) error {
	inviter := inv.Inviter
	if inviter == "" {
		inviter = "A teammate"
	}
	subject := fmt.Sprintf("You've been invited to %s on FreightDocs", inv.TeamName)
	expires := inv.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST")

	textBody := fmt.Sprintf(
		"%s invited you to join %s as %s.\n\nAccept the invitation:\n\n%s\n\nThis link expires %s.",
		inviter, inv.TeamName, inv.Role, inv.JoinURL, expires,
	)
	htmlBody := fmt.Sprintf(
		`<p>%s invited you to join <strong>%s</strong> as %s.</p><p><a href="%s">Accept the invitation</a></p><p>This link expires %s.</p>`,
		html.EscapeString(inviter), html.EscapeString(inv.TeamName), html.EscapeString(inv.Role),
		html.EscapeString(inv.JoinURL), expires,
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       inv.To,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      TemplateInvite,
	})
}

// MissingDocuments is a reminder that a load still lacks paperwork.
type MissingDocuments struct {
	To             string
	LoadReference  string
	DocumentTypes  []string
	UnsubscribeURL string
}

// Template names recorded alongside sends.
const (
	TemplateInvite           = "team_invite"
	TemplateMissingDocuments = "missing_documents"
)

var docTypeLabels = map[string]string{
	"bol":     "Bill of lading",
	"pod":     "Proof of delivery",
	"invoice": "Invoice",
	"other":   "Other document",
}

// SendMissingDocuments sends a missing-document reminder with a one-click unsubscribe link.
func (c *Client) SendMissingDocuments(ctx context.Context, msg MissingDocuments) error {
	labels := make([]string, 0, len(msg.DocumentTypes))
	for _, t := range msg.DocumentTypes {
		if l, ok := docTypeLabels[t]; ok {
			labels = append(labels, l)
		} else {
			labels = append(labels, t)
		}
	}

	subject := fmt.Sprintf("Documents needed for load %s", msg.LoadReference)
	var text, htmlB strings.Builder
	fmt.Fprintf(&text, "Load %s is still missing:\n\n", msg.LoadReference)
	fmt.Fprintf(&htmlB, "<p>Load <strong>%s</strong> is still missing:</p><ul>", html.EscapeString(msg.LoadReference))
	for _, l := range labels {
		fmt.Fprintf(&text, "- %s\n", l)
		fmt.Fprintf(&htmlB, "<li>%s</li>", html.EscapeString(l))
	}
	htmlB.WriteString("</ul>")

	var headers []postmarkHeader
	if msg.UnsubscribeURL != "" {
		fmt.Fprintf(&text, "\nStop these reminders: %s\n", msg.UnsubscribeURL)
		fmt.Fprintf(&htmlB, `<p style="font-size:12px"><a href="%s">Unsubscribe from these reminders</a></p>`, html.EscapeString(msg.UnsubscribeURL))
		headers = append(headers, postmarkHeader{Name: "List-Unsubscribe", Value: "<" + msg.UnsubscribeURL + ">"})
	}

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       msg.To,
		Subject:  subject,
		HtmlBody: htmlB.String(),
		TextBody: text.String(),
		Tag:      TemplateMissingDocuments,
		Headers:  headers,
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
