// Package mail sends run-completion notifications through the Resend API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketintel/internal/ports"
)

// Options configures the mailer. An empty APIKey disables sending.
type Options struct {
	Endpoint     string
	APIKey       string
	From         string
	DashboardURL string
}

// Mailer posts transactional emails to Resend.
type Mailer struct {
	opts   Options
	client *http.Client
}

var _ ports.Mailer = (*Mailer)(nil)

func NewMailer(opts Options, client *http.Client) *Mailer {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://api.resend.com/emails"
	}
	if opts.From == "" {
		opts.From = "Market Intel <onboarding@resend.dev>"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Mailer{opts: opts, client: client}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendCompletion tells the user their analysis run has finished. Returns an
// error when the mailer is unconfigured; callers treat that as non-fatal.
func (m *Mailer) SendCompletion(ctx context.Context, to, orgName string) error {
	if m.opts.APIKey == "" {
		return fmt.Errorf("mailer not configured")
	}

	body, err := json.Marshal(sendRequest{
		From:    m.opts.From,
		To:      []string{to},
		Subject: fmt.Sprintf("Analysis Complete - %s", orgName),
		HTML:    completionHTML(orgName, m.opts.DashboardURL),
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resend error: %s", resp.Status)
	}
	return nil
}

func completionHTML(orgName, dashboardURL string) string {
	return fmt.Sprintf(`<div style="font-family: -apple-system, sans-serif; max-width: 500px; margin: 0 auto; padding: 32px;">
  <h2 style="color: #0f172a;">Analysis Complete</h2>
  <p style="color: #475569; line-height: 1.6;">
    Your competitor intelligence analysis for <strong>%s</strong> has finished.
    New articles have been added to your dashboard.
  </p>
  <a href="%s" style="display: inline-block; margin-top: 20px; padding: 12px 24px; background-color: #0891b2; color: white; text-decoration: none; border-radius: 8px;">View Dashboard</a>
</div>`, orgName, dashboardURL)
}
