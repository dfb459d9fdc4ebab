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

const resendEndpoint = "https://api.resend.com/emails"

// EmailService handles sending emails via Resend API
type EmailService struct {
	apiKey    string
	fromEmail string
	endpoint  string
	client    *http.Client
}

// NewEmailService creates a new email service instance
func NewEmailService(apiKey, fromEmail string) *EmailService {
	return &EmailService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		endpoint:  resendEndpoint,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint points the service at another Resend-compatible URL.
func (s *EmailService) WithEndpoint(url string) *EmailService {
	s.endpoint = url
	return s
}

// IsConfigured checks if the email service is properly configured
func (s *EmailService) IsConfigured() bool {
	return s.apiKey != "" && s.fromEmail != ""
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendEmail sends an email using Resend API
func (s *EmailService) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email service not configured")
	}

	jsonData, err := json.Marshal(sendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}

// StockLine is one row of the low stock digest
type StockLine struct {
	Kind      string // menu item or raw material
	Name      string
	Stock     string
	Threshold string
	Unit      string
}

// SendLowStockDigest mails the day's list of items at or below their threshold
func (s *EmailService) SendLowStockDigest(ctx context.Context, to, date string, lines []StockLine) error {
	var rows strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&rows, `
                <tr>
                    <td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td>
                    <td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td>
                    <td style="padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: right;">%s %s</td>
                    <td style="padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: right;">%s</td>
                </tr>`,
			html.EscapeString(l.Name), html.EscapeString(l.Kind),
			html.EscapeString(l.Stock), html.EscapeString(l.Unit), html.EscapeString(l.Threshold))
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
</head>
<body style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f5f5f5;">
    <div style="max-width: 600px; margin: 0 auto; padding: 40px 20px;">
        <div style="background: #92400e; border-radius: 16px 16px 0 0; padding: 24px; text-align: center;">
            <h1 style="color: white; margin: 0; font-size: 24px;">Low stock report for %s</h1>
        </div>
        <div style="background: white; padding: 24px; border-radius: 0 0 16px 16px;">
            <p style="color: #374151; font-size: 15px;">%d item(s) are at or below their restock level.</p>
            <table style="width: 100%%; border-collapse: collapse; color: #374151; font-size: 14px;">
                <tr>
                    <th style="text-align: left; padding: 8px;">Item</th>
                    <th style="text-align: left; padding: 8px;">Type</th>
                    <th style="text-align: right; padding: 8px;">In stock</th>
                    <th style="text-align: right; padding: 8px;">Threshold</th>
                </tr>%s
            </table>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(date), len(lines), rows.String())

	subject := fmt.Sprintf("Low stock: %d item(s) need restocking (%s)", len(lines), date)
	return s.SendEmail(ctx, to, subject, htmlBody)
}
