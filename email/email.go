package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"linkguard/config"
	"linkguard/model"

	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned when a send is attempted without SMTP
// credentials. Probe results are already persisted at that point; the
// caller logs the failure and moves on.
var ErrNotConfigured = errors.New("email service not configured: missing SMTP host or sender")

// Report summarizes one user's probe outcomes for a single scan pass.
type Report struct {
	Total            int      // scans probed this pass
	InaccessibleURLs []string // literal URLs of scans found inaccessible
}

// EmailService handles sending emails
type EmailService struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
	Enabled      bool
}

// NewEmailService creates a new email service. The service is disabled
// when the SMTP host or sender address is missing, which makes absent
// credentials detectable before any send is attempted.
func NewEmailService(cfg config.SMTPConfig) *EmailService {
	enabled := cfg.Host != "" && cfg.FromEmail != ""
	if !enabled {
		log.Warn().Msg("Email service disabled: SMTP host or sender not configured")
	}
	return &EmailService{
		SMTPHost:     cfg.Host,
		SMTPPort:     cfg.Port,
		SMTPUsername: cfg.Username,
		SMTPPassword: cfg.Password,
		FromEmail:    cfg.FromEmail,
		FromName:     cfg.FromName,
		Enabled:      enabled,
	}
}

// BuildScanReport renders the per-pass summary for a user: how many
// scans were probed, how many came back inaccessible, and which URLs.
func BuildScanReport(toEmail string, report Report) string {
	items := make([]string, 0, len(report.InaccessibleURLs))
	for _, url := range report.InaccessibleURLs {
		items = append(items, fmt.Sprintf("<li>%s</li>", url))
	}

	return fmt.Sprintf(`
<h2>Scan report for %s</h2>
<p>Total scans: %d</p>
<p>Inaccessible: %d</p>
<ul>
%s
</ul>
`, toEmail, report.Total, len(report.InaccessibleURLs), strings.Join(items, "\n"))
}

// BuildSingleScanReport renders the outcome of one probe, used for
// account-less scans where the requester gets a one-shot email.
func BuildSingleScanReport(toEmail string, scan model.Scan, result model.LinkResult) string {
	verdict := "The scanned URL is accessible."
	if !result.IsAccessible {
		verdict = "The scanned URL is inaccessible."
	}

	return fmt.Sprintf(`
<h2>Scan report for %s</h2>
<p>Scanned URL: %s</p>
<p>%s</p>
<p>Status code: %d &mdash; response time: %d ms</p>
`, toEmail, scan.Input, verdict, result.StatusCode, result.ResponseTime)
}

// SendScanReport delivers a per-pass summary to a user
func (es *EmailService) SendScanReport(toEmail string, report Report) error {
	body := BuildScanReport(toEmail, report)
	return es.sendEmail(toEmail, "Your LinkGuard scan report", body)
}

// SendSingleScanReport delivers a one-shot probe outcome
func (es *EmailService) SendSingleScanReport(toEmail string, scan model.Scan, result model.LinkResult) error {
	body := BuildSingleScanReport(toEmail, scan, result)
	return es.sendEmail(toEmail, "Your LinkGuard scan report", body)
}

// SendPasswordChangeAlert confirms a password change to the account owner
func (es *EmailService) SendPasswordChangeAlert(toEmail string) error {
	body := fmt.Sprintf(`
<h2>Password changed</h2>
<p>The password for %s was changed successfully.</p>
<p>If you did not make this change, reset your password immediately.</p>
`, toEmail)
	return es.sendEmail(toEmail, "Your LinkGuard password was changed", body)
}

// sendEmail sends an email using SMTP
func (es *EmailService) sendEmail(to, subject, body string) error {
	if !es.Enabled {
		return ErrNotConfigured
	}

	from := fmt.Sprintf("%s <%s>", es.FromName, es.FromEmail)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, body,
	))

	var auth smtp.Auth
	if es.SMTPUsername != "" {
		auth = smtp.PlainAuth("", es.SMTPUsername, es.SMTPPassword, es.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%s", es.SMTPHost, es.SMTPPort)

	err := smtp.SendMail(addr, auth, es.FromEmail, []string{to}, msg)
	if err != nil {
		log.Error().Err(err).Str("to", to).Msg("Failed to send email")
		return err
	}

	log.Info().Str("to", to).Str("subject", subject).Msg("Email sent successfully")
	return nil
}
