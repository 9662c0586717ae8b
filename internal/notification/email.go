package notification

import (
	"context"
	"fmt"
	"html"
	"mime"
	"net/smtp"
	"strings"
	"time"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// ContactInbox receives contact form submissions.
	ContactInbox string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailService struct {
	config EmailConfig
	send   sendFunc
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config, send: smtp.SendMail}
}

// ContactMessage is a contact form submission.
type ContactMessage struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// SendContactMessage forwards a contact form submission to the inbox. The
// sender's address is set as Reply-To.
func (s *EmailService) SendContactMessage(ctx context.Context, m ContactMessage) error {
	if s.config.ContactInbox == "" {
		return nil
	}
	subject := m.Subject
	if subject == "" {
		subject = "Contactformulier"
	}
	body := fmt.Sprintf(`<html><body>
		<h2>Nieuw bericht via het contactformulier</h2>
		<p><strong>Naam:</strong> %s</p>
		<p><strong>E-mail:</strong> %s</p>
		<p>%s</p>
	</body></html>`,
		html.EscapeString(m.Name),
		html.EscapeString(m.Email),
		strings.ReplaceAll(html.EscapeString(m.Message), "\n", "<br>"),
	)
	return s.sendEmail(ctx, []string{s.config.ContactInbox}, m.Email, "[Contact] "+subject, body)
}

// TrialEnding tells an organization's admins that the trial is about to end.
func (s *EmailService) TrialEnding(ctx context.Context, to []string, organizationName string, trialEnd *time.Time) error {
	if len(to) == 0 {
		return nil
	}
	when := "binnenkort"
	if trialEnd != nil {
		when = "op " + trialEnd.Format("2 January 2006")
	}
	subject := "Je proefperiode loopt bijna af"
	body := fmt.Sprintf(`<html><body>
		<h2>Je proefperiode loopt bijna af</h2>
		<p>De proefperiode van %s eindigt %s.</p>
		<p>Je abonnement gaat daarna automatisch door met de gekozen betaalmethode.</p>
	</body></html>`, html.EscapeString(organizationName), when)
	return s.sendEmail(ctx, to, "", subject, body)
}

func (s *EmailService) sendEmail(ctx context.Context, to []string, replyTo, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	if replyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", replyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.From, to, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
