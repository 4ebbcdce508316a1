package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// Mailer delivers license keys and operator notifications over SMTP.
type Mailer struct {
	log *slog.Logger
	cfg Config
}

func NewMailer(log *slog.Logger, cfg Config) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{log: log, cfg: cfg}
}

func (m *Mailer) SendLicenseEmail(ctx context.Context, to, license, plan, orderID string) error {
	body := fmt.Sprintf(`<h2>Payment Successful</h2>
<p>Thank you for your purchase.</p>
<p><strong>License Key:</strong> <code>%s</code></p>
<ul>
  <li>Plan: %s</li>
  <li>Order ID: %s</li>
  <li>Date: %s</li>
</ul>
<p>Keep your license key safe. You'll need it for activation.</p>`,
		license, plan, orderID, time.Now().UTC().Format(time.RFC3339))

	return m.send(ctx, to, fmt.Sprintf("Your License Key - %s Plan", plan), body)
}

func (m *Mailer) SendAdminNotification(ctx context.Context, plan, amount, email, orderID string) error {
	if m.cfg.AdminEmail == "" {
		return fmt.Errorf("admin email not configured")
	}
	body := fmt.Sprintf(`<h2>New Payment Received</h2>
<p><strong>Customer Email:</strong> %s</p>
<p><strong>Plan:</strong> %s</p>
<p><strong>Amount:</strong> $%s AUD</p>
<p><strong>Order ID:</strong> %s</p>`,
		email, plan, amount, orderID)

	return m.send(ctx, m.cfg.AdminEmail, fmt.Sprintf("New Payment - %s Plan", plan), body)
}

func (m *Mailer) send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return err
	}
	m.log.Info("email sent", "to", to, "subject", subject)
	return nil
}
