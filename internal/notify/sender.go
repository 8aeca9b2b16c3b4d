package notify

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"

	"studysphere/internal/config"
)

// Sender delivers notification emails
type Sender interface {
	SendLevelUp(ctx context.Context, msg LevelUp) error
}

// NewSender creates a sender based on the configured mode
func NewSender(cfg config.MailConfig, logger *slog.Logger) Sender {
	if cfg.Mode == "smtp" {
		return &smtpSender{config: cfg, send: smtp.SendMail, logger: logger}
	}
	return &logSender{logger: logger}
}

// logSender logs emails instead of sending them (development mode)
type logSender struct {
	logger *slog.Logger
}

func (s *logSender) SendLevelUp(_ context.Context, msg LevelUp) error {
	s.logger.Info("[DEV] level-up email",
		"recipient", msg.Email,
		"username", msg.Username,
		"level", msg.Level,
		"total_xp", msg.TotalXP)
	return nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// smtpSender sends emails via SMTP (production mode)
type smtpSender struct {
	config config.MailConfig
	send   sendMailFunc
	logger *slog.Logger
}

func (s *smtpSender) SendLevelUp(ctx context.Context, msg LevelUp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.Email == "" {
		return fmt.Errorf("level-up email for %s has no recipient", msg.Username)
	}

	body, err := renderLevelUp(msg)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Email)
	fmt.Fprintf(&b, "Subject: You reached level %d on StudySphere\r\n", msg.Level)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.From, []string{msg.Email}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Level-up email sent via SMTP", "recipient", msg.Email, "level", msg.Level)
	return nil
}

var levelUpTemplate = template.Must(template.New("level_up").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Level up</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
        <h1 style="color: white; margin: 0;">Level {{.Level}}</h1>
    </div>
    <div style="background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px;">
        <p style="font-size: 16px;">Nice work, {{.Username}}!</p>
        <p style="font-size: 16px;">You now have <strong>{{.TotalXP}} XP</strong> and reached level {{.Level}}.</p>
        <hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
        <p style="font-size: 12px; color: #999; text-align: center;">
            This is an automated message, please do not reply to this email.
        </p>
    </div>
</body>
</html>
`))

func renderLevelUp(msg LevelUp) (string, error) {
	var b strings.Builder
	if err := levelUpTemplate.Execute(&b, msg); err != nil {
		return "", fmt.Errorf("render level-up email: %w", err)
	}
	return b.String(), nil
}
