package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/daviddao/potluck/pkg/model"
)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether enough is set to attempt delivery.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP sends invitation emails through a mail server.
type SMTP struct {
	cfg      SMTPConfig
	branding Branding
	send     sendFunc
}

// NewSMTP returns an SMTP notifier.
func NewSMTP(cfg SMTPConfig, branding Branding) *SMTP {
	return &SMTP{cfg: cfg, branding: branding, send: smtp.SendMail}
}

// NotifyInvitation renders and sends the invitation email.
func (s *SMTP) NotifyInvitation(ctx context.Context, n model.InvitationNotice) error {
	if !s.cfg.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.branding.RenderInvitation(n)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	if err := s.send(addr, auth, s.cfg.From, []string{msg.To}, encode(s.cfg.From, msg)); err != nil {
		return fmt.Errorf("send invitation to %s: %w", msg.To, err)
	}
	return nil
}

func encode(from string, m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTML)
	return []byte(b.String())
}
