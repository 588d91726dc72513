package notify

import (
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/pedro-r-marques/taskflow/pkg/engine"
)

const DefaultSMTPPort = 587

type EmailConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Email sends one message per notification through an SMTP relay.
// net/smtp upgrades to STARTTLS when the server offers it.
type Email struct {
	config   EmailConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

func NewEmail(config EmailConfig) (*Email, error) {
	if config.Server == "" {
		return nil, fmt.Errorf("%w: email notifier requires a server", engine.ErrConfiguration)
	}
	if len(config.To) == 0 {
		return nil, fmt.Errorf("%w: email notifier requires at least one recipient", engine.ErrConfiguration)
	}
	if config.Port == 0 {
		config.Port = DefaultSMTPPort
	}
	if config.From == "" {
		config.From = config.Username
	}
	return &Email{config: config, sendMail: smtp.SendMail, now: time.Now}, nil
}

func (e *Email) Name() string {
	return "email"
}

func (e *Email) Notify(subject, message string) error {
	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Server)
	}
	addr := net.JoinHostPort(e.config.Server, strconv.Itoa(e.config.Port))
	msg := formatMessage(e.config.From, e.config.To, subject, message, e.now())
	if err := e.sendMail(addr, auth, e.config.From, e.config.To, msg); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

func formatMessage(from string, to []string, subject, body string, date time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&sb, "Date: %s\r\n", date.Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// headerValue replaces line breaks so a value cannot start a new header.
func headerValue(s string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(s)
}
