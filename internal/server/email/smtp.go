package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// DefaultTimeout bounds a whole SMTP exchange when the caller's context has
// no earlier deadline.
const DefaultTimeout = 10 * time.Second

var (
	activationTmpl = template.Must(template.New("activation").Parse(
		`Hello {{.Name}},

Welcome to gophauth. Confirm your email address by opening the link below:

{{.Link}}

If you did not create an account you can ignore this message.
`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`Hello,

Someone asked to reset the password of your gophauth account. Open the link
below to choose a new one:

{{.Link}}

If it was not you, ignore this message and your password stays unchanged.
`))
)

func activationLink(frontURL, token string) string {
	return strings.TrimRight(frontURL, "/") + "/activate/" + token
}

func resetLink(frontURL, token string) string {
	return strings.TrimRight(frontURL, "/") + "/password/forgot/" + token
}

// SMTPConfig describes the outbound mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FrontURL string
	Timeout  time.Duration
}

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender renders plain-text messages and relays them over SMTP.
type SMTPSender struct {
	cfg      SMTPConfig
	auth     smtp.Auth
	sendMail sendMailFunc
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var a smtp.Auth
	if cfg.User != "" {
		a = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	s := &SMTPSender{cfg: cfg, auth: a}
	s.sendMail = s.deliver
	return s
}

func (s *SMTPSender) SendActivationEmail(ctx context.Context, to, name, token string) error {
	return s.send(ctx, to, "Activate your account", activationTmpl, map[string]string{
		"Name": name,
		"Link": activationLink(s.cfg.FrontURL, token),
	})
}

func (s *SMTPSender) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	return s.send(ctx, to, "Reset your password", resetTmpl, map[string]string{
		"Link": resetLink(s.cfg.FrontURL, token),
	})
}

func (s *SMTPSender) send(ctx context.Context, to, subject string, tmpl *template.Template, data map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}

	msg := buildMessage(s.cfg.From, to, subject, body.Bytes())
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(ctx, addr, s.auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send %s email: %w", tmpl.Name(), err)
	}
	return nil
}

// deliver runs one SMTP transaction. The connection carries a deadline of
// the earlier of ctx's deadline and the configured timeout, and is closed
// as soon as ctx is cancelled.
func (s *SMTPSender) deliver(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := transact(conn, s.cfg.Host, a, from, to, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return err
	}
	return nil
}

func transact(conn net.Conn, host string, a smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fmt.Errorf("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.Write(bytes.ReplaceAll(bytes.ReplaceAll(body, []byte("\r\n"), []byte("\n")), []byte("\n"), []byte("\r\n")))
	return b.Bytes()
}
