package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
)

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host     string
	Port     int // 465 uses implicit TLS, anything else STARTTLS when offered
	Username string
	Password string
	From     string
	FromName string
	To       []string // used when Send is called without recipients
}

// deliverFunc hands one composed message to the mail transport
type deliverFunc func(ctx context.Context, from string, to []string, msg []byte) error

// EmailNotifier sends multipart/alternative reports over SMTP
type EmailNotifier struct {
	config  EmailConfig
	logger  zerolog.Logger
	now     func() time.Time
	deliver deliverFunc
}

// NewEmailNotifier creates a new SMTP notifier
func NewEmailNotifier(cfg EmailConfig, logger zerolog.Logger) *EmailNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	n := &EmailNotifier{
		config: cfg,
		logger: logger.With().Str("notifier", "email").Logger(),
		now:    time.Now,
	}
	n.deliver = n.smtpDeliver
	return n
}

func (n *EmailNotifier) Name() string { return "email" }

// Send delivers one message per recipient so addresses are not disclosed
// to each other. Every recipient is attempted.
func (n *EmailNotifier) Send(ctx context.Context, msg Message, recipients []string) error {
	if n.config.Host == "" || n.config.From == "" {
		return &NotifyError{Channel: n.Name(), Err: ErrNotConfigured}
	}
	if len(recipients) == 0 {
		recipients = n.config.To
	}
	if len(recipients) == 0 {
		return &NotifyError{Channel: n.Name(), Err: errors.New("no recipients")}
	}

	from, err := mail.ParseAddress(n.config.From)
	if err != nil {
		return &NotifyError{Channel: n.Name(), Err: fmt.Errorf("invalid from address: %w", err)}
	}
	if n.config.FromName != "" {
		from.Name = n.config.FromName
	}

	var errs []error
	sent := 0
	for _, rcpt := range recipients {
		to, err := mail.ParseAddress(rcpt)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid recipient %q: %w", rcpt, err))
			continue
		}

		body, err := n.compose(msg, from, to)
		if err != nil {
			errs = append(errs, fmt.Errorf("composing message for %s: %w", to.Address, err))
			continue
		}

		if err := n.deliver(ctx, from.Address, []string{to.Address}, body); err != nil {
			n.logger.Warn().Err(err).Str("to", to.Address).Msg("email delivery failed")
			errs = append(errs, fmt.Errorf("sending to %s: %w", to.Address, err))
			continue
		}
		sent++
	}

	n.logger.Info().Int("sent", sent).Int("failed", len(errs)).Msg("email delivery finished")
	if len(errs) > 0 {
		return &NotifyError{Channel: n.Name(), Err: errors.Join(errs...)}
	}
	return nil
}

func (n *EmailNotifier) compose(msg Message, from, to *mail.Address) ([]byte, error) {
	var h mail.Header
	h.SetDate(n.now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	if err := writePart(w, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if msg.HTML != "" {
		if err := writePart(w, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(w *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

func (n *EmailNotifier) smtpDeliver(ctx context.Context, from string, to []string, msg []byte) error {
	host := n.config.Host
	addr := net.JoinHostPort(host, strconv.Itoa(n.config.Port))
	tlsConfig := &tls.Config{ServerName: host}
	implicitTLS := n.config.Port == 465

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if implicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if !implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if n.config.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", n.config.Username, n.config.Password, host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
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
