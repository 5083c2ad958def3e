package auth

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
)

// Message is one outbound e-mail
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to the Mailer interface
type MailerFunc func(ctx context.Context, msg Message) error

// Send implements Mailer
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

var (
	verificationSubjectTpl = pongo2.Must(pongo2.FromString(`[{{ brand|safe }}] Registration Confirmation`))
	verificationTextTpl    = pongo2.Must(pongo2.FromString(`Please confirm your registration by clicking the following link {{ url|safe }}`))
	verificationHTMLTpl    = pongo2.Must(pongo2.FromString(`<!DOCTYPE html><html><body><h1>Confirm your email</h1><p>Please confirm your registration by clicking on the link below</p><a href="{{ url }}" target="_blank">{{ url }}</a><br/><br/>Thank you.<br/>{{ brand }}</body></html>`))

	resetSubjectTpl = pongo2.Must(pongo2.FromString(`[{{ brand|safe }}] Password Reset`))
	resetTextTpl    = pongo2.Must(pongo2.FromString(`Please click the following link to reset your password {{ url|safe }}`))
	resetHTMLTpl    = pongo2.Must(pongo2.FromString(`<!DOCTYPE html><html><body><h1>Reset Your Password</h1><p>Please click the following link to reset your password</p><a href="{{ url }}" target="_blank">{{ url }}</a><br/><br/>Thank you.<br/>{{ brand }}</body></html>`))
)

// VerificationMessage renders the registration confirmation mail
func VerificationMessage(to, url, brand string) (Message, error) {
	return renderMessage(to, pongo2.Context{"url": url, "brand": brand},
		verificationSubjectTpl, verificationTextTpl, verificationHTMLTpl)
}

// PasswordResetMessage renders the password reset mail
func PasswordResetMessage(to, url, brand string) (Message, error) {
	return renderMessage(to, pongo2.Context{"url": url, "brand": brand},
		resetSubjectTpl, resetTextTpl, resetHTMLTpl)
}

func renderMessage(to string, data pongo2.Context, subject, text, html *pongo2.Template) (Message, error) {
	msg := Message{To: to}
	var err error
	if msg.Subject, err = subject.Execute(data); err != nil {
		return msg, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail subject")
	}
	if msg.Text, err = text.Execute(data); err != nil {
		return msg, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail text")
	}
	if msg.HTML, err = html.Execute(data); err != nil {
		return msg, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail html")
	}
	return msg, nil
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a mailer for addr (host:port). Empty credentials
// skip authentication.
func NewSMTPMailer(addr, username, password, from string) (*SMTPMailer, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid SMTP address, expected host:port")
	}
	return &SMTPMailer{
		addr:     addr,
		host:     host,
		username: username,
		password: password,
		from:     from,
		send:     smtp.SendMail,
	}, nil
}

// Send implements Mailer
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctxErr(ctx, "mail delivery"); err != nil {
		return err
	}

	if msg.To == "" || strings.ContainsAny(msg.To, ",;\r\n") {
		return goerrors.New("mail needs exactly one recipient", goerrors.CategoryValidation)
	}

	body, err := buildMIME(m.from, msg)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build mail")
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := m.send(m.addr, auth, m.from, []string{msg.To}, body); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, fmt.Sprintf("failed to send email via %s", m.addr))
	}
	return nil
}

func buildMIME(from string, msg Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "To: %s\r\n", msg.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", msg.Subject)
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// LogMailer only logs messages, for development
type LogMailer struct {
	logger Logger
}

// NewLogMailer returns a mailer that writes to logger
func NewLogMailer(logger Logger) *LogMailer {
	return &LogMailer{logger: normalizeLogger(logger)}
}

// Send implements Mailer
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail", "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}
