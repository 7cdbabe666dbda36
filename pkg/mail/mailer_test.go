package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSMTPClient struct {
	from    string
	rcpts   []string
	data    bytes.Buffer
	quit    bool
	authErr error
}

func (f *fakeSMTPClient) Mail(from string) error { f.from = from; return nil }
func (f *fakeSMTPClient) Rcpt(rcpt string) error { f.rcpts = append(f.rcpts, rcpt); return nil }
func (f *fakeSMTPClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&f.data}, nil
}
func (f *fakeSMTPClient) Quit() error                         { f.quit = true; return nil }
func (f *fakeSMTPClient) Close() error                        { return nil }
func (f *fakeSMTPClient) StartTLS(*tls.Config) error          { return nil }
func (f *fakeSMTPClient) Auth(smtp.Auth) error                { return f.authErr }
func (f *fakeSMTPClient) Extension(string) (bool, string)     { return false, "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newTestMailer(client *fakeSMTPClient) *smtpMailer {
	return &smtpMailer{
		cfg: SMTPSettings{
			Enabled: true,
			Host:    "mail.example.com",
			Port:    587,
			From:    "no-reply@casavia.example",
			Timeout: time.Second,
		},
		dialFn: func(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error) {
			server, conn := net.Pipe()
			_ = server.Close()
			return conn, client, nil
		},
		authFn: func(c smtpClient, cfg SMTPSettings) error { return nil },
	}
}

func TestSendWritesMultipartAlternative(t *testing.T) {
	client := &fakeSMTPClient{}
	mailer := newTestMailer(client)

	err := mailer.Send(context.Background(), Message{
		To:      []string{"agent@example.com"},
		Subject: "You are invited",
		HTML:    "<p>Hello <strong>there</strong></p>",
	})
	require.NoError(t, err)
	require.True(t, client.quit)
	require.Equal(t, "no-reply@casavia.example", client.from)
	require.Equal(t, []string{"agent@example.com"}, client.rcpts)

	body := client.data.String()
	require.Contains(t, body, "multipart/alternative")
	require.Contains(t, body, "<p>Hello <strong>there</strong></p>")
	require.Contains(t, body, "Hello there")
}

func TestSendDisabled(t *testing.T) {
	mailer := &smtpMailer{cfg: SMTPSettings{Enabled: false}}
	err := mailer.Send(context.Background(), Message{To: []string{"a@b.c"}, HTML: "x"})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	client := &fakeSMTPClient{}
	mailer := newTestMailer(client)

	err := mailer.Send(context.Background(), Message{To: []string{"not-an-address"}, HTML: "x"})
	require.Error(t, err)
	require.Empty(t, client.rcpts)
}

func TestSendDeduplicatesRecipients(t *testing.T) {
	client := &fakeSMTPClient{}
	mailer := newTestMailer(client)

	err := mailer.Send(context.Background(), Message{
		To:   []string{"agent@example.com", " agent@example.com", ""},
		HTML: "x",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"agent@example.com"}, client.rcpts)
}

func TestStripTags(t *testing.T) {
	require.Equal(t, "Accept your invitation", StripTags("<a href=\"https://x\">Accept your invitation</a>"))
	require.Equal(t, "plain", StripTags("plain"))
	require.Equal(t, "", StripTags("<br/>"))
}

func TestValidateSMTPConfig(t *testing.T) {
	require.NoError(t, validateSMTPConfig(SMTPSettings{Enabled: false}))
	require.Error(t, validateSMTPConfig(SMTPSettings{Enabled: true, Port: 25}))
	require.Error(t, validateSMTPConfig(SMTPSettings{Enabled: true, Host: "mail"}))
	require.NoError(t, validateSMTPConfig(SMTPSettings{Enabled: true, Host: "mail", Port: 25}))
}
