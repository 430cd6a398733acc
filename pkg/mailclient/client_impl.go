package mailclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"go.uber.org/multierr"
)

type SmtpMailerConfig struct {
	EmailCredential *EmailCredential `validate:"required"`
}

// SmtpMailer keeps one SMTP session open and reuses it for every mail.
type SmtpMailer struct {
	Config *SmtpMailerConfig
	smtp   *smtp.Client
	lock   sync.Mutex
	now    func() time.Time
}

var _ Client = (*SmtpMailer)(nil)

// NewSmtp will return new smtp client without any real connection is made.
// It will connect on the first SendEmails.
func NewSmtp(cfg *SmtpMailerConfig) (*SmtpMailer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("validation error: nil smtp config")
	}

	err := validator.Validate(cfg)
	if err != nil {
		err = fmt.Errorf("validation error: %w", err)
		return nil, err
	}

	client := &SmtpMailer{
		Config: cfg,
		now:    time.Now,
	}

	return client, nil
}

func (m *SmtpMailer) SendEmails(ctx context.Context, parsedEmails []EmailSingle) (report Report) {
	recvReports := make([]RecvReport, 0)
	for _, emailData := range parsedEmails {
		if err := validator.Validate(emailData); err != nil {
			report.ClientError = multierr.Append(report.ClientError, fmt.Errorf("invalid email %s: %w", emailData.TrackingID, err))
			continue
		}

		// one transaction per recipient, so each address gets its own report
		for _, to := range emailData.Recipients {
			recvReports = append(recvReports, m.sendEmail(ctx, to, emailData))
		}
	}

	report.RecvReports = recvReports
	return
}

func (m *SmtpMailer) sendEmail(ctx context.Context, recvAddr string, data EmailSingle) (recvReport RecvReport) {
	m.lock.Lock()
	defer m.lock.Unlock()

	recvReport = RecvReport{
		To:        recvAddr,
		EmailData: data,
	}

	var err error
	defer func() {
		recvReport.Error = err

		// a broken session is dropped, the next mail dials again
		if err != nil && m.smtp != nil {
			_ = m.smtp.Close()
			m.smtp = nil
		}
	}()

	if m.smtp == nil {
		m.smtp, err = initClient(ctx, m.Config.EmailCredential)
	}

	if err != nil {
		err = fmt.Errorf("failed to init smtp client: %w", err)
		return
	}

	// RSET command is for aborting already started mail transaction (tools.ietf.org/html/rfc5321#section-4.1.1.5).
	err = m.smtp.Reset()
	if err != nil {
		err = fmt.Errorf("RSET cmd failed: %w", err)
		return
	}

	// New transaction is initiated using the MAIL command (tools.ietf.org/html/rfc5321#section-4.1.1.2).
	err = m.smtp.Mail(data.SenderAddr, nil)
	if err != nil {
		err = fmt.Errorf("MAIL cmd failed: %w", err)
		return
	}

	err = m.smtp.Rcpt(recvAddr)
	if err != nil {
		err = fmt.Errorf("error recipient %s: %w", recvAddr, err)
		return
	}

	var wc io.WriteCloser
	wc, err = m.smtp.Data()
	if err != nil {
		err = fmt.Errorf("error data writer: %w", err)
		return
	}

	_, err = io.Copy(wc, bytes.NewReader(buildMessage(data, recvAddr, m.now())))
	if err != nil {
		err = fmt.Errorf("error data copy: %w", err)
		return
	}

	err = wc.Close()
	if err != nil {
		err = fmt.Errorf("error data close: %w", err)
		return
	}

	return
}

// Close .
// https://stackoverflow.com/questions/2468851/when-should-i-send-quit-to-smtp-server-and-how-long-should-i-keep-a-session
func (m *SmtpMailer) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.smtp == nil {
		return nil
	}

	c := m.smtp
	m.smtp = nil

	_err := c.Quit()
	if _err == nil {
		return nil
	}

	err := fmt.Errorf("quit command error: %w", _err)
	_err = c.Close()
	if _err != nil {
		err = multierr.Append(err, fmt.Errorf("close command error: %w", _err))
	}

	return err
}

// buildMessage renders a plain text RFC 5322 message.
func buildMessage(data EmailSingle, to string, now time.Time) []byte {
	subject := strings.NewReplacer("\r", " ", "\n", " ").Replace(data.Subject)
	body := strings.ReplaceAll(strings.ReplaceAll(data.Body, "\r\n", "\n"), "\n", "\r\n")

	buf := bytes.NewBuffer(nil)
	buf.WriteString(fmt.Sprintf("From: %s\r\n", data.SenderAddr))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", now.UTC().Format(time.RFC1123Z)))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s@katalog>\r\n", data.TrackingID))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func initClient(ctx context.Context, cred *EmailCredential) (*smtp.Client, error) {
	err := validator.Validate(cred)
	if err != nil {
		err = fmt.Errorf("validation on email credential error: %w", err)
		return nil, err
	}

	smtpAddr := net.JoinHostPort(cred.ServerHost, fmt.Sprint(cred.ServerPort))

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", smtpAddr)
	if err != nil {
		err = fmt.Errorf("tcp dial error: %w", err)
		return nil, err
	}

	c, err := smtp.NewClient(conn, cred.ServerHost)
	if err != nil {
		_ = conn.Close()
		err = fmt.Errorf("error new smtp client: %w", err)
		return nil, err
	}

	if !cred.Insecure {
		err = c.StartTLS(&tls.Config{ServerName: cred.ServerHost})
		if err != nil {
			_ = c.Close()
			err = fmt.Errorf("error start tls: %w", err)
			return nil, err
		}
	}

	err = c.Auth(sasl.NewPlainClient(cred.AuthIdentity, cred.Username, cred.Password))
	if err != nil {
		_ = c.Close()
		err = fmt.Errorf("error auth: %w", err)
		return nil, err
	}

	return c, nil
}
