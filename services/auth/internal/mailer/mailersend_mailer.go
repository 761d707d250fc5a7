package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendMailer struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	Enabled bool
}

func NewMailerSendMailer(apiKey, fromName, fromEmail string) *MailerSendMailer {
	m := &MailerSendMailer{
		Enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.Enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *MailerSendMailer) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	subject := "Verify your MiyoMint account"
	text := fmt.Sprintf("Please verify your email: %s (code %s)", verifyURL, token)
	html := fmt.Sprintf(`<p>Hi %s, please verify your email: <a href="%s">%s</a></p><p>Code: <b>%s</b></p>`, toName, verifyURL, verifyURL, token)
	_, err := m.send(toEmail, toName, subject, text, html)
	return err
}

func (m *MailerSendMailer) SendPasswordResetEmail(toEmail, toName, resetURL string) error {
	subject := "Reset your MiyoMint password"
	text := fmt.Sprintf("Reset your password here: %s", resetURL)
	html := fmt.Sprintf(`<p>Hi %s, reset your password here: <a href="%s">%s</a></p>`, toName, resetURL, resetURL)
	_, err := m.send(toEmail, toName, subject, text, html)
	return err
}

func (m *MailerSendMailer) send(toEmail, toName, subject, text, html string) (string, error) {
	if !m.Enabled {
		return "", errors.New("mailer disabled (missing MAILERSEND_API_KEY or SMTP_FROM)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return res.Header.Get("X-Message-Id"), nil
}
