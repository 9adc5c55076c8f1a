package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig describe el relay SMTP y el dominio del gateway email-a-SMS.
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	FromName      string
	GatewayDomain string
	UseTLS        bool
}

// SMTPSender entrega códigos como SMS a través de un gateway email-a-SMS:
// el destinatario es <dígitos del teléfono>@<GatewayDomain>.
type SMTPSender struct {
	host          string
	port          int
	username      string
	password      string
	from          string
	fromName      string
	gatewayDomain string
	useTLS        bool
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	domain := strings.TrimPrefix(strings.TrimSpace(cfg.GatewayDomain), "@")
	if domain == "" {
		return nil, fmt.Errorf("sms gateway domain is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:          cfg.Host,
		port:          port,
		username:      cfg.Username,
		password:      cfg.Password,
		from:          cfg.From,
		fromName:      cfg.FromName,
		gatewayDomain: domain,
		useTLS:        cfg.UseTLS,
	}, nil
}

func (s *SMTPSender) SendCode(_ context.Context, phoneNumber string, code string, expiresAt time.Time) error {
	to, err := gatewayRecipient(phoneNumber, s.gatewayDomain)
	if err != nil {
		return err
	}

	subject := "Verification code"
	body := codeBody(code, expiresAt)
	msg := buildMessage(s.from, s.fromName, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.useTLS {
		conn, err := tls.Dial("tcp", addr, &tls.Config{
			ServerName: s.host,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.host)
		if err != nil {
			return err
		}
		defer client.Quit()

		if auth != nil {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
		if err := client.Mail(s.from); err != nil {
			return err
		}
		if err := client.Rcpt(to); err != nil {
			return err
		}
		writer, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := writer.Write([]byte(msg)); err != nil {
			_ = writer.Close()
			return err
		}
		return writer.Close()
	}

	return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg))
}

func buildMessage(from, fromName, to, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}

func gatewayRecipient(phoneNumber, domain string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phoneNumber)
	if digits == "" {
		return "", fmt.Errorf("phone number is required")
	}
	return digits + "@" + domain, nil
}

// codeBody se mantiene corto para que entre en un solo SMS.
func codeBody(code string, expiresAt time.Time) string {
	return fmt.Sprintf("Your verification code is %s. It expires at %s UTC.", code, expiresAt.UTC().Format("15:04"))
}
