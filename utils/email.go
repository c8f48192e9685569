package utils

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"os"
	"strings"
)

// ======================
// SMTP Configuration
// ======================
var (
	smtpHost      = os.Getenv("SMTP_HOST")
	smtpPort      = os.Getenv("SMTP_PORT")
	smtpUsername  = os.Getenv("SMTP_USERNAME")
	smtpPassword  = os.Getenv("SMTP_PASSWORD")
	smtpFromName  = os.Getenv("SMTP_FROM_NAME")
	smtpFromEmail = os.Getenv("SMTP_FROM_EMAIL")
)

// SendEmail delivers a plain-text email through the configured SMTP relay.
// When SMTP is not configured the message is logged and dropped, so local
// development does not require a mail server.
func SendEmail(to, subject, body string) error {
	return send(to, subject, buildPlainMessage(to, subject, body))
}

// SendEmailWithAttachment delivers a plain-text email carrying a single
// application/pdf attachment (used for paid-event tickets).
func SendEmailWithAttachment(to, subject, body, filename string, attachment []byte) error {
	return send(to, subject, buildMultipartMessage(to, subject, body, filename, attachment))
}

func send(to, subject string, msg []byte) error {
	if smtpHost == "" || smtpUsername == "" || smtpPassword == "" {
		fmt.Printf("SMTP not configured, dropping email to %s (%s)\n", to, subject)
		return nil
	}

	addr := fmt.Sprintf("%s:%s", smtpHost, smtpPort)

	// Dial first, then upgrade with StartTLS. Dialing TLS directly does not
	// work against relays that listen on the submission port.
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         smtpHost,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	auth := smtp.PlainAuth("", smtpUsername, smtpPassword, smtpHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := client.Mail(fromAddress()); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	if err := client.Quit(); err != nil {
		fmt.Printf("QUIT command error (non-critical): %v\n", err)
	}
	return nil
}

func fromAddress() string {
	if smtpFromEmail == "" {
		return smtpUsername
	}
	return smtpFromEmail
}

func fromHeader() string {
	if smtpFromName == "" {
		return fromAddress()
	}
	return fmt.Sprintf("%s <%s>", smtpFromName, fromAddress())
}

func buildPlainMessage(to, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n%s", fromHeader(), to, subject, body))
}

func buildMultipartMessage(to, subject, body, filename string, attachment []byte) []byte {
	const boundary = "lankaconnect-ticket-boundary"

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader()))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary))

	sb.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	sb.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	sb.WriteString("Content-Type: application/pdf\r\n")
	sb.WriteString("Content-Transfer-Encoding: base64\r\n")
	sb.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n\r\n", filename))

	encoded := base64.StdEncoding.EncodeToString(attachment)
	// RFC 2045 line-length limit
	for len(encoded) > 76 {
		sb.WriteString(encoded[:76])
		sb.WriteString("\r\n")
		encoded = encoded[76:]
	}
	sb.WriteString(encoded)
	sb.WriteString("\r\n")
	sb.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return []byte(sb.String())
}
