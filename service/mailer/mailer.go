package mailer

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/Sachin80-coder/fixfinder-server/cmd/models"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// Sender delivers a single email. The production implementation speaks
// SMTP; tests substitute a stub.
type Sender interface {
	Send(to, subject, body string) error
}

type SMTPSender struct {
	host string
	port int
	user string
	pass string
}

// NewSMTPSenderFromEnv reads SMTP_HOST, SMTP_PORT, SMTP_USER and SMTP_PASS.
func NewSMTPSenderFromEnv() (*SMTPSender, error) {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port: %v", err)
	}
	return &SMTPSender{
		host: os.Getenv("SMTP_HOST"),
		port: port,
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
	}, nil
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.user)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.host, s.port, s.user, s.pass)
	return d.DialAndSend(m)
}

// Enqueue records an outbound email in the outbox. Failures are logged and
// swallowed: email is best-effort and must never fail the operation that
// triggered it.
func Enqueue(db *gorm.DB, to, subject, body string) {
	entry := models.EmailOutbox{
		Recipient: to,
		Subject:   subject,
		Body:      body,
		Status:    models.OutboxPending,
	}
	if err := db.Create(&entry).Error; err != nil {
		log.Printf("Error enqueueing email to %s: %v", to, err)
	}
}
