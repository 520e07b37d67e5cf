package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func SendText(cfg SMTPConfig, to, subject, body string) error {
	if cfg.Host == "" {
		return fmt.Errorf("email: smtp host not configured")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var b strings.Builder
	b.WriteString("From: " + cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	return smtp.SendMail(addr, auth, cfg.From, []string{to}, []byte(b.String()))
}

// SendPasswordReset mails the recovery token issued by the forgot
// password flow.
func SendPasswordReset(cfg SMTPConfig, to, token string) error {
	subject := "Password recovery"
	body := "Hello,\n\n" +
		"A password reset was requested for your account.\n\n" +
		"Recovery code: " + token + "\n\n" +
		"The code expires in one hour. If you did not request this, ignore this message.\n\n" +
		"Support Platform\n"
	return SendText(cfg, to, subject, body)
}
