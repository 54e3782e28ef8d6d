// Package sender отправляет письма-напоминания о предстоящих
// списаниях: читает сообщения из очереди и пересылает их по SMTP.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/remindmybill/remindmybill/internal/lib/currency"
	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/lib/smtp"
	"github.com/remindmybill/remindmybill/internal/models"
)

// SenderService превращает сообщения очереди в письма.
type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.TransportInterface, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendRenewalReminder разбирает сообщение очереди и отправляет письмо
// о завтрашнем списании. Ошибка возвращается вызывающему, чтобы
// сообщение вернулось в очередь.
func (s *SenderService) SendRenewalReminder(body []byte) error {
	const op = "sender.SendRenewalReminder"

	var info models.ReminderInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	subject := fmt.Sprintf("%s renews tomorrow", info.ServiceName)
	text := fmt.Sprintf(
		"Hi %s,\r\n\r\n"+
			"Your %s subscription renews on %s for %s.\r\n"+
			"If you no longer need it, cancel before the renewal date.\r\n\r\n"+
			"— RemindMyBill",
		info.Username,
		info.ServiceName,
		info.RenewalDate.Format("02.01.2006"),
		currency.Format(info.Cost, info.Currency),
	)

	if err := s.sendMail(info.Email, subject, text); err != nil {
		s.log.Error("failed to send reminder email",
			slog.String("email", info.Email), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("reminder email sent",
		slog.String("email", info.Email),
		slog.String("service", info.ServiceName))
	return nil
}

func (s *SenderService) sendMail(to, subject, text string) error {
	client, err := s.transport.Connect()
	if err != nil {
		return err
	}
	defer func() {
		if quitErr := client.Quit(); quitErr != nil {
			s.log.Warn("failed to quit smtp session", sl.Err(quitErr))
		}
	}()

	from := s.transport.GetSMTPUser()
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(text)

	if _, err := w.Write([]byte(msg.String())); err != nil {
		return err
	}
	return w.Close()
}
