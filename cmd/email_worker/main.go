package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/miskit/backoffice/config"
	"github.com/miskit/backoffice/pkg/helpers"
	"github.com/miskit/backoffice/pkg/mailer"
)

// Consumes account-notification jobs from RabbitMQ and delivers them via
// Mailgun. Jobs are acked only after a successful send so transient Mailgun
// failures get redelivered.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(cfg.RabbitMQEmailQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}
	if err := ch.Qos(8, 0, false); err != nil {
		log.Fatalf("failed to set qos: %v", err)
	}

	deliveries, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to start consumer: %v", err)
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("email worker consuming %q", cfg.RabbitMQEmailQueue)
	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Warn("delivery channel closed")
				return
			}
			handle(ctx, logger, mg, d)
		}
	}
}

func handle(ctx context.Context, logger *logrus.Logger, mg *mailer.Mailgun, d amqp.Delivery) {
	var job mailer.EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		logger.Errorf("malformed email job, dropping: %v", err)
		_ = d.Nack(false, false)
		return
	}
	subject, text := render(job)
	if err := mg.Send(ctx, job.To, subject, text, ""); err != nil {
		logger.Errorf("send to %s failed, requeueing: %v", job.To, err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func render(job mailer.EmailJob) (subject, text string) {
	if job.Subject != "" || job.Text != "" {
		return job.Subject, job.Text
	}
	name, _ := job.Data["name"].(string)
	username, _ := job.Data["username"].(string)
	switch job.Kind {
	case mailer.KindAccountCreated:
		return "Your back-office account is ready",
			fmt.Sprintf("Hello %s,\n\nAn account %q has been created for you. Sign in with the default password and change it right away.", name, username)
	case mailer.KindPasswordChanged:
		return "Your password was changed",
			fmt.Sprintf("Hello %s,\n\nThe password for %q was just changed. If this wasn't you, contact an administrator immediately.", name, username)
	default:
		return "Notification", "You have a new notification from the back-office."
	}
}
