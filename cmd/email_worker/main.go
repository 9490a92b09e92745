package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/config"
	"github.com/oksasatya/campus-identity/pkg/helpers"
	"github.com/oksasatya/campus-identity/pkg/mailer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env, cfg.LogLevel)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}

	var sender mailer.Sender
	mg, err := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	switch {
	case err == nil:
		sender = mg
	case cfg.Env == "development":
		logger.WithError(err).Warn("mailgun not configured, logging emails instead")
		sender = mailer.LogSender{Logger: logger}
	default:
		logger.WithError(err).Fatal("mailgun not configured")
	}

	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue, 16)
	if err != nil {
		logger.WithError(err).Fatal("amqp connect")
	}
	defer consumer.Close()
	msgs, err := consumer.Deliveries(cfg.AppName + "-email-worker")
	if err != nil {
		logger.WithError(err).Fatal("amqp consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := &mailer.Worker{Sender: sender, Logger: logger, SendTimeout: 15 * time.Second}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			out := worker.Handle(ctx, msg.Body)
			switch out {
			case mailer.Ack:
				_ = msg.Ack(false)
			default:
				_ = msg.Nack(false, out == mailer.Requeue)
			}
			if out != mailer.Ack {
				logger.WithFields(logrus.Fields{"message_id": msg.MessageId, "outcome": out.String()}).Debug("email job not acked")
			}
		}
	}()

	logger.WithField("queue", cfg.RabbitMQEmailQueue).Info("email worker listening")
	<-ctx.Done()
	logger.Info("shutting down...")
	consumer.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
