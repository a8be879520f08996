package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"

	"github.com/openletter/newsletter-backend/internal/channel"
	"github.com/openletter/newsletter-backend/internal/config"
	"github.com/openletter/newsletter-backend/internal/db"
	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/logger"
	"github.com/openletter/newsletter-backend/internal/model"
	"github.com/openletter/newsletter-backend/internal/queue"
	"github.com/openletter/newsletter-backend/internal/repository"
	"github.com/openletter/newsletter-backend/internal/service"
)

const maxRequeues = 3

// nextRetryCount reads the requeue counter stamped on republished jobs.
func nextRetryCount(headers amqp.Table) int {
	switch n := headers["x-retry-count"].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// isPermanent reports whether a retry error can never succeed on
// redelivery, so the job should be dropped instead of requeued.
func isPermanent(err error) bool {
	var deliveryNotFound *appErrors.ErrDeliveryNotFound
	var newsletterNotFound *appErrors.ErrNewsletterNotFound
	var subscriberNotFound *appErrors.ErrSubscriberNotFound
	return errors.As(err, &deliveryNotFound) ||
		errors.As(err, &newsletterNotFound) ||
		errors.As(err, &subscriberNotFound)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	zlog, err := logger.New()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	conn, err := db.Open(cfg)
	if err != nil {
		zlog.Fatalw("database connection failed", "error", err)
	}
	defer conn.Close()

	subscriberRepo := &repository.SubscriberRepository{DB: conn}
	categoryRepo := &repository.CategoryRepository{DB: conn}
	newsletterRepo := &repository.NewsletterRepository{DB: conn}
	deliveryRepo := &repository.DeliveryRepository{DB: conn}

	adapters := map[string]channel.Adapter{}
	emailAdapter := channel.NewEmailAdapter(cfg.ResendAPIKey, cfg.EmailFrom, cfg.BaseURL, cfg.ProviderRateLimit, zlog)
	smsAdapter := channel.NewSMSAdapter(cfg.SMSAPIURL, cfg.SMSAPIKey, cfg.SMSFrom, cfg.ProviderRateLimit, zlog)
	adapters[emailAdapter.Method()] = emailAdapter
	adapters[smsAdapter.Method()] = smsAdapter

	fanout := &service.Fanout{
		SubscriberRepo: subscriberRepo,
		CategoryRepo:   categoryRepo,
		DeliveryRepo:   deliveryRepo,
		Adapters:       adapters,
		Concurrency:    cfg.SendConcurrency,
		SendTimeout:    cfg.SendTimeout,
		Log:            zlog,
	}
	deliveryService := &service.DeliveryService{
		DeliveryRepo:   deliveryRepo,
		NewsletterRepo: newsletterRepo,
		SubscriberRepo: subscriberRepo,
		CategoryRepo:   categoryRepo,
		Fanout:         fanout,
		Log:            zlog,
	}

	// Connect to RabbitMQ
	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		zlog.Fatalw("failed to connect to RabbitMQ", "error", err)
	}
	defer amqpConn.Close()

	ch, err := amqpConn.Channel()
	if err != nil {
		zlog.Fatalw("failed to open a channel", "error", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		queue.RetryQueueName, // name
		true,                 // durable
		false,                // delete when unused
		false,                // exclusive
		false,                // no-wait
		nil,                  // arguments
	)
	if err != nil {
		zlog.Fatalw("failed to declare queue", "error", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		zlog.Fatalw("failed to register consumer", "error", err)
	}

	forever := make(chan bool)

	go func() {
		for d := range msgs {
			var job queue.RetryJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				zlog.Warnw("invalid retry job", "error", err)
				d.Ack(false)
				continue
			}

			delivery, err := deliveryService.Retry(context.Background(), job.DeliveryID)
			if err != nil {
				if isPermanent(err) {
					zlog.Warnw("dropping unrecoverable retry job", "delivery_id", job.DeliveryID, "error", err)
					d.Ack(false)
					continue
				}

				count := nextRetryCount(d.Headers)
				if count >= maxRequeues {
					zlog.Errorw("giving up on retry job", "delivery_id", job.DeliveryID, "attempts", count, "error", err)
					d.Ack(false)
					continue
				}

				// Nack redelivers the original headers unchanged, so the
				// counter is carried by republishing.
				pub := amqp.Publishing{
					ContentType: "application/json",
					Body:        d.Body,
					Headers:     amqp.Table{"x-retry-count": int32(count + 1)},
				}
				if pubErr := ch.Publish("", q.Name, false, false, pub); pubErr != nil {
					zlog.Errorw("failed to requeue retry job", "delivery_id", job.DeliveryID, "error", pubErr)
					d.Nack(false, true)
					continue
				}
				zlog.Warnw("retry attempt errored, requeued", "delivery_id", job.DeliveryID, "attempt", count+1, "error", err)
				d.Ack(false)
				continue
			}

			if delivery.Status != model.DeliverySent {
				zlog.Infow("retry did not deliver",
					"delivery_id", delivery.ID,
					"status", delivery.Status,
					"reason", delivery.StatusReason,
				)
			}

			d.Ack(false)
		}
	}()

	zlog.Infow("worker running, waiting for retry jobs")
	<-forever
}
