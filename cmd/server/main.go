package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/openletter/newsletter-backend/internal/channel"
	"github.com/openletter/newsletter-backend/internal/config"
	"github.com/openletter/newsletter-backend/internal/controller"
	"github.com/openletter/newsletter-backend/internal/db"
	"github.com/openletter/newsletter-backend/internal/logger"
	"github.com/openletter/newsletter-backend/internal/queue"
	"github.com/openletter/newsletter-backend/internal/repository"
	"github.com/openletter/newsletter-backend/internal/service"
)

func main() {
	// Load .env
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

	retryQueue, err := queue.Dial(cfg.AMQPURL)
	if err != nil {
		zlog.Fatalw("queue connection failed", "error", err)
	}
	defer retryQueue.Close()

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

	newsletterService := &service.NewsletterService{
		NewsletterRepo: newsletterRepo,
		DeliveryRepo:   deliveryRepo,
		Fanout:         fanout,
		Log:            zlog,
	}
	subscriberService := &service.SubscriberService{
		SubscriberRepo: subscriberRepo,
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

	validate := validator.New()

	newsletterController := &controller.NewsletterController{
		NewsletterService: newsletterService,
		DeliveryService:   deliveryService,
		Validate:          validate,
	}
	subscriberController := &controller.SubscriberController{
		SubscriberService: subscriberService,
		CategoryRepo:      categoryRepo,
		Validate:          validate,
	}
	deliveryController := &controller.DeliveryController{
		DeliveryService: deliveryService,
		Queue:           retryQueue,
	}

	r := chi.NewRouter()

	// Newsletter routes
	r.Post("/newsletters", newsletterController.CreateNewsletter)
	r.Get("/newsletters", newsletterController.ListNewsletters)
	r.Get("/newsletters/{id}", newsletterController.GetNewsletter)
	r.Put("/newsletters/{id}", newsletterController.UpdateNewsletter)
	r.Post("/newsletters/{id}/send", newsletterController.SendNewsletter)
	r.Post("/newsletters/{id}/resend", newsletterController.ResendNewsletter)
	r.Get("/newsletters/{id}/deliveries", newsletterController.ListDeliveries)

	// Delivery routes
	r.Post("/deliveries/{id}/retry", deliveryController.RetryDelivery)
	r.Get("/track/open/{id}", deliveryController.TrackOpen)

	// Public subscription routes
	r.Get("/categories", subscriberController.ListCategories)
	r.Post("/subscribe", subscriberController.Subscribe)
	r.Post("/preferences/{token}", subscriberController.UpdatePreferences)
	r.Post("/unsubscribe/{token}", subscriberController.Unsubscribe)

	// Admin subscriber routes
	r.Get("/subscribers", subscriberController.ListSubscribers)
	r.Delete("/subscribers/{id}", subscriberController.DeleteSubscriber)

	zlog.Infow("server running", "addr", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		zlog.Fatalw("server stopped", "error", err)
	}
}
