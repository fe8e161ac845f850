package main

import (
	"context"
	"os"

	availabilityhandler "slotline/internal/availability/handler"
	availabilityrepo "slotline/internal/availability/repository"
	availabilityservice "slotline/internal/availability/service"
	availabilityvalidator "slotline/internal/availability/validator"

	bookinghandler "slotline/internal/bookings/handler"
	bookingrepo "slotline/internal/bookings/repository"
	bookingservice "slotline/internal/bookings/service"
	bookingvalidator "slotline/internal/bookings/validator"

	conflictrepo "slotline/internal/conflict/repository"
	conflictservice "slotline/internal/conflict/service"

	holdhandler "slotline/internal/holds/handler"
	holdrepo "slotline/internal/holds/repository"
	holdservice "slotline/internal/holds/service"

	waitlisthandler "slotline/internal/waitlist/handler"
	waitlistrepo "slotline/internal/waitlist/repository"
	waitlistservice "slotline/internal/waitlist/service"

	"slotline/internal/audit"
	"slotline/internal/directory"
	"slotline/internal/events"
	"slotline/internal/idempotency"
	"slotline/internal/payments"

	"slotline/pkg/app"
	"slotline/pkg/config"
	"slotline/pkg/kafka"
	kafka_config "slotline/pkg/kafka/config"
)

const (
	ServiceName    = "engine"
	EventsTopic    = "booking-events"
	EventsDLQTopic = "booking-events-dlq"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting booking engine")

	serverApp := app.NewApplication()

	publisher := initPublisher(cfg, serverApp)
	engine := initEngine(cfg, publisher, serverApp)

	startPaymentConsumer(cfg, engine.bookings, serverApp)

	sweeper := holdservice.NewSweeper(engine.holds, cfg)
	sweeper.Start()
	serverApp.AddShutdownHook("hold sweeper", sweeper.Stop)

	serverApp.SetApp(cfg,
		availabilityhandler.NewAvailabilityHandler(engine.availability, cfg.Log),
		holdhandler.NewHoldHandler(engine.holds, engine.bookings, cfg.Log),
		waitlisthandler.NewWaitlistHandler(engine.waitlist, cfg.Log),
		bookinghandler.NewBookingHandler(engine.bookings, cfg.Log),
	)
	serverApp.Run()
}

type engineServices struct {
	availability availabilityservice.AvailabilityService
	holds        holdservice.HoldService
	waitlist     waitlistservice.WaitlistService
	bookings     bookingservice.BookingService
}

func initEngine(cfg *config.Config, publisher events.Publisher, serverApp *app.Application) *engineServices {
	dir := directory.NewMongoDirectory(cfg)
	guard := conflictservice.NewGuard(conflictrepo.NewMongoReservationStore(cfg), cfg)

	availability := availabilityservice.NewAvailabilityService(
		availabilityrepo.NewMongoRuleRepository(cfg),
		dir,
		guard,
		availabilityvalidator.NewRuleValidator(cfg.Log),
		cfg,
	)

	waitlist := waitlistservice.NewWaitlistService(
		waitlistrepo.NewMongoWaitlistRepository(cfg), publisher, cfg)

	holds := holdservice.NewHoldService(
		holdrepo.NewMongoHoldRepository(cfg), guard, waitlist, publisher, cfg)

	idemStore := initIdempotencyStore(cfg)
	serverApp.AddShutdownHook("idempotency store", idemStore.Stop)

	bookings := bookingservice.NewBookingService(
		bookingrepo.NewMongoBookingRepository(cfg),
		dir,
		availability,
		guard,
		idemStore,
		waitlist,
		publisher,
		audit.NewMongoSink(cfg),
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Engine services initialized", "database", cfg.MongoDatabaseName)
	return &engineServices{
		availability: availability,
		holds:        holds,
		waitlist:     waitlist,
		bookings:     bookings,
	}
}

// initIdempotencyStore prefers redis so replays survive restarts and
// are shared across replicas. Mongo is the fallback when redis is not
// configured.
func initIdempotencyStore(cfg *config.Config) idempotency.Store {
	if cfg.Client.Redis != nil {
		cfg.Log.Info("Using redis idempotency store")
		return idempotency.NewRedisStore(cfg)
	}
	cfg.Log.Info("Using mongo idempotency store")
	return idempotency.NewMongoStore(cfg)
}

func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	if os.Getenv("KAFKA_DISABLED") == "true" {
		cfg.Log.Warn("Kafka disabled, events will be dropped")
		return events.NopPublisher{}
	}

	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, EventsTopic, EventsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create event producer", "error", err)
	}

	publisher := events.NewKafkaPublisher(producer, cfg.Log)
	serverApp.AddShutdownHook("event publisher", func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})

	cfg.Log.Info("Event publisher initialized", "topic", EventsTopic, "brokers", kafkaCfg.Brokers)
	return publisher
}

func startPaymentConsumer(cfg *config.Config, bookings bookingservice.BookingService, serverApp *app.Application) {
	if os.Getenv("KAFKA_DISABLED") == "true" {
		cfg.Log.Warn("Kafka disabled, payment results will not be consumed")
		return
	}

	consumer, err := payments.NewConsumer(kafka_config.Load(), bookings, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create payment consumer", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			cfg.Log.Error("Payment consumer stopped", "error", err)
		}
	}()

	serverApp.AddShutdownHook("payment consumer", func() {
		cancel()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close payment consumer", "error", err)
		}
	})
}
