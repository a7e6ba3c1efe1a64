package main

import (
	placehandler "cuworking/internal/places/handler"
	placerepository "cuworking/internal/places/repository"
	placeservice "cuworking/internal/places/service"
	placevalidator "cuworking/internal/places/validator"
	"cuworking/internal/reservations/events"
	reservationhandler "cuworking/internal/reservations/handler"
	reservationrepository "cuworking/internal/reservations/repository"
	reservationservice "cuworking/internal/reservations/service"
	reservationvalidator "cuworking/internal/reservations/validator"
	userhandler "cuworking/internal/users/handler"
	userrepository "cuworking/internal/users/repository"
	userservice "cuworking/internal/users/service"
	uservalidator "cuworking/internal/users/validator"
	"cuworking/pkg/app"
	"cuworking/pkg/auth"
	"cuworking/pkg/config"
	"cuworking/pkg/kafka"
	kafka_config "cuworking/pkg/kafka/config"
	kafka_middleware "cuworking/pkg/kafka/middleware"
)

const ServiceName = "cuworking"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Cuworking service")
	serverApp := app.NewApplication(cfg)

	publisher := initPublisher(cfg, serverApp)
	users, places, reservations := initServices(cfg, publisher)

	guard := auth.NewGuard(users, cfg.Log)
	serverApp.SetApp(
		userhandler.NewUserHandler(users, guard, cfg.Log),
		placehandler.NewPlaceHandler(places, guard, cfg.Log),
		reservationhandler.NewReservationHandler(reservations, guard, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher reservationservice.EventPublisher) (
	userservice.UserService,
	placeservice.PlaceService,
	reservationservice.ReservationService,
) {
	reservationRepo := reservationrepository.NewMongoReservationRepository(cfg)
	guardRepo := reservationrepository.NewGuardRepository(cfg)
	placeRepo := placerepository.NewMongoPlaceRepository(cfg)
	userRepo := userrepository.NewMongoUserRepository(cfg)

	users := userservice.NewUserService(
		userRepo,
		reservationRepo,
		uservalidator.NewUserValidator(cfg.Log),
		cfg,
	)
	places := placeservice.NewPlaceService(
		placeRepo,
		guardRepo,
		reservationRepo,
		placevalidator.NewPlaceValidator(cfg.Log),
		cfg,
	)
	reservations := reservationservice.NewReservationService(
		reservationRepo,
		guardRepo,
		placeRepo,
		reservationvalidator.NewReservationValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return users, places, reservations
}

func initPublisher(cfg *config.Config, serverApp *app.Application) reservationservice.EventPublisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, reservation events are not published")
		return events.NoopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.ReservationEventsTopic, cfg.ReservationEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(metrics.ProducerMiddleware())
	}

	serverApp.OnShutdown(func() {
		metrics.Log(cfg.Log)
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Publishing reservation events", "topic", producer.Topic())
	return events.NewKafkaPublisher(producer)
}
