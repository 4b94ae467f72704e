package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fathima-sithara/marketchat/internal/api"
	"github.com/fathima-sithara/marketchat/internal/auth"
	"github.com/fathima-sithara/marketchat/internal/bridge"
	"github.com/fathima-sithara/marketchat/internal/config"
	"github.com/fathima-sithara/marketchat/internal/events"
	"github.com/fathima-sithara/marketchat/internal/identity"
	"github.com/fathima-sithara/marketchat/internal/kafka"
	"github.com/fathima-sithara/marketchat/internal/listing"
	"github.com/fathima-sithara/marketchat/internal/logger"
	"github.com/fathima-sithara/marketchat/internal/presence"
	"github.com/fathima-sithara/marketchat/internal/repository"
	"github.com/fathima-sithara/marketchat/internal/service"
	"github.com/fathima-sithara/marketchat/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer lg.Sync()

	db, err := repository.Open(cfg.DB.DSN)
	if err != nil {
		lg.Fatalw("db open", "err", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	br := bridge.NewRedisBridge(rdb, cfg.PublishTimeout, lg)
	defer br.Close()

	var pub *events.Publisher
	if cfg.NATS.URL != "" {
		pub, err = events.NewPublisher(cfg.NATS.URL, lg)
		if err != nil {
			lg.Fatalw("nats connect", "err", err)
		}
		defer pub.Close()
	}

	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		defer producer.Close()
	}

	svc := service.New(service.Deps{
		Rooms:     repository.NewRoomRepository(db),
		Messages:  repository.NewMessageRepository(db),
		Summaries: repository.NewSummaryRepository(db),
		Bridge:    br,
		Listings:  listing.NewClient(cfg.Listing.BaseURL, cfg.ListingTimeout),
		Directory: identity.NewHTTPDirectory(cfg.Users.BaseURL, cfg.UsersTimeout),
		Events:    pub,
		Producer:  producer,
		Log:       lg,
	})

	validator := auth.NewValidator(cfg.JWT.Secret)
	hub := ws.NewHub(br, lg)
	wsHandler := ws.NewHandler(hub, svc, validator,
		presence.NewStore(rdb, cfg.Redis.Prefix), ws.Config{
			PingInterval:      cfg.PingInterval,
			WriteDeadline:     cfg.WriteDeadline,
			MaxMessageSize:    cfg.WS.MaxMessageSizeBytes,
			SendRatePerMinute: cfg.WS.SendRatePerMinute,
		}, lg)

	app := api.NewServer(api.NewHandlers(svc, lg), wsHandler, validator, lg)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.App.Port)
		lg.Infow("starting marketchat", "addr", addr)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		lg.Fatalw("server error", "err", e)
	case s := <-sig:
		lg.Infow("signal received", "signal", s)
	}

	if err := app.Shutdown(); err != nil {
		lg.Warnw("fiber shutdown", "err", err)
	}
	lg.Info("shutting down")
}
