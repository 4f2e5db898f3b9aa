package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/arklight/photo_restoration/internal/auth"
	"github.com/arklight/photo_restoration/internal/config"
	"github.com/arklight/photo_restoration/internal/es"
	"github.com/arklight/photo_restoration/internal/handlers"
	"github.com/arklight/photo_restoration/internal/imaging"
	"github.com/arklight/photo_restoration/internal/mykafka"
	"github.com/arklight/photo_restoration/internal/revocation"
	"github.com/arklight/photo_restoration/internal/tokens"
	httpserver "github.com/arklight/photo_restoration/internal/transport/http"
	"github.com/arklight/photo_restoration/pkg/logging"
	loggingmw "github.com/arklight/photo_restoration/pkg/middleware/logging"
)

func main() {
	ctx := context.Background()

	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(ctx, configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	rdb, err := config.NewRedisClient(ctx, configuration)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}

	var producer *mykafka.Producer
	var events handlers.EventPublisher
	if configuration.KAFKA_ADDRESS != "" {
		producer, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		if err != nil {
			log.Fatalf("kafka init error: %v", err)
		}
		events = producer
	} else {
		log.Println("Notice: KAFKA_ADDRESS not set, events disabled")
	}

	imageHandler := &handlers.ImageHandler{}
	if configuration.ES_URL != "" {
		client, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		imageHandler.ES = client
		imageHandler.Index = "images"
	} else {
		log.Println("Notice: ES_URL not set, image search disabled")
	}

	processor, err := imaging.NewCommandProcessor(configuration.RESTORE_CMD)
	if err != nil {
		log.Fatalf("restore command error: %v", err)
	}

	codec := &tokens.Codec{
		Secret:     []byte(configuration.JWT_SECRET),
		AccessTTL:  configuration.ACCESS_TTL,
		RefreshTTL: configuration.REFRESH_TTL,
	}
	revoked := revocation.NewStore(rdb)
	authenticator := &auth.Authenticator{Codec: codec, Revoked: revoked, DB: db}

	imageHandler.DB = db
	imageHandler.Processor = processor
	imageHandler.StaticPath = configuration.STATIC_PATH
	imageHandler.Events = events

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowCredentials: true,
	}))
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		Auth:         authenticator,
		AuthHandler:  &handlers.AuthHandler{DB: db, Codec: codec, Revoked: revoked, Events: events},
		UserHandler:  &handlers.UserHandler{DB: db, Revoked: revoked, Events: events},
		RoleHandler:  &handlers.RoleHandler{DB: db},
		ImageHandler: imageHandler,
		StaticPath:   configuration.STATIC_PATH,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
