package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dimasraya/live-orders/internal/catalog"
	"github.com/dimasraya/live-orders/internal/config"
	"github.com/dimasraya/live-orders/internal/events"
	"github.com/dimasraya/live-orders/internal/httpx"
	kafkax "github.com/dimasraya/live-orders/internal/kafka"
	"github.com/dimasraya/live-orders/internal/ledger"
	"github.com/dimasraya/live-orders/internal/metrics"
	"github.com/dimasraya/live-orders/internal/pass"
	"github.com/dimasraya/live-orders/internal/postgres"
	"github.com/dimasraya/live-orders/internal/redisx"
	"github.com/dimasraya/live-orders/internal/source"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderPending, 1024)
	prod.Start(ctx)

	reg := metrics.NewRegistry()

	runner := &pass.Runner{
		Source:     source.NewClient(cfg.SourceBaseURL, cfg.SourceToken),
		Catalog:    &catalog.Store{DB: db},
		Ledger:     &ledger.Store{DB: db},
		Lease:      &redisx.Lease{R: rdb},
		Producer:   prod,
		Metrics:    reg,
		OperatorID: cfg.OperatorID,
		MaxPages:   cfg.MaxCommentPages,
		Service:    cfg.ServiceName,
	}

	router := httpx.NewRouter()
	h := &httpx.Handler{
		Runner:      runner,
		Ledger:      &ledger.Store{DB: db},
		Catalog:     &catalog.Store{DB: db},
		Metrics:     reg.Handler(),
		VerifyToken: cfg.WebhookVerify,
	}
	h.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
