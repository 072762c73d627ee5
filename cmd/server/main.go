package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tsogoo/chimege-transcribe/internal/config"
	"github.com/tsogoo/chimege-transcribe/internal/diarize"
	"github.com/tsogoo/chimege-transcribe/internal/fetch"
	"github.com/tsogoo/chimege-transcribe/internal/jobstore"
	"github.com/tsogoo/chimege-transcribe/internal/locale"
	"github.com/tsogoo/chimege-transcribe/internal/logging"
	"github.com/tsogoo/chimege-transcribe/internal/media"
	"github.com/tsogoo/chimege-transcribe/internal/metrics"
	"github.com/tsogoo/chimege-transcribe/internal/notify"
	"github.com/tsogoo/chimege-transcribe/internal/pipeline"
	"github.com/tsogoo/chimege-transcribe/internal/server"
	"github.com/tsogoo/chimege-transcribe/internal/transcribe"
	"github.com/tsogoo/chimege-transcribe/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logging.Setup(cfg.Log)

	store, err := jobstore.New(cfg.Store)
	if err != nil {
		logrus.Fatalf("failed to build job store: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	notifier := notify.NewNotifier()
	notifier.OnOutcome = func(outcome string) {
		m.Callbacks.WithLabelValues(outcome).Inc()
	}
	hub := notify.NewHub()

	minioCfg := cfg.Fetch.Minio
	minioCfg.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	minioCfg.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	var minioFetcher fetch.Fetcher
	if minioCfg.Endpoint != "" {
		mf, err := fetch.NewMinioFetcher(minioCfg)
		if err != nil {
			logrus.Fatalf("failed to build minio fetcher: %v", err)
		}
		minioFetcher = mf
	}

	runner := pipeline.New(pipeline.Deps{
		Store:        store,
		Notifier:     notifier,
		Hub:          hub,
		Fetcher:      fetch.NewHTTPFetcher(),
		MinioFetcher: minioFetcher,
		Media:        media.New(cfg.Media.FFmpegPath, cfg.Media.FFprobePath),
		Diarizer:     diarize.NewClient(cfg.Diarize.ServiceURL, os.Getenv("HF_TOKEN")),
		NewTranscriber: func() (transcribe.Transcriber, error) {
			return transcribe.New(cfg.Transcribe)
		},
		Locale:  locale.New(cfg.Locale.Language),
		Metrics: m,
	})

	pool := worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize)
	pool.Start()
	metrics.RegisterQueueDepth(prometheus.DefaultRegisterer, pool.Depth)

	srv := server.New(cfg.Server, store, pool, runner, hub)
	go func() {
		if err := srv.Start(); err != nil {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logrus.Errorf("shutdown error: %v", err)
	}
	pool.Stop()
}
