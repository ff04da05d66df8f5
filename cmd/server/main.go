package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealersync/internal/auth"
	"dealersync/internal/config"
	"dealersync/internal/db"
	"dealersync/internal/httpapi"
	"dealersync/internal/media"
	"dealersync/internal/remote"
	"dealersync/internal/report"
	"dealersync/internal/state"
	"dealersync/internal/storage"
	"dealersync/internal/store"
	"dealersync/internal/syncer"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	st := store.New(pool)

	blobs, err := newMediaStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("init media storage")
	}

	checkpoints, err := newCheckpointStore(cfg, st)
	if err != nil {
		logger.Fatal().Err(err).Msg("init checkpoint store")
	}

	client := remote.NewClient(
		cfg.RemoteBaseURL,
		cfg.RemoteClientID,
		cfg.RemoteClientSecret,
		&http.Client{Timeout: cfg.RemoteTimeout},
	)
	fetcher := remote.NewFetcher(client, cfg.RemotePageDelay, logger)

	ingester := media.NewIngester(st, blobs, &http.Client{Timeout: cfg.MediaTimeout}, logger)

	reporter, err := newReporter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init reporter")
	}

	engine := syncer.NewEngine(
		st,
		checkpoints,
		fetcher,
		ingester,
		syncer.NewRunLogger(st, logger),
		reporter,
		logger,
	)

	// Worker and HTTP trigger share the same runner, so a scheduled run
	// and a manual one for the same target coalesce instead of racing.
	runner := syncer.NewSerialRunner(engine)

	fallback := syncer.Settings{
		Enabled:         cfg.SyncEnabled,
		IntervalSeconds: int(cfg.SyncInterval.Seconds()),
		PageSize:        cfg.SyncPageSize,
		BatchSize:       cfg.SyncBatchSize,
		MaxPages:        cfg.SyncMaxPages,
		TargetID:        cfg.SyncTargetID,
		ReportEnabled:   cfg.SyncReportEnabled,
	}
	settings := syncer.NewSettingsService(st, fallback)
	if err := settings.Seed(ctx); err != nil {
		logger.Warn().Err(err).Msg("seed sync settings")
	}

	worker := syncer.NewWorker(runner, fallback, settings, cfg.SyncStartupDelay, logger)
	go worker.Run(ctx)

	authn := auth.NewAuthenticator(st, cfg.AdminToken)
	trigger := httpapi.NewSyncTrigger(runner, settings, logger)

	api := httpapi.New(cfg, st, authn, trigger, settings, logger)
	echoServer := api.NewEcho()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      echoServer,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func newMediaStorage(ctx context.Context, cfg config.Config) (storage.MediaStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			}
			o.UsePathStyle = cfg.S3ForcePathStyle
		})
		return storage.NewS3MediaStore(storage.S3Options{
			Client: client,
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
		}), nil
	default:
		return storage.NewLocalMediaStore(cfg.StorageRoot)
	}
}

func newCheckpointStore(cfg config.Config, st *store.Store) (syncer.CheckpointStore, error) {
	if cfg.CheckpointBackend == config.CheckpointBackendRedis {
		return state.NewRedisCheckpointStore(state.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return syncer.NewPostgresCheckpointStore(st), nil
}

func newReporter(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*report.Reporter, error) {
	var sink report.NotificationSink
	switch cfg.ReportBackend {
	case config.ReportBackendSES:
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sink = report.NewSESSink(sesv2.NewFromConfig(awsCfg), cfg.ReportFrom)
	default:
		sink = report.NewSMTPSink(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.ReportFrom)
	}
	return report.NewReporter(sink, cfg.ReportRecipient, logger), nil
}

func loadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
