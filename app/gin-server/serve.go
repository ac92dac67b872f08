package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/yoockh/scribe/config"
	"github.com/yoockh/scribe/internal/api/handlers"
	"github.com/yoockh/scribe/internal/api/routes"
	"github.com/yoockh/scribe/internal/cache"
	"github.com/yoockh/scribe/internal/logger"
	"github.com/yoockh/scribe/internal/metrics"
	"github.com/yoockh/scribe/internal/migrations"
	"github.com/yoockh/scribe/internal/providers/stt"
	"github.com/yoockh/scribe/internal/repositories/kv"
	mongorepo "github.com/yoockh/scribe/internal/repositories/mongo"
	dbrepo "github.com/yoockh/scribe/internal/repositories/relational"
	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.New(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

// closers run in reverse order on shutdown.
type closers []func() error

func (cs *closers) add(f func() error) { *cs = append(*cs, f) }

func (cs closers) run(log *logrus.Logger) {
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i](); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	var cleanup closers
	defer cleanup.run(log)

	if err := cfg.ApplyToolPath(); err != nil {
		return fmt.Errorf("TOOL_PATH: %w", err)
	}
	if cfg.ModelFallback {
		log.WithField("model", cfg.Model).Warn("unknown WHISPER_MODEL, using fallback")
	}
	secret := []byte(cfg.SecretKey)
	if len(secret) == 0 {
		secret = randomSecret()
		log.Warn("SECRET_KEY is not set, sessions will not survive a restart")
	}

	// Database
	db, dialect, err := config.OpenDatabase(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	cleanup.add(sqlDB.Close)
	if cfg.AutoMigrate {
		n, err := migrations.Up(ctx, sqlDB, dialect)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.WithFields(logrus.Fields{"dialect": dialect, "applied": n}).Info("database ready")
	}

	m := metrics.New()

	store, err := newStore(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}
	provider, err := newProvider(ctx, cfg, m)
	if err != nil {
		return err
	}
	cleanup.add(provider.Close)

	sessionRepo, err := newSessionRepo(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}

	// Services
	userSvc, err := services.NewUserService(dbrepo.NewUserRepo(db), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	sessionSvc := services.NewSessionService(sessionRepo, secret, cfg.SessionTTL)
	transcriptionSvc := services.NewTranscriptionService(store, provider, dbrepo.NewTranscriptionRepo(db), m, log,
		services.TranscriptionOptions{
			MaxUploadBytes:    cfg.MaxUploadBytes,
			KeepFailedUploads: cfg.KeepFailedUploads,
			Language:          cfg.Language,
		})

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r, err := routes.NewRouter(routes.Deps{
		Log:            log,
		Metrics:        m,
		Sessions:       sessionSvc,
		Pages:          handlers.NewPageHandler(provider.Name(), provider.Model()),
		Auth:           handlers.NewAuthHandler(userSvc, sessionSvc, cfg.CookieSecure),
		Transcriptions: handlers.NewTranscriptionHandler(transcriptionSvc, provider.Model()),
		Files:          handlers.NewFileHandler(store, transcriptionSvc, cfg.UploadsRequireAuth),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"provider": provider.Name(),
			"model":    provider.Model(),
			"storage":  cfg.StorageBackend,
			"sessions": cfg.SessionStore,
		}).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg *config.Config, cleanup *closers) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "gcs":
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		cleanup.add(s.Close)
		return s, nil
	case "s3":
		s, err := storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		return s, nil
	default:
		return storage.NewLocalStore(cfg.UploadDir), nil
	}
}

// newProvider builds the engine once; providers that cannot take parallel
// calls come back wrapped in a single-worker queue.
func newProvider(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (stt.Provider, error) {
	var (
		p   stt.Provider
		err error
	)
	switch cfg.STTProvider {
	case "openai":
		p = stt.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	case "google":
		p, err = stt.NewGoogleSpeech(ctx, cfg.GoogleCredentialsFile)
	default:
		p, err = stt.NewWhisperCLI(cfg.WhisperBin, cfg.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("stt provider %s: %w", cfg.STTProvider, err)
	}

	p = stt.Serialize(p)
	if q, ok := p.(*stt.Queue); ok {
		m.WatchQueue(q.Waiting)
	}
	return p, nil
}

func newSessionRepo(ctx context.Context, cfg *config.Config, cleanup *closers) (services.SessionRepository, error) {
	switch cfg.SessionStore {
	case "redis":
		rdb, err := config.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		rc := cache.NewRedisCache(rdb, "scribe:")
		cleanup.add(rc.Close)
		return kv.NewSessionRepo(rc), nil
	case "mongo":
		client, err := config.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		cleanup.add(func() error { return client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDB)
		if err := config.EnsureMongoIndexes(ctx, db); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return mongorepo.NewSessionRepo(db), nil
	default:
		mc := cache.NewMemoryCache()
		stopSweep := sweep(mc, time.Minute)
		cleanup.add(func() error { stopSweep(); return nil })
		return kv.NewSessionRepo(mc), nil
	}
}

// sweep drops expired in-memory sessions until the returned func is called.
func sweep(mc *cache.MemoryCache, every time.Duration) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				mc.Sweep()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(err)
	}
	return []byte(hex.EncodeToString(b))
}
