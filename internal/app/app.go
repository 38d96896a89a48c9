// Package app wires configured backends for the portal commands.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"sekolahkita/internal/auth"
	"sekolahkita/internal/config"
	"sekolahkita/internal/httpmiddleware"
	"sekolahkita/internal/notification"
	"sekolahkita/internal/queue"
	"sekolahkita/internal/storage"
	"sekolahkita/internal/store"
)

// Backends are the shared clients of one process.
type Backends struct {
	Store   store.Client
	Storage storage.Storage
	Redis   *store.Redis
	DB      *sql.DB
	Queue   queue.Queue
}

// Open connects the record store, object storage, redis and the queue
// selected by cfg. Store calls are recorded on reg when it is non-nil.
func Open(ctx context.Context, cfg config.App, reg prometheus.Registerer, log *logrus.Logger) (*Backends, error) {
	b := &Backends{}

	var client store.Client
	switch cfg.StoreBackend {
	case "postgrest":
		p := store.NewPostgREST(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		p.Retries = cfg.StoreRetries
		client = p
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		gdb, err := store.OpenPostgres(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open gorm: %w", err)
		}
		b.DB = db
		client = store.NewGorm(gdb)
	case "memory":
		client = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	b.Store = store.Instrument(client, reg)
	log.WithField("backend", cfg.StoreBackend).Info("record store ready")

	if cfg.SupabaseURL != "" {
		key := cfg.SupabaseServiceKey
		if key == "" {
			key = cfg.SupabaseAnonKey
		}
		b.Storage = storage.New(cfg.SupabaseURL, key, cfg.PrivateBuckets, cfg.SignedURLTTL)
	} else {
		mem := storage.NewMemory(cfg.PublicBaseURL+"/files", cfg.PrivateBuckets...)
		mem.SignedTTL = cfg.SignedURLTTL
		b.Storage = mem
		log.Warn("SUPABASE_URL not set, object storage kept in memory")
	}

	if cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis" {
		b.Redis = store.NewRedis(cfg.RedisAddr)
	}
	if cfg.QueueBackend == "redis" {
		b.Queue = queue.NewRedisQueue(b.Redis.Client, "", log.WithField("component", "queue"))
	} else {
		b.Queue = queue.NewInMemory(64)
	}
	return b, nil
}

// Close releases every open connection.
func (b *Backends) Close() {
	if b.DB != nil {
		_ = b.DB.Close()
	}
	_ = b.Redis.Close()
}

// Dispatcher returns the notification dispatcher selected by cfg.
func (b *Backends) Dispatcher(cfg config.App, log *logrus.Entry) notification.Dispatcher {
	if cfg.NotifyDispatcher == "queue" {
		return notification.QueueDispatcher{Queue: b.Queue}
	}
	return notification.LogDispatcher{Log: log}
}

// Limiter returns the request rate limiter selected by cfg.
func (b *Backends) Limiter(cfg config.App) httpmiddleware.Limiter {
	if cfg.RateLimitBackend == "redis" && b.Redis != nil {
		return httpmiddleware.NewRedisWindow(b.Redis.Client, cfg.RateLimitPerMin)
	}
	return httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
}

// AuthProvider returns the sign-in provider selected by cfg.
func AuthProvider(cfg config.App) (auth.Provider, error) {
	if cfg.AuthProvider == "local" {
		return auth.NewLocal(cfg.LocalUsers, cfg.JWTIssuer, cfg.JWTSecret, cfg.AccessTTL)
	}
	return auth.NewGoTrue(cfg.SupabaseURL, cfg.SupabaseAnonKey), nil
}
