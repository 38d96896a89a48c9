package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"sekolahkita/internal/app"
	"sekolahkita/internal/campusmap"
	"sekolahkita/internal/config"
	"sekolahkita/internal/handler"
	"sekolahkita/internal/httpmiddleware"
	"sekolahkita/internal/logging"
	"sekolahkita/internal/notification"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := runHTTP(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

func runHTTP(cfg config.App, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, prometheus.DefaultRegisterer, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	provider, err := app.AuthProvider(cfg)
	if err != nil {
		return err
	}

	notifyLog := logging.Component(log, "notify")
	dispatcher := backends.Dispatcher(cfg, notifyLog)

	// With an in-memory queue nobody else can drain it, so deliver in process.
	if cfg.NotifyDispatcher == "queue" && cfg.QueueBackend != "redis" {
		w := notification.NewWorker(backends.Queue, notification.LogSender{Log: notifyLog}, backends.Store, notifyLog)
		go func() {
			if err := w.Run(ctx); err != nil {
				notifyLog.WithError(err).Error("in-process worker stopped")
			}
		}()
	}

	h := handler.New(handler.Deps{
		Store:         backends.Store,
		Storage:       backends.Storage,
		Auth:          provider,
		Dispatcher:    dispatcher,
		JWTSecret:     cfg.JWTSecret,
		JWTIssuer:     cfg.JWTIssuer,
		Location:      cfg.Location(),
		PublicBaseURL: cfg.PublicBaseURL,
		MapCenter:     campusmap.Center{Lat: cfg.MapCenterLat, Lng: cfg.MapCenterLng},
		MapZoom:       cfg.MapZoom,
		Log:           logging.Component(log, "handler"),
	})

	r := gin.New()
	r.MaxMultipartMemory = 10 << 20

	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logging.Component(log, "http"), "/healthz", "/metrics"))
	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Limit(backends.Limiter(cfg), logging.Component(log, "ratelimit")))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		resp := gin.H{"status": "ok", "store": cfg.StoreBackend}
		status := http.StatusOK
		if backends.Redis != nil {
			redisHealthy := backends.Redis.Healthy(c.Request.Context())
			resp["redis"] = redisHealthy
			if !redisHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if backends.DB != nil {
			dbHealthy := backends.DB.PingContext(c.Request.Context()) == nil
			resp["db"] = dbHealthy
			if !dbHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if status != http.StatusOK {
			resp["status"] = "degraded"
		}
		c.JSON(status, resp)
	})

	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}

	log.Info("server exited")
	return nil
}
