package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/layersite/layersite/internal/auth"
	"github.com/layersite/layersite/internal/config"
	"github.com/layersite/layersite/internal/database"
	"github.com/layersite/layersite/internal/document"
	"github.com/layersite/layersite/internal/identity"
	"github.com/layersite/layersite/internal/ingest"
	"github.com/layersite/layersite/internal/metric"
	"github.com/layersite/layersite/internal/rest"
	"github.com/layersite/layersite/internal/schema"
	"github.com/layersite/layersite/internal/sessions"
	"github.com/layersite/layersite/internal/store"
	"github.com/layersite/layersite/pkg/logger"
	"github.com/layersite/layersite/pkg/metrics"
	"github.com/layersite/layersite/pkg/middleware"
)

var startTime = time.Now()

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	reg, err := schema.Load()
	if err != nil {
		logger.Fatalf("failed to load schemas: %v", err)
	}
	kinds, err := document.NewKindSet(reg)
	if err != nil {
		logger.Fatalf("failed to build kinds: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	// permissive CORS for dev/test; production sits behind a stricter proxy
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	// storage: Mongo with retry/backoff to tolerate startup races, memory
	// fallback for development without a database
	var docStore store.Store
	var mongoOK bool
	if cfg.MongoDB.URI != "" {
		const maxAttempts = 5
		backoff := time.Second
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			client, errConn := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				defer func() { _ = client.Disconnect(context.Background()) }()
				docStore = store.NewMongoStore(client.Database(cfg.MongoDB.Database))
				mongoOK = true
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
	}
	if docStore == nil {
		logger.Warnf("MongoDB unavailable, using in-memory store (data will not survive restarts)")
		docStore = store.NewMemoryStore()
	}

	for _, kind := range []*document.Kind{kinds.Layers, kinds.Repos} {
		if err := docStore.EnsureTextIndex(ctx, kind, kind.TextFields(), "fts"); err != nil {
			logger.Warnf("ensure fts index on %s: %v", kind.Collection, err)
		}
	}

	// sessions: Redis when configured, in-process otherwise
	var sessionRepo sessions.Repository
	var redisOK bool
	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			sessionRepo = sessions.NewRedisRepository(rdb, cfg.Session.Prefix)
			redisOK = true
			logger.Infof("using Redis for session storage")
		}
	}
	if sessionRepo == nil {
		sessionRepo = sessions.NewMemoryRepository()
	}
	sessionSvc := sessions.NewService(sessionRepo)

	// identity chain: bearer JWT, optional OIDC, session cookie
	chain := &identity.Chain{Secret: cfg.Auth.JWTSecret, Sessions: sessionSvc}
	if cfg.Auth.OIDCIssuer != "" && cfg.Auth.OIDCClient != "" {
		ver, err := identity.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClient)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			chain.Verifier = ver
		}
	}

	gate := auth.NewGate(cfg.Auth.AdminUsers, cfg.Auth.GroupPrefix)
	sink := metric.NewStoreSink(docStore, kinds.Metrics)

	// ingestion: optional snapshot archive, GitHub provider, worker pool
	var archive *ingest.Archive
	if cfg.Archive.Enabled {
		a, err := ingest.NewArchive(ingest.ArchiveConfig{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
		})
		if err != nil {
			logger.Warnf("snapshot archive disabled: %v", err)
		} else {
			archive = a
		}
	}
	provider := ingest.NewGitHubProvider(cfg.GitHub.APIBase, cfg.GitHub.Timeout)
	scheduler := ingest.NewScheduler(docStore, kinds, provider, ingest.Options{
		Interval:      cfg.Ingest.Interval,
		Workers:       cfg.Ingest.Workers,
		QueueSize:     cfg.Ingest.QueueSize,
		FallbackToken: cfg.GitHub.Token,
		Archive:       archive,
	})
	scheduler.Run(ctx)

	api := rest.NewAPI(docStore, kinds, gate, chain, sink)
	api.Ingest = scheduler
	api.Sessions = sessionSvc
	api.SessionTTL = cfg.Session.TTL
	api.Register(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{"mongo": mongoOK, "redis": redisOK || cfg.Redis.Host == ""}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting layersite on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	scheduler.Wait()
}
