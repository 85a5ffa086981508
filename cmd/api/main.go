package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/auth"
	"checkin/internal/checkin"
	"checkin/internal/config"
	"checkin/internal/directory"
	"checkin/internal/export"
	"checkin/internal/httpmiddleware"
	"checkin/internal/metrics"
	"checkin/internal/queue"
	"checkin/internal/recordstore"
	"checkin/internal/scanner"
	"checkin/internal/stats"
	"checkin/internal/store"
	"checkin/internal/tally"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	loc := cfg.Location()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	rs, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	rs = metrics.WrapStore(rs)

	window := checkin.NewWindow(cfg.WindowPolicy, loc)
	dir := directory.New(rs, cfg.SubjectsTable)
	guard := checkin.NewGuard(rs, cfg.CheckinsTable, window)
	svc := checkin.NewService(rs, dir, guard, cfg.CheckinsTable, logger)
	svc.Timeout = cfg.StoreTimeout
	svc.RequireScope = cfg.RequireScope
	statsSvc := stats.NewService(svc, loc)

	authn := auth.NewAuthenticator(rs, cfg.OperatorsTable)
	sessions := auth.NewSessions(redisClient.Client)
	gates := scanner.NewRegistry(cfg.RescanDelay, cfg.ScanCooldown, cfg.ScanErrorCooldown, nil)
	liveTally := tally.New(redisClient.Client, loc)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "checkin:events")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, nil).Gin())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "store": cfg.StoreBackend})
	})

	r.POST("/v1/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		operator, err := authn.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				metrics.LoginsTotal.WithLabelValues("rejected").Inc()
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			metrics.LoginsTotal.WithLabelValues("error").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential check unavailable"})
			return
		}

		session, err := auth.Issue(operator, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		if err := sessions.Create(c.Request.Context(), session.SessionID, operator.Username, cfg.SessionTTL); err != nil {
			logger.Warn("session registry write failed", "err", err)
		}
		metrics.LoginsTotal.WithLabelValues("ok").Inc()

		c.JSON(http.StatusCreated, gin.H{
			"token":      session.Token,
			"expires_at": session.ExpiresAt.Unix(),
			"operator":   operator,
		})
	})

	authGroup := r.Group("/v1", auth.OperatorAuth(cfg.JWTSigningKey, cfg.JWTIssuer, sessions))

	authGroup.POST("/logout", func(c *gin.Context) {
		claims := mustClaims(c)
		_ = sessions.Revoke(c.Request.Context(), claims.SessionID)
		gates.Drop(claims.SessionID)
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	})

	authGroup.POST("/scans", func(c *gin.Context) {
		var req struct {
			SubjectID string `json:"subject_id" binding:"required"`
			Scope     string `json:"scope"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.ScansTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims := mustClaims(c)
		gate := gates.Get(claims.SessionID)
		if !gate.Accept(req.SubjectID) {
			metrics.ScansTotal.WithLabelValues(metrics.OutcomeDropped).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":          "scanner not armed",
				"state":          gate.State().String(),
				"retry_after_ms": gate.CooldownRemaining().Milliseconds(),
			})
			return
		}

		rec, err := svc.Record(c.Request.Context(), req.SubjectID, req.Scope)
		var dup *checkin.AlreadyCheckedInError
		gate.Complete(err == nil || errors.As(err, &dup))

		if err != nil {
			writeCheckinError(c, err)
			return
		}

		if err := q.Publish(c.Request.Context(), queue.CheckinEvent{
			RecordID:  rec.RecordID,
			SubjectID: rec.SubjectID,
			Scope:     rec.Scope,
			Timestamp: rec.Timestamp,
		}); err != nil {
			logger.Warn("queue publish failed", "err", err)
		}

		metrics.ScansTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		c.JSON(http.StatusCreated, gin.H{"checkin": rec})
	})

	authGroup.POST("/scanner/reset", func(c *gin.Context) {
		claims := mustClaims(c)
		gates.Get(claims.SessionID).Reset()
		c.JSON(http.StatusOK, gin.H{"state": scanner.Armed.String()})
	})

	authGroup.GET("/checkins", func(c *gin.Context) {
		limit := parseLimit(c.Query("limit"), 50)
		records, err := svc.List(c.Request.Context(), c.Query("scope"), limit)
		if err != nil {
			writeCheckinError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"checkins": records})
	})

	authGroup.GET("/stats", func(c *gin.Context) {
		snapshot, err := statsSvc.Compute(c.Request.Context())
		if err != nil {
			writeCheckinError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	})

	authGroup.GET("/stats/live", func(c *gin.Context) {
		live, err := liveTally.Snapshot(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live counters unavailable"})
			return
		}
		c.JSON(http.StatusOK, live)
	})

	authGroup.GET("/export.csv", func(c *gin.Context) {
		records, err := svc.All(c.Request.Context())
		if err != nil {
			writeCheckinError(c, err)
			return
		}
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="`+export.Filename(time.Now().In(loc))+`"`)
		c.Status(http.StatusOK)
		if err := export.WriteCSV(c.Writer, records); err != nil {
			logger.Warn("csv export aborted", "err", err)
		}
	})

	authGroup.DELETE("/subjects/:id/checkins", func(c *gin.Context) {
		deleted, err := svc.Reset(c.Request.Context(), c.Param("id"), c.Query("scope"))
		if err != nil {
			writeCheckinError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	})

	authGroup.POST("/checkins/delete", func(c *gin.Context) {
		var req struct {
			IDs []string `json:"ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.DeleteRecords(c.Request.Context(), req.IDs); err != nil {
			writeCheckinError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": len(req.IDs)})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "window", cfg.WindowPolicy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "err", err)
	}

	logger.Info("server exited")
	return nil
}

// openStore selects the record store backend from config.
func openStore(cfg config.App) (recordstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := recordstore.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(context.Background()); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case "memory":
		return recordstore.NewMemory(), func() {}, nil
	default:
		return recordstore.NewAirtable(cfg.AirtableEndpoint, cfg.AirtableBaseID, cfg.AirtableAPIKey), func() {}, nil
	}
}

// parseLimit parses a ?limit= value. Garbage and negative numbers keep the
// fallback; 0 means unlimited.
func parseLimit(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func mustClaims(c *gin.Context) auth.Claims {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	return claims
}

// writeCheckinError maps the workflow error taxonomy onto HTTP statuses.
// AlreadyCheckedIn is informational (409, with the prior timestamp); store
// failures surface as 502 so callers know to retry later.
func writeCheckinError(c *gin.Context, err error) {
	var validation *checkin.ValidationError
	var dup *checkin.AlreadyCheckedInError
	var storeErr *checkin.StoreError

	switch {
	case errors.As(err, &validation):
		metrics.ScansTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validation.Msg})
	case errors.Is(err, checkin.ErrSubjectNotFound):
		metrics.ScansTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "subject not found, check the QR code"})
	case errors.As(err, &dup):
		metrics.ScansTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		c.JSON(http.StatusConflict, gin.H{
			"error":                 "already checked in",
			"already_checked_in_at": dup.At.UTC().Format(time.RFC3339),
		})
	case errors.As(err, &storeErr):
		metrics.ScansTotal.WithLabelValues(metrics.OutcomeStoreError).Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": "record store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// corsMiddleware lets the browser scanner UI call the API from another
// origin. Only the verbs this API serves are advertised.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// securityHeaders sets the usual browser hardening headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
