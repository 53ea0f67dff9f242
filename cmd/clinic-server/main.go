package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dentaldesk/clinic/internal/audit"
	"github.com/dentaldesk/clinic/internal/clinic"
	"github.com/dentaldesk/clinic/internal/handlers"
	"github.com/dentaldesk/clinic/internal/outbox"
	"github.com/dentaldesk/clinic/internal/sessions"
	"github.com/dentaldesk/clinic/internal/storage"
	"github.com/dentaldesk/clinic/libs/config"
	"github.com/dentaldesk/clinic/libs/db"
	"github.com/dentaldesk/clinic/libs/httpx"
	"github.com/dentaldesk/clinic/libs/kafkax"
	otelx "github.com/dentaldesk/clinic/libs/otel"
	"github.com/dentaldesk/clinic/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "clinic-server")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	redisAddr, err := config.RequiredString("REDIS_ADDR")
	if err != nil {
		panic(err)
	}
	redisDB := 0
	if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil {
		redisDB = v
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	defer rdb.Close()

	sessionTTL := 24 * time.Hour
	if v, err := strconv.Atoi(config.String("SESSION_TTL_MINUTES", "")); err == nil && v > 0 {
		sessionTTL = time.Duration(v) * time.Minute
	}
	sessionStore := sessions.NewStore(rdb, sessionTTL)

	outboxRepo := outbox.NewRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo)
	identityRepo := storage.NewIdentityRepository(pool)
	auditRepo := audit.NewRepository(pool)
	svc := clinic.NewService(apptRepo, identityRepo, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	authHandler := handlers.NewAuthHandler(identityRepo, sessionStore, svc, auditRepo, logger)
	apptHandler := handlers.NewAppointmentHandler(svc, sessionStore, logger)
	directoryHandler := handlers.NewDirectoryHandler(identityRepo, logger)
	auditHandler := handlers.NewAuditHandler(auditRepo, sessionStore, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "redis", Check: sessionStore.ReadyCheck},
	}
	if strings.TrimSpace(kafkaBrokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	mux.HandleFunc("/api/v1/login", authHandler.Login)
	mux.HandleFunc("/api/v1/register/patient", authHandler.RegisterPatient)
	mux.HandleFunc("/api/v1/register/doctor", authHandler.RegisterDoctor)
	mux.HandleFunc("/api/v1/session", authHandler.Session)
	mux.HandleFunc("/api/v1/doctors", directoryHandler.List)
	mux.HandleFunc("/api/v1/appointments/book", apptHandler.Book)
	mux.HandleFunc("/api/v1/appointments/cancel", apptHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/status", apptHandler.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/doctor", apptHandler.DoctorSchedule)
	mux.HandleFunc("/api/v1/audit", auditHandler.Recent)

	bodyLimit := int64(1 << 20)
	if v, err := strconv.Atoi(config.String("MAX_BODY_BYTES", "")); err == nil && v > 0 {
		bodyLimit = int64(v)
	}
	requestTimeout := 10 * time.Second
	if v, err := strconv.Atoi(config.String("REQUEST_TIMEOUT_SECONDS", "")); err == nil && v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}

	limitPerMinute := 120
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "")); err == nil && v > 0 {
		limitPerMinute = v
	}
	var rateLimit httpx.Middleware
	if isTruthy(config.String("RATE_LIMIT_REDIS", "true")) {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimit = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimit = rl.Middleware()
		logger.Info("rate limiting enabled (memory)", "per_minute", limitPerMinute)
	}

	corsPolicy := httpx.CORSPolicy{
		AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
		AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PATCH,DELETE,OPTIONS")),
		AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id")),
		AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "true")),
	}
	if v, err := strconv.Atoi(config.String("CORS_MAX_AGE_SECONDS", "600")); err == nil && v > 0 {
		corsPolicy.MaxAge = time.Duration(v) * time.Second
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(corsPolicy),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "clinic")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
