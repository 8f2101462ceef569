package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/pasar-checkout/internal/cart"
	"github.com/noah-isme/pasar-checkout/internal/checkout"
	"github.com/noah-isme/pasar-checkout/internal/common"
	"github.com/noah-isme/pasar-checkout/internal/config"
	"github.com/noah-isme/pasar-checkout/internal/events"
	"github.com/noah-isme/pasar-checkout/internal/health"
	"github.com/noah-isme/pasar-checkout/internal/lock"
	"github.com/noah-isme/pasar-checkout/internal/money"
	"github.com/noah-isme/pasar-checkout/internal/obs"
	"github.com/noah-isme/pasar-checkout/internal/ratelimit"
	"github.com/noah-isme/pasar-checkout/internal/resilience"
	"github.com/noah-isme/pasar-checkout/internal/security"
	"github.com/noah-isme/pasar-checkout/internal/session"
	"github.com/noah-isme/pasar-checkout/internal/shipping"
	"github.com/noah-isme/pasar-checkout/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pasar")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pasar-checkout",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	collaborator := func(target string) resilience.HTTPClient {
		breaker := resilience.NewBreaker(5, cfg.BreakerFailureRatio, cfg.BreakerCooldown).
			WithTarget(target).
			WithLogger(logger)
		return resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: cfg.HTTPRetryMax + 1,
			BaseBackoff: 150 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     5 * time.Second,
		}
	}

	var cartSource checkout.CartSource
	if cfg.CartServiceURL != "" {
		cartSource = checkout.HTTPCartSource{BaseURL: cfg.CartServiceURL, Client: collaborator("cart-source")}
	} else {
		cartSource = devCartSource(cfg.CurrencyCode)
		logger.Warn().Msg("CART_SERVICE_URL not set, using built-in sample carts")
	}

	var voucherSource voucher.Source
	if cfg.VoucherServiceURL != "" {
		voucherSource = voucher.HTTPSource{BaseURL: cfg.VoucherServiceURL, Client: collaborator("voucher-source")}
	} else {
		voucherSource = devVoucherSource(cfg.CurrencyCode)
		logger.Warn().Msg("VOUCHER_SERVICE_URL not set, using built-in sample vouchers")
	}

	var rateSource shipping.RateSource
	if cfg.ShippingServiceURL != "" {
		rateSource = shipping.HTTPSource{BaseURL: cfg.ShippingServiceURL, Client: collaborator("shipping-rates")}
	} else {
		rateSource = shipping.MockSource{Currency: cfg.CurrencyCode}
		logger.Warn().Msg("SHIPPING_SERVICE_URL not set, using mock rates")
	}
	rateSource = shipping.CachedSource{Next: rateSource, Client: redisClient, TTL: cfg.RateCacheTTL}

	var submitter checkout.Submitter
	if cfg.OrderServiceURL != "" {
		submitter = checkout.HTTPSubmitter{BaseURL: cfg.OrderServiceURL, Client: collaborator("order-submit")}
	} else {
		submitter = checkout.MockSubmitter{}
		logger.Warn().Msg("ORDER_SERVICE_URL not set, submissions return generated order ids")
	}

	bus := &events.Bus{Store: events.RedisStreamStore{Client: redisClient}}

	checkoutSvc := &checkout.Service{
		Sessions:  session.Store{Client: redisClient, TTL: cfg.SessionTTL},
		Carts:     cartSource,
		Vouchers:  voucherSource,
		Rates:     rateSource,
		Submitter: submitter,
		Events:    bus,
		Locks:     lock.Locker{R: redisClient},
		Logger:    logger,
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	submitLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "pasar:submitlimit:"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return chi.URLParam(r, "id") },
			Window: time.Minute,
			Max:    envInt("SUBMIT_RATE_LIMIT_PER_MINUTE", 10),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("submit rate limiter") },
	}
	checkoutHandler := &checkout.Handler{
		Svc:              checkoutSvc,
		Validate:         validator.New(),
		SubmitMiddleware: []func(http.Handler) http.Handler{idem.Middleware, submitLimiter.Middleware},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{Enable: envBool("SECURE_HEADERS", true), EnableHSTS: envBool("SECURE_HSTS", false)}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RateLimitPerMinute > 0 {
		ipLimiter, err := ratelimit.NewIPMiddleware(redisClient, cfg.RateLimitPerMinute)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise rate limiter")
		}
		r.Use(ipLimiter)
	}

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.RedisChecker{Client: redisClient},
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1/checkout", checkoutHandler.Routes)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// devCartSource serves one sample multi-store cart so the API is explorable
// without a cart service.
func devCartSource(currency string) checkout.StaticCartSource {
	mustLine := func(lineID, storeID, title string, price int64, qty int) cart.Line {
		l, err := cart.NewLine(lineID, storeID, title, money.MustNew(price, currency), qty, 20)
		if err != nil {
			panic(err)
		}
		return l
	}
	snap, err := cart.NewSnapshot([]cart.Line{
		mustLine("contoh-1", "toko-elektronik", "Headset Bluetooth", 250_000, 1),
		mustLine("contoh-2", "toko-elektronik", "Kabel USB-C 1m", 35_000, 2),
		mustLine("contoh-3", "toko-buku", "Novel Laut Bercerita", 99_000, 1),
	})
	if err != nil {
		panic(err)
	}
	return checkout.StaticCartSource{"contoh": snap}
}

// devVoucherSource mirrors the catalog shapes the voucher service would serve.
func devVoucherSource(currency string) voucher.StaticSource {
	maxDiscount := money.MustNew(100_000, currency)
	return voucher.StaticSource{
		"HEMAT10": {
			Code:        "HEMAT10",
			Kind:        voucher.KindPercent,
			Percent:     10,
			MinPurchase: money.Zero(currency),
			MaxDiscount: &maxDiscount,
		},
		"POTONGAN50K": {
			Code:        "POTONGAN50K",
			Kind:        voucher.KindFixed,
			Value:       money.MustNew(50_000, currency),
			MinPurchase: money.MustNew(300_000, currency),
		},
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
