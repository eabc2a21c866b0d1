package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sysmon-api/internal/config"
	"sysmon-api/internal/domain"
	"sysmon-api/internal/endpoints"
	"sysmon-api/internal/telemetry"
	"sysmon-api/internal/util"
)

const RequestIDHeader = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

// Deps is everything the HTTP layer needs.
type Deps struct {
	Store          domain.MetricStore
	Logger         *util.Logger
	Metrics        *telemetry.Metrics
	APIName        string
	RequestTimeout time.Duration
}

func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, deps)

	r.Use(recoveryMiddleware(deps.Logger, deps.APIName))
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(deps.Logger))
	r.Use(deps.Metrics.Middleware)
	r.Use(timeoutMiddleware(deps.RequestTimeout))

	return r
}

func addRoutes(r *mux.Router, deps Deps) {
	opts := endpoints.Options{API: deps.APIName, Telemetry: deps.Metrics}

	healthHandler := &endpoints.Health{}
	healthHandler.Init(deps.Store, deps.Logger, opts)

	ingestHandler := &endpoints.Ingest{}
	ingestHandler.Init(deps.Store, deps.Logger, opts)

	metricsHandler := &endpoints.Metrics{}
	metricsHandler.Init(deps.Store, deps.Logger, opts)

	statsHandler := &endpoints.Stats{}
	statsHandler.Init(deps.Store, deps.Logger, opts)

	r.HandleFunc("/", healthHandler.RootHandler).Methods("GET")
	r.HandleFunc("/health", healthHandler.HealthHandler).Methods("GET")

	r.HandleFunc("/api/data", ingestHandler.PostDataHandler).Methods("POST")

	// Fixed paths go before {category} so they are not taken as categories.
	r.HandleFunc("/api/metrics", metricsHandler.GetLatestHandler).Methods("GET")
	r.HandleFunc("/api/metrics/complete", metricsHandler.GetCompleteHandler).Methods("GET")
	r.HandleFunc("/api/metrics/latest", metricsHandler.GetLatestHandler).Methods("GET")
	r.HandleFunc("/api/metrics/{category}", metricsHandler.GetCategoryHandler).Methods("GET")
	r.HandleFunc("/api/metrics/{category}/history", metricsHandler.GetHistoryHandler).Methods("GET")

	r.HandleFunc("/api/stats", statsHandler.GetStatsHandler).Methods("GET")

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	r.NotFoundHandler = http.HandlerFunc(healthHandler.NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(healthHandler.MethodNotAllowedHandler)
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// in-flight requests for at most cfg.ShutdownTimeout.
func Run(ctx context.Context, cfg config.Server, handler http.Handler, logger *util.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg.Addr(), handler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.LogEvent(util.LOG_LEVEL_INFO, "Listening on", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down server...")

		if err := gracefulShutdown(server, cfg.ShutdownTimeout); err != nil {
			logger.LogEvent(util.LOG_LEVEL_ERROR, "Server stopped with error:", err)
			return err
		}
		logger.LogEvent(util.LOG_LEVEL_INFO, "Server stopped gracefully.")
		return nil
	})

	return g.Wait()
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func loggingMiddleware(logger *util.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.LogFields(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s", r.Method, r.RequestURI),
				zap.Int("status", rw.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestID(r.Context())),
			)
		})
	}
}

// timeoutMiddleware bounds the context handed to the store. Handlers map
// an expired deadline to 503.
func timeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func recoveryMiddleware(logger *util.Logger, api string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.LogFields(util.LOG_LEVEL_ERROR, "panic while serving request",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)
					res := endpoints.APIResponse{API: api}
					res.WriteErrorResponseWithStatusCode(w, errors.New("internal server error"), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
