package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	c "connectrpc.com/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/handler"
	"github.com/FACorreiaa/sales-insight/pkg/interceptors"
	"github.com/FACorreiaa/sales-insight/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	tracer := otel.GetTracerProvider().Tracer("sales/api")

	chain := []connect.Interceptor{
		interceptors.NewRequestIDInterceptor("X-Request-ID"),
		interceptors.NewTracingInterceptor(tracer),
	}
	if deps.Config.Server.RateLimit > 0 && deps.Config.Server.RateBurst > 0 {
		chain = append(chain, interceptors.NewRateLimitInterceptor(deps.Config.Server.RateLimit, deps.Config.Server.RateBurst))
	}
	chain = append(chain,
		interceptors.NewRecoveryInterceptor(deps.Logger),
		interceptors.NewLoggingInterceptor(deps.Logger),
		observability.NewMetricsInterceptor(),
	)

	// base64 in JSON grows uploads by a third
	maxRead := deps.Config.Import.MaxBytes*4/3 + 64<<10

	registerConnectRoutes(mux, deps,
		connect.WithInterceptors(chain...),
		connect.WithReadMaxBytes(int(maxRead)),
	)

	registerUtilityRoutes(mux, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods(),
		AllowedHeaders:   append(c.AllowedHeaders(), "X-Request-ID"),
		ExposedHeaders:   append(c.ExposedHeaders(), "X-Request-ID"),
		AllowCredentials: true,
		MaxAge:           7200,
	})

	return corsHandler.Handler(mux)
}

// registerConnectRoutes registers all Connect RPC services
func registerConnectRoutes(mux *http.ServeMux, deps *Dependencies, opts ...connect.HandlerOption) {
	salesPath, salesHandler := handler.NewSalesServiceHandler(deps.SalesHandler, opts...)
	mux.Handle(salesPath, noStore(salesHandler))
	deps.Logger.Info("registered Connect RPC service", "path", salesPath)

	deps.Logger.Info("Connect RPC routes configured")
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				if _, writeErr := w.Write([]byte("database unhealthy")); writeErr != nil {
					deps.Logger.Error("failed to write health response", slog.Any("error", writeErr))
				}
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	mux.HandleFunc("/health/details", func(w http.ResponseWriter, r *http.Request) {
		type status struct {
			Status string         `json:"status"`
			Detail string         `json:"detail,omitempty"`
			Stats  map[string]any `json:"stats,omitempty"`
		}
		result := map[string]status{
			"db":        {Status: "ok", Detail: "in-memory profiles"},
			"assistant": {Status: "ok"},
			"datasets":  {Status: "ok", Stats: map[string]any{"cached": deps.Datasets.Len()}},
		}

		if deps.DB != nil {
			if err := deps.DB.Health(r.Context()); err != nil {
				result["db"] = status{Status: "fail", Detail: err.Error()}
			} else {
				result["db"] = status{Status: "ok", Stats: deps.DB.Stats()}
			}
		}

		if deps.Assistant == nil {
			result["assistant"] = status{Status: "warn", Detail: "ASSISTANT_API_KEY missing"}
		}

		code := http.StatusOK
		for _, v := range result {
			if v.Status == "fail" {
				code = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health details", "path", "/health/details")

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	mux.Handle("/metrics", promhttp.Handler())
	deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
}
