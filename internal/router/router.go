package router

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"influxdb-listener/internal/endpoints"
	"influxdb-listener/internal/util"
)

func NewRouter(store endpoints.PointReader, gatherer prometheus.Gatherer, webSlogger util.Logger) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, store, gatherer, webSlogger)

	r.Use(loggingMiddleware(webSlogger))

	return r
}

func addRoutes(r *mux.Router, store endpoints.PointReader, gatherer prometheus.Gatherer, webSlogger util.Logger) {

	pointsHandler := &endpoints.Points{}
	pointsHandler.Init(store, webSlogger)

	r.HandleFunc("/points/{limit}/{offset}", pointsHandler.GetPointsHandler).Methods("GET")

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
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

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func Run(addr string, store endpoints.PointReader, gatherer prometheus.Gatherer, webSlogger util.Logger) error {
	appRouter := NewRouter(store, gatherer, webSlogger)

	server := NewServer(addr, appRouter)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		println()
		webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down server...")

		err := gracefulShutdown(server, 25*time.Second)

		if err != nil {
			webSlogger.LogEvent(util.LOG_LEVEL_ERROR, "Server stopped with error. Err - ", err)
		} else {
			webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Server stopped gracefully.")
		}
	}()

	webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Listening on ", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

func loggingMiddleware(logger util.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s", r.Method, r.RequestURI))
			next.ServeHTTP(w, r)
		})
	}
}
