package server

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewHTTPServer wires the ops routes: a liveness probe and the Prometheus scrape endpoint.
func NewHTTPServer(addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: promLogger{logger: logger},
	}))

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

// promLogger adapts zerolog to promhttp's error logger.
type promLogger struct {
	logger zerolog.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.logger.Error().Str("component", "metrics").Msg(fmt.Sprint(v...))
}
