// Package metrics holds the Prometheus collectors of the engine and serves
// them over HTTP when an address is configured.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imeserve"

var (
	// Feeds counts code units fed into input contexts.
	Feeds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_total",
		Help:      "Code units fed into input contexts.",
	})

	// Backspaces counts backspaces by outcome: candidates, overflow or cancel.
	Backspaces = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backspace_total",
		Help:      "Backspaces handled, by result.",
	}, []string{"result"})

	// Overflows counts transitions from matching into overflow.
	Overflows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "overflow_total",
		Help:      "Times a context typed past the end of every dictionary path.",
	})

	// ActiveContexts is the number of registered input contexts.
	ActiveContexts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_contexts",
		Help:      "Input contexts currently registered.",
	})

	// CandidateCache counts ranked candidate cache lookups by hit or miss.
	CandidateCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidate_cache_total",
		Help:      "Ranked candidate cache lookups, by result.",
	}, []string{"result"})

	// RankDuration observes how long ranking a subtree takes.
	RankDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rank_duration_seconds",
		Help:      "Time spent flattening and sorting a subtree.",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	// DictionaryEntries is the number of entries in the active code table.
	DictionaryEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dictionary_entries",
		Help:      "Entries in the active code table.",
	})

	// DictionaryReloads counts reload attempts by result: ok or error.
	DictionaryReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dictionary_reload_total",
		Help:      "Dictionary reloads, by result.",
	}, []string{"result"})
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Debugf("Metrics listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
