package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/query"
)

// Instrumented records the latency and outcome of every store call.
type Instrumented struct {
	next     Client
	duration *prometheus.HistogramVec
}

// Instrument wraps next with the portal_store_request_duration_seconds
// histogram registered on reg. Registering twice reuses the first collector.
func Instrument(next Client, reg prometheus.Registerer) *Instrumented {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_store_request_duration_seconds",
		Help:    "Latency of record store requests by collection, operation and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection", "op", "outcome"})
	if reg != nil {
		if err := reg.Register(hv); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
					hv = existing
				}
			}
		}
	}
	return &Instrumented{next: next, duration: hv}
}

func (i *Instrumented) Query(ctx context.Context, q query.Query, dest any) error {
	start := time.Now()
	err := i.next.Query(ctx, q, dest)
	i.observe(q.Collection, "query", start, err)
	return err
}

func (i *Instrumented) Write(ctx context.Context, collection string, records any, conflictKey ...string) error {
	start := time.Now()
	err := i.next.Write(ctx, collection, records, conflictKey...)
	op := "insert"
	if len(conflictKey) > 0 {
		op = "upsert"
	}
	i.observe(collection, op, start, err)
	return err
}

func (i *Instrumented) Update(ctx context.Context, q query.Query, patch map[string]any) (int, error) {
	start := time.Now()
	n, err := i.next.Update(ctx, q, patch)
	i.observe(q.Collection, "update", start, err)
	return n, err
}

// WithAccessToken keeps the instrumentation around a token-scoped backend.
func (i *Instrumented) WithAccessToken(token string) Client {
	s, ok := i.next.(TokenScoper)
	if !ok {
		return i
	}
	return &Instrumented{next: s.WithAccessToken(token), duration: i.duration}
}

func (i *Instrumented) observe(collection, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	i.duration.WithLabelValues(collection, op, outcome).Observe(time.Since(start).Seconds())
}
