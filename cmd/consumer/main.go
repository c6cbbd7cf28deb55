package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/example/ride-negotiation/internal/config"
	"github.com/example/ride-negotiation/internal/logging"
	"github.com/example/ride-negotiation/internal/negotiation"
)

var (
	eventsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_events_consumed_total",
		Help: "Ride events consumed, by kind",
	}, []string{"kind"})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_invalid_total",
		Help: "Messages that did not decode as ride events",
	})
	readErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_read_errors_total",
		Help: "Kafka read errors",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, readErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	t := newTailer(r, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)
		return t.run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("consumer exited", "error", err)
		_ = r.Close()
		os.Exit(1)
	}
	_ = r.Close()
	logger.Info("consumer stopped")
}

// MessageReader is the part of *kafka.Reader the tail loop needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type tailer struct {
	reader     MessageReader
	logger     *slog.Logger
	backoff    time.Duration
	maxBackoff time.Duration

	// tallies since start; only the run goroutine touches them
	consumed map[negotiation.EventKind]int
	invalid  int
	failed   int
}

func newTailer(r MessageReader, logger *slog.Logger) *tailer {
	return &tailer{
		reader:     r,
		logger:     logger,
		backoff:    time.Second,
		maxBackoff: 30 * time.Second,
		consumed:   make(map[negotiation.EventKind]int),
	}
}

// run reads until ctx is done, backing off on read errors.
func (t *tailer) run(ctx context.Context) error {
	backoff := t.backoff
	for {
		m, err := t.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			readErrors.Inc()
			t.failed++
			t.logger.Warn("kafka read error", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, t.maxBackoff)
			continue
		}
		backoff = t.backoff

		e, err := decodeEvent(m)
		if err != nil {
			eventsInvalid.Inc()
			t.invalid++
			t.logger.Warn("invalid message", "error", err, "offset", m.Offset, "partition", m.Partition)
			continue
		}
		eventsConsumed.WithLabelValues(string(e.Kind)).Inc()
		t.consumed[e.Kind]++
		t.logger.Info("ride event",
			"seq", e.Seq,
			"kind", e.Kind,
			"ride_id", e.RideID,
			"offer_id", e.OfferID,
			"account_id", e.AccountID,
			"at", e.At,
		)
	}
}

func decodeEvent(m kafka.Message) (negotiation.Event, error) {
	var e negotiation.Event
	if err := json.Unmarshal(m.Value, &e); err != nil {
		return e, fmt.Errorf("decode: %w", err)
	}
	if e.Kind == "" {
		return e, errors.New("event without kind")
	}
	return e, nil
}
