package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shop-analytics/internal/aggregate"
	"shop-analytics/internal/config"
	ikafka "shop-analytics/internal/kafka"
	"shop-analytics/internal/model"
	"shop-analytics/internal/store"
	"shop-analytics/pkg/buffer"
)

var (
	msgsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregator_msgs_consumed_total",
		Help: "Total messages consumed from the behavior topic",
	})
	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregator_decode_errors_total",
		Help: "Messages that could not be decoded as events",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregator_events_dropped_total",
		Help: "Events discarded for an absent or unrecognized action",
	})
	eventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregator_events_skipped_total",
		Help: "Recognized but currently unhandled events (SHOP_VISIT)",
	})
	applyErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregator_apply_errors_total",
		Help: "Per-event persistence failures across both aggregation stages",
	})
	batchSizeHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aggregator_batch_size",
		Help:    "Histogram of drained batch sizes",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
	})
	drainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aggregator_drain_duration_seconds",
		Help:    "Duration of batch drain processing",
		Buckets: prometheus.DefBuckets,
	})
	consumerLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aggregator_consumer_lag",
		Help: "Current consumer lag reported by kafka-go",
	})
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway, err := store.NewClickHouse(ctx, cfg.ClickHouseDSN)
	if err != nil {
		log.Fatalf("clickhouse: %v", err)
	}
	defer gateway.Close()
	if err := gateway.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	reader := ikafka.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicBehavior, cfg.ConsumerGroup)
	defer reader.Close()

	processor := aggregate.NewProcessor(gateway, cfg.ApplyTimeout)
	drain := func(batch []model.Event) error {
		start := time.Now()
		// Not bound to the consumer context: the final drain on shutdown
		// still has to land buffered events. Each apply carries its own
		// timeout.
		report := processor.Process(context.Background(), batch)
		drainDuration.Observe(time.Since(start).Seconds())
		batchSizeHistogram.Observe(float64(len(batch)))
		eventsDropped.Add(float64(report.Dropped))
		eventsSkipped.Add(float64(report.Skipped))
		applyErrors.Add(float64(len(report.Errors)))
		for _, e := range report.Errors {
			log.Printf("apply %s (user=%s product=%s stage=%s): %v",
				e.Action, e.UserID, e.ProductID, e.Stage, e.Err)
		}
		return nil
	}
	queue := buffer.New[model.Event](cfg.DrainInterval, drain)

	go serveMetrics(cfg.AggregatorMetricsAddr)
	go handleSignals(cancel)

	log.Printf("aggregator consuming %s, draining every %s", cfg.KafkaTopicBehavior, cfg.DrainInterval)
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("read kafka: %v", err)
			time.Sleep(time.Second)
			continue
		}
		msgsConsumed.Inc()
		stats := reader.Stats()
		consumerLag.Set(float64(stats.Lag))

		var evt model.Event
		if err := json.Unmarshal(m.Value, &evt); err != nil {
			decodeErrors.Inc()
			log.Printf("decode event: %v", err)
			continue
		}
		queue.Enqueue(evt)
	}

	if err := queue.Close(); err != nil {
		log.Printf("final drain: %v", err)
	}
	log.Println("aggregator shutdown complete")
}

func handleSignals(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("metrics server failed: %v", err)
	}
}
