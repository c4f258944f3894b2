// Package main is the entry point for FakeStream.
// FakeStream loads a fixed Avro dataset, splits it into partitions with
// contiguous offsets and serves them through a batch fetch API, so stream
// ingestion code can be exercised without a broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/consumer"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/fixture"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/logger"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Logger.With(zap.String("service", cfg.Service.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := obs.NewMetrics(cfg.Service.Name, prometheus.DefaultRegisterer)
	opener := fixture.Archive{Path: cfg.Fixture.Path, TempRoot: cfg.Fixture.TempDir, Logger: log}

	topic, err := consumer.LoadTopic(ctx, &cfg.Stream, opener, log, metrics)
	if err != nil {
		log.Fatal("Failed to load topic", zap.Error(err))
	}
	defer topic.Close()

	if err := drainTopic(ctx, topic, log); err != nil {
		log.Error("Draining topic stopped early", zap.Error(err))
	}

	if cfg.Metrics.Port == "" {
		return
	}
	if err := obs.StartMetricsServer(ctx, cfg.Metrics.Port, prometheus.DefaultGatherer, topic.LoadErr, log); err != nil {
		log.Error("Metrics server failed", zap.Error(err))
	}
}

// drainTopic reads every partition end to end, committing as it goes, and
// logs what each partition served.
func drainTopic(ctx context.Context, topic *consumer.Topic, log *zap.Logger) error {
	for id := range topic.NumPartitions() {
		pc, err := topic.Partition(id)
		if err != nil {
			return err
		}
		r := consumer.NewReader(pc, topic.Name())

		var count, bytes int
		for {
			msg, err := r.FetchMessage(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				r.Close()
				return err
			}
			count++
			bytes += len(msg.Value)
			if err := r.CommitMessages(ctx, msg); err != nil {
				r.Close()
				return err
			}
		}
		r.Close()

		log.Info("Drained partition",
			zap.String("topic", topic.Name()),
			zap.Int("partition", id),
			zap.Int("messages", count),
			zap.Int("bytes", bytes),
			zap.Int64("committed", r.Committed()),
			zap.NamedError("loadError", pc.LoadErr()),
		)
	}
	return nil
}
