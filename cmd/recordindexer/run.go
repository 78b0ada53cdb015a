package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/internal/chainclient/evm"
	"github.com/ava-labs/record-indexer/pkg/backscan"
	"github.com/ava-labs/record-indexer/pkg/clickhouse"
	"github.com/ava-labs/record-indexer/pkg/data/clickhouse/recordsrepo"
	"github.com/ava-labs/record-indexer/pkg/kafka"
	"github.com/ava-labs/record-indexer/pkg/metrics"
	"github.com/ava-labs/record-indexer/pkg/scheduler"
	"github.com/ava-labs/record-indexer/pkg/snapshot"
	"github.com/ava-labs/record-indexer/pkg/utils"
)

const metricsShutdownTimeout = 5 * time.Second

// chain bundles the event source and the optional metrics server of a
// chain-reading command.
type chain struct {
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics // nil if metrics disabled
	server    *metrics.Server  // nil if metrics disabled
	serverErr <-chan error
	client    *evm.Client
	source    chainclient.EventSource
}

func openChain(ctx context.Context, cfg *SourceConfig, log *zap.SugaredLogger) (*chain, error) {
	ch := &chain{log: log}

	if cfg.MetricsPort != 0 {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := metrics.NewWithLabels(registry, cfg.MetricsLabels())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		ch.metrics = m
		ch.server = metrics.NewServer(cfg.MetricsAddr(), registry)
		errCh, err := ch.server.Start()
		if err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		ch.serverErr = errCh
		log.Infof("metrics server listening on http://%s/metrics", ch.server.Addr())
	}

	evmCfg, err := cfg.EVMConfig()
	if err != nil {
		ch.Close()
		return nil, err
	}
	client, err := evm.New(ctx, evmCfg, evm.WithMetrics(ch.metrics))
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}
	ch.client = client
	ch.source = chainclient.WithRetry(client, cfg.RetryPolicy(), log, ch.metrics)
	return ch, nil
}

// watchServer returns when ctx is done or fails when the metrics server stops
// unexpectedly.
func (ch *chain) watchServer(ctx context.Context) error {
	if ch.serverErr == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-ch.serverErr:
		if ok && err != nil {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	}
}

func (ch *chain) Close() {
	if ch.client != nil {
		ch.client.Close()
	}
	if ch.server != nil {
		ch.log.Info("shutting down metrics server")
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := ch.server.Shutdown(ctx); err != nil {
			ch.log.Warnw("metrics server shutdown error", "error", err)
		}
	}
}

func openStore(ctx context.Context, cfg StoreConfig, log *zap.SugaredLogger) (snapshot.Store, error) {
	switch cfg.Backend {
	case storeFile:
		return snapshot.NewFileStore(cfg.Path), nil
	case storeBolt:
		return snapshot.NewBoltStore(cfg.Path, cfg.Name)
	case storeClickHouse:
		chClient, err := clickhouse.New(ctx, cfg.ClickHouse, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		repo, err := recordsrepo.NewRepository(ctx, chClient, log,
			cfg.ClickHouse.Cluster, cfg.ClickHouse.Database, cfg.ClickHouse.SnapshotTable, cfg.Name)
		if err != nil {
			_ = chClient.Close()
			return nil, fmt.Errorf("failed to create snapshot repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Backend)
	}
}

// interrupted reports whether err only says that the user stopped the run.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}

func runSnapshot(c *cli.Context) error {
	cfg, err := buildSnapshotConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Source.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Source.Verbose,
		"rpcURL", cfg.Source.RPCURL,
		"clientType", cfg.Source.ClientType,
		"contract", cfg.Source.Contract,
		"abiFile", cfg.Source.ABIFile,
		"scanStep", cfg.Source.ScanStep,
		"retryBackoff", cfg.Source.RetryBackoff,
		"maxRetries", cfg.Source.MaxRetries,
		"mode", cfg.Mode,
		"records", cfg.Records,
		"fullHistory", cfg.FullHistory,
		"floor", cfg.Floor,
		"cutoff", cfg.Cutoff,
		"interval", cfg.Interval,
		"store", cfg.Store.Backend,
		"output", cfg.Store.Path,
		"snapshotName", cfg.Store.Name,
		"publish", cfg.Publish,
		"kafkaTopic", cfg.Kafka.Topic,
		"metricsPort", cfg.Source.MetricsPort,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, err := openChain(ctx, &cfg.Source, sugar)
	if err != nil {
		return err
	}
	defer ch.Close()

	store, err := openStore(ctx, cfg.Store, sugar)
	if err != nil {
		return err
	}
	defer store.Close()

	g, gctx := errgroup.WithContext(ctx)
	jobCtx, jobDone := context.WithCancel(gctx)
	defer jobDone()

	opts := []backscan.Option{backscan.WithMetrics(ch.metrics)}
	if cfg.Publish {
		producer, err := kafka.NewProducer(gctx, cfg.Kafka.ConfigMap(), sugar)
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		defer producer.Close(cfg.Kafka.FlushTimeout)
		opts = append(opts, backscan.WithPublisher(kafka.NewRecordPublisher(producer, cfg.Kafka.Topic, sugar)))

		g.Go(func() error {
			select {
			case <-jobCtx.Done():
				return nil
			case err, ok := <-producer.Errors():
				if ok && err != nil {
					return fmt.Errorf("kafka producer error: %w", err)
				}
				return nil
			}
		})
	}

	syncer, err := backscan.NewSyncer(ch.source, store, cfg.SyncConfig(), sugar, opts...)
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}

	runSync := func(ctx context.Context) error {
		res, err := syncer.Run(ctx)
		if err != nil {
			return err
		}
		sugar.Infow("snapshot complete",
			"location", store.Location(),
			"records", len(res.Snapshot),
			"added", len(res.Added),
			"chunks", res.Chunks,
			"reason", res.Reason.String(),
		)
		return nil
	}

	g.Go(func() error {
		defer jobDone()
		if cfg.Interval == 0 {
			return runSync(jobCtx)
		}
		return scheduler.Start(jobCtx, cfg.Interval, runSync)
	})
	g.Go(func() error { return ch.watchServer(jobCtx) })

	if err := g.Wait(); err != nil {
		if interrupted(ctx, err) {
			sugar.Warnw("interrupted, the last saved snapshot is kept", "location", store.Location())
			return nil
		}
		return err
	}
	return nil
}

func runHistory(c *cli.Context) error {
	cfg, err := buildHistoryConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Source.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"rpcURL", cfg.Source.RPCURL,
		"clientType", cfg.Source.ClientType,
		"contract", cfg.Source.Contract,
		"scanStep", cfg.Source.ScanStep,
		"window", cfg.Range.Window,
		"fromBlock", cfg.Range.FromBlock,
		"format", cfg.Format,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, err := openChain(ctx, &cfg.Source, sugar)
	if err != nil {
		return err
	}
	defer ch.Close()

	reader := &backscan.Reader{
		Source:  ch.source,
		Step:    cfg.Source.ScanStep,
		Log:     sugar,
		Metrics: ch.metrics,
	}

	g, gctx := errgroup.WithContext(ctx)
	jobCtx, jobDone := context.WithCancel(gctx)
	defer jobDone()

	var (
		head  uint64
		found int
	)
	g.Go(func() error {
		defer jobDone()
		h, recs, err := reader.Read(jobCtx, cfg.Range)
		if err != nil {
			return err
		}
		head, found = h, len(recs)
		return writeRecords(c.App.Writer, cfg.Format, recs)
	})
	g.Go(func() error { return ch.watchServer(jobCtx) })

	if err := g.Wait(); err != nil {
		if interrupted(ctx, err) {
			sugar.Warn("interrupted")
			return nil
		}
		return err
	}

	sugar.Infow("history read", "head", head, "records", found)
	return nil
}
