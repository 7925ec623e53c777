// Command sparp sends a stream of HTTP requests with bounded concurrency,
// retrying rate-limited and timed-out requests, and reports what happened.
//
// Requests are read as JSON lines:
//
//	{"method":"POST","url":"https://example.com/api","json":{"value":1}}
//
// Usage:
//
//	sparp -in requests.jsonl -out results.jsonl -concurrency 50 -progress bar
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fredo838/sparp/internal/export"
	"github.com/fredo838/sparp/metrics"
	"github.com/fredo838/sparp/pool"
	"github.com/fredo838/sparp/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := newLogger(cfg, stderr)

	okCodes, err := parseCodes(cfg.okCodes)
	if err != nil {
		logger.Error("bad -ok-codes", slog.Any("error", err))
		return 2
	}
	softCodes, err := parseCodes(cfg.softCodes)
	if err != nil {
		logger.Error("bad -soft-codes", slog.Any("error", err))
		return 2
	}

	in, closeIn, err := openInput(cfg.in, stdin)
	if err != nil {
		logger.Error("open input", slog.Any("error", err))
		return 1
	}
	defer closeIn()

	opts := []pool.Option{
		pool.WithParser(transport.DefaultParser),
		pool.WithConcurrency(cfg.concurrency),
		pool.WithRequestTimeout(cfg.timeout),
		pool.WithMaxRetriesBySoftFail(cfg.maxSoft),
		pool.WithMaxRetriesByTimeout(cfg.maxTimeout),
		pool.WithQueueCapacity(cfg.queue),
		pool.WithStopConditions(cfg.stop),
		pool.WithEstimatedTotal(cfg.estimate),
		pool.WithLogger(logger),
	}
	if cfg.rps > 0 {
		opts = append(opts, pool.WithRateLimit(cfg.rps, max(1, int(cfg.rps))))
	}
	if cfg.progress != "off" {
		style := pool.ProgressLine
		if cfg.progress == "bar" {
			style = pool.ProgressBar
		}
		opts = append(opts,
			pool.WithProgressBar(true),
			pool.WithProgressRenderer(style),
			pool.WithProgressOutput(stderr),
		)
	}

	if cfg.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, pool.WithObserver(metrics.NewPrometheusObserver(reg)))
		shutdown := serveMetrics(cfg.metricsAddr, reg, logger)
		defer shutdown()
	}

	classifier := transport.StatusClassifier{Success: okCodes, Soft: softCodes}
	runner, err := pool.NewRunner[transport.Request, *transport.Response, transport.ParsedResponse](
		transport.NewClient(transport.WithDefaultHeader("User-Agent", "sparp")),
		classifier.Classify,
		opts...,
	)
	if err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		return 2
	}

	start := time.Now()
	res, runErr := runner.Run(ctx, transport.ReadRequests(in))
	elapsed := time.Since(start)

	code := 0
	if runErr != nil {
		code = 1
	}

	if cfg.out != "" {
		if err := saveResults(cfg.out, stdout, res); err != nil {
			logger.Error("write results", slog.Any("error", err))
			code = 1
		}
	}

	if cfg.pgDSN != "" {
		if err := exportResults(ctx, cfg, res, logger); err != nil {
			logger.Error("export results", slog.Any("error", err))
			code = 1
		}
	}

	printSummary(stderr, res.Stats, elapsed, runErr)
	return code
}

func newLogger(cfg cliConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.level()}
	if cfg.jsonLogs {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func saveResults(path string, stdout io.Writer, res pool.Result[transport.Request, transport.ParsedResponse]) error {
	if path == "-" {
		return writeResults(stdout, res)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeResults(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.Any("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func exportResults(ctx context.Context, cfg cliConfig, res pool.Result[transport.Request, transport.ParsedResponse], logger *slog.Logger) error {
	// the run may have been interrupted; the export still gets a bounded window
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	db, err := export.Connect(ctx, cfg.pgDSN, 4)
	if err != nil {
		return err
	}
	defer db.Close()

	exp, err := export.NewPostgresExporter(db, "", cfg.pgTable, cfg.pgBatch)
	if err != nil {
		return err
	}
	if err := exp.EnsureTable(ctx); err != nil {
		return err
	}

	rows, err := export.Rows(res)
	if err != nil {
		return err
	}

	runID := newRunID()
	n, err := exp.Export(ctx, runID, rows)
	if err != nil {
		return err
	}
	logger.Info("exported results", slog.String("run_id", runID), slog.Int("rows", n))
	return nil
}

func newRunID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return time.Now().UTC().Format("20060102T150405") + "-" + hex.EncodeToString(b[:])
}
