package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fredo838/sparp/pool"
)

type cliConfig struct {
	in  string
	out string

	concurrency int
	timeout     time.Duration
	maxSoft     int
	maxTimeout  int
	queue       int
	rps         float64
	progress    string
	estimate    int64
	stop        pool.StopConditions

	okCodes   string
	softCodes string

	metricsAddr string
	pgDSN       string
	pgTable     string
	pgBatch     int

	jsonLogs bool
	logLevel string
}

func parseFlags(args []string, stderr io.Writer) (cliConfig, error) {
	var c cliConfig
	fs := flag.NewFlagSet("sparp", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&c.in, "in", envString("SPARP_IN", "-"), "JSON-lines request file, - for stdin")
	fs.StringVar(&c.out, "out", envString("SPARP_OUT", ""), "JSON-lines result file, - for stdout, empty to skip")
	fs.IntVar(&c.concurrency, "concurrency", envInt("SPARP_CONCURRENCY", 100), "number of concurrent requests")
	fs.DurationVar(&c.timeout, "timeout", envDuration("SPARP_TIMEOUT", 30*time.Second), "per-request deadline")
	fs.IntVar(&c.maxSoft, "max-soft-retries", envInt("SPARP_MAX_SOFT_RETRIES", 20), "retries per item after soft failures")
	fs.IntVar(&c.maxTimeout, "max-timeout-retries", envInt("SPARP_MAX_TIMEOUT_RETRIES", 20), "retries per item after timeouts")
	fs.IntVar(&c.queue, "queue", envInt("SPARP_QUEUE", 100), "requests read ahead of the workers")
	fs.Float64Var(&c.rps, "rps", envFloat("SPARP_RPS", 0), "max requests started per second, 0 for unlimited")
	fs.StringVar(&c.progress, "progress", envString("SPARP_PROGRESS", "off"), "progress output: off, line or bar")
	fs.Int64Var(&c.estimate, "estimate", int64(envInt("SPARP_ESTIMATE", 0)), "expected number of requests, for progress")

	fs.BoolVar(&c.stop.StopOnSuccess, "stop-on-success", envBool("SPARP_STOP_ON_SUCCESS", false), "stop at the first success")
	fs.BoolVar(&c.stop.StopOnSoftFail, "stop-on-soft-fail", envBool("SPARP_STOP_ON_SOFT_FAIL", false), "stop at the first soft failure")
	fs.BoolVar(&c.stop.StopOnHardFail, "stop-on-hard-fail", envBool("SPARP_STOP_ON_HARD_FAIL", false), "stop at the first hard failure")
	fs.BoolVar(&c.stop.StopOnTimeout, "stop-on-timeout", envBool("SPARP_STOP_ON_TIMEOUT", false), "stop at the first timeout")
	fs.BoolVar(&c.stop.StopOnSoftExhausted, "stop-on-soft-exhausted", envBool("SPARP_STOP_ON_SOFT_EXHAUSTED", false), "stop when an item runs out of soft retries")
	fs.BoolVar(&c.stop.StopOnTimeoutExhausted, "stop-on-timeout-exhausted", envBool("SPARP_STOP_ON_TIMEOUT_EXHAUSTED", false), "stop when an item runs out of timeout retries")

	fs.StringVar(&c.okCodes, "ok-codes", envString("SPARP_OK_CODES", "200"), "comma-separated success status codes")
	fs.StringVar(&c.softCodes, "soft-codes", envString("SPARP_SOFT_CODES", "429,502,503"), "comma-separated retryable status codes")

	fs.StringVar(&c.metricsAddr, "metrics", envString("SPARP_METRICS", ""), "address to serve /metrics on, empty to disable")
	fs.StringVar(&c.pgDSN, "pg-dsn", envString("PG_DSN", ""), "PostgreSQL DSN to export results to, empty to disable")
	fs.StringVar(&c.pgTable, "pg-table", envString("SPARP_PG_TABLE", "sparp_results"), "PostgreSQL table for exported results")
	fs.IntVar(&c.pgBatch, "pg-batch", envInt("SPARP_PG_BATCH", 500), "rows per export batch")

	fs.BoolVar(&c.jsonLogs, "json-logs", envBool("SPARP_JSON_LOGS", false), "log as JSON")
	fs.StringVar(&c.logLevel, "log-level", envString("SPARP_LOG_LEVEL", "info"), "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return c, err
	}

	switch c.progress {
	case "off", "line", "bar":
	default:
		return c, fmt.Errorf("invalid -progress %q", c.progress)
	}
	if c.in == "" {
		return c, errors.New("-in is required")
	}
	return c, nil
}

func (c cliConfig) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.logLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseCodes(s string) ([]int, error) {
	var codes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 100 || n > 599 {
			return nil, fmt.Errorf("invalid status code %q", part)
		}
		codes = append(codes, n)
	}
	return codes, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}
