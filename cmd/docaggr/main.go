package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tina25311/docaggr/aggregate"
	"github.com/tina25311/docaggr/config"
	"github.com/tina25311/docaggr/repomanager"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func usage() {
	fmt.Fprintf(os.Stderr, "NAME:\n")
	fmt.Fprintf(os.Stderr, "\tdocaggr - docaggr aggregates versioned documentation content from git repositories.\n")
	fmt.Fprintf(os.Stderr, "\nUsage:\n")
	fmt.Fprintf(os.Stderr, "\tdocaggr [global options]\n")
	fmt.Fprintf(os.Stderr, "\nGLOBAL OPTIONS:\n")
	fmt.Fprintf(os.Stderr, "\t-log-level value          (default: 'info') Log level [$LOG_LEVEL]\n")
	fmt.Fprintf(os.Stderr, "\t-playbook value           (default: 'playbook.yml') Absolute or relative path to the playbook file. [$DOCAGGR_PLAYBOOK]\n")
	fmt.Fprintf(os.Stderr, "\t-cache-dir value          (default: '.cache') Directory used to store bare repository clones. [$DOCAGGR_CACHE_DIR]\n")
	fmt.Fprintf(os.Stderr, "\t-http-bind-address value  (default: ':9002') The address the metrics web server binds to. [$DOCAGGR_HTTP_BIND]\n")
	fmt.Fprintf(os.Stderr, "\t-one-time                 (default: 'true') Run the aggregation once and exit instead of serving metrics. [$DOCAGGR_ONE_TIME]\n")
	fmt.Fprintf(os.Stderr, "\t-watch-interval value     (default: '5m') How often to re-run the aggregation when -one-time=false. [$DOCAGGR_WATCH_INTERVAL]\n")

	os.Exit(2)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flagLogLevel := flag.String("log-level", envString("LOG_LEVEL", "info"), "Log level")
	flagPlaybook := flag.String("playbook", envString("DOCAGGR_PLAYBOOK", "playbook.yml"), "Path to the playbook file")
	flagCacheDir := flag.String("cache-dir", envString("DOCAGGR_CACHE_DIR", ""), "Directory used to store bare repository clones")
	flagHTTPBind := flag.String("http-bind-address", envString("DOCAGGR_HTTP_BIND", ":9002"), "The address the metrics web server binds to")
	flagOneTime := flag.Bool("one-time", envBool("DOCAGGR_ONE_TIME", true), "Run the aggregation once and exit instead of serving metrics")
	defaultWatchInterval := 5 * time.Minute
	if v, ok := os.LookupEnv("DOCAGGR_WATCH_INTERVAL"); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			defaultWatchInterval = parsed
		}
	}
	flagWatchInterval := flag.Duration("watch-interval", defaultWatchInterval, "How often to re-run the aggregation when -one-time=false")
	flagVersion := flag.Bool("version", false, "docaggr version")

	flag.Usage = usage
	flag.Parse()

	info, _ := debug.ReadBuildInfo()

	if *flagVersion || (flag.NArg() == 1 && flag.Arg(0) == "version") {
		fmt.Printf("version=%s go=%s\n", info.Main.Version, info.GoVersion)
		return
	}

	if v, ok := levelStrings[strings.ToLower(*flagLogLevel)]; ok {
		loggerLevel.Set(v)
	}

	logger.Info("version", "app", info.Main.Version, "go", info.GoVersion)
	logger.Info("playbook", "path", *flagPlaybook)

	registry := prometheus.NewRegistry()
	aggregate.EnableMetrics("", registry)

	if *flagOneTime {
		if err := runOnce(ctx, *flagPlaybook, *flagCacheDir); err != nil {
			logger.Error("aggregation failed", "err", err)
			os.Exit(1)
		}
		return
	}

	runInBackground(ctx, *flagPlaybook, *flagCacheDir, *flagWatchInterval)
	serve(ctx, *flagHTTPBind, registry)
}

func runOnce(ctx context.Context, playbookPath, cacheDir string) error {
	buckets, err := aggregateOnce(ctx, playbookPath, cacheDir)
	if err != nil {
		return err
	}
	logger.Info("aggregation complete", "components", len(buckets))
	return nil
}

// runInBackground drives the continuous-mirror mode (spec.md §7 REDESIGN
// note): it loads the playbook once and hands it to aggregate.Watch, which
// re-runs the full pipeline on interval via repomanager.Manager.Watch until
// ctx is cancelled.
func runInBackground(ctx context.Context, playbookPath, cacheDir string, interval time.Duration) {
	pb, opts, err := loadPlaybook(playbookPath, cacheDir)
	if err != nil {
		logger.Error("unable to load playbook", "err", err)
		return
	}

	go func() {
		err := aggregate.Watch(ctx, pb, opts, interval, func(buckets []*aggregate.ComponentVersionBucket, err error) {
			if err != nil {
				logger.Error("aggregation failed", "err", err)
				return
			}
			logger.Info("aggregation complete", "components", len(buckets))
		})
		if err != nil {
			logger.Error("watch failed", "err", err)
		}
	}()
}

func aggregateOnce(ctx context.Context, playbookPath, cacheDir string) ([]*aggregate.ComponentVersionBucket, error) {
	pb, opts, err := loadPlaybook(playbookPath, cacheDir)
	if err != nil {
		return nil, err
	}
	return aggregate.Run(ctx, pb, opts)
}

func loadPlaybook(playbookPath, cacheDir string) (*config.Playbook, aggregate.Options, error) {
	data, err := os.ReadFile(playbookPath)
	if err != nil {
		return nil, aggregate.Options{}, fmt.Errorf("unable to read playbook %q: %w", playbookPath, err)
	}

	pb, err := config.Parse(data)
	if err != nil {
		return nil, aggregate.Options{}, fmt.Errorf("unable to parse playbook %q: %w", playbookPath, err)
	}

	opts := aggregate.Options{
		PlaybookDir: playbookDirOf(playbookPath),
		CacheDir:    cacheDir,
		GCMode:      repomanager.GCAuto,
		Events:      logEvent,
	}

	return pb, opts, nil
}

func playbookDirOf(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] != '/' {
		i--
	}
	if i < 0 {
		return "."
	}
	return p[:i]
}

func logEvent(e aggregate.Event) {
	switch e.Kind {
	case aggregate.EventCloneStart:
		logger.Debug("clone start", "url", e.URL)
	case aggregate.EventCloneDone:
		logger.Debug("clone done", "url", e.URL)
	case aggregate.EventFetchStart:
		logger.Debug("fetch start", "url", e.URL)
	case aggregate.EventFetchDone:
		logger.Debug("fetch done", "url", e.URL)
	case aggregate.EventNoRefsMatched:
		logger.Info("no refs matched", "url", e.URL)
	case aggregate.EventInfo:
		logger.Info(e.Msg)
	}
	if e.Err != nil {
		logger.Error("aggregation event error", "url", e.URL, "err", e.Err)
	}
}

func serve(ctx context.Context, bindAddr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              bindAddr,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       5 * time.Second,
		ReadHeaderTimeout: 1 * time.Second,
		Handler:           mux,
	}

	go func() {
		logger.Info("starting web server", "addr", bindAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server terminated", "err", err)
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown http server", "err", err)
	}
}
