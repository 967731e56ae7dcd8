package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"zipdive/internal/api"
	"zipdive/internal/archive"
	"zipdive/internal/config"
	fileutil "zipdive/internal/file"
	"zipdive/internal/layer"
	"zipdive/internal/session"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type runFlags struct {
	input    string
	output   string
	password string
	manual   bool
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	args := os.Args[1:]
	runMode := false
	if len(args) > 0 && (args[0] == "run" || args[0] == "serve") {
		runMode = args[0] == "run"
		args = args[1:]
	}

	flags := pflag.NewFlagSet("zipdive", pflag.ExitOnError)
	configPath := flags.String("config", "config.yml", "path to the YAML config file")
	port := flags.Int("port", 0, "HTTP port (overrides config)")
	dataDir := flags.String("data-dir", "", "directory for session snapshots (overrides config)")
	toolPath := flags.String("tool", "", "path to the 7-Zip binary (overrides config)")
	logLevel := flags.String("log-level", "", "zerolog level (overrides config)")
	var run runFlags
	if runMode {
		flags.StringVarP(&run.input, "input", "i", "", "directory to scan for archives")
		flags.StringVarP(&run.output, "output", "o", "", "directory receiving numbered layer folders")
		flags.StringVarP(&run.password, "password", "p", "", "password passed to every extraction")
		flags.BoolVar(&run.manual, "manual", false, "stop after layer 1 instead of descending")
	}
	_ = flags.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *toolPath != "" {
		cfg.ToolPath = *toolPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	manager := buildManager(cfg)
	baseCtx, baseCancel := context.WithCancel(context.Background())
	manager.SetBaseContext(baseCtx)

	if runMode {
		os.Exit(runOnce(manager, baseCancel, run))
	}
	serve(cfg, manager, baseCancel)
}

func buildManager(cfg config.Config) *session.Manager {
	tool, err := archive.NewSevenZip(cfg.ToolPath, cfg.ExtractTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("no extraction tool")
	}
	log.Info().Str("tool", tool.Binary).Strs("extensions", cfg.Extensions).Msg("extraction tool configured")

	return session.NewManager(session.Options{
		DataDir:                  cfg.DataDir,
		Extensions:               cfg.Extensions,
		Extractor:                tool,
		MaxConcurrentExtractions: cfg.MaxConcurrentExtractions,
		AutoAdvance:              cfg.AutoAdvance,
	})
}

func serve(cfg config.Config, manager *session.Manager, baseCancel context.CancelFunc) {
	router := setupRouter()
	apiHandler := api.NewAPI(manager)
	apiHandler.RegisterRoutes(router)
	apiHandler.RegisterUIRoutes(router)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()

	gracefulShutdown(srv, baseCancel, manager, shutdownTimeout)
}

// runOnce drives a single session from the command line and returns the
// process exit code.
func runOnce(manager *session.Manager, baseCancel context.CancelFunc, run runFlags) int {
	defer baseCancel()

	auto := !run.manual
	sess, err := manager.Create(session.StartRequest{
		Input:       run.input,
		Output:      run.output,
		Password:    run.password,
		AutoAdvance: &auto,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return 2
	}
	_, events, cancel := sess.Subscribe()
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	for {
		select {
		case ev, open := <-events:
			if !open {
				return report(sess.Snapshot())
			}
			logEvent(ev)
			if layerFailed(sess, ev.Layer) || (run.manual && ev.Kind == layer.EventLayerFinished) {
				return waitAndReport(sess, shutdownTimeout)
			}
		case <-quit:
			log.Warn().Msg("interrupted, stopping extraction")
			baseCancel()
			waitAndReport(sess, shutdownTimeout)
			return 130
		}
	}
}

func logEvent(ev layer.Event) {
	entry := log.Info()
	switch {
	case ev.Kind == layer.EventFailed:
		entry = log.Error().Str("error", ev.Error)
	case ev.Kind == layer.EventExtracted && ev.Error != "":
		entry = log.Warn().Str("error", ev.Error)
	}
	entry = entry.Int("layer", ev.Layer).Str("event", string(ev.Kind))
	switch ev.Kind {
	case layer.EventSearching:
		entry = entry.Int("archives", len(ev.Archives))
	case layer.EventExtracted:
		entry = entry.Int("file_index", ev.FileIndex)
	}
	entry.Msg("layer event")
}

// layerFailed covers explicit failed events as well as layers that turned
// fatal on an io error or a short finish.
func layerFailed(sess *session.Session, depth int) bool {
	snap := sess.Snapshot()
	return depth >= 1 && depth <= len(snap.Layers) && snap.Layers[depth-1].State == layer.StateError
}

func waitAndReport(sess *session.Session, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if !sess.WaitIdle(ctx) {
		log.Warn().Msg("extraction workers did not finish before timeout")
	}
	return report(sess.Snapshot())
}

func report(snap session.Snapshot) int {
	code := 0
	for _, l := range snap.Layers {
		for _, task := range l.FailedTasks() {
			log.Warn().Int("layer", l.Depth).Str("archive", task.DisplayPath).Str("error", task.Error).Msg("archive not extracted")
		}
		if l.Error != "" {
			log.Error().Int("layer", l.Depth).Str("error", l.Error).Msg("layer failed")
			code = 1
		}
	}
	log.Info().Str("session_id", snap.ID).Str("state", string(snap.State)).Int("layers", len(snap.Layers)).
		Str("output", snap.OutputRoot).Msg("extraction done")
	return code
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	return r
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, manager *session.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	done := manager.WaitAll(ctx)
	if !done {
		log.Warn().Msg("extraction workers did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
