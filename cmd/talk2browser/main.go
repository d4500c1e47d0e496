// Command talk2browser is the browser interaction recording daemon.
//
// Usage:
//
//	talk2browser -config session.yaml            # full session from config
//	talk2browser -config session.yaml -mcp       # serve planner tools on stdio
//	talk2browser -config session.yaml -replay actions.json
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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	_ "modernc.org/sqlite"

	"github.com/talk2silicon/talk2browser/browser"
	"github.com/talk2silicon/talk2browser/internal/store"
	"github.com/talk2silicon/talk2browser/recorder"
	"github.com/talk2silicon/talk2browser/session"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to session.yaml config file")
	serveMCP := flag.Bool("mcp", false, "serve planner tools over MCP on stdio")
	replayPath := flag.String("replay", "", "replay a persisted action log and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *serveMCP, *replayPath); err != nil {
		logger.Error("talk2browser: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, serveMCP bool, replayPath string) error {
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: talk2browser -config <file> [-mcp] [-replay <log>]")
		os.Exit(1)
	}

	cfg, err := session.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, err := session.FromConfig(cfg, session.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headless:  cfg.Browser.Headless,
		Stealth:   cfg.Browser.Stealth,
		Logger:    logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	if err := s.BindBrowser(ctx, mgr, cfg.Browser.ActionTimeout); err != nil {
		return err
	}

	var archive *store.Store
	if cfg.Archive != "" {
		archive, err = store.Open(cfg.Archive)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
	}

	if cfg.Control.Addr != "" {
		r := chi.NewRouter()
		s.RegisterControl(r)
		ctrl := &http.Server{Addr: cfg.Control.Addr, Handler: r}
		go func() {
			logger.Info("control surface listening", "addr", cfg.Control.Addr)
			if err := ctrl.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("control surface failed", "error", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ctrl.Shutdown(shutCtx)
		}()
	}

	if replayPath != "" {
		records, err := recorder.LoadFile(replayPath)
		if err != nil {
			return fmt.Errorf("load replay log: %w", err)
		}
		if err := s.ReplayLog(ctx, records); err != nil {
			return err
		}
	} else if serveMCP {
		srv := mcp.NewServer(&mcp.Implementation{Name: "talk2browser", Version: version}, nil)
		s.RegisterMCP(srv)
		logger.Info("serving MCP on stdio", "session", s.ID)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp: %w", err)
		}
	} else {
		// Manual recording: the browser window is the UI, the control
		// surface is the mode toggle. Run until interrupted.
		logger.Info("recording", "session", s.ID, "task", cfg.Task)
		<-ctx.Done()
	}

	// Finalize with a fresh context: the signal context is already done
	// on the interrupt path.
	finCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	paths, err := s.Finalize(finCtx, cfg.Output.Dir, cfg.Output.Dialects, archive)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}
