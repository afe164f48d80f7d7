package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"arxclient.ai/internal/client"
	"arxclient.ai/internal/config"
	"arxclient.ai/internal/control"
	"arxclient.ai/internal/observability"
	"arxclient.ai/internal/persistence/framelog"
	"arxclient.ai/internal/persistence/transcriptdb"
	"arxclient.ai/internal/protocol"
	"arxclient.ai/internal/roster"
	"arxclient.ai/internal/session"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to client.yaml (optional)")
		listen      = flag.String("listen", "", "control listen address (overrides config)")
		allowRemote = flag.Bool("allow-remote", false, "allow binding the control api to a non-loopback address")
		autoConnect = flag.Bool("autoconnect", false, "start and connect every configured character at boot")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := observability.InitLogger("arx-client", "info")
		bootLogger.Fatal().Err(err).Msg("config")
	}
	if strings.TrimSpace(*listen) != "" {
		cfg.Control.Listen = strings.TrimSpace(*listen)
	}
	logger := observability.InitLogger("arx-client", cfg.LogLevel)

	if !*allowRemote && !isLoopbackListenAddress(cfg.Control.Listen) {
		logger.Fatal().Str("listen", cfg.Control.Listen).Msg("refusing non-loopback control bind without -allow-remote")
	}

	storeCfg := session.StoreConfig{}
	var history control.History
	if cfg.Storage.TranscriptDB != "" {
		db, err := transcriptdb.OpenSQLite(cfg.Storage.TranscriptDB, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("transcript db")
		}
		defer db.Close()
		storeCfg.OnAppend = db.RecordEntry
		history = db
	}
	store := session.NewStore(storeCfg)

	var frames client.FrameRecorder
	if cfg.Storage.FrameLogDir != "" {
		w := framelog.NewWriter(cfg.Storage.FrameLogDir, "frames")
		defer w.Close()
		frames = w
	}

	mgr, err := client.NewManager(client.Config{
		URLFor:           func(id session.CharacterID) string { return cfg.URLFor(string(id)) },
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		ReadTimeout:      cfg.Server.ReadTimeout,
		StateFile:        cfg.Storage.StateFile,
		Frames:           frames,
		OnRoulette:       rouletteLogger(logger),
		Logger:           logger,
	}, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("client")
	}
	defer mgr.Close()

	rp := roster.NewPoller(roster.Config{
		URL:      cfg.Roster.URL,
		Interval: cfg.Roster.PollInterval,
		Logger:   logger,
		Static:   cfg.Characters,
	})

	srv, err := control.NewServer(control.Config{
		Store:       store,
		Connections: mgr,
		History:     history,
		Roster:      rp,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("control")
	}

	httpSrv := &http.Server{
		Addr:              cfg.Control.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	go rp.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	if *autoConnect {
		go connectAll(ctx, logger, store, mgr, cfg.Characters)
	}

	logger.Info().Str("listen", cfg.Control.Listen).Str("server", cfg.Server.URLTemplate).Msg("control api listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("listen")
	}
}

// connectAll starts a session per character, leaving the first one active.
func connectAll(ctx context.Context, logger zerolog.Logger, store *session.Store, mgr *client.Manager, ids []string) {
	for i := len(ids) - 1; i >= 0; i-- {
		store.StartSession(session.CharacterID(ids[i]))
	}
	for _, id := range ids {
		if err := mgr.Connect(ctx, session.CharacterID(id)); err != nil {
			logger.Warn().Err(err).Str("character", id).Msg("autoconnect failed")
		}
	}
}

func rouletteLogger(logger zerolog.Logger) func(session.CharacterID, protocol.RouletteResult) {
	return func(id session.CharacterID, r protocol.RouletteResult) {
		ev := logger.Info().Str("character", string(id))
		if res, ok := r.Kwargs["result"]; ok {
			ev = ev.RawJSON("result", res)
		}
		ev.Msg("roulette")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackListenAddress(addr string) bool {
	host := strings.TrimSpace(addr)
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = strings.TrimSpace(h)
	}
	host = strings.Trim(strings.TrimSpace(host), "[]")
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
