package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"

	"arxclient.ai/internal/client"
	"arxclient.ai/internal/config"
	"arxclient.ai/internal/observability"
	"arxclient.ai/internal/persistence/framelog"
	"arxclient.ai/internal/protocol"
	"arxclient.ai/internal/session"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to client.yaml (optional)")
		character  = flag.String("character", "", "character id to play")
		replay     = flag.String("replay", "", "replay a frame archive (.jsonl.zst) instead of connecting")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := observability.InitLogger("arx-tail", "info")
		bootLogger.Fatal().Err(err).Msg("config")
	}
	logger := observability.InitLogger("arx-tail", cfg.LogLevel)

	if *replay != "" {
		if err := replayFile(os.Stdout, *replay, *character); err != nil {
			logger.Fatal().Err(err).Msg("replay")
		}
		return
	}
	if strings.TrimSpace(*character) == "" {
		logger.Fatal().Msg("-character is required")
	}
	if err := play(logger, cfg, session.CharacterID(*character)); err != nil {
		logger.Fatal().Err(err).Msg("tail")
	}
}

// play connects one character, prints every transcript line and sends each
// stdin line as a text frame.
func play(logger zerolog.Logger, cfg config.Config, id session.CharacterID) error {
	store := session.NewStore(session.StoreConfig{
		OnAppend: func(_ session.CharacterID, e session.TranscriptEntry) {
			printEntry(os.Stdout, e)
		},
	})
	store.StartSession(id)

	mgr, err := client.NewManager(client.Config{
		URLFor:           func(id session.CharacterID) string { return cfg.URLFor(string(id)) },
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		ReadTimeout:      cfg.Server.ReadTimeout,
		OnRoulette: func(_ session.CharacterID, r protocol.RouletteResult) {
			fmt.Fprintf(os.Stdout, "[roulette] %s\n", r.Kwargs["result"])
		},
		Logger: logger,
	}, store)
	if err != nil {
		return err
	}
	defer mgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := mgr.Connect(ctx, id); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := mgr.Send(id, line); err != nil {
				logger.Warn().Err(err).Msg("send")
				if mgr.State(id) == client.StateClosed {
					return nil
				}
			}
		}
	}
}

// replayFile folds archived inbound frames through a fresh store and prints
// the transcript they produce. An empty character replays every character.
func replayFile(out io.Writer, path, character string) error {
	recs, err := framelog.ReadFile(path)
	if err != nil {
		return err
	}
	store := session.NewStore(session.StoreConfig{
		OnAppend: func(id session.CharacterID, e session.TranscriptEntry) {
			fmt.Fprintf(out, "%s ", id)
			printEntry(out, e)
		},
	})
	for _, r := range recs {
		if r.Direction != framelog.Inbound {
			continue
		}
		if character != "" && r.Character != character {
			continue
		}
		id := session.CharacterID(r.Character)
		if !store.Has(id) {
			store.StartSession(id)
		}
		store.ApplyEvent(id, protocol.Decode(r.Frame))
	}

	for _, id := range store.IDs() {
		s, _ := store.Get(id)
		room := "-"
		if s.Room != nil {
			room = s.Room.Name
		}
		scene := "-"
		if s.Scene != nil {
			scene = s.Scene.Name
		}
		fmt.Fprintf(out, "%s: room=%s scene=%s commands=%d lines=%d\n", id, room, scene, len(s.Commands), len(s.Transcript))
	}
	return nil
}

func printEntry(out io.Writer, e session.TranscriptEntry) {
	fmt.Fprintf(out, "[%s] %s\n", e.Kind, e.Content)
}
