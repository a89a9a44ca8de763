// Package serverrun wires the whole core together: config, store, event
// stream, mutation pipeline, fan-out, crew synchronizer. Everything is built
// by explicit construction here; nothing reaches for globals.
package serverrun

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/config"
	"github.com/crewbase/crewbase/pkg/crewsync"
	"github.com/crewbase/crewbase/pkg/delivery"
	"github.com/crewbase/crewbase/pkg/delivery/emailsender"
	"github.com/crewbase/crewbase/pkg/delivery/telegramsender"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/eventstream"
	"github.com/crewbase/crewbase/pkg/eventstream/memory"
	"github.com/crewbase/crewbase/pkg/fanout"
	"github.com/crewbase/crewbase/pkg/model/mnotification"
	"github.com/crewbase/crewbase/pkg/mutation"
	"github.com/crewbase/crewbase/pkg/service/saccount"
	"github.com/crewbase/crewbase/pkg/service/screw"
	"github.com/crewbase/crewbase/pkg/service/sfunding"
	"github.com/crewbase/crewbase/pkg/service/snotification"
	"github.com/crewbase/crewbase/pkg/service/spost"
	"github.com/crewbase/crewbase/pkg/service/ssetting"
	"github.com/crewbase/crewbase/pkg/service/stask"
)

// Server is the fully wired core. The transport layer takes the Pipeline for
// mutations and the Streamer for live updates.
type Server struct {
	DB       *sql.DB
	Pipeline *mutation.Pipeline
	Fanout   *fanout.Fanout
	Crewsync *crewsync.Synchronizer
	Streamer eventstream.SyncStreamer[event.Entity, event.Event]
	Logger   *slog.Logger
}

// Close releases the server's resources.
func (s *Server) Close() {
	s.Streamer.Shutdown()
	s.DB.Close()
}

// Build constructs the whole dependency graph from config.
func Build(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := newLogger(cfg.Log.Level)

	db, err := openDB(ctx, cfg.DB.Path)
	if err != nil {
		return nil, err
	}

	accounts := saccount.New(db)
	tasks := stask.New(db)
	funding := sfunding.New(db)
	posts := spost.New(db)
	crew := screw.New(db)
	notifications := snotification.New(db)
	settings := ssetting.New(db)

	if err := seedSettings(ctx, settings, cfg.Toggles); err != nil {
		db.Close()
		return nil, err
	}

	streamer := memory.NewInMemorySyncStreamer[event.Entity, event.Event]()
	publisher := mutation.NewStreamPublisher(streamer)

	resolver := capability.NewResolver(settingToggles{settings: settings, defaults: cfg.Toggles})
	pipeline := mutation.New(mutation.Deps{
		DB:            db,
		Authz:         resolver,
		Accounts:      accounts,
		Tasks:         tasks,
		Funding:       funding,
		Posts:         posts,
		Notifications: notifications,
		Publisher:     publisher,
		Logger:        logger,
	})

	senders, err := buildSenders(ctx, cfg.Delivery)
	if err != nil {
		streamer.Shutdown()
		db.Close()
		return nil, err
	}

	fan := fanout.New(fanout.Deps{
		Accounts:      accounts,
		Tasks:         tasks,
		Posts:         posts,
		Notifications: notifications,
		Settings:      settings,
		Streamer:      streamer,
		Publisher:     publisher,
		Senders:       senders,
		Logger:        logger,
	}, fanout.WithTemplates(templateOverrides(cfg.Templates)))

	sync := crewsync.New(crewsync.Deps{
		Accounts: accounts,
		Crew:     crew,
		Settings: settings,
		Streamer: streamer,
		Logger:   logger,
	})

	return &Server{
		DB:       db,
		Pipeline: pipeline,
		Fanout:   fan,
		Crewsync: sync,
		Streamer: streamer,
		Logger:   logger,
	}, nil
}

func Run() error {
	configPath := flag.String("config", "", "path to YAML config")
	rebuildRoster := flag.Bool("rebuild-roster", false, "force a full crew roster rebuild on start")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	if err := srv.Crewsync.Bootstrap(ctx, *rebuildRoster); err != nil {
		return fmt.Errorf("crew bootstrap: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(srv.Fanout.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(srv.Crewsync.Run(gctx)) })

	srv.Logger.Info("server started", slog.String("db", cfg.DB.Path))
	<-ctx.Done()
	srv.Logger.Info("shutting down")
	srv.Streamer.Shutdown()
	return g.Wait()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection sidesteps SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	for _, create := range []func(context.Context, *sql.DB) error{
		saccount.CreateTables,
		stask.CreateTables,
		sfunding.CreateTables,
		spost.CreateTables,
		screw.CreateTables,
		snotification.CreateTables,
		ssetting.CreateTables,
	} {
		if err := create(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return db, nil
}

// seedSettings writes config defaults for any setting not yet present, so
// runtime edits in the settings table survive restarts.
func seedSettings(ctx context.Context, settings ssetting.SettingService, toggles config.Toggles) error {
	seed := map[string]string{
		ssetting.KeyNotificationsEnabled:  boolString(toggles.NotificationsEnabled),
		ssetting.KeyVolunteerCreatesTasks: boolString(toggles.VolunteerCreatesTasks),
		ssetting.KeyEditWindowMinutes:     fmt.Sprintf("%d", toggles.EditWindowMinutes),
	}
	for key, value := range seed {
		if _, ok, err := settings.Get(ctx, key); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := settings.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func boolString(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// settingToggles backs the capability rules with the DB settings, falling
// back to the config defaults when a key is missing or unreadable.
type settingToggles struct {
	settings ssetting.SettingService
	defaults config.Toggles
}

func (t settingToggles) VolunteerCreatesTasks() bool {
	v, err := t.settings.GetBool(context.Background(), ssetting.KeyVolunteerCreatesTasks, t.defaults.VolunteerCreatesTasks)
	if err != nil {
		return t.defaults.VolunteerCreatesTasks
	}
	return v
}

func (t settingToggles) EditWindow() time.Duration {
	m, err := t.settings.GetInt(context.Background(), ssetting.KeyEditWindowMinutes, t.defaults.EditWindowMinutes)
	if err != nil || m <= 0 {
		m = t.defaults.EditWindowMinutes
	}
	return time.Duration(m) * time.Minute
}

func buildSenders(ctx context.Context, cfg config.Delivery) ([]delivery.Sender, error) {
	var senders []delivery.Sender
	if cfg.Email.Enabled {
		email, err := emailsender.New(ctx, cfg.Email.AccessKey, cfg.Email.SecretKey, cfg.Email.Region, cfg.Email.From)
		if err != nil {
			return nil, fmt.Errorf("email sender: %w", err)
		}
		senders = append(senders, email)
	}
	if cfg.Telegram.Enabled {
		telegram, err := telegramsender.New(cfg.Telegram.Token, cfg.Telegram.Chats)
		if err != nil {
			return nil, fmt.Errorf("telegram sender: %w", err)
		}
		senders = append(senders, telegram)
	}
	return senders, nil
}

func templateOverrides(raw map[string]string) fanout.Templates {
	out := make(fanout.Templates, len(raw))
	for kind, subject := range raw {
		out[mnotification.Kind(kind)] = subject
	}
	return out
}

func ignoreCancel(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
