package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jfloresavalos/InvBF/internal/authority"
	"github.com/jfloresavalos/InvBF/internal/catalog"
	"github.com/jfloresavalos/InvBF/internal/config"
	"github.com/jfloresavalos/InvBF/internal/logging"
	"github.com/jfloresavalos/InvBF/internal/monitor"
	"github.com/jfloresavalos/InvBF/internal/oplog"
	"github.com/jfloresavalos/InvBF/internal/prefs"
	"github.com/jfloresavalos/InvBF/internal/scan"
	"github.com/jfloresavalos/InvBF/internal/state"
	"github.com/jfloresavalos/InvBF/internal/storage"
	"github.com/jfloresavalos/InvBF/internal/syncer"
	"github.com/jfloresavalos/InvBF/internal/ui"
)

// Options configure the invbf application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/invbf/prefs.toml
	// Server and Device override the config file when set.
	Server string
	Device string
	// Headless mirrors the debug log to stderr.
	Headless bool
	// Progress observes catalog downloads.
	Progress authority.ProgressFunc
}

// Env holds the wired core for one process.
type Env struct {
	Config    config.Config
	Prefs     prefs.Prefs
	PrefsPath string

	Client      *authority.Client
	Storage     *storage.Store
	Cache       *catalog.Cache
	OpLog       *oplog.Log
	State       *state.Store
	Coordinator *syncer.Coordinator
	Scanner     *scan.Loop
	Monitor     *monitor.Monitor

	closeLog func() error
}

// Open loads configuration and wires the core components without touching
// the network.
func Open(opts Options) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if s := strings.TrimSpace(opts.Server); s != "" {
		cfg.Server = s
	}
	if d := strings.TrimSpace(opts.Device); d != "" {
		cfg.Device = d
	}

	closeLog, err := logging.Init(logging.Options{Path: cfg.LogPath(), Level: cfg.LogLevel, Stderr: opts.Headless})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	env, err := wire(cfg, opts)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	env.closeLog = closeLog
	log.Info().Str("server", env.Client.BaseURL()).Str("device", env.Coordinator.Device()).Msg("invbf started")
	return env, nil
}

func wire(cfg config.Config, opts Options) (*Env, error) {
	codec, err := catalog.ParseCodec(cfg.CatalogCodec)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.StorageDir(), cfg.StorageCapacity())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	client, err := authority.NewClient(cfg.Server, authority.Timeouts{
		Probe:   cfg.ProbeTimeout,
		Version: cfg.VersionTimeout,
		Catalog: cfg.CatalogTimeout,
		Request: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init authority client: %w", err)
	}
	if opts.Progress != nil {
		client.WithProgress(opts.Progress)
	}

	cache := catalog.New(store, client, catalog.Options{Codec: codec, RetryDelay: cfg.RetryDelay})
	st := &state.Store{}
	ops := oplog.Open(store, cfg.Device)
	coord := syncer.New(client, store, cache, ops, st, syncer.Options{
		Authority:          client.BaseURL(),
		Device:             cfg.Device,
		ControlledHardware: cfg.ControlledHardware,
	})

	userPrefs := prefs.Load(opts.PrefsPath)
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	return &Env{
		Config:      cfg,
		Prefs:       userPrefs,
		PrefsPath:   prefsPath,
		Client:      client,
		Storage:     store,
		Cache:       cache,
		OpLog:       ops,
		State:       st,
		Coordinator: coord,
		Scanner:     scan.New(cache, coord, userPrefs.AutoAccept, userPrefs.Location),
		Monitor:     monitor.New(coord, st, cfg.MonitorInterval),
	}, nil
}

// Close stops background work and flushes the log file.
func (e *Env) Close() error {
	if e == nil {
		return nil
	}
	e.Monitor.Stop()
	if e.closeLog != nil {
		return e.closeLog()
	}
	return nil
}

// Run boots the invbf TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) (err error) {
	env, err := Open(opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, env.Close())
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := StartLiveness(runCtx, env.State, env.Client, env.Config.LivenessInterval)
	defer func() { <-done }()
	defer cancel()

	return ui.Run(ui.Options{
		Context:     runCtx,
		Coordinator: env.Coordinator,
		Scanner:     env.Scanner,
		Monitor:     env.Monitor,
		State:       env.State,
		ThemeName:   env.Prefs.Theme,
		PrefsPath:   env.PrefsPath,
		LogPath:     env.Config.LogPath(),
	})
}
