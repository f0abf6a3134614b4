package clientcmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stationkit/redeemq/internal/client"
	cfgpkg "github.com/stationkit/redeemq/internal/config"
	"github.com/stationkit/redeemq/internal/connectivity"
	"github.com/stationkit/redeemq/internal/queue"
	pebblestore "github.com/stationkit/redeemq/internal/storage/pebble"
	logpkg "github.com/stationkit/redeemq/pkg/log"
)

// queueEnv bundles the station-side pieces a client command needs.
type queueEnv struct {
	cfg    cfgpkg.Config
	logger logpkg.Logger
	db     *pebblestore.DB
	probe  *connectivity.Probe
	queue  *queue.Queue
}

func (e *queueEnv) close() {
	if e.queue != nil {
		e.queue.Close()
	}
	if e.probe != nil {
		e.probe.Stop()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
}

// loadConfig resolves config from file, env, and command flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	if err := cfgpkg.FromEnv(&cfg); err != nil {
		return cfgpkg.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("station"); v != "" {
		cfg.StationID = v
	}
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		cfg.ServerURL = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	return cfg, nil
}

// openQueueEnv opens the local store, probes connectivity once, and
// constructs the queue with the given terminal callbacks.
func openQueueEnv(cmd *cobra.Command, onComplete func(queue.Entry, client.RedeemResult), onError func(queue.Entry, client.RedeemResult)) (*queueEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: filepath.Join(dataDir, "queue"),
		Fsync:   pebblestore.FsyncModeAlways,
	})
	if err != nil {
		return nil, err
	}

	probe := connectivity.NewProbe(
		strings.TrimRight(cfg.ServerURL, "/")+"/v1/healthz",
		time.Duration(cfg.ProbeIntervalMs)*time.Millisecond,
		logger,
	)
	remote := client.NewHTTPClient(cfg.ServerURL, time.Duration(cfg.RequestTimeoutMs)*time.Millisecond, logger)

	backoff := make([]time.Duration, 0, len(cfg.BackoffMs))
	for _, ms := range cfg.BackoffMs {
		backoff = append(backoff, time.Duration(ms)*time.Millisecond)
	}

	q, err := queue.Open(queue.Options{
		StationID:    cfg.StationID,
		Store:        queue.NewPebbleStore(db),
		Remote:       remote,
		Connectivity: probe,
		Logger:       logger,
		Backoff:      backoff,
		OnComplete:   onComplete,
		OnError:      onError,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	// One synchronous check so the queue flushes immediately when the
	// server is reachable; the background loop keeps watching after that.
	probe.CheckNow()
	probe.Start()

	return &queueEnv{cfg: cfg, logger: logger, db: db, probe: probe, queue: q}, nil
}

// parseContext turns repeated key=value flags into a context map.
func parseContext(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid context pair %q; use key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
