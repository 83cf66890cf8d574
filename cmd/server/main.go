package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"outpost.gg/internal/persistence/indexdb"
	persistlog "outpost.gg/internal/persistence/log"
	"outpost.gg/internal/persistence/snapshot"
	"outpost.gg/internal/sim/tuning"
	"outpost.gg/internal/sim/world"
	"outpost.gg/internal/transport/admin"
	"outpost.gg/internal/transport/ws"
)

// serverEnv holds process-level switches that are not gameplay tuning.
type serverEnv struct {
	DeployEnv       string `env:"DEPLOY_ENV"`
	EnableAdminHTTP *bool  `env:"OUTPOST_ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool   `env:"OUTPOST_ENABLE_PPROF_HTTP"`
	IndexBackend    string `env:"OUTPOST_INDEX_BACKEND" envDefault:"sqlite"`
}

func (e serverEnv) adminEnabled() bool {
	if e.EnableAdminHTTP != nil {
		return *e.EnableAdminHTTP
	}
	switch strings.ToLower(strings.TrimSpace(e.DeployEnv)) {
	case "staging", "production":
		return false
	}
	return true
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "", "world id (default: world_id from tuning)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (events, wars, snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	var senv serverEnv
	if err := env.Parse(&senv); err != nil {
		logger.Fatalf("parse env: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune, err = tuning.Load("")
	}
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	cfg := tune.WorldConfig()
	if id := strings.TrimSpace(*worldID); id != "" {
		cfg.ID = id
	}

	worldDir := filepath.Join(*dataDir, "worlds", cfg.ID)
	snapDir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	host := world.NewMemoryHost()
	w, err := world.New(cfg, host, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad, _ = snapshot.Latest(snapDir)
	}
	if snapshotToLoad != "" {
		resume(w, host, snapshotToLoad, logger)
	}

	idx, err := openRuntimeIndex(worldDir, cfg.ID, *disableDB, senv.IndexBackend)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		idx.Attach(w.Events())
		if err := idx.RecordConfig("tuning", tune); err != nil {
			logger.Printf("index backend: record tuning: %v", err)
		}
	}

	eventLog := persistlog.NewEventLogger(worldDir, cfg.ID, 4096)
	eventLog.Attach(w.Events())
	defer func() {
		if n := eventLog.Dropped(); n > 0 {
			logger.Printf("event log dropped %d events", n)
		}
		if err := eventLog.Close(); err != nil {
			logger.Printf("event log close: %v", err)
		}
	}()
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()

	ctx, cancel := signalContext()
	defer cancel()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnapshot(snapDir, snap, idx, logger)
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, cfg.ID, w.Metrics(), eventLog.Dropped(), idx)
	})
	mux.HandleFunc("/v1/events", ws.NewServer(w, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Handler())

	if senv.adminEnabled() {
		var index admin.Index
		if idx != nil {
			index = idx
		}
		admin.NewServer(w, index, auditLog, logger).Register(mux)
	} else {
		logger.Printf("admin endpoints disabled (OUTPOST_ENABLE_ADMIN_HTTP=false)")
	}
	if senv.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s tick=%d listening on %s", cfg.ID, w.Tick(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has stopped, so the world can be read directly.
	<-worldDone
	<-writerDone
	writeSnapshot(snapDir, w.ExportSnapshot(w.Tick()), idx, logger)
}

// resume loads a snapshot into a fresh world. Failures leave the world empty.
func resume(w *world.World, host *world.MemoryHost, path string, logger *log.Logger) {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		logger.Printf("snapshot %s unreadable, starting empty: %v", path, err)
		return
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != w.ID() {
		logger.Printf("snapshot world id mismatch: world=%s snap=%s; starting empty", w.ID(), snap.Header.WorldID)
		return
	}
	structures := seedHost(host, w.Grid(), snap)
	if err := w.ImportSnapshot(snap); err != nil {
		logger.Printf("snapshot %s not imported, starting empty: %v", path, err)
		return
	}
	logger.Printf("resumed from snapshot=%s tick=%d structures=%d", filepath.Base(path), w.Tick(), structures)
}

func writeSnapshot(dir string, snap snapshot.SnapshotV1, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	path := filepath.Join(dir, snapshot.FileName(snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
