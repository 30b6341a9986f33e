// Command sparesd runs the spares HTTP server: a SQLite-backed store, the
// FSRS scheduler, and the note-driver/query/bulk-scheduling packages wired
// together behind internal/httpapi's router, the way the teacher's server.go
// wired its Collection/APIHandler/chi stack.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"spares/internal/backupmgr"
	"spares/internal/cloze"
	"spares/internal/config"
	"spares/internal/httpapi"
	"spares/internal/notedriver"
	"spares/internal/scheduler"
	"spares/internal/store"
)

func main() {
	dbPath := flag.String("db", "./data/spares.db", "path to the SQLite database file")
	backupDir := flag.String("backup-dir", "./backups", "directory for collection backups")
	configPath := flag.String("config", "./spares.yaml", "path to the scheduler config YAML")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	defaultParser := flag.String("default-parser", "markdown", "default note parser dialect")
	flag.Parse()

	st, err := store.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("sparesd: open store: %v", err)
	}
	defer st.Close()

	cfg, err := config.LoadSchedulerConfig(*configPath)
	if err != nil {
		log.Fatalf("sparesd: load config: %v", err)
	}
	rc := config.NewRuntimeContext(cfg)

	ops, ok := cloze.Registry[*defaultParser]
	if !ok {
		log.Fatalf("sparesd: unknown default parser %q", *defaultParser)
	}
	driver := notedriver.New(ops)
	sched := scheduler.New()
	bm := backupmgr.New(*dbPath, *backupDir)

	handler := httpapi.New(st, driver, sched, rc, bm)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	log.Printf("sparesd: listening on %s (db=%s)", *addr, *dbPath)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("sparesd: serve: %v", err)
	}
}
