// Command yasebench drives the worker-thread benchmark harness against a
// fresh table and skip-list index, following the flag-parse-then-run shape
// of cmd/server/main.go and reporting per-worker commit/abort counts as CSV
// at exit, grounded on original_source/Benchmarks/simple_bench.cc's CLI
// surface (the original takes its tuning entirely from gflags; yase adds an
// optional YAML config file on top, with flags overriding it).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tuannm99/yase/internal/bufferpool"
	"github.com/tuannm99/yase/internal/config"
	"github.com/tuannm99/yase/internal/harness"
	"github.com/tuannm99/yase/internal/lockmgr"
	"github.com/tuannm99/yase/internal/skiplist"
	"github.com/tuannm99/yase/internal/table"
	"github.com/tuannm99/yase/internal/tablefile"
	"github.com/tuannm99/yase/internal/wal"
)

func main() {
	var (
		cfgPath       = flag.String("config", "", "path to a yase YAML config file (optional)")
		dataPath      = flag.String("data", "", "table data file path (empty = use config default)")
		logPath       = flag.String("log", "", "write-ahead log file path (empty = use config default)")
		pages         = flag.Int("pages", 0, "buffer pool page count (0 = use config default)")
		logBufKB      = flag.Int("logbuf-kb", 0, "log buffer size in KB (0 = use config default)")
		threads       = flag.Int("threads", 0, "worker thread count (0 = use config default)")
		duration      = flag.Duration("duration", 0, "benchmark run duration (0 = use config default)")
		tableSize     = flag.Int("table-size", 0, "number of records to load before the run (0 = use config default)")
		pointReadPct  = flag.Int("point-read-pct", -1, "percentage of transactions that are point reads")
		readUpdatePct = flag.Int("read-update-pct", -1, "percentage of transactions that are read-update")
		scanUpdatePct = flag.Int("scan-update-pct", -1, "percentage of transactions that are scan-update")
		lockPolicy    = flag.String("lock-policy", "", "no_wait or wait_die (empty = use config default)")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	if *pages != 0 {
		cfg.BufferPool.PageCount = *pages
	}
	if *logBufKB != 0 {
		cfg.Log.BufKB = *logBufKB
	}
	if *threads != 0 {
		cfg.Harness.Threads = *threads
	}
	if *duration != 0 {
		cfg.Harness.DurationSec = int(duration.Seconds())
	}
	if *tableSize != 0 {
		cfg.Harness.TableSize = *tableSize
	}
	if *pointReadPct >= 0 {
		cfg.Harness.PointReadPct = *pointReadPct
	}
	if *readUpdatePct >= 0 {
		cfg.Harness.ReadUpdatePct = *readUpdatePct
	}
	if *scanUpdatePct >= 0 {
		cfg.Harness.ScanUpdatePct = *scanUpdatePct
	}
	if *lockPolicy != "" {
		cfg.Lock.Policy = *lockPolicy
	}
	if *dataPath != "" {
		cfg.Table.DataPath = *dataPath
	}
	if *logPath != "" {
		cfg.Log.Path = *logPath
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("bench error: %v", err)
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Table.DataPath), 0o755); err != nil && filepath.Dir(cfg.Table.DataPath) != "." {
		return fmt.Errorf("create data dir: %w", err)
	}

	pool := bufferpool.NewPool(cfg.BufferPool.PageCount)
	// The harness stores one 8-byte value per record, so the table is
	// formatted for 8-byte records whatever the config's record_size says.
	tf := tablefile.Open(pool, cfg.Table.DataPath, 8)
	defer tf.Close()
	tbl := table.Open(pool, tf)
	defer tbl.Close()

	index := skiplist.New(8)

	policy := lockmgr.NoWait
	if cfg.Lock.Policy == "wait_die" {
		policy = lockmgr.WaitDie
	}
	lm := lockmgr.New(policy)

	logMgr, err := wal.Open(cfg.Log.Path, cfg.Log.BufKB)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logMgr.Close()

	bench := harness.New(tf, tbl, index, lm, logMgr, harness.Config{
		Threads:   cfg.Harness.Threads,
		Duration:  time.Duration(cfg.Harness.DurationSec) * time.Second,
		TableSize: cfg.Harness.TableSize,
		Mix: harness.Mix{
			PointReadPct:  cfg.Harness.PointReadPct,
			ReadUpdatePct: cfg.Harness.ReadUpdatePct,
			ScanUpdatePct: cfg.Harness.ScanUpdatePct,
		},
	})

	log.Printf("loading %d records into %s", cfg.Harness.TableSize, cfg.Table.DataPath)
	if err := bench.Load(); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resultCh := make(chan harness.Result, 1)
	go func() { resultCh <- bench.Run() }()

	var res harness.Result
	select {
	case res = <-resultCh:
	case <-ctx.Done():
		log.Printf("interrupted, waiting for workers to drain")
		res = <-resultCh
	}

	stats := bench.TableFileStats()
	log.Printf("table file stats: allocated=%d created=%d free=%d", stats.Allocated, stats.Created, stats.Free)

	printCSV(res)
	return nil
}

func printCSV(res harness.Result) {
	fmt.Println("worker,commits,aborts")
	for i := range res.PerThreadCommits {
		fmt.Printf("%d,%d,%d\n", i, res.PerThreadCommits[i], res.PerThreadAborts[i])
	}
	fmt.Printf("total,%d,%d\n", res.TotalCommits, res.TotalAborts)
}
