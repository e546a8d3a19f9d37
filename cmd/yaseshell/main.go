// Command yaseshell is an interactive REPL for exercising a table and its
// skip-list index directly, bypassing SQL entirely (SQL parsing is a
// non-goal of this engine). Grounded on cmd/client/main.go's readline-driven
// REPL and its History helper, retargeted from wire-protocol SQL requests to
// direct in-process insert/read/update/delete/scan calls.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tuannm99/yase/internal/bufferpool"
	"github.com/tuannm99/yase/internal/bx"
	"github.com/tuannm99/yase/internal/skiplist"
	"github.com/tuannm99/yase/internal/table"
	"github.com/tuannm99/yase/internal/tablefile"
)

const recordSize = 64

type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(cmd string) error {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := fmt.Fprintln(f, cmd); err != nil {
		return err
	}
	h.lines = append(h.lines, cmd)
	return nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".yase_history"
	}
	return filepath.Join(home, ".yase_history")
}

// session wraps a table+index pair with the key encoding the shell uses:
// keys are decimal integers, stored as 8-byte little-endian, records are
// padded/truncated to recordSize bytes.
type session struct {
	tbl   *table.Table
	index *skiplist.SkipList
}

func (s *session) keyBytes(k uint64) []byte {
	b := make([]byte, 8)
	bx.PutU64(b, k)
	return b
}

func (s *session) insert(key uint64, value string) (string, error) {
	rec := make([]byte, recordSize)
	copy(rec, value)
	rid, err := s.tbl.Insert(rec)
	if err != nil {
		return "", err
	}
	if !s.index.Insert(s.keyBytes(key), rid) {
		return "", fmt.Errorf("key %d already exists", key)
	}
	return fmt.Sprintf("OK rid=%s", rid), nil
}

func (s *session) read(key uint64) (string, error) {
	rid := s.index.Search(s.keyBytes(key))
	if !rid.Valid() {
		return "", fmt.Errorf("key %d not found", key)
	}
	rec, err := s.tbl.Read(rid)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(rec), "\x00"), nil
}

func (s *session) update(key uint64, value string) (string, error) {
	rid := s.index.Search(s.keyBytes(key))
	if !rid.Valid() {
		return "", fmt.Errorf("key %d not found", key)
	}
	rec := make([]byte, recordSize)
	copy(rec, value)
	if err := s.tbl.Update(rid, rec); err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *session) delete(key uint64) (string, error) {
	rid := s.index.Search(s.keyBytes(key))
	if !rid.Valid() {
		return "", fmt.Errorf("key %d not found", key)
	}
	if err := s.tbl.Delete(rid); err != nil {
		return "", err
	}
	s.index.Delete(s.keyBytes(key))
	return "OK", nil
}

func (s *session) scan(startKey uint64, n int) (string, error) {
	var out []skiplist.ScanResult
	s.index.ForwardScan(s.keyBytes(startKey), n, true, &out)

	var b strings.Builder
	for _, sr := range out {
		rec, err := s.tbl.Read(sr.RID)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%d\t%s\n", bx.U64(sr.Key), strings.TrimRight(string(rec), "\x00"))
	}
	if b.Len() == 0 {
		return "(no rows)", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *session) dispatch(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "insert":
		if len(args) < 2 {
			return "", errors.New("usage: insert <key> <value>")
		}
		key, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("bad key: %w", err)
		}
		return s.insert(key, strings.Join(args[1:], " "))
	case "read":
		if len(args) < 1 {
			return "", errors.New("usage: read <key>")
		}
		key, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("bad key: %w", err)
		}
		return s.read(key)
	case "update":
		if len(args) < 2 {
			return "", errors.New("usage: update <key> <value>")
		}
		key, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("bad key: %w", err)
		}
		return s.update(key, strings.Join(args[1:], " "))
	case "delete":
		if len(args) < 1 {
			return "", errors.New("usage: delete <key>")
		}
		key, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("bad key: %w", err)
		}
		return s.delete(key)
	case "scan":
		if len(args) < 2 {
			return "", errors.New("usage: scan <start-key> <n>")
		}
		key, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("bad start key: %w", err)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("bad n: %w", err)
		}
		return s.scan(key, n)
	default:
		return "", fmt.Errorf("unknown command: %s (try insert/read/update/delete/scan)", cmd)
	}
}

func main() {
	var (
		dataPath = flag.String("data", "yaseshell.tbl", "table data file path")
		pages    = flag.Int("pages", 128, "buffer pool page count")
		histPath = flag.String("history", defaultHistoryPath(), "history file path")
		histMax  = flag.Int("history-max", 2000, "max history lines loaded into memory")
	)
	flag.Parse()

	pool := bufferpool.NewPool(*pages)
	tf := tablefile.Open(pool, *dataPath, recordSize)
	defer tf.Close()
	tbl := table.Open(pool, tf)
	defer tbl.Close()

	s := &session{tbl: tbl, index: skiplist.New(8)}

	h := NewHistory(*histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "yase> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Printf("yase shell: table at %s\n", *dataPath)
	fmt.Println("commands: insert <key> <value> | read <key> | update <key> <value> | delete <key> | scan <start-key> <n> | quit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "\\q" {
			return
		}

		_ = h.Append(line)
		_ = rl.SaveHistory(line)

		out, err := s.dispatch(line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}
