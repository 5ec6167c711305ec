package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultRunDir is used when no directory is given to NewFileRepo.
var DefaultRunDir = filepath.Join(".cache", "valuation", "runs")

// FileRepo stores each run as <dir>/<TICKER>/<id>.json. It is the local
// fallback when no database is configured.
type FileRepo struct {
	dir string
	mu  sync.Mutex
}

// NewFileRepo creates the directory if needed.
func NewFileRepo(dir string) (*FileRepo, error) {
	if dir == "" {
		dir = DefaultRunDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &FileRepo{dir: dir}, nil
}

// Save writes the run, replacing any earlier file with the same ID.
func (r *FileRepo) Save(_ context.Context, run *Run) error {
	if run.ID == "" || run.Ticker == "" {
		return fmt.Errorf("run requires id and ticker")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.dir, safeName(run.Ticker))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	tmp := filepath.Join(dir, safeName(run.ID)+".json.tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, safeName(run.ID)+".json"))
}

// Load finds a run by ID under any ticker.
func (r *FileRepo) Load(_ context.Context, id string) (*Run, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*", safeName(id)+".json"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return readRun(matches[0])
}

// Latest returns the newest run for the ticker by CreatedAt.
func (r *FileRepo) Latest(_ context.Context, ticker string) (*Run, error) {
	entries, err := os.ReadDir(filepath.Join(r.dir, safeName(ticker)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
		}
		return nil, err
	}

	var latest *Run
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		run, err := readRun(filepath.Join(r.dir, safeName(ticker), e.Name()))
		if err != nil {
			continue
		}
		if latest == nil || run.CreatedAt.After(latest.CreatedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	return latest, nil
}

func readRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", path, err)
	}
	return &run, nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == '.' {
			return '_'
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(s)))
}
