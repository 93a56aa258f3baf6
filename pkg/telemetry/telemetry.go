// Package telemetry writes one CSV row per gain adjustment.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/herlein/amfix/pkg/amfix"
)

// DefaultPattern names one file per day
const DefaultPattern = "amfix-%Y%m%d.csv"

// Header is the first row of every file
var Header = []string{"time", "vfo", "action", "raw_rssi", "rssi", "diff_db", "index", "gain_db", "offset", "hold"}

// Recorder appends results to Dir/<strftime pattern>, switching files when the
// formatted name changes
type Recorder struct {
	dir     string
	pattern *strftime.Strftime

	mu   sync.Mutex
	name string
	file *os.File
	w    *csv.Writer
}

// New creates a Recorder. An empty pattern uses DefaultPattern.
func New(dir, pattern string) (*Recorder, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	p, err := strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	return &Recorder{dir: dir, pattern: p}, nil
}

// Path returns the file a record at t goes to
func (r *Recorder) Path(t time.Time) string {
	return filepath.Join(r.dir, r.pattern.FormatString(t))
}

// Record writes one row
func (r *Recorder) Record(t time.Time, res amfix.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.rotate(t); err != nil {
		return err
	}

	row := []string{
		t.Format(time.RFC3339Nano),
		strconv.Itoa(res.VFO),
		res.Action.String(),
		strconv.Itoa(res.RawRSSI),
		strconv.Itoa(res.RSSI),
		strconv.Itoa(res.DiffDB),
		strconv.Itoa(res.Index),
		strconv.Itoa(res.GainDB),
		strconv.Itoa(res.Offset),
		strconv.Itoa(res.Hold),
	}
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("failed to write telemetry row: %w", err)
	}
	r.w.Flush()
	return r.w.Error()
}

// rotate opens the file for t if it is not already open; r.mu is held
func (r *Recorder) rotate(t time.Time) error {
	name := r.pattern.FormatString(t)
	if r.file != nil && name == r.name {
		return nil
	}
	if err := r.closeFile(); err != nil {
		return err
	}

	path := filepath.Join(r.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open telemetry file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat telemetry file: %w", err)
	}

	r.name, r.file, r.w = name, f, csv.NewWriter(f)
	if info.Size() == 0 {
		if err := r.w.Write(Header); err != nil {
			return fmt.Errorf("failed to write telemetry header: %w", err)
		}
	}
	return nil
}

func (r *Recorder) closeFile() error {
	if r.file == nil {
		return nil
	}
	r.w.Flush()
	err := r.file.Close()
	r.file, r.w, r.name = nil, nil, ""
	return err
}

// Close flushes and closes the current file
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeFile()
}
