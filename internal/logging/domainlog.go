package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Domain appends every request and state transition to stdout, a flat
// v3kn.log and a day-sharded logs/YYYY/MM/DD.log file, in that order,
// all under one mutex so lines never interleave across destinations.
type Domain struct {
	mu     sync.Mutex
	root   string
	logDir string
}

// NewDomain truncates the root log file (matching the reference server's
// behavior of starting each process run with a clean v3kn.log) and returns
// a ready-to-use logger.
func NewDomain(rootLogPath, logDir string) (*Domain, error) {
	f, err := os.Create(rootLogPath)
	if err != nil {
		return nil, fmt.Errorf("truncate domain log: %w", err)
	}
	f.Close()

	return &Domain{root: rootLogPath, logDir: logDir}, nil
}

// Logf formats msg and appends it to every destination with a
// DD-MM-YYYY HH:MM:SS timestamp prefix.
func (d *Domain) Logf(format string, args ...any) {
	d.Log(fmt.Sprintf(format, args...))
}

func (d *Domain) Log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	full := fmt.Sprintf("[%s] %s", now.Format("02-01-2006 15:04:05"), msg)

	fmt.Println(full)

	if f, err := os.OpenFile(d.root, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		fmt.Fprintln(f, full)
		f.Close()
	}

	folder := filepath.Join(d.logDir, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return
	}
	path := filepath.Join(folder, now.Format("02")+".log")
	if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		fmt.Fprintln(f, full)
		f.Close()
	}
}
