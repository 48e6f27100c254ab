package benchmark

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/civicsignal/safescore/internal/model"
)

// Snapshot hands the current distribution to concurrent readers. The
// pointer is swapped whole on regeneration, so a reader never observes a
// partially written distribution.
type Snapshot struct {
	current atomic.Pointer[Distribution]
}

// Get returns the published distribution, or ErrBenchmarkUnavailable when
// none has been generated or loaded yet.
func (s *Snapshot) Get() (*Distribution, error) {
	d := s.current.Load()
	if d == nil {
		return nil, model.ErrBenchmarkUnavailable
	}
	return d, nil
}

// Swap publishes a freshly generated distribution. In-flight readers keep
// the snapshot they already hold.
func (s *Snapshot) Swap(d *Distribution) {
	s.current.Store(d)
}

// LoadFile reads a persisted distribution artifact and publishes it.
func (s *Snapshot) LoadFile(path string) error {
	d, err := ReadFile(path)
	if err != nil {
		return err
	}
	s.Swap(d)
	return nil
}

// ReadFile parses a distribution artifact from disk.
func ReadFile(path string) (*Distribution, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "benchmark: read artifact")
	}
	var d Distribution
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, eris.Wrap(err, "benchmark: parse artifact")
	}
	if len(d.Overall) == 0 {
		return nil, eris.Wrap(model.ErrBenchmarkUnavailable, "benchmark: artifact has empty overall distribution")
	}
	return &d, nil
}

// WriteFile persists the distribution artifact atomically: the JSON is
// written to a temp file in the target directory and renamed into place,
// so a concurrent reader of the path never sees a torn file.
func WriteFile(path string, d *Distribution) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "benchmark: marshal artifact")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "benchmark: create temp artifact")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "benchmark: write temp artifact")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "benchmark: close temp artifact")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "benchmark: publish artifact")
	}
	return nil
}
