package classifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

// Loader builds a classifier from an artifact path.
type Loader func(path string) (ports.Classifier, error)

// LinearLoader loads linear artifacts and checks them against names.
func LinearLoader(names []string) Loader {
	return func(path string) (ports.Classifier, error) {
		m, err := LoadLinear(path)
		if err != nil {
			return nil, err
		}
		if err := m.CheckFeatures(names); err != nil {
			return nil, err
		}
		return m, nil
	}
}

type current struct {
	model ports.Classifier
}

// Reloadable serves predictions from the most recently loaded artifact.
// Readers never block on a reload.
type Reloadable struct {
	path    string
	load    Loader
	logger  ports.Logger
	model   atomic.Pointer[current]
	reloads atomic.Int64
}

// NewReloadable loads path once and returns the wrapper.
func NewReloadable(path string, load Loader, logger ports.Logger) (*Reloadable, error) {
	r := &Reloadable{path: path, load: load, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Predict delegates to the current model.
func (r *Reloadable) Predict(ctx context.Context, features domain.MetricVector) (domain.Decision, error) {
	return r.model.Load().model.Predict(ctx, features)
}

// Reload loads the artifact again. On failure the previous model stays active.
func (r *Reloadable) Reload() error {
	m, err := r.load(r.path)
	if err != nil {
		return fmt.Errorf("classifier: loading %s: %w", r.path, err)
	}
	r.model.Store(&current{model: m})
	r.reloads.Add(1)
	return nil
}

// Reloads returns how many times an artifact was loaded successfully.
func (r *Reloadable) Reloads() int64 {
	return r.reloads.Load()
}

// Watch reloads the artifact whenever its file changes, until ctx is done.
// The parent directory is watched so that atomic renames are noticed.
func (r *Reloadable) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("classifier: creating watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(r.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("classifier: watching %s: %w", filepath.Dir(target), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := r.Reload(); err != nil {
				r.logger.Warn("Classifier reload failed, keeping previous model", "path", r.path, "error", err)
				continue
			}
			r.logger.Info("Classifier reloaded", "path", r.path, "reloads", r.Reloads())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				r.logger.Warn("Classifier watcher overflow", "path", r.path)
				continue
			}
			r.logger.Error("Classifier watcher error", "error", err)
		}
	}
}
