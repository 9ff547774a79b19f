package rolemap

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/idbridge/pkg/observability"
)

// Source yields the current mapping snapshot. Reconcilers read through a
// Source so a mid-flight reload never mixes two mapping versions inside
// one reconciliation.
type Source interface {
	Current() *Mapping
}

// Static wraps a fixed mapping as a Source, for tests and for deployments
// that disable watching.
type Static struct {
	mapping *Mapping
}

// NewStatic returns a Source that always yields the given mapping
func NewStatic(m *Mapping) *Static {
	return &Static{mapping: m}
}

// Current implements Source
func (s *Static) Current() *Mapping {
	return s.mapping
}

// Watcher serves the latest valid mapping from a file and reloads it on
// change. A reload that fails to parse keeps the previous snapshot.
type Watcher struct {
	path    string
	current atomic.Pointer[Mapping]
	fsw     *fsnotify.Watcher
	logger  *observability.Logger
}

// NewWatcher loads the mapping file and begins watching it for changes
func NewWatcher(path string, logger *observability.Logger) (*Watcher, error) {
	mapping, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory, not the file. Editors and config-map updates
	// replace the file, which would orphan a file-level watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{path: path, fsw: fsw, logger: logger}
	w.current.Store(mapping)
	return w, nil
}

// Current implements Source
func (w *Watcher) Current() *Mapping {
	return w.current.Load()
}

// Run processes file events until the context is cancelled
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("role mapping watcher error")
		}
	}
}

func (w *Watcher) reload() {
	mapping, err := Load(w.path)
	if err != nil {
		w.logger.WithError(err).WithField("path", w.path).
			Error("failed to reload role mapping, keeping previous snapshot")
		return
	}
	w.current.Store(mapping)
	w.logger.WithFields(map[string]interface{}{
		"path":          w.path,
		"managed_roles": len(mapping.ManagedRoles()),
	}).Info("role mapping reloaded")
}
