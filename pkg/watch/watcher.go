package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/openfroyo/crfleet/pkg/config"
	"github.com/openfroyo/crfleet/pkg/engine"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ApplyFunc receives every successfully parsed revision of the model.
type ApplyFunc func(ctx context.Context, model *engine.ResourceModel) error

// ModelWatcher reloads a fleet model file whenever it changes.
type ModelWatcher struct {
	logger   zerolog.Logger
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewModelWatcher creates a watcher for the model at path.
func NewModelWatcher(logger zerolog.Logger, path string, debounce time.Duration) (*ModelWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &ModelWatcher{
		logger:   logger.With().Str("component", "model-watcher").Str("path", abs).Logger(),
		path:     abs,
		debounce: debounce,
	}, nil
}

// Start begins watching in the background. Apply runs on the watcher
// goroutine, so revisions are applied one at a time in file order.
func (w *ModelWatcher) Start(ctx context.Context, apply ApplyFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// editors often replace the file, which drops a watch on the file itself
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	go w.processEvents(ctx, apply)

	w.logger.Info().Msg("Started watching model")
	return nil
}

// Done is closed once the watcher has stopped.
func (w *ModelWatcher) Done() <-chan struct{} {
	return w.done
}

// Stop closes the watcher and waits for the event loop to exit. It must
// not be called from an ApplyFunc.
func (w *ModelWatcher) Stop() error {
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *ModelWatcher) processEvents(ctx context.Context, apply ApplyFunc) {
	defer close(w.done)

	reload := time.NewTimer(w.debounce)
	if !reload.Stop() {
		<-reload.C
	}
	defer reload.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.logger.Debug().
				Str("op", event.Op.String()).
				Msg("Model file changed")
			reload.Reset(w.debounce)

		case <-reload.C:
			if err := w.reload(ctx, apply); err != nil {
				w.logger.Error().Err(err).Msg("Failed to apply model")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *ModelWatcher) reload(ctx context.Context, apply ApplyFunc) error {
	model, err := config.LoadModel(w.path)
	if err != nil {
		return err
	}

	w.logger.Info().Msg("Applying reloaded model")
	if err := apply(ctx, model); err != nil {
		return fmt.Errorf("failed to apply reloaded model: %w", err)
	}
	return nil
}
