package daemon

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/pinwheel/internal/config"
	"github.com/1broseidon/pinwheel/internal/confwatch"
	"github.com/1broseidon/pinwheel/internal/rules"
)

// Reloader re-reads the configuration and swaps the active rule set. A
// failed reload leaves the previous set in place.
type Reloader struct {
	path   string
	store  *rules.Store
	logger *slog.Logger

	// OnFiles is called with the files of each successfully loaded config,
	// so the watcher can follow newly included files.
	OnFiles func(files []string) error
}

// NewReloader returns a reloader for path that swaps rule sets into store.
func NewReloader(path string, store *rules.Store, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		path:   path,
		store:  store,
		logger: logger,
	}
}

// HandleEvent reloads after a settled change to a configuration file.
func (r *Reloader) HandleEvent(ev confwatch.Event) error {
	if ev.Kind == confwatch.Removed {
		r.logger.Warn("config file removed; keeping current rules until it reappears", "path", ev.Path)
		return nil
	}
	return r.Reload(fmt.Sprintf("%s changed", ev.Path))
}

// Reload loads and compiles the configuration and swaps it in.
func (r *Reloader) Reload(reason string) error {
	r.logger.Info(reason + ", reloading config")

	res, err := config.LoadFromPath(r.path)
	if err != nil {
		r.reject(err)
		return err
	}
	set, err := rules.Compile(res.Config)
	if err != nil {
		r.reject(err)
		return fmt.Errorf("compile rules: %w", err)
	}

	prev := r.store.Swap(set)
	r.logger.Info("config reloaded", "rules", set.Len(), "previous_rules", prev.Len(), "files", len(res.Files))

	if r.OnFiles != nil {
		if err := r.OnFiles(res.Files); err != nil {
			r.logger.Warn("failed to watch config files", "error", err)
		}
	}
	return nil
}

func (r *Reloader) reject(err error) {
	r.logger.Warn("config change rejected; keeping previous rules",
		"error", err,
		"active_rules", r.store.Load().Len())
}
