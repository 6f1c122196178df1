package config

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// CatalogWatcher polls the catalog file and keeps the last valid catalog.
// A catalog counts as valid once it parses and onUpdate accepts it.
type CatalogWatcher struct {
	path     string
	interval time.Duration
	logger   *zerolog.Logger
	onUpdate func(*Catalog) error

	current atomic.Pointer[Catalog]
	seen    stamp
}

type stamp struct {
	mod  time.Time
	size int64
}

func stampOf(info os.FileInfo) stamp {
	return stamp{mod: info.ModTime(), size: info.Size()}
}

func (s stamp) same(o stamp) bool {
	return s.size == o.size && s.mod.Equal(o.mod)
}

func NewCatalogWatcher(path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*Catalog) error) *CatalogWatcher {
	if path == "" {
		path = "configs/catalog.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	l := logger.With().Str("component", "catalog").Str("path", path).Logger()
	return &CatalogWatcher{path: path, interval: interval, logger: &l, onUpdate: onUpdate}
}

// Current returns the last catalog that loaded successfully.
func (w *CatalogWatcher) Current() *Catalog {
	return w.current.Load()
}

// Start loads the catalog once, failing if it is missing or invalid, and then
// polls for changes until ctx is done. A broken edit keeps the previous catalog.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	if err := w.reload(stampOf(info)); err != nil {
		return err
	}

	go w.poll(ctx)
	return nil
}

func (w *CatalogWatcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := os.Stat(w.path)
		if err != nil {
			continue
		}
		st := stampOf(info)
		if st.same(w.seen) {
			continue
		}
		if err := w.reload(st); err != nil {
			w.logger.Warn().Err(err).Msg("Catalog reload failed, keeping previous")
			continue
		}
		w.logger.Info().Str("catalog", w.Current().String()).Msg("Catalog reloaded")
	}
}

func (w *CatalogWatcher) reload(st stamp) error {
	w.seen = st
	cat, err := LoadCatalog(w.path)
	if err != nil {
		return err
	}
	if w.onUpdate != nil {
		if err := w.onUpdate(cat); err != nil {
			return err
		}
	}
	w.current.Store(cat)
	return nil
}
