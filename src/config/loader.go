package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"errlens-agent/src/logger"
)

// Loader holds the current configuration and hot-reloads it when the
// backing YAML file changes.
type Loader struct {
	path     string
	log      logger.Logger
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader creates a Loader and performs the initial load. A missing file
// is not an error; defaults and environment apply.
func NewLoader(path string, log logger.Logger) (*Loader, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Loader{path: path, log: log, current: cfg}, nil
}

// Path returns the file backing this loader.
func (l *Loader) Path() string {
	return l.path
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Update applies fn to a copy of the current config, saves it to disk and
// publishes it to OnChange subscribers.
func (l *Loader) Update(fn func(*Config)) (*Config, error) {
	l.mu.RLock()
	next := *l.current
	next.Domains = append([]string(nil), l.current.Domains...)
	l.mu.RUnlock()

	fn(&next)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if l.path != "" {
		if err := next.Save(l.path); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}
	l.publish(&next)
	return &next, nil
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// The directory is watched so editors that replace the file are handled.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return func() {}, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", dir, err)
	}

	target := filepath.Clean(l.path)
	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						l.log.Warn("[Config] Reload failed, keeping previous config: %v", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.log.Warn("[Config] Watcher error: %v", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	l.publish(cfg)
	l.log.Info("[Config] Reloaded %s (%d domain patterns, enabled=%v)", l.path, len(cfg.Domains), cfg.Enabled)
	return cfg, nil
}

func (l *Loader) publish(cfg *Config) {
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
}
