package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce is how long Watch waits after the last write before reloading.
const debounce = 200 * time.Millisecond

// Watch reloads the config file whenever it changes and passes the new
// Config to fn. Invalid files are logged and skipped. The parent directory is
// watched so editors that replace the file on save are handled. Call the
// returned stop function to release the watcher.
func Watch(path string, logger *slog.Logger, fn func(*Config)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		reload := func() {
			cfg, err := Load(abs)
			if err != nil {
				logger.Warn("config: reload failed", slog.String("path", abs), slog.Any("err", err))
				return
			}
			logger.Info("config: reloaded", slog.String("path", abs))
			fn(cfg)
		}

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, reload)
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watcher error", slog.Any("err", err))

			case <-done:
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			watcher.Close()
			wg.Wait()
		})
	}, nil
}
