package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PoliciesWatcher monitors the configured policies file and invokes the
// supplied callback whenever the policy table changes. Stop must be called to
// release filesystem resources.
type PoliciesWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *PoliciesWatcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// WatchPolicies wires fsnotify around the configured policies file and rebuilds
// the policy bundle on any relevant change. The provided config should come from
// Loader.Load so InlinePolicies is already captured. The callback fires once
// with the initial bundle before any filesystem event.
func (l *Loader) WatchPolicies(ctx context.Context, cfg Config, onChange func(PolicyBundle), onError func(error)) (*PoliciesWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("config: watch policies requires a change callback")
	}
	if cfg.Server.Cache.PoliciesFile == "" {
		return nil, fmt.Errorf("config: no policies file configured for watching")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("config: watch policies: %w", err)
	}

	inline := clonePolicyMap(cfg.InlinePolicies)

	target := cfg.Server.Cache.PoliciesFile
	if abs, absErr := filepath.Abs(target); absErr == nil {
		target = abs
	}
	target = filepath.Clean(target)

	bundle, err := buildPolicyBundle(watchCtx, inline, target)
	if err != nil {
		if closeErr := watcher.Close(); closeErr != nil && onError != nil {
			onError(fmt.Errorf("config: watch policies close: %w", closeErr))
		}
		cancel()
		return nil, err
	}
	onChange(bundle)

	// Watch the directory rather than the file so editors that replace the file
	// (rename + create) do not silently detach the watch.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil && onError != nil {
			onError(fmt.Errorf("config: watch policies close: %w", closeErr))
		}
		cancel()
		return nil, fmt.Errorf("config: watch add %s: %w", filepath.Dir(target), err)
	}

	done := make(chan struct{})
	watch := &PoliciesWatcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil && onError != nil {
				onError(fmt.Errorf("config: watch policies close: %w", err))
			}
		}()

		reload := func() {
			bundle, err := buildPolicyBundle(watchCtx, inline, target)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				if onError != nil {
					onError(err)
				}
				return
			}
			onChange(bundle)
		}

		const debounce = 25 * time.Millisecond
		var reloadTimer *time.Timer
		var reloadSignal <-chan time.Time
		scheduleReload := func() {
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(debounce)
			} else {
				if !reloadTimer.Stop() {
					select {
					case <-reloadTimer.C:
					default:
					}
				}
				reloadTimer.Reset(debounce)
			}
			reloadSignal = reloadTimer.C
		}
		flushTimer := func() {
			if reloadTimer == nil {
				return
			}
			if !reloadTimer.Stop() {
				select {
				case <-reloadTimer.C:
				default:
				}
			}
			reloadSignal = nil
		}
		defer flushTimer()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-reloadSignal:
				flushTimer()
				reload()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if onError != nil {
						onError(fmt.Errorf("config: policies file %s removed", target))
					}
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					scheduleReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if err != nil && onError != nil {
					onError(fmt.Errorf("config: watch policies: %w", err))
				}
			}
		}
	}()

	return watch, nil
}
