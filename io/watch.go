package io

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"render-demo/shader"
)

// ErrEmptySource is returned for a zero-length shader file, which is what
// an editor leaves behind between truncating and writing.
var ErrEmptySource = errors.New("empty shader source")

// ReadShaders reads <name>.vert and <name>.frag from dir for each name.
func ReadShaders(dir string, names ...string) (map[string]shader.Source, error) {
	out := make(map[string]shader.Source, len(names))
	for _, name := range names {
		vert, err := readSource(filepath.Join(dir, name+".vert"))
		if err != nil {
			return nil, err
		}
		frag, err := readSource(filepath.Join(dir, name+".frag"))
		if err != nil {
			return nil, err
		}
		out[name] = shader.Source{Name: name, Vertex: vert, Fragment: frag}
	}
	return out, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", fmt.Errorf("%s: %w", path, ErrEmptySource)
	}
	return string(data), nil
}

// ShaderWatcher re-reads shader sources when files in a directory change
// and sends the fresh set on Changes. It never touches GL; the receiver
// recompiles on the render goroutine.
type ShaderWatcher struct {
	// Debounce collapses the burst of events a single save produces.
	Debounce time.Duration
	// Retry paces re-reads while a file is missing or empty.
	Retry func() backoff.BackOff

	dir     string
	names   []string
	watcher *fsnotify.Watcher
	changes chan map[string]shader.Source
	log     *slog.Logger
}

func NewShaderWatcher(dir string, names []string, log *slog.Logger) (*ShaderWatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &ShaderWatcher{
		Debounce: 100 * time.Millisecond,
		Retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			return backoff.WithMaxRetries(b, 5)
		},
		dir:     dir,
		names:   names,
		watcher: w,
		changes: make(chan map[string]shader.Source, 1),
		log:     log.With("dir", dir),
	}, nil
}

// Changes delivers the latest complete source set. Only the newest
// pending set is kept.
func (sw *ShaderWatcher) Changes() <-chan map[string]shader.Source { return sw.changes }

// Run watches until ctx is done, then closes the watcher.
func (sw *ShaderWatcher) Run(ctx context.Context) error {
	defer sw.watcher.Close()

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return nil
			}
			if sw.relevant(ev) {
				timer = time.After(sw.Debounce)
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return nil
			}
			sw.log.Warn("shader watch error", "err", err)
		case <-timer:
			timer = nil
			sw.reload(ctx)
		}
	}
}

func (sw *ShaderWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	ext := filepath.Ext(ev.Name)
	if ext != ".vert" && ext != ".frag" {
		return false
	}
	return slices.Contains(sw.names, strings.TrimSuffix(filepath.Base(ev.Name), ext))
}

func (sw *ShaderWatcher) reload(ctx context.Context) {
	var sources map[string]shader.Source
	err := backoff.Retry(func() error {
		var err error
		sources, err = ReadShaders(sw.dir, sw.names...)
		return err
	}, backoff.WithContext(sw.Retry(), ctx))
	if err != nil {
		sw.log.Warn("shader reload skipped", "err", err)
		return
	}
	select {
	case <-sw.changes:
	default:
	}
	sw.changes <- sources
	sw.log.Debug("shader sources changed")
}
