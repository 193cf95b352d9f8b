package config

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher 监听配置文件变更，去抖后重新加载并替换 Store 中的快照。
// 加载失败时保留上一份有效配置，只记录日志。
type Watcher struct {
	path     string
	store    *Store
	logger   *logrus.Logger
	debounce time.Duration

	fsWatcher *fsnotify.Watcher
	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	onReload  func(*Config)
}

// WatcherOption 用于定制 Watcher。
type WatcherOption func(*Watcher)

// WithDebounce 设置去抖间隔，默认 200ms。
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook 在每次成功加载后回调，主要用于测试与日志。
func WithReloadHook(fn func(*Config)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher 创建 Watcher；path 为空时返回错误，纯环境变量模式无需热加载。
func NewWatcher(path string, store *Store, logger *logrus.Logger, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	if store == nil {
		return nil, errors.New("config store is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	w := &Watcher{
		path:     abs,
		store:    store,
		logger:   logger,
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start 监听配置文件所在目录（兼容编辑器的 rename 写入方式）。
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		_ = fsWatcher.Close()
		return err
	}

	w.fsWatcher = fsWatcher
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	w.running = true

	w.logger.WithFields(logrus.Fields{
		"action": "config_watch",
		"path":   w.path,
	}).Info("开始监听配置文件")

	go w.loop(ctx)
	return nil
}

// Stop 停止监听并等待后台 goroutine 退出。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	stopped := w.stoppedCh
	fsWatcher := w.fsWatcher
	w.mu.Unlock()

	<-stopped
	return fsWatcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stoppedCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).WithField("action", "config_watch").Warn("配置监听出错")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reload() {
	fields := logrus.Fields{"action": "config_reload", "path": w.path}
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.WithError(err).WithFields(fields).Warn("配置重载失败，继续使用上一份配置")
		return
	}
	w.store.Swap(cfg)
	fields["base_url_configured"] = cfg.Backend.HasBaseURL()
	fields["routing_variant"] = cfg.Backend.RoutingVariant
	fields["retry_policy"] = cfg.Backend.RetryPolicy
	w.logger.WithFields(fields).Info("配置已重载")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
