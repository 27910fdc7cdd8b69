package media

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"audioshare/logger"

	"github.com/fsnotify/fsnotify"
)

const defaultRecheckInterval = 30 * time.Second

// RootStatus 单个根目录的可用状态
type RootStatus struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"name"`
	Backend     string `json:"backend"`
	Available   bool   `json:"available"`
}

// RootMonitor 跟踪各根目录是否可用
//
// 本地根通过 fsnotify 监听自身及其父目录，目录被删除、重建、挂载点变化时
// 立即重新探测；所有根另外按固定间隔探测一次（对象存储只能靠轮询）。
type RootMonitor struct {
	registry *Registry
	interval time.Duration

	mu     sync.RWMutex
	status map[string]bool
}

// NewRootMonitor interval <= 0 时使用 30 秒
func NewRootMonitor(reg *Registry, interval time.Duration) *RootMonitor {
	if interval <= 0 {
		interval = defaultRecheckInterval
	}
	return &RootMonitor{
		registry: reg,
		interval: interval,
		status:   make(map[string]bool),
	}
}

// Check 立即探测所有根目录
func (m *RootMonitor) Check(ctx context.Context) {
	for _, root := range m.registry.Roots() {
		m.probe(ctx, root)
	}
}

func (m *RootMonitor) probe(ctx context.Context, root VirtualRoot) {
	err := root.Backend.Probe(ctx, root.AbsolutePath)
	available := err == nil

	m.mu.Lock()
	prev, seen := m.status[root.Slug]
	m.status[root.Slug] = available
	m.mu.Unlock()

	if seen && prev == available {
		return
	}
	if available {
		logger.Info("根目录可用", logger.String("slug", root.Slug), logger.String("path", root.AbsolutePath))
	} else {
		logger.Warn("根目录不可用",
			logger.String("slug", root.Slug),
			logger.String("path", root.AbsolutePath),
			logger.ErrorField(err))
	}
}

// Run 阻塞直到 ctx 结束
func (m *RootMonitor) Run(ctx context.Context) error {
	var (
		events  <-chan fsnotify.Event
		errs    <-chan error
		watched map[string][]VirtualRoot
	)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("创建文件监听失败，仅使用定时探测", logger.ErrorField(err))
	} else {
		defer watcher.Close()
		watched = m.watchLocalRoots(watcher)
		events, errs = watcher.Events, watcher.Errors
	}
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			for _, root := range watched[ev.Name] {
				m.probe(ctx, root)
				// 根目录重建后需要重新加入监听
				if ev.Has(fsnotify.Create) {
					rewatch(watcher, root.AbsolutePath)
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("文件监听错误", logger.ErrorField(err))
		}
	}
}

// watchLocalRoots 监听本地根的父目录，返回 事件路径 -> 受影响的根
//
// 根目录自身被删除或改名时，父目录会收到以根目录路径命名的事件。
func (m *RootMonitor) watchLocalRoots(watcher *fsnotify.Watcher) map[string][]VirtualRoot {
	watched := make(map[string][]VirtualRoot)
	added := make(map[string]bool)
	for _, root := range m.registry.Roots() {
		if root.Backend.Kind() != "local" {
			continue
		}
		for _, dir := range []string{filepath.Dir(root.AbsolutePath), root.AbsolutePath} {
			if added[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				logger.Debug("无法监听目录", logger.String("dir", dir), logger.ErrorField(err))
				continue
			}
			added[dir] = true
		}
		watched[root.AbsolutePath] = append(watched[root.AbsolutePath], root)
	}
	return watched
}

// Status 按配置顺序返回各根目录状态
func (m *RootMonitor) Status() []RootStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roots := m.registry.Roots()
	out := make([]RootStatus, 0, len(roots))
	for _, root := range roots {
		out = append(out, RootStatus{
			Slug:        root.Slug,
			DisplayName: root.DisplayName,
			Backend:     root.Backend.Kind(),
			Available:   m.status[root.Slug],
		})
	}
	return out
}

// AnyAvailable 至少一个根可用
func (m *RootMonitor) AnyAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ok := range m.status {
		if ok {
			return true
		}
	}
	return false
}

// rewatch 根目录重建后重新加入监听，失败时只剩周期探测
func rewatch(watcher *fsnotify.Watcher, dir string) {
	if err := watcher.Add(dir); err != nil {
		logger.Debug("无法重新监听目录", logger.String("dir", dir), logger.ErrorField(err))
	}
}
