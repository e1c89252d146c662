package web

import (
	"os"
	"strconv"
	"sync"
	"time"
)

// fileWatcher polls one file and notifies subscribers when its size or mtime changes.
type fileWatcher struct {
	path     string
	interval time.Duration

	mu   sync.Mutex
	fp   string
	subs map[chan struct{}]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newFileWatcher(path string, interval time.Duration) *fileWatcher {
	if interval <= 0 {
		interval = time.Second
	}
	w := &fileWatcher{
		path:     path,
		interval: interval,
		subs:     map[chan struct{}]struct{}{},
		stopCh:   make(chan struct{}),
	}
	w.fp = w.fingerprint()
	return w
}

func (w *fileWatcher) fingerprint() string {
	st, err := os.Stat(w.path)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(st.ModTime().UnixNano(), 10) + ":" + strconv.FormatInt(st.Size(), 10)
}

func (w *fileWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *fileWatcher) subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 8)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()
	return ch, func() {
		w.mu.Lock()
		delete(w.subs, ch)
		w.mu.Unlock()
		close(ch)
	}
}

func (w *fileWatcher) broadcast() {
	w.mu.Lock()
	for ch := range w.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	w.mu.Unlock()
}

func (w *fileWatcher) watchLoop() {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-t.C:
		}

		fp := w.fingerprint()
		w.mu.Lock()
		changed := fp != w.fp
		w.fp = fp
		w.mu.Unlock()
		if changed {
			w.broadcast()
		}
	}
}
