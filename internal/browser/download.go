package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Chrome's download behavior and its downloadWillBegin/downloadProgress
// events are browser-global, not per-tab, so transfers triggered from pooled
// tabs would cross-talk. One transfer runs at a time; workers still
// parallelize navigation and search.
var downloadMu sync.Mutex

// downloadWatcher correlates browser download events to the transfer our
// trigger started: the first downloadWillBegin observed after the trigger is
// ours, and only progress events carrying that GUID count.
type downloadWatcher struct {
	mu     sync.Mutex
	guid   string
	begin  chan *cdpbrowser.EventDownloadWillBegin
	done   chan string
	failed chan struct{}
}

func newDownloadWatcher() *downloadWatcher {
	return &downloadWatcher{
		begin:  make(chan *cdpbrowser.EventDownloadWillBegin, 1),
		done:   make(chan string, 1),
		failed: make(chan struct{}, 1),
	}
}

func (w *downloadWatcher) handle(ev interface{}) {
	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		w.mu.Lock()
		if w.guid == "" {
			w.guid = e.GUID
			w.begin <- e
		}
		w.mu.Unlock()
	case *cdpbrowser.EventDownloadProgress:
		w.mu.Lock()
		match := w.guid != "" && e.GUID == w.guid
		w.mu.Unlock()
		if !match {
			return
		}
		switch e.State {
		case cdpbrowser.DownloadProgressStateCompleted:
			select {
			case w.done <- e.GUID:
			default:
			}
		case cdpbrowser.DownloadProgressStateCanceled:
			select {
			case w.failed <- struct{}{}:
			default:
			}
		}
	}
}

// Download runs trigger and waits for the resulting browser download to
// complete, saving it under dir. If destName is empty the portal's suggested
// filename is kept. Returns the final path.
//
// Chrome saves the file under its download GUID first; it is renamed once the
// transfer reports completed.
func Download(ctx context.Context, dir, destName string, timeout time.Duration, trigger chromedp.Action) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	downloadMu.Lock()
	defer downloadMu.Unlock()

	listenCtx, stop := context.WithCancel(ctx)
	defer stop()

	watcher := newDownloadWatcher()
	chromedp.ListenBrowser(listenCtx, watcher.handle)

	err := chromedp.Run(ctx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
		trigger,
	)
	if err != nil {
		return "", fmt.Errorf("download trigger failed: %w", err)
	}

	select {
	case guid := <-watcher.done:
		name := destName
		if name == "" {
			select {
			case b := <-watcher.begin:
				name = b.SuggestedFilename
			default:
			}
		}
		if name == "" {
			name = guid
		}
		final := filepath.Join(dir, name)
		if err := os.Rename(filepath.Join(dir, guid), final); err != nil {
			return "", fmt.Errorf("failed to move download: %w", err)
		}
		return final, nil
	case <-watcher.failed:
		return "", fmt.Errorf("download canceled by browser")
	case <-time.After(timeout):
		return "", fmt.Errorf("download timed out after %s", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
