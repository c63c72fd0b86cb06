package watcher

import "github.com/fsnotify/fsnotify"

func (w *Watcher) Accept(ev fsnotify.Event) bool {
	return w.accept(ev)
}
