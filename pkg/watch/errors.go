package watch

import "errors"

var (
	ErrStartWatcher  = errors.New("watch: start filesystem watcher")
	ErrNoProjectFile = errors.New("watch: no project file")
)
