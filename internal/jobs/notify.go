package jobs

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FSNotifier turns filesystem events in the sample directories into wait
// loop wake-ups.
type FSNotifier struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
	logger  *zap.Logger
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

var _ Notifier = (*FSNotifier)(nil)

// NewFSNotifier watches dirs. Every dir must exist.
func NewFSNotifier(dirs []string, logger *zap.Logger) (*FSNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}
	n := &FSNotifier{
		watcher: w,
		events:  make(chan struct{}, 1),
		logger:  logger,
		done:    make(chan struct{}),
	}
	n.wg.Add(1)
	go n.loop()
	return n, nil
}

func (n *FSNotifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			select {
			case n.events <- struct{}{}:
			default:
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// Events implements Notifier. At most one wake-up is buffered.
func (n *FSNotifier) Events() <-chan struct{} { return n.events }

// Close stops the watcher and waits for the event loop to exit.
func (n *FSNotifier) Close() error {
	var err error
	n.once.Do(func() {
		close(n.done)
		err = n.watcher.Close()
		n.wg.Wait()
	})
	return err
}
