package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syncsentinel/syncsentinel/internal/pipeline"
)

// DefaultSettleDelay is how long a new log must sit before it is read, so the
// sync tool can finish writing it.
const DefaultSettleDelay = 500 * time.Millisecond

// Processor handles one log file.
type Processor interface {
	Process(ctx context.Context, path string) (*pipeline.Result, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// SettleDelay is how long a queued path waits before it is processed.
	// Repeated notifications for the same path restart the wait.
	SettleDelay time.Duration

	// PollInterval switches from file system events to periodic directory
	// scans when non-zero. Use it for shares that do not deliver events.
	PollInterval time.Duration

	// Logger for daemon activity.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SettleDelay: DefaultSettleDelay,
		Logger:      slog.Default().With("component", "daemon"),
	}
}

// queued is a path waiting to settle.
type queued struct {
	path     string
	queuedAt time.Time
}

// Daemon watches a directory for new sync logs and feeds them, one at a time
// and in arrival order, to a Processor.
type Daemon struct {
	proc   Processor
	dir    string
	config *Config

	watcher *FileWatcher

	changeQueue   []queued
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
	now      func() time.Time
}

// New creates a new Daemon instance.
//
// dir is the directory to watch. It may be empty, in which case only paths
// passed to Notify are processed.
func New(proc Processor, dir string) (*Daemon, error) {
	return NewWithConfig(proc, dir, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(proc Processor, dir string, config *Config) (*Daemon, error) {
	if proc == nil {
		return nil, errors.New("processor cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.SettleDelay <= 0 {
		config.SettleDelay = DefaultSettleDelay
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "daemon")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		proc:   proc,
		dir:    dir,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}, nil
}

// Start begins watching and processing. It blocks until ctx is cancelled or
// Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Info("starting daemon", "dir", d.dir, "settle_delay", d.config.SettleDelay)

	if d.dir != "" {
		if d.config.PollInterval > 0 {
			d.wg.Add(1)
			go d.pollDirectory()
		} else {
			fw, err := NewFileWatcher()
			if err != nil {
				return err
			}
			if err := fw.Start(d.dir); err != nil {
				_ = fw.Stop()
				return err
			}
			d.watcher = fw
			d.wg.Add(1)
			go d.watchFileEvents()
		}
		d.config.Logger.Info("watching for sync logs", "dir", d.dir)
	}

	d.wg.Add(1)
	go d.processChangeQueue()

	select {
	case <-ctx.Done():
		d.config.Logger.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down. A log being processed is finished first;
// queued logs that have not started are dropped.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.config.Logger.Info("stopping daemon")
		d.cancel()

		if d.watcher != nil {
			if err := d.watcher.Stop(); err != nil {
				d.config.Logger.Warn("error closing watcher", "error", err)
			}
		}

		d.wg.Wait()
		d.config.Logger.Info("daemon stopped")
	})
	return nil
}

// Notify queues path for processing after the settle delay.
func (d *Daemon) Notify(path string) {
	d.queueChange(path)
}

// Pending returns the number of queued paths.
func (d *Daemon) Pending() int {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()
	return len(d.changeQueue)
}

// watchFileEvents queues newly created logs.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			if event.Op != OpCreate {
				continue
			}
			d.config.Logger.Debug("file event", "op", event.Op.String(), "path", event.Path)
			d.queueChange(event.Path)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Warn("watcher error", "error", err)
		}
	}
}

// pollDirectory queues logs that appear between directory scans.
func (d *Daemon) pollDirectory() {
	defer d.wg.Done()

	cfg := PollConfig{Dir: d.dir, Interval: d.config.PollInterval, Logger: d.config.Logger}
	err := PollDir(d.ctx, cfg, func(paths []string) {
		for _, p := range paths {
			d.queueChange(p)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		d.config.Logger.Error("directory polling stopped", "error", err)
	}
}

// queueChange adds a path to the change queue. A path already queued keeps
// its position and restarts its settle wait.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := d.now()
	for i := range d.changeQueue {
		if d.changeQueue[i].path == path {
			d.changeQueue[i].queuedAt = now
			return
		}
	}
	d.changeQueue = append(d.changeQueue, queued{path: path, queuedAt: now})
}

// processChangeQueue is the single worker. It wakes on a ticker and processes
// settled paths sequentially.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

func (d *Daemon) tickInterval() time.Duration {
	interval := d.config.SettleDelay / 5
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// processPendingChanges processes every path that has settled, in queue
// order. The queue lock is not held while a path is processed.
func (d *Daemon) processPendingChanges() {
	for {
		path, ok := d.nextSettled()
		if !ok {
			return
		}
		d.process(path)

		if d.ctx.Err() != nil {
			return
		}
	}
}

// nextSettled removes and returns the oldest queued path whose settle delay
// has elapsed.
func (d *Daemon) nextSettled() (string, bool) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := d.now()
	for i, q := range d.changeQueue {
		if now.Sub(q.queuedAt) < d.config.SettleDelay {
			continue
		}
		d.changeQueue = append(d.changeQueue[:i], d.changeQueue[i+1:]...)
		return q.path, true
	}
	return "", false
}

// process runs one path. Processing is not interrupted by shutdown.
func (d *Daemon) process(path string) {
	defer func() {
		if r := recover(); r != nil {
			d.config.Logger.Error("processing panicked", "path", path, "panic", fmt.Sprint(r))
		}
	}()

	res, err := d.proc.Process(context.WithoutCancel(d.ctx), path)
	if err != nil {
		d.config.Logger.Warn("failed to process log", "path", path, "error", err)
		return
	}
	d.config.Logger.Debug("processed log", "path", path, "records", len(res.Records), "failed_sinks", len(res.FailedSinks()))
}
