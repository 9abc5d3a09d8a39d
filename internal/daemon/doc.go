// Package daemon watches a folder for sync logs and feeds each new log to the
// processing pipeline.
//
// # Architecture
//
// The daemon consists of three components:
//
//   - FileWatcher: file system event monitoring using fsnotify
//   - Daemon: settle-delay queue and the single worker that processes logs
//   - PollDir: periodic directory scans for folders that do not deliver events
//
// # Settling and Ordering
//
// A freshly created log may still be written when its Create event arrives.
// The daemon queues the path and only processes it once SettleDelay has passed
// without another notification for it:
//
//	d, err := daemon.NewWithConfig(pipe, "/path/to/logs", &daemon.Config{
//	    SettleDelay: 500 * time.Millisecond,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go d.Start(ctx)
//	d.Notify("/path/to/logs/manual.log")
//
// Logs are processed one at a time in the order they were first queued, so
// writes to a sink never interleave. A log already being processed runs to
// completion when the daemon stops.
//
// # File Watching
//
// The FileWatcher maps fsnotify operations as follows:
//   - fsnotify.Create → OpCreate
//   - fsnotify.Write → OpModify
//   - fsnotify.Remove → OpDelete
//   - fsnotify.Rename → OpDelete (the new name triggers a separate Create)
//
// Only files ending in .log or .html (any case) are reported. The daemon acts
// on OpCreate alone.
//
// # Polling
//
// Network shares often do not deliver file system events. Setting
// Config.PollInterval replaces the watcher with PollDir, which lists the
// folder on a ticker and reports logs that were not present in the previous
// listing. Logs present when polling starts are not reported.
//
// # Graceful Shutdown
//
// Stop cancels the watcher and the worker, waits for the log being processed
// and drops logs that are still settling.
package daemon
