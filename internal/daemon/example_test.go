package daemon_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/syncsentinel/syncsentinel/internal/daemon"
	"github.com/syncsentinel/syncsentinel/internal/pipeline"
	"github.com/syncsentinel/syncsentinel/internal/sink"
)

// Example_basicUsage demonstrates feeding a log to the daemon by hand.
func Example_basicUsage() {
	dir, err := os.MkdirTemp("", "sentinel-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	logPath := filepath.Join(dir, "Nightly.log")
	_ = os.WriteFile(logPath, []byte(`Nightly 9/13/2025 [2:30:15 PM]
Synchronizing folder pair: Update >
C:\Source
C:\Dest
[2:30:20 PM]  Info: Creating file "C:\Dest\VideoFile\Promo\cut.mov"
`), 0644)

	done := make(chan struct{})
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipe := pipeline.New(
		pipeline.WithSink(sink.NewLocalFile(filepath.Join(dir, "log.csv")), sink.DefaultPolicy),
		pipeline.WithLogger(quiet),
		pipeline.WithReporter(pipeline.ReporterFunc(func(e pipeline.Event) {
			if e.Stage == pipeline.StageComplete {
				close(done)
			}
		})),
	)

	d, err := daemon.NewWithConfig(pipe, "", &daemon.Config{
		SettleDelay: 10 * time.Millisecond,
		Logger:      quiet,
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = d.Start(ctx)
		close(stopped)
	}()

	d.Notify(logPath)
	<-done
	cancel()
	<-stopped

	fmt.Print(pipe.Last().TSV())
	// Output: 9/13/2025	2:30:20 PM	Video	Promo	cut.mov
}

// ExampleListLogs lists the logs in a folder, newest first.
func ExampleListLogs() {
	dir, err := os.MkdirTemp("", "sentinel-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	for i, name := range []string{"monday.log", "tuesday.html", "notes.txt"} {
		path := filepath.Join(dir, name)
		_ = os.WriteFile(path, nil, 0644)
		mtime := time.Date(2025, 9, 15+i, 0, 0, 0, 0, time.UTC)
		_ = os.Chtimes(path, mtime, mtime)
	}

	logs, err := daemon.ListLogs(dir)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, l := range logs {
		fmt.Println(filepath.Base(l.Path), l.Format)
	}
	// Output:
	// tuesday.html html
	// monday.log log
}
