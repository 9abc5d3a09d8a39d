package synclog

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse extracts a SyncRun from log content written in the given format.
//
// The only failure is content that cannot be decoded as UTF-8 text, reported
// as an *IOError wrapping ErrEncoding.
func Parse(content []byte, f Format) (*SyncRun, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return nil, &IOError{Err: ErrEncoding}
	}

	if f == Markup {
		return parseMarkup(string(content)), nil
	}
	return parsePlain(string(content)), nil
}

// ParseFile reads and parses the log at path, inferring the format from its
// extension.
func ParseFile(path string) (*SyncRun, error) {
	// #nosec G304 - path comes from the watcher or the command line
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &IOError{Path: path, Err: fmt.Errorf("%w: %w", ErrNotFound, err)}
		}
		return nil, &IOError{Path: path, Err: err}
	}

	run, err := Parse(content, FormatForPath(path))
	if err != nil {
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			ioErr.Path = path
		}
		return nil, err
	}
	return run, nil
}

// Plain-text grammar.
var (
	// Examples:
	//   Nightly Backup 9/13/2025 [2:30:15 PM]
	headerPattern = regexp.MustCompile(`^(.+) (\d+/\d+/\d+) \[(\d+:\d+:\d+ \w+)\]`)

	//   |    Items processed: 5 (1.2 MB)
	itemsLinePattern = regexp.MustCompile(`^\|?\s*Items processed:`)
	itemsPattern     = regexp.MustCompile(`Items processed: (\d+) \(([\d.]+ \w+)\)`)

	//   |    Total time: 0:00:30
	totalTimeLinePattern = regexp.MustCompile(`^\|?\s*Total time:`)
	totalTimePattern     = regexp.MustCompile(`Total time: (\d+:\d+:\d+)`)

	//   [2:30:16 PM]  Info: Comparison finished: 1,204 items found – Time elapsed: 0:00:15
	comparisonPattern = regexp.MustCompile(`Info:\s+Comparison finished: ([\d,]+) items found [–-] Time elapsed: (\d+:\d+:\d+)`)

	//   [2:30:20 PM]  Info: Creating file "C:\Dest\VideoFile\Proj\shot.mov"
	//   Info: [2:30:20 PM] Creating file "C:\Dest\VideoFile\Proj\shot.mov"
	createdPattern = regexp.MustCompile(`(?:\[(\d+:\d+:\d+ \w+)\]\s*)?Info:\s+(?:\[(\d+:\d+:\d+ \w+)\]\s+)?Creating file "(.+)"`)
)

const folderPairMarker = "Synchronizing folder pair: Update >"

// plainScanner walks the lines of a .log file. Each step consumes one or more
// lines and returns the index to resume from.
type plainScanner struct {
	lines      []string
	run        *SyncRun
	headerSeen bool
}

func parsePlain(content string) *SyncRun {
	s := &plainScanner{
		lines: splitLines(content),
		run:   newSyncRun(),
	}
	for i := 0; i < len(s.lines); {
		i = s.step(i)
	}
	return s.run
}

func (s *plainScanner) step(i int) int {
	line := strings.TrimSpace(s.lines[i])
	if line == "" {
		return i + 1
	}

	if !s.headerSeen {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			s.run.SyncName = m[1]
			s.run.Date = m[2]
			s.run.StartTime = m[3]
			s.headerSeen = true
			return i + 1
		}
	}

	s.summary(line)

	if m := comparisonPattern.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			s.run.ComparisonItems = &n
		}
		elapsed := m[2]
		s.run.ComparisonTime = &elapsed
		return i + 1
	}

	if strings.Contains(line, folderPairMarker) {
		if next, ok := s.openOperation(i); ok {
			return next
		}
	}

	s.fileCreated(line)
	return i + 1
}

// summary picks up the "Items processed" and "Total time" lines. It does not
// consume the line; later checks still see it.
func (s *plainScanner) summary(line string) {
	switch {
	case itemsLinePattern.MatchString(line):
		if m := itemsPattern.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				s.run.ItemsProcessed = &n
			}
			size := m[2]
			s.run.TotalSize = &size
		}
	case totalTimeLinePattern.MatchString(line):
		if m := totalTimePattern.FindStringSubmatch(line); m != nil {
			total := m[1]
			s.run.TotalTime = &total
		}
	}
}

// openOperation starts a folder pair at line i. The two following lines are
// the source and destination; without both, no operation is opened.
func (s *plainScanner) openOperation(i int) (int, bool) {
	if i+2 >= len(s.lines) {
		return i, false
	}
	s.run.Operations = append(s.run.Operations, SyncOperation{
		Source:       strings.TrimSpace(s.lines[i+1]),
		Destination:  strings.TrimSpace(s.lines[i+2]),
		FilesCreated: make([]FileEvent, 0),
	})
	return i + 3, true
}

// fileCreated records a file event on the latest operation. Events seen before
// any operation, or without a timestamp, are dropped.
func (s *plainScanner) fileCreated(line string) {
	m := createdPattern.FindStringSubmatch(line)
	if m == nil || len(s.run.Operations) == 0 {
		return
	}

	// Only a timestamp ahead of the path counts; brackets inside the quoted
	// path are part of the file name.
	ts := m[1]
	if ts == "" {
		ts = m[2]
	}
	if ts == "" {
		return
	}

	op := &s.run.Operations[len(s.run.Operations)-1]
	op.FilesCreated = append(op.FilesCreated, FileEvent{
		Timestamp: ts,
		FilePath:  m[3],
	})
}

// splitLines splits on \n, \r\n and \r. A trailing line terminator does not
// produce an extra empty line.
func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// Markup grammar.
var (
	markupNamePattern      = regexp.MustCompile(`<span style="font-weight:600; color:gray;">([^<]+)</span>`)
	markupDatePattern      = regexp.MustCompile(`(\d+/\d+/\d+)`)
	markupStartTimePattern = regexp.MustCompile(`(\d+:\d+:\d+ \w+)</span>`)
	markupTimestampPattern = regexp.MustCompile(`<td valign="top">(\d+:\d+:\d+ \w+)</td>`)
	markupCreatedPattern   = regexp.MustCompile(`Creating file &quot;([^&]+)&quot;`)
)

// parseMarkup extracts each field independently. Timestamps and created paths
// are paired by position; when their counts differ the extra entries on the
// longer side are dropped.
func parseMarkup(content string) *SyncRun {
	run := newSyncRun()

	if m := markupNamePattern.FindStringSubmatch(content); m != nil {
		run.SyncName = html.UnescapeString(m[1])
	}
	if m := markupDatePattern.FindStringSubmatch(content); m != nil {
		run.Date = m[1]
	}
	if m := markupStartTimePattern.FindStringSubmatch(content); m != nil {
		run.StartTime = m[1]
	}

	timestamps := markupTimestampPattern.FindAllStringSubmatch(content, -1)
	paths := markupCreatedPattern.FindAllStringSubmatch(content, -1)

	n := min(len(timestamps), len(paths))
	files := make([]FileEvent, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, FileEvent{
			Timestamp: timestamps[i][1],
			FilePath:  html.UnescapeString(paths[i][1]),
		})
	}

	run.Operations = append(run.Operations, SyncOperation{FilesCreated: files})
	return run
}
