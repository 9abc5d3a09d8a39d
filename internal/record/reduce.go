package record

import (
	"strings"

	"github.com/syncsentinel/syncsentinel/internal/synclog"
)

// sectionAnchor is the directory whose child names the section of a file.
const sectionAnchor = "VideoFile"

// FileRecord is one created file, flattened for output.
type FileRecord struct {
	FileName  string
	FileType  FileType
	Section   string
	Timestamp string
}

// Reduce flattens every file event of run into FileRecords, in operation then
// event order. File names are unique in the result: the first occurrence wins
// and keeps its position. The returned slice shares nothing with run.
func Reduce(run *synclog.SyncRun) []FileRecord {
	records := make([]FileRecord, 0, run.FileCount())
	seen := make(map[string]struct{}, run.FileCount())

	for _, op := range run.Operations {
		for _, ev := range op.FilesCreated {
			name := baseName(ev.FilePath)
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			records = append(records, FileRecord{
				FileName:  name,
				FileType:  Classify(extension(name)),
				Section:   section(ev.FilePath),
				Timestamp: ev.Timestamp,
			})
		}
	}
	return records
}

// pathSeparator returns the separator the sync tool used in path. Backslash
// wins; slash is used only for paths that contain no backslash.
func pathSeparator(path string) string {
	if !strings.Contains(path, `\`) && strings.Contains(path, "/") {
		return "/"
	}
	return `\`
}

func baseName(path string) string {
	sep := pathSeparator(path)
	if i := strings.LastIndex(path, sep); i >= 0 {
		return path[i+1:]
	}
	return path
}

func extension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// section returns the path segment immediately after the first VideoFile
// segment, or "" when there is none.
func section(path string) string {
	parts := strings.Split(path, pathSeparator(path))
	for i, p := range parts {
		if p == sectionAnchor {
			if i+1 < len(parts) {
				return parts[i+1]
			}
			return ""
		}
	}
	return ""
}
