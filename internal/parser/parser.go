// Package parser converts thoughts to and from the one-line remote encoding:
//
//	<ISO-8601 UTC timestamp> <content>
//
// Only the first space delimits the timestamp; content may contain spaces.
package parser

import (
	"sort"
	"strings"
	"time"

	"github.com/starford/ignite/internal/models"
)

// TimestampLayout matches the millisecond UTC form used in the remote file,
// e.g. 2024-03-01T09:15:02.123Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// EncodeOne renders a single thought as a line without a trailing newline.
// Content must not contain a line break.
func EncodeOne(t models.Thought) string {
	return time.UnixMilli(t.Timestamp).UTC().Format(TimestampLayout) + " " + t.Content
}

// EncodeAll renders thoughts oldest first, one per line, with a trailing
// newline. An empty set yields an empty string.
func EncodeAll(thoughts []models.Thought) string {
	if len(thoughts) == 0 {
		return ""
	}
	sorted := make([]models.Thought, len(thoughts))
	copy(sorted, thoughts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var b strings.Builder
	for _, t := range sorted {
		b.WriteString(EncodeOne(t))
		b.WriteByte('\n')
	}
	return b.String()
}

// Decode parses remote text into thoughts, newest first. Lines whose
// timestamp does not parse or whose content is blank are skipped. Decoded
// thoughts are marked as synced since they came from the remote.
func Decode(text string) []models.Thought {
	var out []models.Thought
	for _, line := range strings.Split(text, "\n") {
		t, ok := DecodeLine(line)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// DecodeLine parses a single line. ok is false for blank or malformed lines.
func DecodeLine(line string) (models.Thought, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.Thought{}, false
	}
	stamp, content, found := strings.Cut(line, " ")
	if !found {
		return models.Thought{}, false
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Thought{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return models.Thought{}, false
	}
	ms := ts.UnixMilli()
	return models.Thought{
		ID:            ms,
		Content:       content,
		Timestamp:     ms,
		SyncedToDrive: true,
		LastModified:  ms,
	}, true
}
