package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/ignite/internal/models"
)

func mk(ts int64, content string) models.Thought {
	return models.Thought{ID: ts, Content: content, Timestamp: ts, LastModified: ts}
}

func TestEncodeOne(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 15, 2, 123_000_000, time.UTC).UnixMilli()
	got := EncodeOne(mk(ts, "buy milk"))
	want := "2024-03-01T09:15:02.123Z buy milk"
	if got != want {
		t.Errorf("EncodeOne = %q, want %q", got, want)
	}
}

func TestEncodeOne_RoundTrip(t *testing.T) {
	cases := []string{"a", "buy milk", "  spaced   words inside  ", "ünïcødé ✓", "2024-01-01 looks like a date"}
	ts := int64(1_700_000_000_123)
	for _, c := range cases {
		content := strings.TrimSpace(c)
		got, ok := DecodeLine(EncodeOne(mk(ts, content)))
		if !ok {
			t.Fatalf("DecodeLine failed for %q", c)
		}
		if got.Timestamp != ts || got.ID != ts {
			t.Errorf("timestamp = %d, want %d", got.Timestamp, ts)
		}
		if got.Content != content {
			t.Errorf("content = %q, want %q", got.Content, content)
		}
		if !got.SyncedToDrive {
			t.Error("decoded thought should be marked synced")
		}
	}
}

func TestEncodeAll_EmptyAndOrder(t *testing.T) {
	if got := EncodeAll(nil); got != "" {
		t.Errorf("EncodeAll(nil) = %q, want empty", got)
	}

	text := EncodeAll([]models.Thought{mk(3000, "c"), mk(1000, "a"), mk(2000, "b")})
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if !strings.HasSuffix(text, "\n") {
		t.Error("missing trailing newline")
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	for i, want := range []string{"a", "b", "c"} {
		if !strings.HasSuffix(lines[i], " "+want) {
			t.Errorf("line %d = %q, want content %q", i, lines[i], want)
		}
	}
}

func TestDecode_RoundTripSet(t *testing.T) {
	in := []models.Thought{mk(5, "five"), mk(1_700_000_000_000, "now"), mk(42, "answer with spaces")}
	out := Decode(EncodeAll(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	want := map[int64]string{}
	for _, th := range in {
		want[th.Timestamp] = th.Content
	}
	for _, th := range out {
		if want[th.Timestamp] != th.Content {
			t.Errorf("ts %d: content = %q, want %q", th.Timestamp, th.Content, want[th.Timestamp])
		}
	}
}

func TestDecode_NewestFirst(t *testing.T) {
	out := Decode(EncodeAll([]models.Thought{mk(1000, "old"), mk(3000, "new"), mk(2000, "mid")}))
	for i := 1; i < len(out); i++ {
		if out[i-1].Timestamp < out[i].Timestamp {
			t.Fatalf("not newest first: %+v", out)
		}
	}
}

func TestDecode_SkipsMalformed(t *testing.T) {
	text := strings.Join([]string{
		"",
		"   ",
		"not-a-date hello",
		"2024-03-01T09:15:02.123Z",
		"2024-03-01T09:15:02.123Z    ",
		"2024-13-45T99:99:99Z bad instant",
		"2024-03-01T09:15:02.123Z kept",
		"2024-03-01T10:00:00+02:00 offset form\r",
	}, "\n")
	out := Decode(text)
	if len(out) != 2 {
		t.Fatalf("decoded %d, want 2: %+v", len(out), out)
	}
	if out[0].Content != "kept" {
		t.Errorf("newest content = %q, want kept", out[0].Content)
	}
	wantOffset := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC).UnixMilli()
	if out[1].Timestamp != wantOffset || out[1].Content != "offset form" {
		t.Errorf("offset line = %+v", out[1])
	}
}
