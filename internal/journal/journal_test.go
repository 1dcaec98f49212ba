package journal

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

type entry struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
}

func TestAppendRotateRead(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "events")
	at := time.Date(2024, 5, 1, 9, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return at }

	for _, typ := range []string{"joined", "bought"} {
		if err := w.Append(entry{Type: typ, GameID: "g1"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	at = at.Add(2 * time.Minute)
	if err := w.Append(entry{Type: "turn_ended", GameID: "g1"}); err != nil {
		t.Fatalf("append after rotate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "events")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2", files)
	}
	if filepath.Base(files[0]) != "events-2024-05-01-09.jsonl.zst" {
		t.Fatalf("first file=%s", files[0])
	}

	var got []entry
	for _, f := range files {
		if err := Read(f, func(line json.RawMessage) error {
			var e entry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			got = append(got, e)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(got) != 3 || got[0].Type != "joined" || got[2].Type != "turn_ended" {
		t.Fatalf("entries=%+v", got)
	}
}

func TestReopenAppendsFrame(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewWriter(dir, "events")
		w.now = func() time.Time { return at }
		if err := w.Append(entry{Type: "joined"}); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	files, _ := Files(dir, "events")
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	n := 0
	if err := Read(files[0], func(json.RawMessage) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("lines=%d want 2", n)
	}
}

func TestReadWhileWriterOpen(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "events")
	w.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	defer w.Close()

	for _, typ := range []string{"joined", "bought", "turn_ended"} {
		if err := w.Append(entry{Type: typ, GameID: "g1"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	files, err := Files(dir, "events")
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var got []string
	if err := Read(files[0], func(line json.RawMessage) error {
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		got = append(got, e.Type)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[2] != "turn_ended" {
		t.Fatalf("entries=%v want 3 before close", got)
	}
}
