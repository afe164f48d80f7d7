package framelog

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "frames")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	w.now = func() time.Time { return at }

	if err := w.Record("ann", Inbound, []byte(`["text",["hi"],{}]`)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Record("ann", Inbound, []byte(`not json`)); err != nil {
		t.Fatalf("Record malformed: %v", err)
	}
	raw := []byte("[\"text\",[\"caf\xe9\"],{}]")
	if err := w.Record("ann", Inbound, raw); err != nil {
		t.Fatalf("Record invalid utf-8: %v", err)
	}
	if err := w.Record("bo", Outbound, []byte(`["text",["look"],{}]`)); err != nil {
		t.Fatalf("Record out: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs, err := ReadFile(filepath.Join(dir, "frames-2026-03-04-05.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("records=%d want 4", len(recs))
	}
	if string(recs[1].Frame) != "not json" || recs[1].Character != "ann" {
		t.Fatalf("malformed frame not preserved: %+v", recs[1])
	}
	if !bytes.Equal(recs[2].Frame, raw) {
		t.Fatalf("frame bytes changed: %q want %q", recs[2].Frame, raw)
	}
	if recs[3].Direction != Outbound || !recs[3].Time.Equal(at) {
		t.Fatalf("record 3: %+v", recs[3])
	}
}

func TestWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "")
	at := time.Date(2026, 3, 4, 5, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return at }
	_ = w.Record("ann", Inbound, []byte(`[1]`))
	at = at.Add(2 * time.Minute)
	_ = w.Record("ann", Inbound, []byte(`[2]`))
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, name := range []string{"frames-2026-03-04-05.jsonl.zst", "frames-2026-03-04-06.jsonl.zst"} {
		recs, err := ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("ReadFile %s: %v", name, err)
		}
		if len(recs) != 1 {
			t.Fatalf("%s records=%d", name, len(recs))
		}
	}
}

func TestWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewWriter(dir, "frames")
		w.now = func() time.Time { return at }
		if err := w.Record("ann", Inbound, []byte(`["logged_in",[],{}]`)); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	recs, err := ReadFile(filepath.Join(dir, "frames-2026-03-04-05.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records=%d want 2", len(recs))
	}
}
