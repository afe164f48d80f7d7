// Package framelog archives raw wire frames as hourly zstd-compressed JSONL.
package framelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/samber/oops"
)

type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// Record is one archived frame. Frame holds the exact bytes seen on the
// socket (base64 in the JSONL) since inbound frames are archived before
// decoding and need not be valid JSON or valid UTF-8.
type Record struct {
	Time      time.Time `json:"time"`
	Character string    `json:"character"`
	Direction Direction `json:"dir"`
	Frame     []byte    `json:"frame"`
}

type Writer struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(baseDir, prefix string) *Writer {
	if prefix == "" {
		prefix = "frames"
	}
	return &Writer{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Record appends one frame. Safe for concurrent use by every connection.
func (w *Writer) Record(character string, dir Direction, frame []byte) error {
	return w.write(Record{
		Time:      w.now().UTC(),
		Character: character,
		Direction: dir,
		Frame:     append([]byte(nil), frame...),
	})
}

func (w *Writer) write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := rec.Time.Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return oops.In("framelog").Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return oops.In("framelog").Wrapf(err, "open %s", path)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadFile decodes every record of one archive file. A file reopened after a
// restart holds several zstd frames back to back; the decoder reads them all.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oops.In("framelog").Wrapf(err, "open %s", path)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, oops.In("framelog").Wrapf(err, "zstd %s", path)
	}
	defer dec.Close()
	return readRecords(dec)
}

func readRecords(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, oops.In("framelog").Wrapf(err, "record %d", len(out)+1)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
