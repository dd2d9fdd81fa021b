// Package journal keeps an append-only, hash-chained JSONL record of
// lifecycle events. Each line carries the hash of the line before it, so
// Verify can detect edited, dropped or reordered records.
package journal

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Record is one journal line.
type Record struct {
	ID         string      `json:"id"`
	Seq        uint64      `json:"seq"`
	Recorded   time.Time   `json:"recorded"`
	Event      model.Event `json:"event"`
	PrevHash   string      `json:"prev_hash"`
	RecordHash string      `json:"record_hash"`
}

// Journal appends events to a file.
type Journal struct {
	path string
	mu   sync.Mutex
	log  *logging.Logger
	now  func() time.Time
	skip map[model.EventType]bool
}

// Open returns a journal writing to path. The file is created on first
// append. Events of the listed types are not recorded.
func Open(path string, log *logging.Logger, skip ...model.EventType) *Journal {
	j := &Journal{
		path: path,
		log:  logging.OrDefault(log).Named("journal"),
		now:  time.Now,
		skip: map[model.EventType]bool{},
	}
	for _, t := range skip {
		j.skip[t] = true
	}
	return j
}

// Path is the journal file.
func (j *Journal) Path() string { return j.path }

// Emit appends e. Failures are logged; a sink never fails its producer.
func (j *Journal) Emit(e model.Event) {
	if j.skip[e.Type] {
		return
	}
	if _, err := j.Append(e); err != nil {
		j.log.WarnErr("append journal record", err, map[string]any{"type": string(e.Type)})
	}
}

// Append writes e as the next record and returns it.
func (j *Journal) Append(e model.Event) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return Record{}, fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return Record{}, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return Record{}, fmt.Errorf("lock journal: %w", err)
	}
	defer unlockFile(file)

	last, err := lastRecord(file)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:       uuid.New().String(),
		Seq:      1,
		Recorded: j.now().UTC(),
		Event:    e,
	}
	if last != nil {
		rec.Seq = last.Seq + 1
		rec.PrevHash = last.RecordHash
	}
	if rec.RecordHash, err = hashRecord(rec); err != nil {
		return Record{}, err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal journal record: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return Record{}, fmt.Errorf("seek journal end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return Record{}, fmt.Errorf("write journal record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return Record{}, fmt.Errorf("sync journal: %w", err)
	}
	return rec, nil
}

// lastRecord scans from the start and returns the final well-formed record.
func lastRecord(file *os.File) (*Record, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek journal start: %w", err)
	}
	var last *Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		last = &r
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return last, nil
}

func hashRecord(r Record) (string, error) {
	r.RecordHash = ""
	data, err := canonicalJSON(r)
	if err != nil {
		return "", fmt.Errorf("canonical journal record: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Report is the result of Verify.
type Report struct {
	Records int `json:"records"`
	// Broken is the 1-based line of the first bad record, zero when the
	// chain is intact.
	Broken int    `json:"broken,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// OK reports an intact chain.
func (r Report) OK() bool { return r.Broken == 0 }

// ErrMissing is returned by Verify when the journal file does not exist.
var ErrMissing = errors.New("journal does not exist")

// Verify checks every record's hash and link to its predecessor.
func Verify(path string) (Report, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Report{}, fmt.Errorf("%s: %w", path, ErrMissing)
		}
		return Report{}, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var rep Report
	var prev *Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return broken(rep, line, "malformed record"), nil
		}
		want, err := hashRecord(r)
		if err != nil {
			return Report{}, err
		}
		switch {
		case want != r.RecordHash:
			return broken(rep, line, "record hash mismatch"), nil
		case prev == nil && r.PrevHash != "":
			return broken(rep, line, "first record has a predecessor"), nil
		case prev != nil && r.PrevHash != prev.RecordHash:
			return broken(rep, line, "chain link mismatch"), nil
		case prev != nil && r.Seq != prev.Seq+1:
			return broken(rep, line, fmt.Sprintf("sequence gap: %d after %d", r.Seq, prev.Seq)), nil
		}
		rep.Records++
		prev = &r
	}
	if err := scanner.Err(); err != nil {
		return Report{}, fmt.Errorf("scan journal: %w", err)
	}
	return rep, nil
}

func broken(rep Report, line int, reason string) Report {
	rep.Broken = line
	rep.Reason = reason
	return rep
}

// Read returns all well-formed records in order.
func Read(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var out []Record
	dec := json.NewDecoder(file)
	for dec.More() {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return out, fmt.Errorf("decode journal record %d: %w", len(out)+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}
