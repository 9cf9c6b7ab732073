package wal

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

const recordHeaderLen = 12

var errReadOnly = errors.New("wal: opened read-only")

// EntryID numbers WAL records from 1.
type EntryID uint64

type Stats struct {
	OldestUnexported EntryID
	LatestAppended   EntryID
	SizeBytes        int64
}

// FileWAL is an append-only log of Readings. Records are
// [8 bytes id][4 bytes len][len bytes json]; a torn tail left by a power cut
// is truncated on open. The meta file stores the export checkpoint.
type FileWAL struct {
	mu        sync.Mutex
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	sync      bool
	nextID    EntryID
	committed EntryID
	sizeBytes int64
	closed    bool
	readOnly  bool
}

// Open opens or creates dir/wal.log. With syncEach set every Append is
// fsynced before returning.
func Open(dir string, syncEach bool) (*FileWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "wal.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	w := &FileWAL{
		path:     path,
		metaPath: filepath.Join(dir, "wal.meta"),
		file:     f,
		writer:   bufio.NewWriterSize(f, 64<<10),
		sync:     syncEach,
	}
	if err := w.bootstrap(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// OpenReadOnly opens dir/wal.log for reading next to a live writer. A torn
// tail is skipped, never truncated, and Append fails. Commit still moves
// the export checkpoint.
func OpenReadOnly(dir string) (*FileWAL, error) {
	path := filepath.Join(dir, "wal.log")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	w := &FileWAL{
		path:     path,
		metaPath: filepath.Join(dir, "wal.meta"),
		file:     f,
		readOnly: true,
	}
	if err := w.bootstrap(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *FileWAL) Name() string { return "wal" }

func (w *FileWAL) bootstrap() error {
	if err := w.scanExisting(); err != nil {
		return err
	}
	if err := w.loadCommitted(); err != nil {
		return err
	}
	if w.committed > w.nextID {
		w.committed = w.nextID
	}
	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}

func (w *FileWAL) scanExisting() error {
	stat, err := w.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset int64
		lastID EntryID
	)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("wal scan header: %w", err)
		}
		id := EntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])

		if length > 0 {
			if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					break
				}
				return fmt.Errorf("wal scan body: %w", err)
			}
		}
		offset += recordHeaderLen + int64(length)
		lastID = id
	}

	if offset < stat.Size() && !w.readOnly {
		if err := w.file.Truncate(offset); err != nil {
			return err
		}
	}
	w.sizeBytes = offset
	w.nextID = lastID
	return nil
}

func (w *FileWAL) loadCommitted() error {
	data, err := os.ReadFile(w.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("wal meta parse: %w", err)
	}
	w.committed = EntryID(u)
	return nil
}

func (w *FileWAL) Append(_ context.Context, r domain.Reading) error {
	_, err := w.AppendReading(r)
	return err
}

// AppendReading writes r and returns its id once the record is flushed.
func (w *FileWAL) AppendReading(r domain.Reading) (EntryID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	if w.readOnly {
		return 0, errReadOnly
	}

	b, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}

	id := w.nextID + 1
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := w.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := w.writer.Write(b); err != nil {
		return 0, err
	}
	if err := w.writer.Flush(); err != nil {
		return 0, err
	}
	if w.sync {
		if err := w.file.Sync(); err != nil {
			return 0, err
		}
	}

	w.nextID = id
	w.sizeBytes += int64(len(b) + len(hdr))
	return id, nil
}

// Iterate calls fn for every record with id >= from, oldest first.
func (w *FileWAL) Iterate(from EntryID, fn func(id EntryID, r domain.Reading) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed && w.writer != nil {
		if err := w.writer.Flush(); err != nil {
			return err
		}
	}

	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(io.LimitReader(f, w.sizeBytes))

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("wal iterate truncated header: %w", err)
		}
		id := EntryID(binary.BigEndian.Uint64(hdr[0:8]))
		l := binary.BigEndian.Uint32(hdr[8:12])

		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt WAL: %w", err)
		}
		if id < from {
			continue
		}

		var reading domain.Reading
		if err := json.Unmarshal(b, &reading); err != nil {
			return fmt.Errorf("corrupt WAL entry %d: %w", id, err)
		}
		if err := fn(id, reading); err != nil {
			return err
		}
	}
}

// Commit moves the export checkpoint forward to upto.
func (w *FileWAL) Commit(upto EntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if upto > w.nextID {
		upto = w.nextID
	}
	if upto > w.committed {
		w.committed = upto
	}
	data := []byte(fmt.Sprintf("%d\n", w.committed))
	return os.WriteFile(w.metaPath, data, 0o644)
}

func (w *FileWAL) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		OldestUnexported: w.committed + 1,
		LatestAppended:   w.nextID,
		SizeBytes:        w.sizeBytes,
	}
}

func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.readOnly {
		return w.file.Close()
	}
	flushErr := w.writer.Flush()
	var syncErr error
	if w.sync {
		syncErr = w.file.Sync()
	}
	return errors.Join(flushErr, syncErr, w.file.Close())
}

var _ ports.Sink = (*FileWAL)(nil)
