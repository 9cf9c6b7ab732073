package enviro

import (
	"context"
	"errors"
	"io"

	"github.com/jersme/enviro/internal/adapters/sink"
	"github.com/jersme/enviro/internal/adapters/wal"
	"github.com/jersme/enviro/internal/domain"
)

// ExportOptions selects which WAL records ExportWAL writes.
type ExportOptions struct {
	Dir string
	// From is the first entry id to export; 0 resumes after the last commit.
	From uint64
	// Commit advances the export checkpoint past the last exported record.
	Commit bool
}

type ExportResult struct {
	Count int
	First uint64
	Last  uint64
}

// ExportWAL writes WAL records as JSON lines to w, oldest first.
func ExportWAL(opts ExportOptions, w io.Writer) (ExportResult, error) {
	var res ExportResult
	if opts.Dir == "" {
		return res, errors.New("wal dir is required")
	}
	wl, err := wal.OpenReadOnly(opts.Dir)
	if err != nil {
		return res, err
	}
	defer wl.Close()

	from := wal.EntryID(opts.From)
	if from == 0 {
		from = wl.Stats().OldestUnexported
	}

	// hide any Close method so w stays open
	out := sink.NewJSONLines(struct{ io.Writer }{w})
	err = wl.Iterate(from, func(id wal.EntryID, r domain.Reading) error {
		if err := out.Append(context.Background(), r); err != nil {
			return err
		}
		if res.Count == 0 {
			res.First = uint64(id)
		}
		res.Last = uint64(id)
		res.Count++
		return nil
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return res, err
	}

	if opts.Commit && res.Count > 0 {
		if err := wl.Commit(wal.EntryID(res.Last)); err != nil {
			return res, err
		}
	}
	return res, nil
}

// WALStats reports record ids and size of the WAL at dir.
func WALStats(dir string) (oldestUnexported, latest uint64, sizeBytes int64, err error) {
	wl, err := wal.OpenReadOnly(dir)
	if err != nil {
		return 0, 0, 0, err
	}
	defer wl.Close()
	st := wl.Stats()
	return uint64(st.OldestUnexported), uint64(st.LatestAppended), st.SizeBytes, nil
}
