// Package chunk is the chunked storage engine: it splits a host file into
// fixed-size rows on push, streams them back out in order on pull, and
// answers Size/Delete/Find against the files/chunks schema that package
// store creates. Neither push nor pull ever holds a whole file in memory:
// push reads one chunk-sized window at a time, and pull writes one chunk
// payload at a time through a bufio.Writer.
package chunk

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/christopher22/matryoshka/glob"
	"github.com/christopher22/matryoshka/internal/mlog"
	"github.com/christopher22/matryoshka/merrors"
	"github.com/christopher22/matryoshka/store"
)

// DefaultChunkSize is the effective chunk size persisted when a caller
// requests "no chunking" (c <= 0). 64 KiB balances row count against
// per-row overhead for typical file sizes.
const DefaultChunkSize int64 = 64 * 1024

// Handle is a fresh reference to one existing files row, bound to its id.
// It carries no connection of its own - every method below takes the
// *store.Store it was minted against.
type Handle struct {
	ID   int64
	Path string
}

// EffectiveChunkSize resolves the caller-requested chunk size: <= 0 means
// "use the default," a positive value is used verbatim.
func EffectiveChunkSize(requested int64) int64 {
	if requested <= 0 {
		return DefaultChunkSize
	}
	return requested
}

// Push ingests the host file at hostPath into the VFS at vfsPath, splitting
// it into chunkSize-or-default rows.
func Push(ctx context.Context, s *store.Store, vfsPath, hostPath string, chunkSize int64) (*Handle, error) {
	if vfsPath == "" {
		return nil, merrors.New(merrors.InvalidArgument, "push: empty vfs path")
	}
	effective := EffectiveChunkSize(chunkSize)

	f, err := os.Open(hostPath)
	if err != nil {
		return nil, merrors.Wrapf(merrors.IO, err, "push %q: read host file %q", vfsPath, hostPath)
	}
	defer f.Close()

	var id int64
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO files (path, chunk_size) VALUES (?, ?)", vfsPath, effective)
		if err != nil {
			if isUniqueViolation(err) {
				return merrors.Wrapf(merrors.AlreadyExists, err, "push %q", vfsPath)
			}
			return merrors.Wrapf(merrors.Storage, err, "push %q: insert files row", vfsPath)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return merrors.Wrapf(merrors.Storage, err, "push %q: read assigned id", vfsPath)
		}

		return writeChunks(ctx, tx, id, f, effective, vfsPath)
	})
	if err != nil {
		mlog.Errorf("Push", vfsPath, "failed: %v", err)
		return nil, err
	}

	mlog.Debugf("Push", vfsPath, "stored as file_id=%d chunk_size=%d", id, effective)
	return &Handle{ID: id, Path: vfsPath}, nil
}

// writeChunks partitions r into effective-sized windows and inserts one
// chunks row per window, ordinals dense starting at 0. A zero-length r
// still produces exactly one zero-length chunk so Size is always
// sum-of-lengths-derivable.
func writeChunks(ctx context.Context, tx *sql.Tx, fileID int64, r io.Reader, chunkSize int64, vfsPath string) error {
	buf := make([]byte, chunkSize)

	ordinal := 0
	for {
		n, readErr := io.ReadFull(r, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return merrors.Wrapf(merrors.IO, readErr, "push %q: read chunk %d", vfsPath, ordinal)
		}

		if n == 0 && ordinal > 0 {
			// Exact multiple of chunkSize: the previous full chunk was
			// already the last one, nothing more to write.
			break
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (file_id, ordinal, payload) VALUES (?, ?, ?)",
			fileID, ordinal, payload,
		); err != nil {
			return merrors.Wrapf(merrors.Storage, err, "push %q: insert chunk %d", vfsPath, ordinal)
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		ordinal++
	}
	return nil
}

// Open binds a fresh Handle to the existing files row at vfsPath.
func Open(ctx context.Context, s *store.Store, vfsPath string) (*Handle, error) {
	var id int64
	err := s.DB().QueryRowContext(ctx, "SELECT id FROM files WHERE path = ?", vfsPath).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, merrors.New(merrors.NotFound, fmt.Sprintf("open %q: no such file", vfsPath))
	}
	if err != nil {
		return nil, merrors.Wrapf(merrors.Storage, err, "open %q", vfsPath)
	}
	return &Handle{ID: id, Path: vfsPath}, nil
}

// Pull streams h's chunks, in ascending ordinal order, to a freshly
// truncated file at hostPath. A pull that fails partway leaves whatever was
// already written in place rather than cleaning up.
func Pull(ctx context.Context, s *store.Store, h *Handle, hostPath string) (err error) {
	defer func() {
		if err != nil {
			mlog.Errorf("Pull", h.Path, "failed: %v", err)
		}
	}()

	if err := checkExists(ctx, s, h); err != nil {
		return err
	}

	out, err := os.OpenFile(hostPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return merrors.Wrapf(merrors.IO, err, "pull %q: open host file %q", h.Path, hostPath)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	rows, err := s.DB().QueryContext(ctx,
		"SELECT payload FROM chunks WHERE file_id = ? ORDER BY ordinal ASC", h.ID)
	if err != nil {
		return merrors.Wrapf(merrors.Storage, err, "pull %q: query chunks", h.Path)
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return merrors.Wrapf(merrors.Storage, err, "pull %q: scan chunk", h.Path)
		}
		n, err := w.Write(payload)
		if err != nil {
			return merrors.Wrapf(merrors.IO, err, "pull %q: write host file %q", h.Path, hostPath)
		}
		total += int64(n)
	}
	if err := rows.Err(); err != nil {
		return merrors.Wrapf(merrors.Storage, err, "pull %q: iterate chunks", h.Path)
	}
	if err := w.Flush(); err != nil {
		return merrors.Wrapf(merrors.IO, err, "pull %q: flush host file %q", h.Path, hostPath)
	}

	mlog.Infof("Pull", h.Path, total)
	return nil
}

// Size returns the derived total length of h: the sum of its chunk payload
// lengths, pulled fresh from the backing store.
func Size(ctx context.Context, s *store.Store, h *Handle) (int64, error) {
	if err := checkExists(ctx, s, h); err != nil {
		return 0, err
	}
	var size int64
	err := s.DB().QueryRowContext(ctx,
		"SELECT COALESCE(SUM(LENGTH(payload)), 0) FROM chunks WHERE file_id = ?", h.ID,
	).Scan(&size)
	if err != nil {
		return 0, merrors.Wrapf(merrors.Storage, err, "size %q", h.Path)
	}
	return size, nil
}

// Delete removes h's files row (cascading to its chunks rows) and reports
// whether a row was actually removed.
func Delete(ctx context.Context, s *store.Store, h *Handle) (bool, error) {
	res, err := s.DB().ExecContext(ctx, "DELETE FROM files WHERE id = ?", h.ID)
	if err != nil {
		return false, merrors.Wrapf(merrors.Storage, err, "delete %q", h.Path)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, merrors.Wrapf(merrors.Storage, err, "delete %q: rows affected", h.Path)
	}
	mlog.Debugf("Delete", h.Path, "removed=%v", n == 1)
	return n == 1, nil
}

// Find enumerates every files row whose path matches pattern (nil means
// "*", i.e. every row), invoking sink once per match in emission order, and
// returns the number of matches. The pattern is pushed into SQL via
// glob.ToLike first; every row SQL returns is then re-matched in Go, since
// LIKE can only approximate the glob language's semantics.
func Find(ctx context.Context, s *store.Store, pattern *string, sink func(path string) error) (int, error) {
	effective := "*"
	if pattern != nil {
		effective = *pattern
	}

	m, err := glob.Compile(effective)
	if err != nil {
		return 0, err
	}

	rows, err := s.DB().QueryContext(ctx,
		fmt.Sprintf("SELECT path FROM files WHERE path LIKE ? ESCAPE '%s'", glob.LikeEscape),
		glob.ToLike(effective),
	)
	if err != nil {
		return 0, merrors.Wrap(merrors.Storage, err, "find: query files")
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return count, merrors.Wrap(merrors.Storage, err, "find: scan path")
		}
		// LIKE's pushdown is a superset filter (it cannot express the
		// precise backtracking semantics regexp.MatchString gives us),
		// so re-validate in process before counting a match.
		if !m.MatchString(p) {
			continue
		}
		if err := sink(p); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, merrors.Wrap(merrors.Storage, err, "find: iterate files")
	}
	return count, nil
}

// checkExists confirms h's files row is still present, translating a
// missing row into NotFound so a handle outlived by a Delete call fails
// every subsequent operation the same way.
func checkExists(ctx context.Context, s *store.Store, h *Handle) error {
	var id int64
	err := s.DB().QueryRowContext(ctx, "SELECT id FROM files WHERE id = ?", h.ID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return merrors.New(merrors.NotFound, fmt.Sprintf("%q: no such file", h.Path))
	}
	if err != nil {
		return merrors.Wrapf(merrors.Storage, err, "%q: lookup", h.Path)
	}
	return nil
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint
// failure, the signal Push uses to translate a duplicate path into
// AlreadyExists.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
