package store

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInMemory is returned when backing up a database that has no file.
var ErrInMemory = errors.New("in-memory database cannot be backed up")

// Backup writes a tar.gz archive at outputPath holding the database file and
// each extra file that exists, such as the agent's config file. The WAL is
// checkpointed first so the copied file is self-contained.
func (s *SQLiteStore) Backup(ctx context.Context, outputPath string, extra ...string) (err error) {
	if s.path == "" || s.path == ":memory:" {
		return ErrInMemory
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)
	defer func() {
		for _, c := range []io.Closer{tw, gw, out} {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("finish backup: %w", cerr)
			}
		}
	}()

	if err := addFile(tw, s.path); err != nil {
		return fmt.Errorf("add database to archive: %w", err)
	}
	for _, path := range extra {
		if path == "" {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		if err := addFile(tw, path); err != nil {
			return fmt.Errorf("add %s to archive: %w", path, err)
		}
	}
	return nil
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
