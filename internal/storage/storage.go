// Package storage opens source artifacts and writes outputs atomically.
package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

// File is a read-only source artifact backed by the filesystem.
type File struct {
	f    *os.File
	size int64
	name string
}

var _ domain.Source = (*File)(nil)

// Open opens path as a source artifact. Missing and empty files are
// extraction errors.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ExtractionFailed("open", path, fmt.Errorf("file not found"))
		}
		return nil, domain.ExtractionFailed("open", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, domain.ExtractionFailed("stat", path, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, domain.ExtractionFailed("open", path, fmt.Errorf("is a directory"))
	}
	if st.Size() == 0 {
		f.Close()
		return nil, domain.ExtractionFailed("open", path, fmt.Errorf("file is empty"))
	}
	return &File{f: f, size: st.Size(), name: path}, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) { return f.f.ReadAt(p, off) }
func (f *File) Size() int64                             { return f.size }
func (f *File) Name() string                            { return f.name }
func (f *File) Close() error                            { return f.f.Close() }

// WriteAtomic writes through fn into a temp file next to dest, then renames it
// over dest. Nothing is left at dest when fn fails.
func WriteAtomic(ctx context.Context, dest string, fn func(w io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	bw := bufio.NewWriterSize(tmp, 64*1024)
	if err := fn(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("flush output: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync output: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// CopyFile copies src to dst atomically.
func CopyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	defer in.Close()

	return WriteAtomic(ctx, dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// Move renames src to dst, copying across devices when rename fails.
func Move(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(ctx, src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// Memory is a source artifact held in memory.
type Memory struct {
	r    *bytes.Reader
	name string
}

var _ domain.Source = (*Memory)(nil)

// NewMemory wraps data as a source named name.
func NewMemory(name string, data []byte) *Memory {
	return &Memory{r: bytes.NewReader(data), name: name}
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) { return m.r.ReadAt(p, off) }
func (m *Memory) Size() int64                             { return m.r.Size() }
func (m *Memory) Name() string                            { return m.name }
