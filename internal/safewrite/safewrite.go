// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package safewrite creates files without ever overwriting existing ones.
//
// When the requested path is taken, SafeWriter redirects the write to
// name.new.ext, then name.new2.ext, name.new3.ext and so on up to
// MaxAlternates. Every file is opened with O_EXCL so a file that appears
// between the existence check and the write is not clobbered either.
package safewrite

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

const (
	// Marker is inserted before the final extension of a redirected path.
	Marker = ".new"
	// MaxAlternates bounds the number of redirected names tried.
	MaxAlternates = 999

	filePerm = 0o644
	dirPerm  = 0o755
)

// Result reports where content actually landed.
type Result struct {
	ActualPath string
	Redirected bool
}

// Writer persists content for write-classified tools.
type Writer interface {
	Write(path string, content []byte) (Result, error)
}

// PathCollisionError means no free alternate path exists for Path.
type PathCollisionError struct {
	Path  string
	Tried int
	err   error
}

func newPathCollisionError(path string, tried int) *PathCollisionError {
	return &PathCollisionError{
		Path:  path,
		Tried: tried,
		err: mosaicerr.New(mosaicerr.CodeSafeWritePathCollision, "no free alternate path",
			mosaicerr.FieldPath(path), mosaicerr.Field("tried", tried)),
	}
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("safewrite: %s and %d alternates already exist", e.Path, e.Tried)
}

func (e *PathCollisionError) Unwrap() error {
	return e.err
}

// AlternatePath returns the n-th redirected name for path (n >= 1).
// Only the final extension is split off; dotfiles and extensionless names
// get the marker appended.
func AlternatePath(path string, n int) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}

	marker := Marker
	if n > 1 {
		marker += strconv.Itoa(n)
	}
	return dir + stem + marker + ext
}

// SafeWriter never overwrites an existing file.
type SafeWriter struct {
	logger *slog.Logger
}

// NewSafe returns a SafeWriter. A nil logger uses slog.Default().
func NewSafe(logger *slog.Logger) *SafeWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SafeWriter{logger: logger}
}

// Write creates path with content, or the first free alternate of path.
// It returns *PathCollisionError once MaxAlternates names are taken.
func (w *SafeWriter) Write(path string, content []byte) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, mosaicerr.New(mosaicerr.CodeSafeWriteInvalidInput, "safewrite: empty path")
	}
	if err := ensureParent(path); err != nil {
		return Result{}, err
	}

	err := createExclusive(path, content)
	if err == nil {
		return Result{ActualPath: path}, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return Result{}, writeFailure(err, path)
	}

	for n := 1; n <= MaxAlternates; n++ {
		alt := AlternatePath(path, n)
		err := createExclusive(alt, content)
		if err == nil {
			w.logger.Info("write redirected to avoid overwrite",
				"requested", path,
				"actual", alt,
			)
			return Result{ActualPath: alt, Redirected: true}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return Result{}, writeFailure(err, alt)
		}
	}

	return Result{}, newPathCollisionError(path, MaxAlternates)
}

// DirectWriter writes in place, replacing existing files.
type DirectWriter struct {
	logger *slog.Logger
}

// NewDirect returns a DirectWriter. A nil logger uses slog.Default().
func NewDirect(logger *slog.Logger) *DirectWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectWriter{logger: logger}
}

func (w *DirectWriter) Write(path string, content []byte) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, mosaicerr.New(mosaicerr.CodeSafeWriteInvalidInput, "safewrite: empty path")
	}
	if err := ensureParent(path); err != nil {
		return Result{}, err
	}

	if _, err := os.Stat(path); err == nil {
		w.logger.Warn("overwriting existing file", "path", path)
	}
	if err := os.WriteFile(path, content, filePerm); err != nil {
		return Result{}, writeFailure(err, path)
	}
	return Result{ActualPath: path}, nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return writeFailure(err, dir)
	}
	return nil
}

func createExclusive(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func writeFailure(err error, path string) error {
	return mosaicerr.Wrap(err, mosaicerr.CodeSafeWriteFailure, "safewrite: writing file", mosaicerr.FieldPath(path))
}
