// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package builtin

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mosaic-dev/mosaic/internal/safewrite"
	"github.com/mosaic-dev/mosaic/internal/tool"
)

type fileTools struct {
	cfg Config
}

func (f *fileTools) readFile(_ context.Context, call tool.Call) (tool.Output, error) {
	path := call.String("file_path")

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errorOutput("Error: File %s not found", path), nil
	}
	if err != nil {
		return errorOutput("Error reading file: %v", err), nil
	}
	return tool.Text(truncate(string(data), f.cfg.ReadLimit)), nil
}

func (f *fileTools) listFiles(ctx context.Context, call tool.Call) (tool.Output, error) {
	root := call.String("directory")
	ext := call.String("extension")

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return errorOutput("Error: Directory %s not found", root), nil
	}

	skip := make(map[string]struct{}, len(f.cfg.SkipDirs))
	for _, d := range f.cfg.SkipDirs {
		skip[d] = struct{}{}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if _, ok := skip[d.Name()]; ok && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ext != "" && filepath.Ext(path) != ext {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return errorOutput("Error listing files: %v", err), nil
	}
	if len(files) == 0 {
		return tool.Text("No files found"), nil
	}

	sort.Strings(files)
	if len(files) > f.cfg.ListLimit {
		files = files[:f.cfg.ListLimit]
	}
	return tool.Text(strings.Join(files, "\n")), nil
}

func (f *fileTools) writeFile(_ context.Context, call tool.Call) (tool.Output, error) {
	path := call.String("file_path")
	content := call.String("content")

	res, err := call.Writer.Write(path, []byte(content))
	if err != nil {
		var collision *safewrite.PathCollisionError
		if errors.As(err, &collision) {
			return tool.Output{}, tool.Fatal(err)
		}
		return tool.Output{}, err
	}

	if res.Redirected {
		return tool.Text("Successfully wrote to " + res.ActualPath + " (" + path + " already exists and was left unchanged)"), nil
	}
	return tool.Text("Successfully wrote to " + res.ActualPath), nil
}
