// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package builtin provides the research tools the agent ships with:
// read_file, list_files, write_file, search_web and fetch_url.
package builtin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mosaic-dev/mosaic/internal/tool"
)

const (
	DefaultReadLimit      = 10000
	DefaultListLimit      = 50
	DefaultFetchLimit     = 5000
	DefaultSearchResults  = 5
	DefaultHTTPTimeout    = 15 * time.Second
	DefaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	DefaultUserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"

	truncationMarker = "\n\n... [truncated]"
)

// DefaultSkipDirs are never descended into by list_files.
var DefaultSkipDirs = []string{"node_modules", ".git", "__pycache__", ".next"}

// Config tunes the built-in tools.
type Config struct {
	ReadLimit      int
	ListLimit      int
	FetchLimit     int
	SearchResults  int
	SearchEndpoint string
	UserAgent      string
	SkipDirs       []string
	// HTTPClient is used by search_web and fetch_url. Defaults to a client
	// with a DefaultHTTPTimeout timeout.
	HTTPClient *http.Client
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		ReadLimit:      DefaultReadLimit,
		ListLimit:      DefaultListLimit,
		FetchLimit:     DefaultFetchLimit,
		SearchResults:  DefaultSearchResults,
		SearchEndpoint: DefaultSearchEndpoint,
		UserAgent:      DefaultUserAgent,
		SkipDirs:       DefaultSkipDirs,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.ListLimit <= 0 {
		c.ListLimit = d.ListLimit
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = d.FetchLimit
	}
	if c.SearchResults <= 0 {
		c.SearchResults = d.SearchResults
	}
	if c.SearchEndpoint == "" {
		c.SearchEndpoint = d.SearchEndpoint
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.SkipDirs == nil {
		c.SkipDirs = d.SkipDirs
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return c
}

// Descriptors returns the built-in tools in presentation order.
func Descriptors(cfg Config) []tool.Descriptor {
	cfg = cfg.withDefaults()
	fs := &fileTools{cfg: cfg}
	web := &webTools{cfg: cfg}

	return []tool.Descriptor{
		{
			Name:        "read_file",
			Description: "Read the contents of a file from the project. Use this to examine existing code, components, styles, or config files.",
			Schema: object(map[string]any{
				"file_path": prop("string", "Absolute or relative path to the file to read"),
			}, "file_path"),
			Kind:    tool.KindRead,
			Handler: fs.readFile,
		},
		{
			Name:        "list_files",
			Description: "List files in a directory. Use this to understand project structure before reading specific files. Automatically skips node_modules, .git, etc.",
			Schema: object(map[string]any{
				"directory": prop("string", "Directory path to list"),
				"extension": prop("string", "Optional file extension filter (e.g., '.tsx', '.css', '.js')"),
			}, "directory"),
			Kind:    tool.KindRead,
			Handler: fs.listFiles,
		},
		{
			Name:        "write_file",
			Description: "Write content to a file. Use this to output improved component code or new files. IMPORTANT: Existing files are NEVER overwritten - if the file exists, a new file with .new suffix is created instead (e.g., Component.tsx -> Component.new.tsx).",
			Schema: object(map[string]any{
				"file_path": prop("string", "Path where the file should be written. If file exists, .new suffix will be added automatically."),
				"content":   prop("string", "Content to write to the file"),
			}, "file_path", "content"),
			Kind:    tool.KindWrite,
			Handler: fs.writeFile,
		},
		{
			Name:        "search_web",
			Description: "Search the web for design inspiration, UI patterns, component libraries, or bug solutions. Use specific queries like 'modern card component animations 2024' or 'react useEffect cleanup memory leak'.",
			Schema: object(map[string]any{
				"query": prop("string", "Search query - be specific for better results"),
			}, "query"),
			Kind:    tool.KindRead,
			Handler: web.searchWeb,
		},
		{
			Name:        "fetch_url",
			Description: "Fetch and read the text content from a URL. Use this to read documentation, blog posts, or examples found via search.",
			Schema: object(map[string]any{
				"url": prop("string", "The URL to fetch"),
			}, "url"),
			Kind:    tool.KindRead,
			Handler: web.fetchURL,
		},
	}
}

// Register adds every built-in tool to r.
func Register(r *tool.Registry, cfg Config) error {
	for _, d := range Descriptors(cfg) {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func errorOutput(format string, args ...any) tool.Output {
	return tool.Output{Content: fmt.Sprintf(format, args...), IsError: true}
}

// truncate cuts s to limit runes and appends the truncation marker.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMarker
}
