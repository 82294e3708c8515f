// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package builtin_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/safewrite"
	"github.com/mosaic-dev/mosaic/internal/tool"
	"github.com/mosaic-dev/mosaic/internal/tool/builtin"
)

func newRegistry(t *testing.T, cfg builtin.Config) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry(tool.RegistryConfig{Writer: safewrite.NewSafe(nil)})
	require.NoError(t, builtin.Register(r, cfg))
	return r
}

func call(t *testing.T, r *tool.Registry, name string, input map[string]any) tool.Result {
	t.Helper()
	return r.Dispatch(context.Background(), conversation.ToolUse{ID: "t1", Name: name, Input: input})
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestDescriptors(t *testing.T) {
	ds := builtin.Descriptors(builtin.Config{})

	var names []string
	for _, d := range ds {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description)
		assert.Equal(t, "object", d.Schema["type"])
	}
	assert.Equal(t, []string{"read_file", "list_files", "write_file", "search_web", "fetch_url"}, names)
	assert.Equal(t, tool.KindWrite, ds[2].Kind)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"small.txt": "hello",
		"big.txt":   strings.Repeat("é", 30),
	})
	r := newRegistry(t, builtin.Config{ReadLimit: 10})

	res := call(t, r, "read_file", map[string]any{"file_path": filepath.Join(dir, "small.txt")})
	assert.False(t, res.Block.IsError)
	assert.Equal(t, "hello", res.Block.Content)

	res = call(t, r, "read_file", map[string]any{"file_path": filepath.Join(dir, "big.txt")})
	assert.Equal(t, strings.Repeat("é", 10)+"\n\n... [truncated]", res.Block.Content)

	missing := filepath.Join(dir, "nope.txt")
	res = call(t, r, "read_file", map[string]any{"file_path": missing})
	assert.True(t, res.Block.IsError)
	assert.Equal(t, "Error: File "+missing+" not found", res.Block.Content)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/App.tsx":                "",
		"src/components/Card.tsx":    "",
		"src/styles.css":             "",
		"README.md":                  "",
		"node_modules/react/x.tsx":   "",
		".git/HEAD":                  "",
		".next/cache/page.tsx":       "",
		"src/__pycache__/mod.tsx":    "",
		"src/components/Button.tsx":  "",
		"src/components/Button.test": "",
	})
	r := newRegistry(t, builtin.Config{})

	res := call(t, r, "list_files", map[string]any{"directory": dir})
	require.False(t, res.Block.IsError, res.Block.Content)
	assert.Equal(t, strings.Join([]string{
		"README.md",
		"src/App.tsx",
		"src/components/Button.test",
		"src/components/Button.tsx",
		"src/components/Card.tsx",
		"src/styles.css",
	}, "\n"), res.Block.Content)

	res = call(t, r, "list_files", map[string]any{"directory": dir, "extension": ".tsx"})
	assert.Equal(t, "src/App.tsx\nsrc/components/Button.tsx\nsrc/components/Card.tsx", res.Block.Content)

	res = call(t, r, "list_files", map[string]any{"directory": dir, "extension": ".go"})
	assert.Equal(t, "No files found", res.Block.Content)

	res = call(t, r, "list_files", map[string]any{"directory": filepath.Join(dir, "missing")})
	assert.True(t, res.Block.IsError)
	assert.Contains(t, res.Block.Content, "not found")
}

func TestListFilesLimit(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 8; i++ {
		files[fmt.Sprintf("f%d.txt", i)] = ""
	}
	writeTree(t, dir, files)

	r := newRegistry(t, builtin.Config{ListLimit: 3})
	res := call(t, r, "list_files", map[string]any{"directory": dir})
	assert.Equal(t, "f0.txt\nf1.txt\nf2.txt", res.Block.Content)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "components", "Card.tsx")
	r := newRegistry(t, builtin.Config{})

	res := call(t, r, "write_file", map[string]any{"file_path": path, "content": "v1"})
	require.False(t, res.Block.IsError, res.Block.Content)
	assert.Equal(t, "Successfully wrote to "+path, res.Block.Content)

	res = call(t, r, "write_file", map[string]any{"file_path": path, "content": "v2"})
	require.False(t, res.Block.IsError, res.Block.Content)
	alt := filepath.Join(dir, "components", "Card.new.tsx")
	assert.Contains(t, res.Block.Content, "Successfully wrote to "+alt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
	data, err = os.ReadFile(alt)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestWriteFilePathCollisionIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	for n := 1; n <= safewrite.MaxAlternates; n++ {
		require.NoError(t, os.WriteFile(safewrite.AlternatePath(path, n), nil, 0o644))
	}

	r := newRegistry(t, builtin.Config{})
	res := call(t, r, "write_file", map[string]any{"file_path": path, "content": "y"})
	require.Error(t, res.Abort)
	assert.True(t, tool.IsFatal(res.Abort))
}

const searchPage = `<html><body>
<div class="result"><h2 class="result__title"><a href="https://a.example">  Bento   grids </a></h2>
  <a class="result__snippet">Modern <b>bento</b> layouts</a></div>
<div class="result"><h2 class="result__title">No snippet</h2></div>
<div class="result"><span>missing title</span></div>
<div class="result"><h2 class="result__title">Fourth</h2><div class="result__snippet">ignored by limit</div></div>
</body></html>`

func TestSearchWeb(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	r := newRegistry(t, builtin.Config{SearchEndpoint: srv.URL + "/html/", SearchResults: 3, UserAgent: "mosaic-test"})
	res := call(t, r, "search_web", map[string]any{"query": "card animations"})

	require.False(t, res.Block.IsError, res.Block.Content)
	assert.Equal(t, "card animations", gotQuery)
	assert.Equal(t, "mosaic-test", gotUA)
	assert.Equal(t, "**Bento grids**\nModern bento layouts\n\n**No snippet**\n\n", res.Block.Content)
}

func TestSearchWebNoResultsAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "fail" {
			http.Error(w, "nope", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html><body>nothing</body></html>"))
	}))
	defer srv.Close()

	r := newRegistry(t, builtin.Config{SearchEndpoint: srv.URL})

	res := call(t, r, "search_web", map[string]any{"query": "anything"})
	assert.Equal(t, "No results found", res.Block.Content)
	assert.False(t, res.Block.IsError)

	res = call(t, r, "search_web", map[string]any{"query": "fail"})
	assert.True(t, res.Block.IsError)
	assert.Contains(t, res.Block.Content, "Search error")
	assert.Contains(t, res.Block.Content, "503")
}

func TestFetchURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/doc", http.StatusFound)
	})
	mux.HandleFunc("/doc", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>Docs</title><style>p{}</style></head>
<body><header>Site header</header><nav>Menu</nav>
<main><h1>Layout animations</h1><!-- hidden --><p>Use <code>layout</code> prop.</p>
<script>alert(1)</script></main><footer>Copyright</footer></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := newRegistry(t, builtin.Config{})
	res := call(t, r, "fetch_url", map[string]any{"url": srv.URL + "/old"})
	require.False(t, res.Block.IsError, res.Block.Content)
	assert.Equal(t, "Docs\nLayout animations\nUse\nlayout\nprop.", res.Block.Content)

	for _, unwanted := range []string{"Site header", "Menu", "Copyright", "alert", "hidden", "p{}"} {
		assert.NotContains(t, res.Block.Content, unwanted)
	}
}

func TestFetchURLTruncatesAndRejectsBadURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("a", 100) + "</p>"))
	}))
	defer srv.Close()

	r := newRegistry(t, builtin.Config{FetchLimit: 20})
	res := call(t, r, "fetch_url", map[string]any{"url": srv.URL})
	assert.Equal(t, strings.Repeat("a", 20)+"\n\n... [truncated]", res.Block.Content)

	res = call(t, r, "fetch_url", map[string]any{"url": "file:///etc/passwd"})
	assert.True(t, res.Block.IsError)
	assert.Contains(t, res.Block.Content, "Fetch error")
}
