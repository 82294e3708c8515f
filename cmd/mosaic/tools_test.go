// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTools_Text(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "", "tools", "--config", writeConfig(t, "agent: {}\n"))
	require.NoError(t, err)

	for _, name := range []string{"read_file (read)", "list_files (read)", "write_file (write)", "search_web (read)", "fetch_url (read)"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "parameters: directory, extension")
}

func TestTools_YAML(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "", "tools", "--config", writeConfig(t, "agent: {}\n"), "--format", "yaml")
	require.NoError(t, err)

	var infos []toolInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 5)
	assert.Equal(t, "write_file", infos[2].Name)
	assert.Equal(t, "write", infos[2].Kind)
	assert.Equal(t, []string{"content", "file_path"}, infos[2].Parameters)
	assert.ElementsMatch(t, []string{"file_path", "content"}, infos[2].Required)
}

func TestTools_UnknownFormat(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "", "tools", "--format", "xml")
	require.Error(t, err)
}
