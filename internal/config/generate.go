// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package config

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/mosaic-dev/mosaic/internal/provider"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// GenerateYAML renders the default config template with providerName
// selected and its api_key set to apiKeyRef, normally a keyring:// URI.
// Template comments are preserved.
func GenerateYAML(providerName, apiKeyRef string) ([]byte, error) {
	canonical, err := provider.CanonicalName(providerName)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(DefaultConfigYAML, &doc); err != nil {
		return nil, mosaicerr.Errorf(mosaicerr.CodeConfigParseInvalidFormat, "parsing config template: %w", err)
	}
	if err := setScalar(&doc, canonical, "agent", "provider"); err != nil {
		return nil, err
	}
	if err := setScalar(&doc, apiKeyRef, "providers", canonical, "api_key"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, mosaicerr.Errorf(mosaicerr.CodeConfigParseInvalidFormat, "encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, mosaicerr.Errorf(mosaicerr.CodeConfigParseInvalidFormat, "encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// setScalar sets the scalar at path, creating missing mapping keys.
func setScalar(doc *yaml.Node, value string, path ...string) error {
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	for i, key := range path {
		if node.Kind != yaml.MappingNode {
			return mosaicerr.Errorf(mosaicerr.CodeConfigParseInvalidFormat, "config template: %s is not a mapping", key)
		}
		var next *yaml.Node
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value == key {
				next = node.Content[j+1]
				break
			}
		}
		if next == nil {
			next = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			if i == len(path)-1 {
				next = &yaml.Node{Kind: yaml.ScalarNode}
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, next)
		}
		node = next
	}

	node.Kind = yaml.ScalarNode
	node.Tag = "!!str"
	node.Value = value
	node.Style = yaml.DoubleQuotedStyle
	return nil
}
