// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package provider

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// Canonical provider names.
const (
	NameAnthropic = "anthropic"
	NameOpenAI    = "openai"
	NameGoogle    = "google"
)

var aliases = map[string]string{
	"anthropic":      NameAnthropic,
	"anthropic-like": NameAnthropic,
	"claude":         NameAnthropic,
	"openai":         NameOpenAI,
	"openai-like":    NameOpenAI,
	"gpt":            NameOpenAI,
	"google":         NameGoogle,
	"gemini":         NameGoogle,
	"gemini-like":    NameGoogle,
}

// CanonicalName resolves a provider name or alias, case-insensitively.
func CanonicalName(name string) (string, error) {
	canon, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", mosaicerr.New(mosaicerr.CodeProviderNotFound,
			"unknown provider: "+name+" (choose from anthropic, openai, google)",
			mosaicerr.FieldProvider(name))
	}
	return canon, nil
}

// Config is what a Factory needs to build an adapter.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Factory builds a Provider.
type Factory func(cfg Config) (Provider, error)

// Registry maps canonical provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a canonical name or alias.
func (r *Registry) Register(name string, f Factory) error {
	canon, err := CanonicalName(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[canon] = f
	return nil
}

// Names returns the registered canonical names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// New builds the provider named by ref, which is "name" or "name/model".
// A model in ref overrides cfg.Model.
func (r *Registry) New(ref string, cfg Config) (Provider, error) {
	name, model := ParseRef(ref)
	canon, err := CanonicalName(name)
	if err != nil {
		return nil, err
	}
	if model != "" {
		cfg.Model = model
	}

	r.mu.RLock()
	f, ok := r.factories[canon]
	r.mu.RUnlock()
	if !ok {
		return nil, mosaicerr.New(mosaicerr.CodeProviderNotFound,
			"provider not registered: "+canon, mosaicerr.FieldProvider(canon))
	}
	return f(cfg)
}

// ParseRef splits "provider/model". The model part may itself contain
// slashes.
func ParseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
