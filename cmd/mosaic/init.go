// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mosaic-dev/mosaic/internal/config"
	"github.com/mosaic-dev/mosaic/internal/provider"
	"github.com/mosaic-dev/mosaic/internal/secrets"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// initHTTPClient is used for key validation. Tests replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// configPathForWrite is where init writes the config. Tests replace it.
var configPathForWrite = config.DefaultConfigPath

type initStep int

const (
	stepProvider initStep = iota
	stepAPIKey
	stepValidateKey
	stepDone
	stepError
)

type initResult struct {
	Provider string
	APIKey   string
}

type (
	keyValidMsg   struct{}
	keyInvalidMsg struct{ err error }
)

type configWrittenMsg struct{ path string }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// initModel is the bubbletea model for the setup wizard.
type initModel struct {
	step          initStep
	providerIdx   int
	apiKeyInput   textinput.Model
	spinner       spinner.Model
	result        initResult
	validationErr string
	configPath    string
	store         secrets.Store
	errFinal      error
	skipValidate  bool
	force         bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		apiKeyInput: apiKey,
		spinner:     sp,
		store:       store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.step {
		case stepProvider:
			return m.handleProviderKey(msg)
		case stepAPIKey:
			return m.handleAPIKeyInput(msg)
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case keyValidMsg:
		return m, writeConfigCmd(m.result, m.store, m.force)

	case keyInvalidMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.apiKeyInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	if m.step == stepAPIKey {
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(allProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = allProviders[m.providerIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		if m.skipValidate {
			return m, writeConfigCmd(m.result, m.store, m.force)
		}
		m.step = stepValidateKey
		return m, tea.Batch(m.spinner.Tick, validateKeyCmd(m.result.Provider, key))
	case "esc":
		m.step = stepProvider
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Mosaic Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(stepStyle.Render("Choose your LLM provider") + "\n\n")
		for i, p := range allProviders {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+p) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+p) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("up/down to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(stepStyle.Render(m.result.Provider+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  esc to go back  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + m.result.Provider + " API key...\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + stepStyle.Render("mosaic run") + " in your project to get started.\n")
		b.WriteString("Run " + stepStyle.Render("mosaic doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func validateKeyCmd(providerName, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, providerName, key, ""); err != nil {
			return keyInvalidMsg{err: err}
		}
		return keyValidMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, force bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeKeyAndWriteConfig(result, store, force)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// storeKeyAndWriteConfig saves the API key to the keyring and writes a
// config that references it. Without force an existing config is kept and
// an error returned.
func storeKeyAndWriteConfig(result initResult, store secrets.Store, force bool) (string, error) {
	key := secrets.ProviderKey(result.Provider)
	if err := store.Set(key, result.APIKey); err != nil {
		return "", mosaicerr.Errorf(mosaicerr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
	}

	data, err := config.GenerateYAML(result.Provider, secrets.KeyringURI(store.Service(), key))
	if err != nil {
		return "", err
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", mosaicerr.Errorf(mosaicerr.CodeCLISetupFailure, "creating config directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(cfgPath, flags, 0o600)
	if os.IsExist(err) {
		return "", mosaicerr.Errorf(mosaicerr.CodeCLISetupFailure,
			"config file already exists at %s; use --force to overwrite", cfgPath)
	}
	if err != nil {
		return "", mosaicerr.Errorf(mosaicerr.CodeCLISetupFailure, "writing config: %w", err)
	}
	_, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return "", mosaicerr.Errorf(mosaicerr.CodeCLISetupFailure, "writing config to %s: %w", cfgPath, werr)
	}
	return cfgPath, nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Pick a provider and enter its API key. The key is validated, stored in the
OS keyring, and referenced from ~/.config/mosaic/mosaic.yaml as a keyring:// URI.
No secret is written to the config file.`,
		RunE: runInit,
	}
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.Flags().Bool("skip-validation", false, "store the key without checking it against the provider")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"mosaic init requires an interactive terminal.\n"+
				"Use 'mosaic secret set <provider>' and edit ~/.config/mosaic/mosaic.yaml instead.")
		return mosaicerr.New(mosaicerr.CodeCLISetupFailure, "mosaic init: not an interactive terminal")
	}

	m := newInitModel(secretOpener(secrets.DefaultService))
	m.force, _ = cmd.Flags().GetBool("force")
	m.skipValidate, _ = cmd.Flags().GetBool("skip-validation")

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return mosaicerr.Errorf(mosaicerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}
	fm, ok := final.(initModel)
	if !ok {
		return mosaicerr.New(mosaicerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return mosaicerr.Errorf(mosaicerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Config written to "+fm.configPath)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
