// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mosaic-dev/mosaic/internal/agent"
	"github.com/mosaic-dev/mosaic/internal/provider"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// flagKeys binds run flags to config keys.
var flagKeys = map[string]string{
	"provider":       "agent.provider",
	"model":          "agent.model",
	"max-iterations": "agent.max_iterations",
	"timeout":        "agent.timeout",
}

var quitWords = map[string]bool{"quit": true, "exit": true, "q": true}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Run the research agent on a project",
		Long: "Run the agent on a task. Without a task the agent looks at the project and suggests\n" +
			"UI improvements. With --interactive, tasks are read line by line until quit, exit or q.",
		Example: `  mosaic run "modernize the pricing card"
  mosaic run --provider gemini --project ./web --timeout 5m
  mosaic run --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, v, strings.Join(args, " "))
		},
	}

	f := cmd.Flags()
	f.String("provider", "", "provider: anthropic, openai or google (aliases: anthropic-like, openai-like, gemini-like)")
	f.String("model", "", "model name (default depends on the provider)")
	f.StringP("project", "p", ".", "project directory the agent works in")
	f.Int("max-iterations", 0, "maximum completion calls per task")
	f.Duration("timeout", 0, "overall time limit per task")
	f.Bool("no-safety", false, "allow write_file to overwrite existing files")
	f.BoolP("quiet", "q", false, "print only the final answer")
	f.BoolP("interactive", "i", false, "read tasks from stdin")

	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func runAgent(cmd *cobra.Command, v *viper.Viper, task string) error {
	if noSafety, _ := cmd.Flags().GetBool("no-safety"); noSafety {
		v.Set("agent.safety_mode", false)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	quiet, _ := cmd.Flags().GetBool("quiet")
	var observer agent.Observer = agent.NopObserver{}
	var prog *progress
	if !quiet {
		prog = newProgress(out)
		observer = prog
	}

	loop, p, err := wireLoop(cfg, observer, slog.Default())
	if err != nil {
		return err
	}
	if prog != nil {
		prog.banner(provider.ModelRef(p), cfg.Agent.SafetyMode)
	}

	project, _ := cmd.Flags().GetString("project")
	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		return interact(cmd.Context(), loop, project, cmd.InOrStdin(), out, cmd.ErrOrStderr())
	}

	res, err := loop.Run(cmd.Context(), task, project)
	if err != nil {
		return err
	}
	printResult(out, res, quiet)
	return nil
}

// interact runs one fresh task per input line. Failed tasks are reported
// and the session continues.
func interact(ctx context.Context, loop *agent.Loop, project string, in io.Reader, out, errOut io.Writer) error {
	_, _ = fmt.Fprintln(out, dimStyle.Render("Interactive mode. Type a task, or quit to leave."))

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		_, _ = fmt.Fprint(out, stepStyle.Render("mosaic> "))
		if !sc.Scan() {
			break
		}
		task := strings.TrimSpace(sc.Text())
		if task == "" {
			continue
		}
		if quitWords[strings.ToLower(task)] {
			break
		}

		res, err := loop.Run(ctx, task, project)
		if err != nil {
			_, _ = fmt.Fprintln(errOut, errorStyle.Render("Error: "+err.Error()))
			if ctx.Err() != nil {
				return err
			}
			continue
		}
		printResult(out, res, false)
	}
	if err := sc.Err(); err != nil {
		return mosaicerr.Errorf(mosaicerr.CodeCLIRunFailure, "reading tasks: %w", err)
	}
	_, _ = fmt.Fprintln(out)
	return nil
}

func printResult(w io.Writer, res *agent.Result, quiet bool) {
	if !quiet {
		_, _ = fmt.Fprintf(w, "\n%s\n", bannerStyle.Render(fmt.Sprintf(
			"Done in %d iteration(s), %d input / %d output tokens", res.Iterations, res.Usage.InputTokens, res.Usage.OutputTokens)))
	}
	_, _ = fmt.Fprintln(w, res.Text)
}
