package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lex00/tastack-go/internal/config"
	"github.com/lex00/tastack-go/internal/lint"
)

type watchOptions struct {
	debounce     time.Duration
	outputFormat string
	outputFile   string
}

// newWatchCmd creates the "watch" subcommand for re-synthesizing on file changes.
func newWatchCmd(opts *globalOptions) *cobra.Command {
	var wopts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-synthesize on dotenv or image changes",
		Long: `Watch monitors the dotenv file and the image directory and re-synthesizes
the template whenever either changes.

Each pass:
- Reloads the secrets and re-fingerprints the image directory
- Runs the security audit
- Writes the template when --output is set

Examples:
    tastack watch
    tastack watch -o template.json
    tastack watch --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), opts, wopts)
		},
	}

	cmd.Flags().DurationVar(&wopts.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&wopts.outputFormat, "format", "f", "json", "Output format for the template: json or yaml")
	cmd.Flags().StringVarP(&wopts.outputFile, "output", "o", "", "Output file for the template")

	return cmd
}

// runWatch synthesizes once, then again after every relevant change until ctx ends.
func runWatch(ctx context.Context, w io.Writer, opts *globalOptions, wopts watchOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	targets, err := resolveWatchTargets(opts, wopts.outputFile)
	if err != nil {
		return err
	}
	if err := targets.add(watcher); err != nil {
		return err
	}
	for _, dir := range watcher.WatchList() {
		log.Debug().Str("dir", dir).Msg("watching")
	}
	fmt.Fprintf(w, "Watching: %s\n", strings.Join(targets.roots(), ", "))

	fmt.Fprintln(w, "Running initial synthesis...")
	runWatchBuild(w, opts, wopts)

	fmt.Fprintln(w, "\nWatching for changes... (Ctrl+C to stop)")

	return watchLoop(ctx, watcher, wopts.debounce, targets.relevant, func() {
		fmt.Fprintf(w, "\n[%s] Change detected, re-synthesizing...\n", time.Now().Format("15:04:05"))
		runWatchBuild(w, opts, wopts)
	})
}

// watchLoop calls rebuild once per burst of relevant events.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration, relevant func(string) bool, rebuild func()) error {
	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !relevant(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addDirRecursive(watcher, event.Name)
				}
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			rebuild()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")

		case <-ctx.Done():
			return nil
		}
	}
}

// watchTargets are the paths whose changes affect the synthesized template.
type watchTargets struct {
	envFile    string
	imageDir   string
	outputFile string
}

func resolveWatchTargets(opts *globalOptions, outputFile string) (watchTargets, error) {
	envFile := opts.envFile
	if envFile == "" {
		envFile = config.DefaultEnvFile
	}
	envAbs, err := filepath.Abs(envFile)
	if err != nil {
		return watchTargets{}, err
	}
	targets := watchTargets{envFile: envAbs}
	if outputFile != "" {
		if targets.outputFile, err = filepath.Abs(outputFile); err != nil {
			return watchTargets{}, err
		}
	}

	if opts.imageURI == "" {
		imageDir := opts.imageDir
		if imageDir == "" {
			imageDir = config.DefaultImageDir
		}
		imageAbs, err := filepath.Abs(imageDir)
		if err != nil {
			return watchTargets{}, err
		}
		targets.imageDir = imageAbs
	}
	return targets, nil
}

// roots returns the watched roots: the image directory, recursively, and
// the dotenv file's directory, so editors that replace the file are seen.
func (t watchTargets) roots() []string {
	envDir := filepath.Dir(t.envFile)
	if t.imageDir == "" {
		return []string{envDir}
	}
	if t.inImageDir(envDir) {
		return []string{t.imageDir}
	}
	return []string{envDir, t.imageDir}
}

func (t watchTargets) add(watcher *fsnotify.Watcher) error {
	for _, dir := range t.roots() {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.Warn().Str("dir", dir).Msg("not watching missing directory")
			continue
		}
		var err error
		if dir == t.imageDir {
			err = addDirRecursive(watcher, dir)
		} else {
			err = watcher.Add(dir)
		}
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return nil
}

func (t watchTargets) inImageDir(path string) bool {
	if t.imageDir == "" {
		return false
	}
	rel, err := filepath.Rel(t.imageDir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (t watchTargets) relevant(path string) bool {
	if path == t.envFile {
		return true
	}
	if path == t.outputFile || !t.inImageDir(path) {
		return false
	}
	rel, _ := filepath.Rel(t.imageDir, path)
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == ".git" {
			return false
		}
	}
	return true
}

// addDirRecursive adds a directory and all subdirectories to the watcher.
func addDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if filepath.Base(path) == ".git" {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

// runWatchBuild synthesizes, audits and optionally writes the template.
func runWatchBuild(w io.Writer, opts *globalOptions, wopts watchOptions) {
	synth, err := synthesize(opts)
	if err != nil {
		fmt.Fprintf(w, "Synthesis failed: %v\n", err)
		return
	}

	audit := lint.Audit(synth.template, lint.Options{})
	for _, issue := range audit.Issues {
		fmt.Fprintf(w, "%s: %s\n", issue.Severity, formatIssue(issue))
	}

	if wopts.outputFile == "" {
		fmt.Fprintln(w, "Synthesis successful")
		fmt.Fprintln(w, synth.stack.Summary())
		return
	}

	data, err := marshalTemplate(synth.template, wopts.outputFormat)
	if err != nil {
		fmt.Fprintf(w, "Output error: %v\n", err)
		return
	}
	if err := os.WriteFile(wopts.outputFile, data, 0644); err != nil {
		fmt.Fprintf(w, "Failed to write output: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Synthesis successful, wrote %s\n", wopts.outputFile)
}
