/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// gitfleet reconciles a declarative manifest of Git repositories and GitHub
// release assets with the local filesystem: it clones what is missing,
// updates what drifted, downloads and extracts release assets, and recurses
// into fleets nested inside synced repositories.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/mattn/go-isatty"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"

	"chainguard.dev/gitfleet/assetfetcher"
	"chainguard.dev/gitfleet/fleet"
	"chainguard.dev/gitfleet/gitclient"
	"chainguard.dev/gitfleet/manifest"
)

// version is stamped at build time via
// -ldflags "-X main.version=v1.2.3".
var version = "devel"

// anchorInPlace is the value --anchor takes when given without =FILE; it
// selects overwriting the source manifest.
const anchorInPlace = "SOURCE"

type config struct {
	// GitHubToken authenticates GitHub API calls and HTTPS clones.
	GitHubToken string `env:"GITHUB_TOKEN"`
	// Parallel overrides the worker count when --parallel is not given.
	Parallel int `env:"GITFLEET_PARALLEL,default=0"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("gitfleet", pflag.ContinueOnError)
	flags.SortFlags = false
	var (
		dryRun       = flags.Bool("dry-run", false, "report what would change without cloning, fetching, or writing")
		forceShallow = flags.Bool("force-shallow-clone", false, "clone every repository shallow regardless of its manifest setting")
		anchorTarget = flags.String("anchor", "", "pin every revision to its current commit SHA and rewrite the manifest; --anchor=FILE writes elsewhere")
		parallel     = flags.Int("parallel", fleet.DefaultParallel, "number of concurrent work items")
		verbose      = flags.Bool("verbose", false, "debug logging plus a per-item report table")
		showVersion  = flags.Bool("version", false, "print the version and exit")
	)
	flags.BoolP("help", "h", false, "show help")
	flags.Lookup("anchor").NoOptDefVal = anchorInPlace

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(flags)
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if help, _ := flags.GetBool("help"); help {
		printUsage(flags)
		return 0
	}
	if *showVersion {
		fmt.Printf("gitfleet %s\n", version)
		return 0
	}
	if rest := flags.Args(); len(rest) > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", rest[0])
		return 2
	}

	ctx, cancel := context.WithCancel(logContext(*verbose))
	defer cancel()
	log := clog.FromContext(ctx)

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Errorf("Processing environment: %v", err)
		return 2
	}
	if !flags.Changed("parallel") && cfg.Parallel > 0 {
		*parallel = cfg.Parallel
	}
	if *parallel < 1 {
		fmt.Fprintln(os.Stderr, "--parallel must be at least 1")
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.Errorf("Getting working directory: %v", err)
		return 1
	}
	m, path, err := manifest.LoadDir(cwd)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	log.Infof("Using fleet manifest %s", path)

	var ts oauth2.TokenSource
	if cfg.GitHubToken != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
		log.Debugf("Authenticating with GITHUB_TOKEN")
	}
	client := gitclient.New(gitclient.WithTokenSource(ts))
	fetcher := assetfetcher.New(ctx, ts, assetfetcher.WithDryRun(*dryRun))
	orch := fleet.New(client, fetcher, fleet.Options{
		DryRun:       *dryRun,
		ForceShallow: *forceShallow,
		Parallel:     *parallel,
	})

	// First interrupt drains the queue while running work finishes; the
	// second aborts in-flight operations.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Warn("Interrupt received: letting running work finish (interrupt again to abort)")
		orch.Stop()
		<-sigCh
		log.Warn("Second interrupt: aborting")
		cancel()
	}()

	if flags.Changed("anchor") {
		target := *anchorTarget
		if target == anchorInPlace {
			target = ""
		}
		if err := orch.Anchor(ctx, m, path, target); err != nil {
			log.Errorf("Anchoring failed: %v", err)
			return 1
		}
		return 0
	}

	report := orch.Run(ctx, m, filepath.Dir(path))
	summarize(ctx, report)
	if *verbose {
		if err := renderTable(os.Stdout, report); err != nil {
			log.Errorf("Rendering report: %v", err)
		}
	}

	switch {
	case report.Interrupted:
		return 130
	case report.HasFailures():
		return 1
	}
	return 0
}

// logContext selects the log handler for the session: human-readable text on
// a terminal, JSON otherwise.
func logContext(verbose bool) context.Context {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return clog.WithLogger(context.Background(), clog.New(handler))
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `gitfleet syncs a fleet of Git repositories and GitHub release assets
declared in a manifest to the local filesystem.

The manifest is discovered in the current directory as gitfleet.yaml,
gitfleet.yml, or gitfleet.json (first match wins).

Usage:
  gitfleet [flags]

Flags:
%s
Environment:
  GITHUB_TOKEN       token for GitHub API calls and HTTPS clones
  GITFLEET_PARALLEL  worker count when --parallel is not given

Exit codes: 0 success, 1 any item failed, 2 usage error, 130 interrupted.
`, flags.FlagUsages())
}
