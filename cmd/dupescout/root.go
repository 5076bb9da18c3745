package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ivoronin/dupescout/internal/cache"
	"github.com/ivoronin/dupescout/internal/deduper"
	"github.com/ivoronin/dupescout/internal/filters"
	"github.com/ivoronin/dupescout/internal/hasher"
	"github.com/ivoronin/dupescout/internal/keeper"
	"github.com/ivoronin/dupescout/internal/progress"
	"github.com/ivoronin/dupescout/internal/ranker"
	"github.com/ivoronin/dupescout/internal/result"
	"github.com/ivoronin/dupescout/internal/scanner"
	"github.com/ivoronin/dupescout/internal/trash"
	"github.com/ivoronin/dupescout/internal/types"
)

// rootOptions holds CLI flags for the root command.
type rootOptions struct {
	input        string
	minSizeStr   string
	maxSizeStr   string
	extensions   string
	priorityDirs string
	excludedDirs string
	boost        string
	mode         string
	sortKey      string
	keepOne      bool
	force        bool
	verbose      bool
	noProgress   bool
	workers      int
	cacheFile    string
	output       string
	loadPath     string
}

// newRootCmd creates the dupescout command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{
		minSizeStr: "1",
		boost:      "size",
		mode:       string(types.ModeNormal),
		sortKey:    string(ranker.ShortestPath),
		workers:    deduper.DefaultWorkers(),
	}

	cmd := &cobra.Command{
		Use:     "dupescout",
		Short:   "Find byte-identical duplicate files",
		Version: version + " (" + commit + ")",
		Long: `Finds byte-identical duplicate files inside a directory subtree and
optionally moves all but one file per duplicate group to the trash.

Files are compared in stages (size, then bounded content hashes, then a
full hash in full mode) so that most non-duplicates are ruled out after
a single 128 KiB read. Fast mode compares only the leading chunk and
may report false positives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.input == "" && opts.loadPath == "" {
				_ = cmd.Usage()
				return types.Errorf(types.KindUsage, "--input is required")
			}
			return runScout(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Root directory to scan")
	cmd.Flags().StringVarP(&opts.minSizeStr, "min-size", "m", opts.minSizeStr, "Minimum file size (suffix B, KB, MB or GB)")
	cmd.Flags().StringVarP(&opts.maxSizeStr, "max-size", "M", "", "Maximum file size (suffix B, KB, MB or GB)")
	cmd.Flags().StringVarP(&opts.extensions, "extensions", "x", "", "Space-separated extensions to include (with or without leading dot)")
	cmd.Flags().StringVarP(&opts.priorityDirs, "priority-dirs", "p", "", "Space-separated absolute directories whose files rank first")
	cmd.Flags().StringVar(&opts.excludedDirs, "excluded-dirs", "", "Space-separated absolute directories to skip")
	cmd.Flags().StringVar(&opts.boost, "boost", opts.boost, "Initial grouping key (size, extension, filename, fuzzy_filename)")
	cmd.Flags().StringVar(&opts.mode, "mode", opts.mode, "Comparison depth (fast, normal, full)")
	cmd.Flags().StringVar(&opts.sortKey, "sort", opts.sortKey, "Keep-one winner selection (shortest-path, shortest-filename)")
	cmd.Flags().BoolVar(&opts.keepOne, "keep-one", false, "Move all but one file per group to the trash")
	cmd.Flags().BoolVar(&opts.force, "force", false, "With --keep-one, skip the confirmation prompt")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Emit stage-by-stage statistics to stderr")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", opts.workers, "Number of parallel hash workers")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to digest cache file (enables caching)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write results as JSON to this file")
	cmd.Flags().StringVar(&opts.loadPath, "load", "", "Load previously saved JSON results instead of scanning")

	return cmd
}

// runScout executes the pipeline: scan (or load) → dedupe → report → keep-one.
func runScout(opts *rootOptions) error {
	mode, err := types.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	boost, err := parseBoostName(opts.boost)
	if err != nil {
		return err
	}
	sortKey, err := ranker.ParseSortKey(opts.sortKey)
	if err != nil {
		return err
	}

	cfg, err := buildFilters(opts)
	if err != nil {
		return err
	}

	// First SIGINT trips the stop token; the pipeline unwinds with a
	// partial result and the process exits 130.
	stop := &progress.StopToken{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		stop.Stop()
	}()

	showProgress := !opts.noProgress
	sink, bar := newCLISink(showProgress, opts.verbose)

	var (
		scan  *types.ScanResult
		dedup *types.DedupResult
	)

	if opts.loadPath != "" {
		scan, dedup, err = loadRun(opts, cfg, mode, boost, sink, stop)
	} else {
		scan, dedup, err = scanAndDedupe(opts, cfg, mode, boost, sink, stop)
	}
	if err != nil {
		return err
	}

	// Loading may have replaced the filter set, so the ranker is built
	// only after the priority directories are final.
	rk := ranker.New(cfg.PriorityDirs, sortKey)

	// Assign member order before display so the keep-one winner leads.
	for _, g := range dedup.Groups {
		rk.Rank(g)
	}

	bar.Finish(summarize(dedup))
	printGroups(os.Stdout, dedup, rk)

	if opts.output != "" {
		if err := saveRun(opts.output, cfg, scan, dedup); err != nil {
			return err
		}
	}

	if !opts.keepOne || len(dedup.Groups) == 0 {
		if stop.Stopped() {
			return types.ErrCancelled
		}
		return nil
	}

	if !opts.force && !confirmKeepOne(dedup) {
		return nil
	}

	exec := keeper.New(trash.Move, rk, sink, stop)
	outcome, _ := exec.Run(dedup)
	fmt.Fprintf(os.Stderr, "Moved %d files to trash, %d failed\n", outcome.Moved, outcome.Failed)

	if outcome.Cancelled {
		return types.ErrCancelled
	}
	if outcome.Failed > 0 {
		return types.Errorf(types.KindDelete, "%d files could not be moved to trash", outcome.Failed)
	}
	if stop.Stopped() {
		return types.ErrCancelled
	}
	return nil
}

// scanAndDedupe runs the live pipeline against the filesystem.
func scanAndDedupe(opts *rootOptions, cfg *filters.Config, mode types.Mode, boost types.Boost, sink progress.Sink, stop *progress.StopToken) (*types.ScanResult, *types.DedupResult, error) {
	scan, err := scanner.New(opts.input, cfg, sink, stop).Run()
	if err != nil {
		return nil, nil, err
	}

	digestCache, err := cache.Open(opts.cacheFile)
	if err != nil {
		return nil, nil, types.WrapError(types.KindUsage, "open cache", err)
	}
	defer func() { _ = digestCache.Close() }()

	dedup, err := deduper.New(scan.Files, deduper.Options{
		Mode:    mode,
		Boost:   boost,
		Workers: opts.workers,
		Hasher:  hasher.New(nil, digestCache),
		Sink:    sink,
		Stop:    stop,
	}).Run()
	if err != nil && !dedup.Partial {
		return nil, nil, err
	}
	return scan, dedup, nil
}

// loadRun restores a saved result. Sizes are re-verified via stat, and
// when the requested mode differs from the saved one the stored
// fingerprints are discarded and the pipeline re-runs.
func loadRun(opts *rootOptions, cfg *filters.Config, mode types.Mode, boost types.Boost, sink progress.Sink, stop *progress.StopToken) (*types.ScanResult, *types.DedupResult, error) {
	f, err := os.Open(opts.loadPath)
	if err != nil {
		return nil, nil, types.WrapError(types.KindCorruptResult, opts.loadPath, err)
	}
	defer func() { _ = f.Close() }()

	archive, err := result.Load(f)
	if err != nil {
		return nil, nil, err
	}

	*cfg = *archive.Filters

	if mode != archive.Dedup.Mode {
		// Stored digests belong to a different stage plan; re-hash.
		for _, rec := range archive.Scan.Files {
			rec.Digests = types.Digests{}
		}
		dedup, err := deduper.New(archive.Scan.Files, deduper.Options{
			Mode:    mode,
			Boost:   boost,
			Workers: opts.workers,
			Sink:    sink,
			Stop:    stop,
		}).Run()
		if err != nil && !dedup.Partial {
			return nil, nil, err
		}
		return archive.Scan, dedup, nil
	}

	return archive.Scan, keeper.Reverify(archive.Dedup, sink), nil
}

// buildFilters assembles the filter configuration from CLI flags.
func buildFilters(opts *rootOptions) (*filters.Config, error) {
	cfg := filters.New()

	var err error
	if cfg.MinSize, err = parseSize(opts.minSizeStr); err != nil {
		return nil, types.Errorf(types.KindUsage, "invalid --min-size: %v", err)
	}
	if opts.maxSizeStr != "" {
		if cfg.MaxSize, err = parseSize(opts.maxSizeStr); err != nil {
			return nil, types.Errorf(types.KindUsage, "invalid --max-size: %v", err)
		}
	}

	cfg.SetExtensions(strings.Fields(opts.extensions))
	cfg.ExcludedDirs = strings.Fields(opts.excludedDirs)
	cfg.PriorityDirs = strings.Fields(opts.priorityDirs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// saveRun writes the archive JSON to path.
func saveRun(path string, cfg *filters.Config, scan *types.ScanResult, dedup *types.DedupResult) error {
	f, err := os.Create(path)
	if err != nil {
		return types.WrapError(types.KindUsage, path, err)
	}
	defer func() { _ = f.Close() }()
	return result.Save(f, &result.Archive{Filters: cfg, Scan: scan, Dedup: dedup})
}

// printGroups writes the duplicate groups to w in display order.
// Priority files are prefixed with '*'.
func printGroups(w io.Writer, dedup *types.DedupResult, rk *ranker.Ranker) {
	for i, g := range dedup.Groups {
		fmt.Fprintf(w, "\nGroup %d (size=%d, members=%d):\n", i+1, g.Size, len(g.Files))
		for _, f := range g.Files {
			if rk.Priority(f.Path) {
				fmt.Fprintln(w, "* "+f.Path)
			} else {
				fmt.Fprintln(w, "  "+f.Path)
			}
		}
	}
}

// summarize renders the end-of-run summary line.
func summarize(dedup *types.DedupResult) string {
	var files int
	var recoverable int64
	for _, g := range dedup.Groups {
		files += len(g.Files)
		recoverable += g.RecoverableBytes()
	}
	s := fmt.Sprintf("Found %d duplicate groups (%d files, %s recoverable)",
		len(dedup.Groups), files, humanize.IBytes(uint64(recoverable)))
	if dedup.Partial {
		s += " [partial]"
	}
	return s
}

// confirmKeepOne prompts once before the destructive phase.
func confirmKeepOne(dedup *types.DedupResult) bool {
	var doomed int
	for _, g := range dedup.Groups {
		doomed += len(g.Files) - 1
	}
	fmt.Fprintf(os.Stderr, "Move %d files to trash? [y/N] ", doomed)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// parseBoostName maps CLI boost names to boost keys.
func parseBoostName(s string) (types.Boost, error) {
	switch s {
	case "size":
		return types.BoostSize, nil
	case "extension":
		return types.BoostSizeExt, nil
	case "filename":
		return types.BoostSizeFilename, nil
	case "fuzzy_filename":
		return types.BoostSizeFuzzyFilename, nil
	}
	return "", types.Errorf(types.KindUsage, "invalid --boost %q (expected size, extension, filename or fuzzy_filename)", s)
}
