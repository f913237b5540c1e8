// Command ytframes builds a chronological slideshow video from one frame of
// every upload on a YouTube channel.
//
// Usage:
//
//	ytframes [flags] <channel-url>
//
// Exit codes: 0 on success, 1 on failure, 2 when the channel yields nothing
// to assemble.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ytframes/internal/compile"
	"ytframes/internal/config"
	"ytframes/internal/ffmpeg"
	"ytframes/internal/frames"
	"ytframes/internal/retry"
	"ytframes/internal/storage"
	"ytframes/internal/youtube"
)

const (
	exitOK    = 0
	exitError = 1
	exitEmpty = 2
)

var knownBrowsers = map[string]bool{
	"brave": true, "chrome": true, "chromium": true, "edge": true,
	"firefox": true, "opera": true, "safari": true, "vivaldi": true,
	"none": true,
}

type options struct {
	channelURL string
	position   float64
	hold       float64
	output     string
	maxHeight  int
	workers    int
	limit      int
	browser    string
	resume     bool
	refresh    bool
	keepTemp   bool
}

func main() {
	log.SetFlags(0)
	os.Exit(run())
}

func run() int {
	// Optional .env alongside the binary; absence is not an error.
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()

	ytdlp := youtube.NewClient(cfg.YtdlpPath, cfg.YtdlpTimeout, cfg.RequestInterval)
	ytdlp.RateLimit = cfg.RateLimit
	if opts.browser != "none" {
		ytdlp.CookieBrowser = opts.browser
	}
	ffmpegTool := ffmpeg.NewTool(cfg.FFmpegPath)

	if err := ytdlp.CheckInstalled(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}
	if err := ffmpegTool.CheckInstalled(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}

	workers := opts.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if opts.browser == "none" && workers > 2 {
			// Unauthenticated access draws throttling quickly at higher
			// parallelism.
			log.Printf("ytframes: no browser cookies; capping workers at 2")
			workers = 2
		}
	}

	cache := storage.NewCache(cfg.CacheDir)
	fetcher := &youtube.Fetcher{
		Cache:       cache,
		Lister:      ytdlp,
		Retry:       retry.Config{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryDelay},
		MinDuration: cfg.MinDuration,
	}
	if cfg.APIKey != "" {
		api, err := youtube.NewAPILister(ctx, cfg.APIKey)
		if err != nil {
			log.Printf("ytframes: warning: api client unavailable (%v); using yt-dlp only", err)
		} else {
			fetcher.API = api
		}
	}

	log.Printf("ytframes: fetching channel %s", opts.channelURL)
	videos, err := fetcher.Fetch(ctx, opts.channelURL, youtube.FetchOptions{
		PreferCache:  opts.resume,
		ForceRefresh: opts.refresh,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}
	if opts.limit > 0 && len(videos) > opts.limit {
		videos = videos[:opts.limit]
	}
	if len(videos) == 0 {
		fmt.Fprintln(os.Stderr, "no eligible videos found on the channel")
		return exitEmpty
	}
	log.Printf("ytframes: %d videos to process", len(videos))

	frameDir := cache.FrameDir(opts.channelURL)
	if !opts.resume {
		if err := os.RemoveAll(frameDir); err != nil {
			fmt.Fprintln(os.Stderr, "error: reset frame dir:", err)
			return exitError
		}
	}

	workDir, cleanupWork, err := scratchDir(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}
	defer cleanupWork()

	extractor := &frames.Extractor{
		Retriever:  ytdlp,
		Capturer:   ffmpegTool,
		FrameDir:   frameDir,
		WorkDir:    workDir,
		Percent:    opts.position,
		MaxHeight:  opts.maxHeight,
		UseCookies: opts.browser != "none",
	}
	scheduler := &frames.Scheduler{
		Runner:     extractor,
		FrameDir:   frameDir,
		Workers:    workers,
		OnProgress: progressPrinter(),
	}

	summary, err := scheduler.Run(ctx, videos)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}
	if len(summary.Results) == 0 {
		fmt.Fprintln(os.Stderr, "no frames could be extracted")
		printFailures(summary)
		return exitEmpty
	}

	compiler := &compile.Compiler{Compositor: ffmpegTool, Hold: opts.hold}
	if err := compiler.Compile(ctx, summary.Results, opts.output); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}

	printSummary(summary, opts.output, time.Since(started))
	return exitOK
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("ytframes", flag.ContinueOnError)
	fs.Float64Var(&opts.position, "position", 50, "frame position within each video, percent 0-100")
	fs.Float64Var(&opts.hold, "frame-duration", 0.2, "seconds each frame stays on screen")
	fs.StringVar(&opts.output, "output", "channel_compilation.mp4", "output video path")
	fs.IntVar(&opts.maxHeight, "max-height", 720, "maximum source resolution in pixels")
	fs.IntVar(&opts.workers, "workers", 0, "parallel extraction workers (0 = auto)")
	fs.IntVar(&opts.limit, "limit", 0, "process at most this many videos (0 = all)")
	fs.StringVar(&opts.browser, "browser", "chrome", "browser for cookie extraction, or none")
	fs.BoolVar(&opts.resume, "resume", false, "reuse cached metadata and existing frames")
	fs.BoolVar(&opts.refresh, "refresh", false, "re-enumerate the channel even when cached")
	fs.BoolVar(&opts.keepTemp, "keep-temp", false, "keep downloaded clips for inspection")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: ytframes [flags] <channel-url>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("exactly one channel URL is required")
	}
	opts.channelURL = fs.Arg(0)

	if !strings.HasPrefix(opts.channelURL, "http://") && !strings.HasPrefix(opts.channelURL, "https://") {
		return nil, fmt.Errorf("channel URL must start with http:// or https://")
	}
	if opts.position < 0 || opts.position > 100 {
		return nil, fmt.Errorf("position must be between 0 and 100")
	}
	if opts.hold <= 0 {
		return nil, fmt.Errorf("frame-duration must be positive")
	}
	if opts.maxHeight < 144 {
		return nil, fmt.Errorf("max-height must be at least 144")
	}
	if opts.limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative")
	}
	opts.browser = strings.ToLower(opts.browser)
	if !knownBrowsers[opts.browser] {
		return nil, fmt.Errorf("unknown browser %q", opts.browser)
	}

	output, err := normalizeOutput(opts.output)
	if err != nil {
		return nil, err
	}
	opts.output = output

	return opts, nil
}

// normalizeOutput expands a leading ~ and forces the .mp4 suffix.
func normalizeOutput(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if !strings.EqualFold(filepath.Ext(path), ".mp4") {
		path += ".mp4"
	}
	return path, nil
}

// scratchDir picks the clip staging area. With -keep-temp the clips land
// next to the output and survive the run.
func scratchDir(opts *options) (string, func(), error) {
	if opts.keepTemp {
		dir := filepath.Join(filepath.Dir(opts.output), "ytframes_clips")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", nil, fmt.Errorf("create clip dir: %w", err)
		}
		log.Printf("ytframes: keeping downloaded clips under %s", dir)
		return dir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "ytframes-*")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// progressPrinter renders a single self-overwriting status line and a full
// line per failure.
func progressPrinter() func(frames.ProgressEvent) {
	return func(e frames.ProgressEvent) {
		if e.Failed {
			fmt.Fprintf(os.Stderr, "\r\033[2Kfailed: %s: %s\n", e.Title, e.Reason)
		}
		fmt.Fprintf(os.Stderr, "\r\033[2K[%d/%d] %d failed  %s", e.Done, e.Total, e.Errors, truncateTitle(e.Title))
	}
}

func truncateTitle(title string) string {
	const max = 60
	if len(title) > max {
		return title[:max-3] + "..."
	}
	return title
}

func printSummary(summary *frames.Summary, output string, elapsed time.Duration) {
	fmt.Printf("done: %d/%d frames extracted", len(summary.Results), summary.Total)
	if summary.Resumed > 0 {
		fmt.Printf(" (%d resumed)", summary.Resumed)
	}
	fmt.Printf(" in %s\n", elapsed.Round(time.Second))
	printFailures(summary)
	fmt.Printf("output: %s\n", output)
}

func printFailures(summary *frames.Summary) {
	if len(summary.Failures) == 0 {
		return
	}
	fmt.Printf("failures: %d\n", len(summary.Failures))
	for _, category := range tallyOrder(summary) {
		fmt.Printf("  %s: %d\n", category, summary.Tally[category])
	}
	for _, failure := range summary.Failures {
		fmt.Printf("  - %s: %s\n", failure.Video.Title, failure.Reason)
	}
}

// tallyOrder lists the failure categories most common first, name as the
// tie-break so output is stable.
func tallyOrder(summary *frames.Summary) []frames.Category {
	categories := make([]frames.Category, 0, len(summary.Tally))
	for category := range summary.Tally {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		a, b := categories[i], categories[j]
		if summary.Tally[a] != summary.Tally[b] {
			return summary.Tally[a] > summary.Tally[b]
		}
		return a < b
	})
	return categories
}
