// Package main provides the lectern CLI: assign catalog voices to
// lecturer profiles and narrate lecture text with the assigned voice.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"lectern/pkg/catalog"
	"lectern/pkg/config"
	"lectern/pkg/extract"
	"lectern/pkg/ledger"
	"lectern/pkg/logging"
	"lectern/pkg/model"
	"lectern/pkg/playback"
	"lectern/pkg/rank"
	"lectern/pkg/request"
	"lectern/pkg/selection"
	"lectern/pkg/synth"
	"lectern/pkg/textprep"
	"lectern/pkg/tracker"
	"lectern/pkg/version"
	"lectern/pkg/voicecache"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `lectern %s - academic lecture narrator

Usage: lectern [-config path] <command> [options]

Commands:
  assign    Select and pin a catalog voice for a lecturer profile
  narrate   Convert a lecture (text or HTML) into one audio file
  voices    Query the voice catalog directly
  cache     Inspect or clear the persistent voice cache
  stats     Show ledger totals and recent synthesis jobs
`, version.Version)
}

type app struct {
	cfg     *config.Config
	cache   *voicecache.Cache
	catalog *catalog.Client
	tracker *tracker.Tracker
	ledger  *ledger.Ledger // nil when disabled
}

func run() error {
	// Local .env is a convenience for the API key; absence is fine.
	_ = godotenv.Load()

	cfgPath := flag.String("config", "configs/lectern.yaml", "Path to config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanup, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	cache, err := voicecache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open voice cache: %w", err)
	}

	tr := tracker.New()
	rc := request.New(tr, request.Options{
		Timeout: time.Duration(cfg.Request.Timeout),
		Retries: cfg.Request.Retries,
		Backoff: request.NewProviderBackoff(
			time.Duration(cfg.Request.Backoff.BaseDelay),
			time.Duration(cfg.Request.Backoff.MaxDelay)),
	})

	a := &app{
		cfg:     cfg,
		cache:   cache,
		catalog: catalog.NewClient(cfg.Catalog, rc),
		tracker: tr,
	}

	if cfg.Ledger.Enabled {
		led, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer led.Close()
		a.ledger = led
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	cmdErr := a.dispatch(cmd, args)
	a.logProviderStats()
	return cmdErr
}

func (a *app) dispatch(cmd string, args []string) error {
	switch cmd {
	case "assign":
		return a.cmdAssign(args)
	case "narrate":
		return a.cmdNarrate(args)
	case "voices":
		return a.cmdVoices(args)
	case "cache":
		return a.cmdCache(args)
	case "stats":
		return a.cmdStats(args)
	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// logProviderStats records what this run cost: cache effectiveness and
// catalog traffic per provider.
func (a *app) logProviderStats() {
	for provider, s := range a.tracker.Snapshot() {
		slog.Debug("Provider stats", "provider", provider,
			"cache_hits", s.CacheHits, "cache_misses", s.CacheMisses,
			"api_success", s.APISuccess, "api_failures", s.APIFailures,
			"zero_results", s.APIZeroResult)
	}
}

func (a *app) newOrchestrator() *selection.Orchestrator {
	ex := extract.New(extract.Defaults{
		Language: a.cfg.Selection.Language,
		UseCase:  a.cfg.Selection.UseCase,
	})
	sel := rank.NewSelector(a.cfg.Selection.Strategy, a.cfg.Selection.TopK,
		rand.New(rand.NewSource(time.Now().UnixNano())))
	return selection.NewOrchestrator(a.cache, a.catalog, ex, sel, a.cfg.Selection.Weights, a.tracker)
}

func (a *app) cmdAssign(args []string) error {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	profileID := fs.String("profile", "", "Profile ID to pin the assignment under")
	name := fs.String("name", "", "Lecturer name")
	background := fs.String("background", "", "Biography / background text")
	department := fs.String("department", "", "Department or field")
	gender := fs.String("gender", "", "Profile gender (male, female, neutral)")
	accent := fs.String("accent", "", "Profile accent")
	age := fs.Int("age", 0, "Profile age in years")
	ovGender := fs.String("override-gender", "", "Explicit gender override")
	ovAccent := fs.String("override-accent", "", "Explicit accent override")
	ovAge := fs.String("override-age", "", "Explicit age bucket override (young, middle_aged, old)")
	play := fs.Bool("play", false, "Play the selected voice's preview sample")
	fs.Parse(args)

	if *name == "" && *background == "" {
		return fmt.Errorf("assign needs at least -name or -background")
	}

	profile := &model.Profile{
		ID:         *profileID,
		Name:       *name,
		Background: *background,
		Department: *department,
		Gender:     *gender,
		Accent:     *accent,
		Age:        *age,
	}
	overrides := extract.Overrides{
		Gender: model.ParseGender(*ovGender),
		Accent: *ovAccent,
		Age:    parseAgeBucket(*ovAge),
	}

	ctx := context.Background()
	rec, err := a.newOrchestrator().SelectVoiceForProfile(ctx, profile, overrides)
	if err != nil {
		return fmt.Errorf("voice selection failed: %w", err)
	}

	fmt.Printf("Selected voice: %s (%s)\n", rec.Name, rec.VoiceID)
	fmt.Printf("   Gender:   %s\n", rec.Gender)
	fmt.Printf("   Accent:   %s\n", rec.Accent)
	fmt.Printf("   Age:      %s\n", rec.Age)
	fmt.Printf("   Category: %s\n", rec.Category)
	fmt.Printf("   Quality:  %.2f\n", rec.QualityScore)
	if *profileID != "" {
		fmt.Printf("Pinned to profile %q\n", *profileID)
	}

	if a.ledger != nil && *profileID != "" {
		err := a.ledger.RecordAssignment(ctx, ledger.Assignment{
			ProfileID: *profileID,
			VoiceID:   rec.VoiceID,
			VoiceName: rec.Name,
			Strategy:  a.cfg.Selection.Strategy,
		})
		if err != nil {
			fmt.Printf("WARN: failed to record assignment in ledger: %v\n", err)
		}
	}

	if *play && rec.PreviewURL != "" {
		return a.playPreview(ctx, rec.PreviewURL)
	}
	return nil
}

func parseAgeBucket(s string) model.AgeBucket {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "young":
		return model.AgeYoung
	case "middle_aged", "middle-aged":
		return model.AgeMiddleAged
	case "old":
		return model.AgeOld
	default:
		return model.AgeUnset
	}
}

func (a *app) playPreview(ctx context.Context, previewURL string) error {
	audio, err := a.catalog.FetchPreview(ctx, previewURL)
	if err != nil {
		return fmt.Errorf("failed to fetch preview: %w", err)
	}
	return playback.New().Play(audio)
}

func (a *app) cmdNarrate(args []string) error {
	fs := flag.NewFlagSet("narrate", flag.ExitOnError)
	in := fs.String("in", "", "Lecture file (.txt or .html)")
	out := fs.String("out", "lecture.mp3", "Output audio file")
	profileID := fs.String("profile", "", "Use the voice assigned to this profile")
	voiceID := fs.String("voice", "", "Use this voice id directly")
	subject := fs.String("subject", "", "Subject tag for domain substitutions")
	stream := fs.Bool("stream", false, "Use the websocket streaming endpoint")
	play := fs.Bool("play", false, "Play the result after writing it")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("narrate needs -in")
	}
	if *voiceID == "" && *profileID == "" {
		return fmt.Errorf("narrate needs -voice or -profile")
	}

	ctx := context.Background()

	vid := *voiceID
	if vid == "" {
		vid = a.cache.GetMapping(*profileID)
		if vid == "" {
			return fmt.Errorf("no voice assigned to profile %q (run: lectern assign)", *profileID)
		}
	}

	text, err := loadLecture(*in)
	if err != nil {
		return err
	}

	prep := textprep.NewPreparer(a.cfg.TextPrep.MaxChunkSize)
	enhanced := prep.Enhance(text, *subject)
	chunks := prep.Split(enhanced)
	if len(chunks) == 0 {
		return fmt.Errorf("lecture produced no chunks")
	}
	fmt.Printf("Prepared %d chunks (%d chars)\n", len(chunks), len(enhanced))

	var engine synth.Synthesizer = a.catalog
	if *stream {
		engine = a.catalog.Streaming()
	}
	driver := synth.NewDriver(engine,
		a.cfg.Synthesis.Retries,
		time.Duration(a.cfg.Synthesis.RetryDelay),
		a.cfg.Synthesis.Concurrency)

	start := time.Now()
	audio, err := driver.Synthesize(ctx, chunks, vid, a.cfg.Catalog.ModelID, a.cfg.Synthesis.Settings)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}
	elapsed := time.Since(start)

	if err := os.WriteFile(*out, audio, 0o644); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	fmt.Printf("Wrote %s (%d bytes in %s)\n", *out, len(audio), elapsed.Round(time.Millisecond))

	if a.ledger != nil {
		err := a.ledger.RecordJob(ctx, ledger.Job{
			ID:         uuid.NewString(),
			ProfileID:  *profileID,
			VoiceID:    vid,
			ModelID:    a.cfg.Catalog.ModelID,
			ChunkCount: len(chunks),
			ByteCount:  len(audio),
			Duration:   elapsed,
		})
		if err != nil {
			fmt.Printf("WARN: failed to record job in ledger: %v\n", err)
		}
	}

	if *play {
		return playback.New().Play(audio)
	}
	return nil
}

// loadLecture reads the lecture file, flattening HTML to prose when the
// extension says so.
func loadLecture(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open lecture: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		info, err := textprep.ExtractProse(f)
		if err != nil {
			return "", fmt.Errorf("failed to extract prose: %w", err)
		}
		if !info.IsReliable {
			fmt.Printf("WARN: extracted only %d words, HTML structure may be unusual\n", info.WordCount)
		}
		return info.Prose, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read lecture: %w", err)
	}
	return string(data), nil
}

func (a *app) cmdVoices(args []string) error {
	fs := flag.NewFlagSet("voices", flag.ExitOnError)
	gender := fs.String("gender", "", "Filter by gender")
	accent := fs.String("accent", "", "Filter by accent")
	age := fs.String("age", "", "Filter by age bucket")
	language := fs.String("language", "", "Filter by language")
	search := fs.String("search", "", "Free-text search")
	featured := fs.Bool("featured", false, "Only featured voices")
	pages := fs.Int("pages", 1, "Pages to fetch")
	fs.Parse(args)

	filters := catalog.Filters{
		Gender:   *gender,
		Accent:   *accent,
		Age:      *age,
		Language: *language,
		Search:   *search,
		Featured: *featured,
	}

	voices, err := a.catalog.ListAllVoices(context.Background(), filters, *pages)
	if err != nil {
		return fmt.Errorf("catalog query failed: %w", err)
	}

	fmt.Printf("Found %d voices\n\n", len(voices))
	for _, v := range voices {
		fmt.Printf("%-24s %s\n", v.VoiceID, v.Name)
		fmt.Printf("   %s / %s / %s / %s  quality %.2f\n",
			v.Gender, v.Accent, v.Age, v.Category, v.QualityScore)
	}
	return nil
}

func (a *app) cmdCache(args []string) error {
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	clear := fs.String("clear", "", "Clear cache: voices, mappings, or all")
	fs.Parse(args)

	switch *clear {
	case "":
		voices, criteriaSets, mappings := a.cache.Stats()
		fmt.Printf("Voice records:        %d\n", voices)
		fmt.Printf("Criteria result sets: %d\n", criteriaSets)
		fmt.Printf("Profile mappings:     %d\n", mappings)
		return nil
	case "voices":
		return a.cache.ClearVoices()
	case "mappings":
		return a.cache.ClearMappings()
	case "all":
		return a.cache.ClearAll()
	default:
		return fmt.Errorf("unknown cache target: %s", *clear)
	}
}

func (a *app) cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Recent jobs to show")
	fs.Parse(args)

	if a.ledger == nil {
		return fmt.Errorf("ledger is disabled in config")
	}

	ctx := context.Background()
	jobs, bytes, err := a.ledger.Totals(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger totals: %w", err)
	}
	fmt.Printf("Synthesis jobs: %d (%d bytes total)\n\n", jobs, bytes)

	recent, err := a.ledger.RecentJobs(ctx, *limit)
	if err != nil {
		return fmt.Errorf("failed to read recent jobs: %w", err)
	}
	for _, j := range recent {
		fmt.Printf("%s  voice=%s chunks=%d bytes=%d took=%s\n",
			j.CreatedAt.Format(time.RFC3339), j.VoiceID, j.ChunkCount, j.ByteCount, j.Duration.Round(time.Millisecond))
	}
	return nil
}
