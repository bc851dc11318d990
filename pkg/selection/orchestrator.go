// Package selection coordinates voice assignment: cached-mapping short
// circuit, attribute extraction, the cascading catalog fallback search,
// ranking, selection, and cache write-back.
package selection

import (
	"context"
	"fmt"
	"log/slog"

	"lectern/pkg/catalog"
	"lectern/pkg/config"
	"lectern/pkg/extract"
	"lectern/pkg/model"
	"lectern/pkg/rank"
	"lectern/pkg/tracker"
	"lectern/pkg/voicecache"
)

// trackerProvider groups all selection traffic under the same stats
// bucket the request layer uses for catalog hosts.
const trackerProvider = "catalog"

// State identifies a step of the selection state machine. Exposed for
// logging and tests.
type State int

// Selection states, in cascade order.
const (
	StateCached State = iota
	StateQueryFull
	StateQueryRelaxed1 // Drop age
	StateQueryRelaxed2 // Gender only
	StateQueryRelaxed3 // Accent only
	StateQueryDefault  // Language only
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCached:
		return "CACHED"
	case StateQueryFull:
		return "QUERY_FULL"
	case StateQueryRelaxed1:
		return "QUERY_RELAXED_1"
	case StateQueryRelaxed2:
		return "QUERY_RELAXED_2"
	case StateQueryRelaxed3:
		return "QUERY_RELAXED_3"
	case StateQueryDefault:
		return "QUERY_DEFAULT"
	case StateResolved:
		return "RESOLVED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// relaxation produces progressively broader criteria. Order is fixed;
// levels are never skipped except when their criteria collapse into an
// already-tried key.
type relaxation struct {
	state State
	apply func(model.Criteria) model.Criteria
}

var relaxations = []relaxation{
	{StateQueryFull, func(c model.Criteria) model.Criteria { return c }},
	{StateQueryRelaxed1, func(c model.Criteria) model.Criteria {
		c.Age = model.AgeUnset
		return c
	}},
	{StateQueryRelaxed2, func(c model.Criteria) model.Criteria {
		return model.Criteria{Gender: c.Gender, Language: c.Language}
	}},
	{StateQueryRelaxed3, func(c model.Criteria) model.Criteria {
		return model.Criteria{Accent: c.Accent, Language: c.Language}
	}},
	{StateQueryDefault, func(c model.Criteria) model.Criteria {
		return model.Criteria{Language: c.Language}
	}},
}

// CatalogAPI is the slice of the catalog client the orchestrator needs.
type CatalogAPI interface {
	ListAllVoices(ctx context.Context, filters catalog.Filters, maxPages int) ([]*model.VoiceRecord, error)
	GetVoice(ctx context.Context, voiceID string) (*model.VoiceRecord, error)
}

// maxListPages bounds how far pagination is followed per query level.
const maxListPages = 5

// Orchestrator implements voice selection for profiles. One instance
// owns its cache; see voicecache for the single-writer constraint.
type Orchestrator struct {
	cache     *voicecache.Cache
	catalog   CatalogAPI
	extractor *extract.Extractor
	selector  *rank.Selector
	weights   config.RankWeights
	tracker   *tracker.Tracker
}

// NewOrchestrator wires the selection pipeline. tr must not be nil.
func NewOrchestrator(cache *voicecache.Cache, cat CatalogAPI, ex *extract.Extractor, sel *rank.Selector, weights config.RankWeights, tr *tracker.Tracker) *Orchestrator {
	return &Orchestrator{
		cache:     cache,
		catalog:   cat,
		extractor: ex,
		selector:  sel,
		weights:   weights,
		tracker:   tr,
	}
}

// SelectVoiceForProfile resolves a voice for the profile. Repeated
// calls for a profile with a still-resolvable cached assignment return
// the identical voice id.
func (o *Orchestrator) SelectVoiceForProfile(ctx context.Context, profile *model.Profile, overrides extract.Overrides) (*model.VoiceRecord, error) {
	if rec := o.resolveCachedMapping(ctx, profile); rec != nil {
		slog.Debug("Voice selection", "state", StateResolved, "profile", profile.ID, "voice", rec.VoiceID, "via", StateCached)
		return rec, nil
	}

	criteria := o.extractor.Extract(profile, overrides)
	slog.Debug("Voice selection criteria", "profile", profile.ID,
		"gender", criteria.Gender, "accent", criteria.Accent, "age", criteria.Age, "language", criteria.Language)

	candidates, state, err := o.cascade(ctx, criteria)
	if err != nil {
		slog.Warn("Voice selection failed", "state", StateFailed, "profile", profile.ID, "error", err)
		return nil, err
	}

	ranked := rank.Rank(candidates, criteria, o.weights)
	chosen := o.selector.Select(ranked)
	if chosen == nil {
		slog.Warn("Voice selection failed", "state", StateFailed, "profile", profile.ID)
		return nil, ErrNoCandidates
	}

	o.persistAssignment(profile, chosen.Record)
	slog.Info("Voice selected", "state", StateResolved, "profile", profile.ID,
		"voice", chosen.Record.VoiceID, "name", chosen.Record.Name, "score", chosen.Score, "via", state)
	slog.Debug("Voice score detail", "voice", chosen.Record.VoiceID, "detail", chosen.Details)
	return chosen.Record, nil
}

// resolveCachedMapping returns the previously assigned record when the
// mapping exists and the voice still resolves, either from the voice
// cache or by re-fetching from the catalog.
func (o *Orchestrator) resolveCachedMapping(ctx context.Context, profile *model.Profile) *model.VoiceRecord {
	if profile.ID == "" {
		return nil
	}
	voiceID := o.cache.GetMapping(profile.ID)
	if voiceID == "" {
		return nil
	}

	if rec := o.cache.GetVoice(voiceID); rec != nil {
		o.tracker.TrackCacheHit(trackerProvider)
		return rec
	}
	o.tracker.TrackCacheMiss(trackerProvider)

	rec, err := o.catalog.GetVoice(ctx, voiceID)
	if err != nil || rec == nil {
		slog.Warn("Cached voice no longer resolvable, reselecting", "profile", profile.ID, "voice", voiceID, "error", err)
		return nil
	}
	if err := o.cache.SetVoice(rec); err != nil {
		slog.Warn("Failed to re-cache voice record", "voice", voiceID, "error", err)
	}
	return rec
}

// cascade walks the relaxation levels until one produces candidates.
// Transport failures at narrow levels count as empty results; only the
// default level is allowed to be fatal.
func (o *Orchestrator) cascade(ctx context.Context, criteria model.Criteria) ([]*model.VoiceRecord, State, error) {
	tried := make(map[string]bool)
	defaultKey := voicecache.BuildKey(model.Criteria{Language: criteria.Language})

	for _, level := range relaxations {
		levelCriteria := level.apply(criteria)
		key := voicecache.BuildKey(levelCriteria)
		if tried[key] {
			// Unset attributes can collapse a level into an earlier
			// one; re-querying the identical key is pointless.
			continue
		}
		tried[key] = true

		// A narrow level whose unset attributes collapse it into the
		// language-only query IS the default query.
		isDefault := key == defaultKey

		if cached := o.cache.GetByCriteria(key); cached != nil {
			o.tracker.TrackCacheHit(trackerProvider)
			if len(cached) > 0 {
				slog.Debug("Criteria cache hit", "state", level.state, "key", key, "candidates", len(cached))
				return cached, level.state, nil
			}
			// Known-empty level; move on without hitting the catalog.
			continue
		}
		o.tracker.TrackCacheMiss(trackerProvider)

		voices, err := o.catalog.ListAllVoices(ctx, filtersFor(levelCriteria), maxListPages)
		if err != nil {
			if isDefault {
				return nil, StateFailed, &CatalogUnavailableError{Err: err}
			}
			slog.Warn("Catalog query failed, relaxing criteria", "state", level.state, "key", key, "error", err)
			continue
		}

		if err := o.cache.SetByCriteria(key, voices); err != nil {
			slog.Warn("Failed to cache criteria results", "key", key, "error", err)
		}

		if len(voices) > 0 {
			slog.Debug("Catalog query", "state", level.state, "key", key, "candidates", len(voices))
			return voices, level.state, nil
		}
		o.tracker.TrackAPIZeroResult(trackerProvider)
		slog.Debug("Catalog query empty, relaxing criteria", "state", level.state, "key", key)
	}

	// The default filter is expected to always match something; total
	// emptiness with a responsive catalog is fatal.
	return nil, StateFailed, ErrNoCandidates
}

// persistAssignment writes the record and the profile mapping back to
// the cache. Failures are logged, not fatal: the selection itself
// succeeded.
func (o *Orchestrator) persistAssignment(profile *model.Profile, rec *model.VoiceRecord) {
	if err := o.cache.SetVoice(rec); err != nil {
		slog.Warn("Failed to cache voice record", "voice", rec.VoiceID, "error", err)
	}
	if profile.ID != "" {
		if err := o.cache.SetMapping(profile.ID, rec.VoiceID); err != nil {
			slog.Warn("Failed to cache voice mapping", "profile", profile.ID, "error", err)
		}
	}
}

func filtersFor(c model.Criteria) catalog.Filters {
	return catalog.Filters{
		Gender:   string(c.Gender),
		Accent:   c.Accent,
		Age:      string(c.Age),
		Language: c.Language,
		UseCase:  c.UseCase,
	}
}
