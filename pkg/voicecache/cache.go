// Package voicecache is the persistent, file-backed voice store: voice
// records and criteria query results in one JSON document, profile to
// voice assignments in a second. Both documents are read fully into
// memory and rewritten fully on each mutation, which is safe only with
// a single writing process; in-process mutations are serialized by a
// mutex. Concurrent multi-process writers are unsupported.
package voicecache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"lectern/pkg/config"
	"lectern/pkg/model"
)

// criteriaKeyPrefix marks synthetic keys inside the voices document
// that hold query-result lists instead of single records.
const criteriaKeyPrefix = "criteria::"

// Cache is the two-tier persistent voice store.
type Cache struct {
	mu           sync.Mutex
	voicesPath   string
	mappingsPath string

	voices   map[string]json.RawMessage // Voice records + criteria result sets
	mappings map[string]string          // Profile ID -> voice ID
}

// New creates a Cache and loads both backing documents. A missing,
// corrupt, or unreadable document is logged and treated as empty; the
// cache never fails to construct.
func New(cfg config.CacheConfig) (*Cache, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		voicesPath:   cfg.VoicesPath(),
		mappingsPath: cfg.MappingsPath(),
		voices:       make(map[string]json.RawMessage),
		mappings:     make(map[string]string),
	}
	c.loadVoices()
	c.loadMappings()
	return c, nil
}

func (c *Cache) loadVoices() {
	data, err := os.ReadFile(c.voicesPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Voice cache unreadable, starting cold", "path", c.voicesPath, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &c.voices); err != nil {
		slog.Warn("Voice cache corrupt, starting cold", "path", c.voicesPath, "error", err)
		c.voices = make(map[string]json.RawMessage)
	}
}

func (c *Cache) loadMappings() {
	data, err := os.ReadFile(c.mappingsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Mapping cache unreadable, starting cold", "path", c.mappingsPath, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &c.mappings); err != nil {
		slog.Warn("Mapping cache corrupt, starting cold", "path", c.mappingsPath, "error", err)
		c.mappings = make(map[string]string)
	}
}

// saveVoices rewrites the whole voices document. Caller holds c.mu.
func (c *Cache) saveVoices() error {
	data, err := json.MarshalIndent(c.voices, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal voice cache: %w", err)
	}
	if err := os.WriteFile(c.voicesPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write voice cache: %w", err)
	}
	return nil
}

// saveMappings rewrites the whole mappings document. Caller holds c.mu.
func (c *Cache) saveMappings() error {
	data, err := json.MarshalIndent(c.mappings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mapping cache: %w", err)
	}
	if err := os.WriteFile(c.mappingsPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping cache: %w", err)
	}
	return nil
}

// GetVoice returns the cached record for a voice id, or nil.
func (c *Cache) GetVoice(voiceID string) *model.VoiceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.voices[voiceID]
	if !ok {
		return nil
	}
	var rec model.VoiceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		slog.Warn("Dropping undecodable cache entry", "voice_id", voiceID, "error", err)
		delete(c.voices, voiceID)
		return nil
	}
	return &rec
}

// SetVoice stores a voice record and persists immediately.
func (c *Cache) SetVoice(rec *model.VoiceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal voice record: %w", err)
	}
	c.voices[rec.VoiceID] = raw
	return c.saveVoices()
}

// GetMapping returns the assigned voice id for a profile, or "".
func (c *Cache) GetMapping(profileID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mappings[profileID]
}

// SetMapping stores a profile-to-voice assignment and persists immediately.
func (c *Cache) SetMapping(profileID, voiceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mappings[profileID] = voiceID
	return c.saveMappings()
}

// GetByCriteria returns the cached result list for a criteria key, or
// nil if the key has never been cached. An empty non-nil slice means
// "queried before, no results".
func (c *Cache) GetByCriteria(key string) []*model.VoiceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.voices[criteriaKeyPrefix+key]
	if !ok {
		return nil
	}
	records := []*model.VoiceRecord{}
	if err := json.Unmarshal(raw, &records); err != nil {
		slog.Warn("Dropping undecodable criteria entry", "key", key, "error", err)
		delete(c.voices, criteriaKeyPrefix+key)
		return nil
	}
	return records
}

// SetByCriteria stores a query-result list under its criteria key. A
// nil list is stored as empty so it reads back as "known empty", not
// "never cached".
func (c *Cache) SetByCriteria(key string, records []*model.VoiceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if records == nil {
		records = []*model.VoiceRecord{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria results: %w", err)
	}
	c.voices[criteriaKeyPrefix+key] = raw
	return c.saveVoices()
}

// BuildKey produces a deterministic, order-independent string for a
// criteria set. Only non-empty fields participate, sorted by field
// name, so semantically identical criteria always share a key.
func BuildKey(criteria model.Criteria) string {
	fields := map[string]string{}
	if criteria.Gender != model.GenderUnset {
		fields["gender"] = string(criteria.Gender)
	}
	if criteria.Accent != "" {
		fields["accent"] = criteria.Accent
	}
	if criteria.Age != model.AgeUnset {
		fields["age"] = string(criteria.Age)
	}
	if criteria.Language != "" {
		fields["language"] = criteria.Language
	}
	if criteria.UseCase != "" {
		fields["use_case"] = criteria.UseCase
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+fields[name])
	}
	return strings.Join(parts, "|")
}

// ClearVoices drops all voice records and criteria result sets.
func (c *Cache) ClearVoices() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.voices = make(map[string]json.RawMessage)
	return c.saveVoices()
}

// ClearMappings drops all profile assignments.
func (c *Cache) ClearMappings() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mappings = make(map[string]string)
	return c.saveMappings()
}

// ClearAll drops both tiers.
func (c *Cache) ClearAll() error {
	if err := c.ClearVoices(); err != nil {
		return err
	}
	return c.ClearMappings()
}

// Stats returns entry counts for diagnostics.
func (c *Cache) Stats() (voices, criteriaSets, mappings int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.voices {
		if strings.HasPrefix(key, criteriaKeyPrefix) {
			criteriaSets++
		} else {
			voices++
		}
	}
	return voices, criteriaSets, len(c.mappings)
}
