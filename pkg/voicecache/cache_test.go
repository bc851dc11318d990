package voicecache

import (
	"os"
	"testing"

	"lectern/pkg/config"
	"lectern/pkg/model"
)

func testCacheConfig(t *testing.T) config.CacheConfig {
	t.Helper()
	return config.CacheConfig{
		Dir:          t.TempDir(),
		VoicesFile:   "voices.json",
		MappingsFile: "voice_mappings.json",
	}
}

func sampleRecord(id string) *model.VoiceRecord {
	return &model.VoiceRecord{
		VoiceID:      id,
		Name:         "Test Voice " + id,
		Gender:       "female",
		Accent:       "british",
		Age:          "middle_aged",
		Category:     "professional",
		QualityScore: 0.9,
	}
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name     string
		criteria model.Criteria
		want     string
	}{
		{
			"AllFields",
			model.Criteria{
				Gender:   model.GenderFemale,
				Accent:   "british",
				Age:      model.AgeOld,
				Language: "en",
				UseCase:  "narration",
			},
			"accent=british|age=old|gender=female|language=en|use_case=narration",
		},
		{
			"UnsetFieldsExcluded",
			model.Criteria{Gender: model.GenderMale, Language: "en"},
			"gender=male|language=en",
		},
		{
			"LanguageOnly",
			model.Criteria{Language: "en"},
			"language=en",
		},
		{
			"Empty",
			model.Criteria{},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildKey(tt.criteria); got != tt.want {
				t.Errorf("BuildKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildKeyEquivalence(t *testing.T) {
	// Semantically identical criteria always share a key, regardless of
	// how the struct was populated.
	a := model.Criteria{Language: "en", Gender: model.GenderFemale, Accent: "irish"}
	b := model.Criteria{}
	b.Accent = "irish"
	b.Gender = model.GenderFemale
	b.Language = "en"

	if BuildKey(a) != BuildKey(b) {
		t.Errorf("equivalent criteria produced different keys: %q vs %q", BuildKey(a), BuildKey(b))
	}
}

func TestVoiceRoundtrip(t *testing.T) {
	cfg := testCacheConfig(t)
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	rec := sampleRecord("v1")
	if err := c.SetVoice(rec); err != nil {
		t.Fatalf("SetVoice failed: %v", err)
	}
	if err := c.SetMapping("prof-42", "v1"); err != nil {
		t.Fatalf("SetMapping failed: %v", err)
	}

	// A fresh instance over the same directory sees the persisted state.
	c2, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to reopen cache: %v", err)
	}

	got := c2.GetVoice("v1")
	if got == nil {
		t.Fatal("persisted voice not found after reopen")
	}
	if got.Name != rec.Name || got.QualityScore != rec.QualityScore {
		t.Errorf("persisted record mismatch: %+v", got)
	}
	if c2.GetMapping("prof-42") != "v1" {
		t.Errorf("persisted mapping lost, got %q", c2.GetMapping("prof-42"))
	}
}

func TestCriteriaResults(t *testing.T) {
	c, err := New(testCacheConfig(t))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	key := BuildKey(model.Criteria{Gender: model.GenderFemale, Language: "en"})

	// Never queried: nil.
	if got := c.GetByCriteria(key); got != nil {
		t.Errorf("expected nil for unqueried key, got %v", got)
	}

	// Known empty: non-nil empty slice.
	if err := c.SetByCriteria(key, []*model.VoiceRecord{}); err != nil {
		t.Fatalf("SetByCriteria failed: %v", err)
	}
	got := c.GetByCriteria(key)
	if got == nil {
		t.Fatal("known-empty result must be non-nil")
	}
	if len(got) != 0 {
		t.Errorf("expected empty result list, got %d entries", len(got))
	}

	// Populated result set.
	records := []*model.VoiceRecord{sampleRecord("a"), sampleRecord("b")}
	if err := c.SetByCriteria(key, records); err != nil {
		t.Fatalf("SetByCriteria failed: %v", err)
	}
	got = c.GetByCriteria(key)
	if len(got) != 2 || got[0].VoiceID != "a" || got[1].VoiceID != "b" {
		t.Errorf("result list mismatch: %v", got)
	}

	// Criteria keys must not collide with voice ids.
	if rec := c.GetVoice(key); rec != nil {
		t.Error("criteria entry leaked into voice lookup")
	}
}

func TestCorruptDocumentsStartCold(t *testing.T) {
	cfg := testCacheConfig(t)
	if err := os.WriteFile(cfg.VoicesPath(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.MappingsPath(), []byte("[1,2,3]"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("corrupt documents must not fail construction: %v", err)
	}

	voices, criteriaSets, mappings := c.Stats()
	if voices != 0 || criteriaSets != 0 || mappings != 0 {
		t.Errorf("expected cold start, got %d/%d/%d", voices, criteriaSets, mappings)
	}

	// Cache is usable and overwrites the corrupt files.
	if err := c.SetVoice(sampleRecord("v1")); err != nil {
		t.Fatalf("SetVoice after cold start failed: %v", err)
	}
	c2, _ := New(cfg)
	if c2.GetVoice("v1") == nil {
		t.Error("write after cold start did not persist")
	}
}

func TestClear(t *testing.T) {
	cfg := testCacheConfig(t)
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	c.SetVoice(sampleRecord("v1"))
	c.SetByCriteria("language=en", []*model.VoiceRecord{sampleRecord("v1")})
	c.SetMapping("p1", "v1")

	if err := c.ClearVoices(); err != nil {
		t.Fatalf("ClearVoices failed: %v", err)
	}
	voices, criteriaSets, mappings := c.Stats()
	if voices != 0 || criteriaSets != 0 {
		t.Errorf("voices tier not cleared: %d/%d", voices, criteriaSets)
	}
	if mappings != 1 {
		t.Errorf("mappings must survive ClearVoices, got %d", mappings)
	}

	if err := c.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if _, _, mappings = c.Stats(); mappings != 0 {
		t.Errorf("mappings not cleared: %d", mappings)
	}

	// Cleared state persists.
	c2, _ := New(cfg)
	if v, cs, m := c2.Stats(); v != 0 || cs != 0 || m != 0 {
		t.Errorf("cleared state did not persist: %d/%d/%d", v, cs, m)
	}
}

func TestStatsDistinguishesTiers(t *testing.T) {
	c, err := New(testCacheConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	c.SetVoice(sampleRecord("v1"))
	c.SetVoice(sampleRecord("v2"))
	c.SetByCriteria("language=en", nil)

	voices, criteriaSets, _ := c.Stats()
	if voices != 2 {
		t.Errorf("expected 2 voice records, got %d", voices)
	}
	if criteriaSets != 1 {
		t.Errorf("expected 1 criteria set, got %d", criteriaSets)
	}
}
