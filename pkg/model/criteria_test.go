package model

import (
	"testing"
)

func TestParseGender(t *testing.T) {
	tests := []struct {
		in   string
		want Gender
	}{
		{"male", GenderMale},
		{"M", GenderMale},
		{"Female", GenderFemale},
		{"woman", GenderFemale},
		{"non-binary", GenderNeutral},
		{"", GenderUnset},
		{"dragon", GenderUnset},
	}
	for _, tt := range tests {
		if got := ParseGender(tt.in); got != tt.want {
			t.Errorf("ParseGender(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAccent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"British", "british"},
		{" american ", "american"},
		{"Middle Eastern", "middle_eastern"},
		{"Latin American", "latin_american"},
		{"martian", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAccent(tt.in); got != tt.want {
			t.Errorf("NormalizeAccent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBucketAge(t *testing.T) {
	tests := []struct {
		age  int
		want AgeBucket
	}{
		{0, AgeUnset},
		{-5, AgeUnset},
		{22, AgeYoung},
		{34, AgeYoung},
		{35, AgeMiddleAged},
		{60, AgeMiddleAged},
		{61, AgeOld},
		{88, AgeOld},
	}
	for _, tt := range tests {
		if got := BucketAge(tt.age); got != tt.want {
			t.Errorf("BucketAge(%d) = %q, want %q", tt.age, got, tt.want)
		}
	}
}

func TestCriteriaMatches(t *testing.T) {
	v := &VoiceRecord{
		Gender:  "female",
		Accent:  "british",
		Age:     "old",
		UseCase: "informative_educational",
	}

	c := Criteria{Gender: GenderFemale, Accent: "british", Age: AgeOld, UseCase: "informative_educational"}
	gender, accent, age, useCase := c.Matches(v)
	if !gender || !accent || !age || !useCase {
		t.Errorf("full criteria should match on all fields, got %v %v %v %v", gender, accent, age, useCase)
	}

	// Unset fields never report a match bonus.
	c = Criteria{Language: "en"}
	gender, accent, age, useCase = c.Matches(v)
	if gender || accent || age || useCase {
		t.Error("unset criteria fields must not match")
	}

	c = Criteria{Gender: GenderMale, Accent: "british"}
	gender, accent, _, _ = c.Matches(v)
	if gender {
		t.Error("gender mismatch reported as match")
	}
	if !accent {
		t.Error("accent match not reported")
	}
}
