package scrape

import (
	"testing"

	"jobbot-engine/internal/domain"
)

func TestMatchesKeywords(t *testing.T) {
	j := domain.JobRecord{Title: "Senior Backend Engineer", Company: "Globex", URL: "https://remotive.com/remote-jobs/software-dev/golang-123"}

	tests := []struct {
		name     string
		keywords []string
		want     bool
	}{
		{"empty set accepts all", nil, true},
		{"title match", []string{"backend"}, true},
		{"case-insensitive", []string{"GLOBEX"}, true},
		{"url match", []string{"golang"}, true},
		{"any of several", []string{"rust", "senior"}, true},
		{"no match", []string{"python", "java"}, false},
		{"blank keywords ignored", []string{"  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesKeywords(j, tt.keywords); got != tt.want {
				t.Errorf("MatchesKeywords(%v) = %v, want %v", tt.keywords, got, tt.want)
			}
		})
	}
}

func TestNormalize_Placeholders(t *testing.T) {
	j, ok := Normalize(domain.JobRecord{URL: "https://Example.com/job/1?utm_source=x", Title: "  ", Location: " Remote ,  Remote "}, "remotive", "")
	if !ok {
		t.Fatal("expected record to be kept")
	}
	if j.Identity != "https://example.com/job/1" {
		t.Errorf("identity = %q", j.Identity)
	}
	if j.Title != domain.PlaceholderTitle || j.Company != domain.PlaceholderCompany {
		t.Errorf("placeholders not applied: %+v", j)
	}
	if j.Location != "Remote" {
		t.Errorf("location = %q", j.Location)
	}
	if j.Source != "remotive" {
		t.Errorf("source = %q", j.Source)
	}
}

func TestNormalize_ResolvesRelative(t *testing.T) {
	j, ok := Normalize(domain.JobRecord{URL: "/remote-jobs/42"}, "remoteok", "https://remoteok.io/remote-dev-jobs")
	if !ok || j.Identity != "https://remoteok.io/remote-jobs/42" {
		t.Fatalf("got %+v ok=%v", j, ok)
	}
}
