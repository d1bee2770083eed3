package util

import "testing"

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://RemoteOK.io/remote-jobs/123", "https://remoteok.io/remote-jobs/123"},
		{"drops fragment", "https://remotive.com/job/1#apply", "https://remotive.com/job/1"},
		{"drops tracking params", "https://remotive.com/job/1?utm_source=x&utm_medium=y&ref=feed", "https://remotive.com/job/1"},
		{"keeps and sorts real params", "https://jobs.example.com/view?id=7&b=2&a=1&gclid=zz", "https://jobs.example.com/view?a=1&b=2&id=7"},
		{"linkedin keeps only currentJobId", "https://www.linkedin.com/jobs/search?currentJobId=42&keywords=go", "https://www.linkedin.com/jobs/search?currentJobId=42"},
		{"root path", "https://example.com", "https://example.com/"},
		{"relative is rejected", "/remote-jobs/123", ""},
		{"non-http is rejected", "mailto:jobs@example.com", ""},
		{"blank", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalURL(tt.in); got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalURL_SameJobDifferentTracking(t *testing.T) {
	a := CanonicalURL("https://weworkremotely.com/remote-jobs/acme-go-dev?utm_campaign=a")
	b := CanonicalURL("https://WeWorkRemotely.com/remote-jobs/acme-go-dev#top")
	if a != b {
		t.Fatalf("expected identical identities, got %q and %q", a, b)
	}
}

func TestResolveURL(t *testing.T) {
	if got := ResolveURL("https://remoteok.io/remote-dev-jobs", "/remote-jobs/9"); got != "https://remoteok.io/remote-jobs/9" {
		t.Errorf("relative href: got %q", got)
	}
	if got := ResolveURL("https://remoteok.io", "https://other.example/x"); got != "https://other.example/x" {
		t.Errorf("absolute href: got %q", got)
	}
	if got := ResolveURL("", "/x"); got != "/x" {
		t.Errorf("no base: got %q", got)
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  Senior Go\n\tEngineer  "); got != "Senior Go Engineer" {
		t.Errorf("CleanText = %q", got)
	}
}
