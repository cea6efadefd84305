package token_test

import (
	"testing"

	"github.com/cantora-app/cantora/internal/token"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"Don't", "dont"},
		{"HELLO!", "hello"},
		{"  night, ", "night"},
		{"", ""},
		{"...", ""},
		{"24k", "24k"},
	}
	for _, tc := range cases {
		if got := token.Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSkeleton(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		// ght → t, vowels dropped.
		{"light", "lt"},
		{"lite", "lt"},
		// ph → f.
		{"phone", "fn"},
		// kn → n, wr → r.
		{"knight", "nt"},
		{"write", "rt"},
		// Repeated consonants collapse.
		{"letter", "ltr"},
		{"ball", "bl"},
		// All vowels → empty skeleton.
		{"you", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := token.Skeleton(tc.in); got != tc.want {
			t.Errorf("Skeleton(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSimilarity_IdenticalSkeletons(t *testing.T) {
	t.Parallel()

	if got := token.Similarity("light", "lite"); got != 1 {
		t.Errorf("Similarity(light, lite) = %v, want 1", got)
	}
}

func TestSimilarity_Unrelated(t *testing.T) {
	t.Parallel()

	got := token.Similarity("light", "banana")
	if got >= 0.5 {
		t.Errorf("Similarity(light, banana) = %v, want < 0.5", got)
	}
}

func TestSimilarity_EmptySkeleton(t *testing.T) {
	t.Parallel()

	// "you" strips to an empty skeleton; similarity must degrade to 0
	// rather than dividing by zero.
	if got := token.Similarity("you", "you"); got != 0 {
		t.Errorf("Similarity(you, you) = %v, want 0", got)
	}
	if got := token.Similarity("", "light"); got != 0 {
		t.Errorf("Similarity(\"\", light) = %v, want 0", got)
	}
}

func TestSimilarity_Bounded(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"night", "nite"}, {"quick", "kick"}, {"wrong", "rong"},
		{"extra", "ekstra"}, {"stop", "start"},
	}
	for _, p := range pairs {
		got := token.Similarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Similarity(%q, %q) = %v, out of [0,1]", p[0], p[1], got)
		}
	}
}
