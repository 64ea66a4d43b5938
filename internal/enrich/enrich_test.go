package enrich

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mcao2/x-seed-notes/internal/logger"
)

type stubGenerator struct {
	out     string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.out, s.err
}

func TestParseResponseWellFormed(t *testing.T) {
	raw := "TITLE: Foo\nCLAIM: Bar baz.\nQ1: A\nQ2: B\nQ3: C\nLINKS: [x], [y]\nTAGS: [t1], [t2]"

	got := ParseResponse(raw)
	want := Result{
		Title:         "Foo",
		CoreClaim:     "Bar baz.",
		SeedQuestions: [3]string{"A", "B", "C"},
		WikiLinks:     []string{"x", "y"},
		Tags:          []string{"t1", "t2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseResponse() = %+v, want %+v", got, want)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, r Result)
	}{
		{
			name: "multi-line claim",
			raw:  "TITLE: Agency wins\nCLAIM: First sentence.\nSecond sentence.\n\nQ1: Why?\nQ2: How?\nQ3: When?\nLINKS: agency\nTAGS: career",
			check: func(t *testing.T, r Result) {
				if r.CoreClaim != "First sentence.\nSecond sentence." {
					t.Errorf("claim = %q", r.CoreClaim)
				}
				if r.SeedQuestions[2] != "When?" {
					t.Errorf("q3 = %q", r.SeedQuestions[2])
				}
			},
		},
		{
			name: "case insensitive labels",
			raw:  "title: lower\nclaim: c\nq1: one",
			check: func(t *testing.T, r Result) {
				if r.Title != "lower" || r.CoreClaim != "c" || r.SeedQuestions[0] != "one" {
					t.Errorf("unexpected %+v", r)
				}
			},
		},
		{
			name: "markdown decorated labels use lenient tier",
			raw:  "Here you go:\n  **TITLE:** Bold title\n- **CLAIM**: a claim\n### Q1: heading question\n> TAGS: [a], [b]",
			check: func(t *testing.T, r Result) {
				if r.Title != "Bold title" {
					t.Errorf("title = %q", r.Title)
				}
				if r.CoreClaim != "a claim" {
					t.Errorf("claim = %q", r.CoreClaim)
				}
				if r.SeedQuestions[0] != "heading question" {
					t.Errorf("q1 = %q", r.SeedQuestions[0])
				}
				if !reflect.DeepEqual(r.Tags, []string{"a", "b"}) {
					t.Errorf("tags = %v", r.Tags)
				}
			},
		},
		{
			name: "first occurrence wins",
			raw:  "TITLE: first\nTITLE: second",
			check: func(t *testing.T, r Result) {
				if r.Title != "first" {
					t.Errorf("title = %q", r.Title)
				}
			},
		},
		{
			name: "think block ignored",
			raw:  "<think>TITLE: scratch\nmaybe</think>\nTITLE: real",
			check: func(t *testing.T, r Result) {
				if r.Title != "real" {
					t.Errorf("title = %q", r.Title)
				}
			},
		},
		{
			name: "missing fields are empty",
			raw:  "TITLE: only title",
			check: func(t *testing.T, r Result) {
				if r.CoreClaim != "" || r.SeedQuestions != [3]string{} {
					t.Errorf("expected empty fields, got %+v", r)
				}
				if len(r.WikiLinks) != 0 || len(r.Tags) != 0 {
					t.Errorf("expected empty lists, got %v %v", r.WikiLinks, r.Tags)
				}
			},
		},
		{
			name: "lists drop empties and brackets",
			raw:  "TITLE: t\nLINKS: [[Deep Work]], , [Flow] ,\nTAGS: productivity,focus",
			check: func(t *testing.T, r Result) {
				if !reflect.DeepEqual(r.WikiLinks, []string{"Deep Work", "Flow"}) {
					t.Errorf("links = %v", r.WikiLinks)
				}
				if !reflect.DeepEqual(r.Tags, []string{"productivity", "focus"}) {
					t.Errorf("tags = %v", r.Tags)
				}
			},
		},
		{
			name: "windows line endings",
			raw:  "TITLE: crlf\r\nCLAIM: ok\r\n",
			check: func(t *testing.T, r Result) {
				if r.Title != "crlf" || r.CoreClaim != "ok" {
					t.Errorf("unexpected %+v", r)
				}
			},
		},
		{
			name: "no labels at all",
			raw:  "I cannot help with that.",
			check: func(t *testing.T, r Result) {
				if r.Title != "" {
					t.Errorf("title = %q", r.Title)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseResponse(tt.raw))
		})
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantTitle string
	}{
		{"short", "Hello world", "Hello world"},
		{"whitespace collapsed", "  line one\n\n\tline two  ", "line one line two"},
		{"exactly 35", strings.Repeat("a", 35), strings.Repeat("a", 35)},
		{"long", "The quick brown fox jumps over the lazy dog again and again", "The quick brown fox jumps over the..."},
		{"cut on space is trimmed", strings.Repeat("abcd ", 10), "abcd abcd abcd abcd abcd abcd abcd..."},
		{"runes not bytes", strings.Repeat("가", 40), strings.Repeat("가", 35) + "..."},
		{"empty", "", UntitledTitle},
		{"blank", " \n\t ", UntitledTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Fallback(tt.text)
			if r.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", r.Title, tt.wantTitle)
			}
			if r.CoreClaim != FallbackClaim {
				t.Errorf("claim = %q", r.CoreClaim)
			}
			if r.SeedQuestions != FallbackQuestions {
				t.Errorf("questions = %v", r.SeedQuestions)
			}
			if len(r.WikiLinks) != 0 {
				t.Errorf("links = %v", r.WikiLinks)
			}
			if !reflect.DeepEqual(r.Tags, []string{FallbackTag}) {
				t.Errorf("tags = %v", r.Tags)
			}
			if !r.Fallback {
				t.Error("expected Fallback flag")
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	short := strings.Repeat("x", MaxInputChars)
	if Truncate(short) != short {
		t.Error("text at the limit must not change")
	}

	long := strings.Repeat("é", MaxInputChars+10)
	got := Truncate(long)
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Error("expected truncation marker")
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, TruncationMarker)); n != MaxInputChars {
		t.Errorf("kept %d runes, want %d", n, MaxInputChars)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("some post text", "alice")
	for _, want := range []string{"@alice", "some post text", "TITLE:", "CLAIM:", "Q1:", "Q2:", "Q3:", "LINKS:", "TAGS:", "35 characters"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if BuildPrompt("some post text", "alice") != p {
		t.Error("prompt must be deterministic")
	}
}

func TestEngineEnrich(t *testing.T) {
	text := "Successful people share one trait: they act without waiting for permission."

	tests := []struct {
		name         string
		gen          *stubGenerator
		wantFallback bool
		wantTitle    string
	}{
		{
			name:      "parsed",
			gen:       &stubGenerator{out: "TITLE: Agency beats permission\nCLAIM: c\nQ1: a\nQ2: b\nQ3: c\nLINKS: [agency]\nTAGS: [career]"},
			wantTitle: "Agency beats permission",
		},
		{
			name:         "no title falls back wholesale",
			gen:          &stubGenerator{out: "CLAIM: a claim without title\nQ1: q\nLINKS: [x]"},
			wantFallback: true,
		},
		{
			name:         "generation error",
			gen:          &stubGenerator{err: errors.New("connection refused")},
			wantFallback: true,
		},
		{
			name:         "empty response",
			gen:          &stubGenerator{out: ""},
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.gen, WithEngineLogger(logger.Nop()))
			got := e.Enrich(context.Background(), text, "alice")

			if tt.wantFallback {
				if !reflect.DeepEqual(got, Fallback(text)) {
					t.Errorf("expected exact fallback, got %+v", got)
				}
			} else if got.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", got.Title, tt.wantTitle)
			}
			if len(tt.gen.prompts) != 1 {
				t.Fatalf("expected one generation call, got %d", len(tt.gen.prompts))
			}
			if !strings.Contains(tt.gen.prompts[0], "@alice") {
				t.Error("prompt should carry the author handle")
			}
		})
	}
}

func TestEngineAlwaysTitled(t *testing.T) {
	inputs := []string{"", " ", "\n\n", "x", strings.Repeat("long text ", 1000)}
	e := NewEngine(&stubGenerator{err: errors.New("down")}, WithEngineLogger(logger.Nop()))
	for _, in := range inputs {
		if r := e.Enrich(context.Background(), in, "h"); r.Title == "" {
			t.Errorf("empty title for input %q", in)
		}
	}
}
