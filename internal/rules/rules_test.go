package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/1broseidon/pinwheel/internal/config"
	"github.com/1broseidon/pinwheel/internal/geometry"
	"github.com/1broseidon/pinwheel/internal/window"
)

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int { return &v }

func rule(actions config.Actions, matchers ...string) config.Rule {
	r := config.Rule{Actions: actions}
	for i := 0; i+1 < len(matchers); i += 2 {
		r.Matchers = append(r.Matchers, config.Matcher{Field: config.MatchField(matchers[i]), Pattern: matchers[i+1]})
	}
	return r
}

func compile(t *testing.T, rules ...config.Rule) *RuleSet {
	t.Helper()
	set, err := Compile(&config.Config{Rules: rules})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return set
}

func TestFindMatches_AllMatchersMustMatch(t *testing.T) {
	set := compile(t, rule(config.Actions{}, "class", "kitty", "title", "^main$"))

	if got := FindMatches(set, window.Description{Class: "kitty", Title: "scratch"}); len(got) != 0 {
		t.Fatalf("expected no match for kitty/scratch, got %d", len(got))
	}
	if got := FindMatches(set, window.Description{Class: "kitty", Title: "main"}); len(got) != 1 {
		t.Fatalf("expected match for kitty/main, got %d", len(got))
	}
}

func TestFindMatches_AnchoredPattern(t *testing.T) {
	set := compile(t, rule(config.Actions{}, "class", "^Chromium$"))

	if got := FindMatches(set, window.Description{Class: "Chromium"}); len(got) != 1 {
		t.Fatalf("expected Chromium to match")
	}
	if got := FindMatches(set, window.Description{Class: "Chromium-browser"}); len(got) != 0 {
		t.Fatalf("expected Chromium-browser to be rejected")
	}
}

func TestFindMatches_UnanchoredCaseSensitive(t *testing.T) {
	set := compile(t, rule(config.Actions{}, "class", "irefo"))

	if got := FindMatches(set, window.Description{Class: "Firefox"}); len(got) != 1 {
		t.Fatalf("expected substring match")
	}
	if got := FindMatches(set, window.Description{Class: "FIREFOX"}); len(got) != 0 {
		t.Fatalf("expected case-sensitive mismatch")
	}

	insensitive := compile(t, rule(config.Actions{}, "class", "(?i)kitty"))
	if got := FindMatches(insensitive, window.Description{Class: "Kitty"}); len(got) != 1 {
		t.Fatalf("expected (?i) pattern to match")
	}
}

func TestFindMatches_TypeIsExactAndCaseInsensitive(t *testing.T) {
	set := compile(t, rule(config.Actions{}, "type", "Dialog"))

	if got := FindMatches(set, window.Description{Type: "dialog"}); len(got) != 1 {
		t.Fatalf("expected dialog to match")
	}
	if got := FindMatches(set, window.Description{Type: "dialogue"}); len(got) != 0 {
		t.Fatalf("expected type match to be exact")
	}
}

func TestFindMatches_ProcessAndRole(t *testing.T) {
	set := compile(t,
		rule(config.Actions{}, "process", "^fire"),
		rule(config.Actions{}, "role", "pop-up"),
	)
	desc := window.Description{Process: "firefox", Role: "pop-up"}

	got := FindMatches(set, desc)
	if len(got) != 2 || got[0].Index != 0 || got[1].Index != 1 {
		t.Fatalf("expected both rules in order, got %v", got)
	}
}

func TestFindMatches_ReturnsAllInFileOrder(t *testing.T) {
	set := compile(t,
		rule(config.Actions{}, "class", "a"),
		rule(config.Actions{}, "class", "zzz"),
		rule(config.Actions{}, "class", "b"),
		rule(config.Actions{}, "title", "."),
	)

	got := FindMatches(set, window.Description{Class: "ab", Title: "t"})
	var idx []int
	for _, r := range got {
		idx = append(idx, r.Index)
	}
	if len(idx) != 3 || idx[0] != 0 || idx[1] != 2 || idx[2] != 3 {
		t.Fatalf("expected [0 2 3], got %v", idx)
	}
}

func TestMergeActions_LaterRuleWins(t *testing.T) {
	first := geometry.AnchorPosition(geometry.AnchorTopLeft)
	second := geometry.AnchorPosition(geometry.AnchorCenter)

	set := compile(t,
		rule(config.Actions{Position: &first, Workspace: intPtr(2), Maximize: boolPtr(true)}, "class", "kitty"),
		rule(config.Actions{Position: &second, Maximize: boolPtr(false)}, "class", "kitty"),
	)

	merged := MergeActions(FindMatches(set, window.Description{Class: "kitty"}))
	if merged.Position == nil || merged.Position.Anchor != geometry.AnchorCenter {
		t.Fatalf("expected later position to win, got %+v", merged.Position)
	}
	if merged.Maximize == nil || *merged.Maximize {
		t.Fatalf("expected later maximize=false to win")
	}
	if merged.Workspace == nil || *merged.Workspace != 2 {
		t.Fatalf("expected workspace from earlier rule to survive")
	}
}

func TestCompile_BadRegexFailsWholeSet(t *testing.T) {
	cfg := &config.Config{Rules: []config.Rule{
		rule(config.Actions{}, "class", "ok"),
		rule(config.Actions{}, "title", "([unclosed"),
	}}

	set, err := Compile(cfg)
	if err == nil {
		t.Fatalf("expected compile error")
	}
	if set != nil {
		t.Fatalf("expected no partial set")
	}
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Path != "rules[1].title" {
		t.Fatalf("expected rules[1].title, got %q", verr.Path)
	}
	if !strings.Contains(err.Error(), "bad regex") {
		t.Fatalf("expected bad regex error, got %v", err)
	}
}

func TestCompile_RejectsRuleWithoutMatchers(t *testing.T) {
	_, err := Compile(&config.Config{Rules: []config.Rule{{}}})
	if err == nil {
		t.Fatalf("expected error for rule without matchers")
	}
}

func TestStore_SwapIsWholeSet(t *testing.T) {
	old := compile(t, rule(config.Actions{}, "class", "a"))
	next := compile(t, rule(config.Actions{}, "class", "b"), rule(config.Actions{}, "class", "c"))

	store := NewStore(old)
	if store.Load() != old {
		t.Fatalf("expected initial set")
	}
	if prev := store.Swap(next); prev != old {
		t.Fatalf("expected Swap to return previous set")
	}
	if store.Load().Len() != 2 {
		t.Fatalf("expected new set with 2 rules, got %d", store.Load().Len())
	}
}
