package query

import "testing"

func TestCompile_SimpleQueryFastPath(t *testing.T) {
	got := Compile("machine learning")
	if got.Match != "machine* learning*" {
		t.Errorf("got %q", got.Match)
	}
	if !got.Expanded {
		t.Error("fast path should report expansion")
	}
}

func TestCompile_ShortTermsPassThrough(t *testing.T) {
	got := Compile("go ml stack")
	want := "go ml stack*"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_And(t *testing.T) {
	got := Compile("cat AND dog")
	want := "(cat*) AND (dog*)"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_Or(t *testing.T) {
	got := Compile("cat OR dog")
	want := "(cat*) OR (dog*)"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_Not(t *testing.T) {
	got := Compile("NOT cat")
	want := "NOT (cat*)"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_Precedence(t *testing.T) {
	got := Compile("cat OR dog AND bird")
	want := "(cat*) OR ((dog*) AND (bird*))"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_Parentheses(t *testing.T) {
	got := Compile("(cat OR dog) AND bird")
	want := "(((cat*) OR (dog*))) AND (bird*)"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_QuotedPhrase(t *testing.T) {
	got := Compile(`"exact phrase"`)
	want := `"exact phrase"`
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
	if got.Expanded {
		t.Error("phrase-only query should not report expansion")
	}
}

func TestCompile_PhraseWithTerm(t *testing.T) {
	got := Compile(`"error handling" AND golang`)
	want := `("error handling") AND (golang*)`
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_CaseInsensitiveKeywords(t *testing.T) {
	got := Compile("cat and dog")
	want := "(cat*) AND (dog*)"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_UnbalancedParensFallsBack(t *testing.T) {
	got := Compile("(cat AND dog")
	want := "(cat* AND* dog*"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
	if !got.Expanded {
		t.Error("fallback should report expansion")
	}
}

func TestCompile_TrailingOperatorFallsBack(t *testing.T) {
	got := Compile("cat AND")
	want := "cat* AND*"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_TermsWithColonVerbatim(t *testing.T) {
	got := Compile("title:hello world")
	want := "title:hello world*"
	if got.Match != want {
		t.Errorf("got %q, want %q", got.Match, want)
	}
}

func TestCompile_Empty(t *testing.T) {
	got := Compile("   ")
	if got.Match != "" {
		t.Errorf("expected empty match, got %q", got.Match)
	}
}

func TestExpandTerms_DashesAsWhitespace(t *testing.T) {
	got := ExpandTerms("alpha—beta")
	want := "alpha* beta*"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
