package buildctx

import "testing"

func TestTokenizeCollapsesStarRuns(t *testing.T) {
	tokens := tokenize("a***b")
	want := []tokenKind{tokenChar, tokenDoubleStar, tokenChar}
	if len(tokens) != len(want) {
		t.Fatalf("token count = %d, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.kind != want[i] {
			t.Errorf("token %d kind = %v, want %v", i, tok.kind, want[i])
		}
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		want    bool
	}{
		{"*.log", "app.log", true},
		{"*.log", "app.txt", false},
		{"*.log", "dir/app.log", false},
		{"?at", "cat", true},
		{"?at", "/at", false},
		{"?at", "flat", false},
		{"a/**/b", "a/b", true},
		{"a/**/b", "a/x/b", true},
		{"a/**/b", "a/x/y/b", true},
		{"a/**/b", "a/xb", false},
		{"a/**/b", "ab", false},
		{"**/foo", "foo", true},
		{"**/foo", "deep/down/foo", true},
		{"src/**", "src/mod/file.go", true},
		{"src/**", "src", false},
		{"*", "component", true},
		{"*", "a/b", false},
		{"**", "a/b/c", true},
		{"", "", true},
		{"", "x", false},
		{"lib?.so.*", "libc.so.6", true},
	}
	for _, tt := range tests {
		if got := globMatch(tokenize(tt.pattern), tt.text); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.text, got, tt.want)
		}
	}
}

func TestGlobMatchPathological(t *testing.T) {
	// The memo keeps star-heavy patterns polynomial.
	pattern := "**a**a**a**a**a**a**a**a**a**a**b"
	text := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	if globMatch(tokenize(pattern), text) {
		t.Error("pattern without trailing b matched")
	}
}
