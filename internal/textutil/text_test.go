package textutil

import "testing"

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Hello   world", "Hello world"},
		{"tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"script dropped", "<div>news<script>alert(1)</script></div>", "news"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.expected {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	if got := Clean("  A &lt;b&gt; test… "); got != "A <b> test..." {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTruncateWords(t *testing.T) {
	if got := TruncateWords("one two  three four", 2); got != "one two" {
		t.Fatalf("unexpected %q", got)
	}
	if got := TruncateWords("one two", 5); got != "one two" {
		t.Fatalf("unexpected %q", got)
	}
}
