package render

import "testing"

func TestSummaryText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n ", ""},
		{"plain text", "hello world", "hello world"},
		{"strips tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"decodes entities", "a &amp; b", "a & b"},
		{"skips scripts", `<p>text</p><script>alert("x")</script>`, "text"},
		{"block tags separate words", "<p>one</p><p>two</p>", "one two"},
		{"collapses whitespace", "<div>  a\n\n  b </div>", "a b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SummaryText(tc.in); got != tc.want {
				t.Fatalf("SummaryText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
