package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Meeting notes", "Meeting notes"},
		{"script stripped", `Notes<script>alert(1)</script>`, "Notes"},
		{"tags stripped", `<b>Bold</b> <i>title</i>`, "Bold title"},
		{"entities kept readable", "Q&A with R&D", "Q&A with R&D"},
		{"whitespace collapsed", "  two \n\t words ", "two words"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
