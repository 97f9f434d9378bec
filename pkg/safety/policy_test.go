package safety

import "testing"

func TestMaskingBelowThreshold(t *testing.T) {
	in := "what the fuck"
	if got := ApplyMasking(in, 0); got != in {
		t.Errorf("level 0 must pass through, got %q", got)
	}
	if got := ApplyMasking(in, MaskThreshold-1); got != in {
		t.Errorf("level below threshold must pass through, got %q", got)
	}
}

func TestMaskingReplacesTerms(t *testing.T) {
	tests := []struct{ in, want string }{
		{"what the fuck", "what the f**k"},
		{"Holy Shit!", "Holy s**t!"},
		{"you BITCH", "you b***h"},
		{"fuck shit bitch", "f**k s**t b***h"},
		{"untouched text stays", "untouched text stays"},
	}
	for _, tt := range tests {
		if got := ApplyMasking(tt.in, MaskThreshold); got != tt.want {
			t.Errorf("ApplyMasking(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskingIdempotent(t *testing.T) {
	inputs := []string{
		"what the fuck is this shit",
		"already masked f**k",
		"clean sentence",
	}
	for _, in := range inputs {
		once := ApplyMasking(in, MaskThreshold)
		twice := ApplyMasking(once, MaskThreshold)
		if once != twice {
			t.Errorf("masking not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestIsIllegal(t *testing.T) {
	if IsIllegal(Classify("how do I sell drugs")) != true {
		t.Error("expected illegal flag")
	}
	if IsIllegal(Classify("how do I sell lemonade")) != false {
		t.Error("unexpected illegal flag")
	}
}
