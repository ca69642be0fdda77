package slug

import "testing"

func TestGenerate(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		input, want string
	}{
		{"Koolyanobbing Mine", "koolyanobbing-mine"},
		{"Karee Mine (Rustenburg)", "karee-mine"},
		{"Karee Mine Rustenburg", "karee-mine-rustenburg"},
		{"Красноярск Smelter", "krasnoyarsk-smelter"},
		{"Shaft No. 3 / Section B", "shaft-no-3-section-b"},
		{"O'Kiep Copper Smelter", "o-kiep-copper-smelter"},
		{"  --Waterval   Smelter--  ", "waterval-smelter"},
		{"Mine 2 (old (closed) shaft) Extension", "mine-2-extension"},
		{"Unbalanced (note", "unbalanced"},
		{"Plant #10", "plant-10"},
		{"紫金矿业", ""},
		{"紫金 Zijin Refinery", "zijin-refinery"},
		{"", ""},
	}
	for _, tt := range tests {
		got := Generate(tt.input, opts)
		if got != tt.want {
			t.Errorf("Generate(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if got != "" && !Valid(got) {
			t.Errorf("Generate(%q) = %q, not a valid slug", tt.input, got)
		}
	}
}

func TestGenerate_KeepParentheticals(t *testing.T) {
	got := Generate("Karee Mine (Rustenburg)", Options{RemoveParentheticals: false})
	if got != "karee-mine-rustenburg" {
		t.Errorf("Generate = %q, want karee-mine-rustenburg", got)
	}
}

func TestGenerate_NumericTokensVerbatim(t *testing.T) {
	got := Generate("Impala Shaft 14", DefaultOptions())
	if got != "impala-shaft-14" {
		t.Errorf("Generate = %q, want impala-shaft-14", got)
	}
}

func TestStripParentheticals(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"a (b) c", "a c"},
		{"a (b (c)) d", "a d"},
		{"a) b", "a b"},
		{"no parens", "no parens"},
	}
	for _, tt := range tests {
		if got := StripParentheticals(tt.input); got != tt.want {
			t.Errorf("StripParentheticals(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("waterval-smelter", "", "mpumalanga"); got != "waterval-smelter-mpumalanga" {
		t.Errorf("Join = %q", got)
	}
	if got := Join("", "-"); got != "" {
		t.Errorf("Join of empties = %q, want empty", got)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"waterval-smelter", true},
		{"a", true},
		{"mine-2", true},
		{"-mine", false},
		{"mine-", false},
		{"mine--2", false},
		{"Mine", false},
		{"", false},
		{"mine_2", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.input); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestContainsTokens(t *testing.T) {
	tests := []struct {
		s, frag string
		want    bool
	}{
		{"karee-mine-rustenburg", "rustenburg", true},
		{"rustenburg-karee-mine", "rustenburg", true},
		{"karee-rustenburg-mine", "rustenburg", true},
		{"karee-mine", "rustenburg", false},
		{"karee-mine-rustenburgx", "rustenburg", false},
		{"karee-mine", "", false},
	}
	for _, tt := range tests {
		if got := ContainsTokens(tt.s, tt.frag); got != tt.want {
			t.Errorf("ContainsTokens(%q, %q) = %v, want %v", tt.s, tt.frag, got, tt.want)
		}
	}
}
