package translit

import (
	"testing"
	"unicode/utf8"
)

func TestTransliterate(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"Красноярск", "Krasnoyarsk"},
		{"Норильск", "Norilsk"},
		{"ЩЁКИНО", "ShchYoKINO"},
		{"Žilina", "Zilina"},
		{"Øresund", "Oresund"},
		{"Straße", "Strasse"},
		{"Łódź", "Lodz"},
		{"São João del-Rei", "Sao Joao del-Rei"},
		{"Αθήνα", "Athina"},
		{"Шахта №3", "Shakhta No3"},
		{"ＡＢＣ１２３", "ABC123"},
		{"Mine ٣", "Mine 3"},
		{"", ""},
		{"Koolyanobbing Mine", "Koolyanobbing Mine"},
	}
	for _, tt := range tests {
		got := Transliterate(tt.input)
		if got != tt.want {
			t.Errorf("Transliterate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTransliterate_NFCBeforeTables(t *testing.T) {
	// "й" written as и + combining breve must not fall back to plain "i".
	decomposed := "\u0438\u0306"
	if got := Transliterate(decomposed); got != "y" {
		t.Errorf("Transliterate(decomposed й) = %q, want y", got)
	}
	// e + combining acute composes and then loses its accent once.
	if got := Transliterate("Pe\u0301rez"); got != "Perez" {
		t.Errorf("Transliterate(decomposed é) = %q, want Perez", got)
	}
}

func TestDetail_CJKKeepsLatinForm(t *testing.T) {
	res := Detail("紫金矿业 Zijin Mining")
	if got := Sanitize(res.Text); got != "zijin mining" {
		t.Errorf("Sanitize(Detail().Text) = %q, want %q", got, "zijin mining")
	}
	if res.Dropped != 4 {
		t.Errorf("Dropped = %d, want 4", res.Dropped)
	}
	if !res.Ambiguous {
		t.Error("Ambiguous = false, want true")
	}
}

func TestDetail_DroppedRunKeepsWordBoundary(t *testing.T) {
	res := Detail("Anshan鞍山Steel")
	if got := Sanitize(res.Text); got != "anshan steel" {
		t.Errorf("Sanitize(%q) = %q, want %q", res.Text, got, "anshan steel")
	}
}

func TestDetail_ArabicIsBestEffort(t *testing.T) {
	res := Detail("القاهرة")
	if res.Text == "" {
		t.Fatal("empty romanization")
	}
	for i := 0; i < len(res.Text); i++ {
		if res.Text[i] >= utf8.RuneSelf {
			t.Fatalf("non-ASCII byte in %q", res.Text)
		}
	}
	if !res.Ambiguous {
		t.Error("Ambiguous = false, want true for unvowelled script")
	}
	if res.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", res.Dropped)
	}
}

func TestDetail_LatinIsNotAmbiguous(t *testing.T) {
	res := Detail("Mpumalanga Nördlingen")
	if res.Ambiguous || res.Dropped != 0 {
		t.Errorf("Detail = %+v, want no ambiguity", res)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"Karee Mine (Rustenburg)", "karee mine rustenburg"},
		{"  O'Brien  /  Smelter ", "o brien smelter"},
		{"Mine-2", "mine-2"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.input); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFold(t *testing.T) {
	if got := Fold("RÜSTENBURG"); got != "rustenburg" {
		t.Errorf("Fold = %q, want rustenburg", got)
	}
	if Fold("Rustenburg") != Fold("rustenburg") {
		t.Error("Fold is not case-insensitive")
	}
}

func TestTransliterate_Deterministic(t *testing.T) {
	in := "Красноярский алюминиевый завод 紫金 Ærø"
	first := Transliterate(in)
	for i := 0; i < 20; i++ {
		if got := Transliterate(in); got != first {
			t.Fatalf("iteration %d: %q != %q", i, got, first)
		}
	}
}
