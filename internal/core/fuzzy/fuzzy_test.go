package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Tomaten ", "tomaten"},
		{"Zwiebel (gehackt)", "zwiebel"},
		{"Frische rote Paprika", "paprika"},
		{"Chopped Green-Onions", "onions"},
		{"Crème-fraîche", "crème fraîche"},
		{"Rot", "rot"},
		{"Knoblauch,  gehackt", "knoblauch"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"Tomaten", "Zwiebel (rot, gehackt)", "Frische grüne Bohnen", "Rot", "rote rote",
		"Green", "  Salz & Pfeffer ", "Crème-fraîche", "[optional] Chili", "Ei-Gelb", "100g Mehl",
		"((nested)) Basilikum", "Weiße Schokolade",
	}
	for _, in := range inputs {
		once := Normalize(in)
		require.Equal(t, once, Normalize(once), in)
	}
}

func TestSimilarity(t *testing.T) {
	require.Equal(t, 1.0, Similarity("", ""))
	require.Equal(t, 1.0, Similarity("tomate", "tomate"))
	require.Equal(t, 0.0, Similarity("abc", ""))
	require.Equal(t, 3, Distance("kitten", "sitting"))
	require.InDelta(t, 1-3.0/7.0, Similarity("kitten", "sitting"), 1e-9)
	require.Equal(t, 1, Distance("grüne", "grune"))
}

func TestCompareTiers(t *testing.T) {
	tests := []struct {
		a, b  string
		score float64
		typ   MatchType
	}{
		{"tomate", "tomate", ScoreExact, MatchExact},
		{"tomate", "tomaten", ScoreSubstring, MatchSubstring},
		{"ei", "eier", 0.5, MatchFuzzy},
		{"olive oil", "oil olive extra", ScoreToken, MatchToken},
		{"linsen rot", "rot linsen braun", ScoreToken, MatchToken},
		{"cherry tomatoe", "tomato cherry", ScoreTokenFuzzy, MatchTokenFuzzy},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			score, typ := Compare(tt.a, tt.b)
			require.Equal(t, tt.typ, typ)
			require.InDelta(t, tt.score, score, 1e-9)
		})
	}
}

func TestPairScore(t *testing.T) {
	require.GreaterOrEqual(t, PairScore("Tomaten", "Tomate"), 0.85)
	require.GreaterOrEqual(t, PairScore("Zwiebel", "zwiebel (gehackt)"), 0.99)
	require.Less(t, PairScore("Zwiebel", "Tomate"), 0.5)
}
