package resolver

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

const (
	containmentWeight = 0.7
	editWeight        = 0.3
)

// SimilarityScorer blends token containment with normalised edit distance.
type SimilarityScorer struct{}

func (SimilarityScorer) Score(description, candidate string) float64 {
	desc := normalize(description)
	name := normalize(candidate)
	if desc == "" || name == "" {
		return 0
	}
	if desc == name || strings.Contains(" "+desc+" ", " "+name+" ") {
		return 1
	}
	return containmentWeight*containment(desc, name) + editWeight*editSimilarity(desc, name)
}

// containment is the share of the candidate's tokens present in the description.
func containment(desc, name string) float64 {
	have := make(map[string]struct{})
	for _, tok := range strings.Fields(desc) {
		have[tok] = struct{}{}
	}
	want := strings.Fields(name)
	hit := 0
	for _, tok := range want {
		if _, ok := have[tok]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(want))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalize(s)) {
		set[tok] = struct{}{}
	}
	return set
}

// coveredTokens is the number of name tokens when every one of them is in
// words, and zero otherwise.
func coveredTokens(words map[string]struct{}, name string) int {
	toks := strings.Fields(normalize(name))
	for _, tok := range toks {
		if _, ok := words[tok]; !ok {
			return 0
		}
	}
	return len(toks)
}

func editSimilarity(a, b string) float64 {
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	toks := strings.Fields(b.String())
	for i, tok := range toks {
		toks[i] = singular(tok)
	}
	return strings.Join(toks, " ")
}

func singular(tok string) string {
	switch {
	case len(tok) > 4 && strings.HasSuffix(tok, "ies"):
		return tok[:len(tok)-3] + "y"
	case len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss"):
		return tok[:len(tok)-1]
	}
	return tok
}
