package cluster

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// TokenSet is an unordered set of headline tokens.
type TokenSet map[string]struct{}

// hebrewStopwords are function words that carry no topic signal.
var hebrewStopwords = toSet(
	"של", "את", "אל", "עם", "כי", "על", "זה", "זו", "זאת",
	"הם", "הן", "היה", "היו", "הוא", "היא", "לא", "גם", "אבל",
	"כן", "אם", "כבר", "רק", "עוד", "כל", "כלל", "אחד", "אחת",
	"שני", "שתי", "מה", "מי", "לו", "לה", "להם", "לנו", "לי",
	"כך", "אז", "יש", "אין", "אחרי", "לפני", "בין", "תחת",
	"מתוך", "כנגד", "בגלל", "כדי", "כמו", "אחרת", "או", "שוב",
	"עכשיו", "יותר", "פחות", "הכל", "ממנו", "ממנה", "אלה", "אלו",
	"בה", "בהם", "בנו", "בי", "ומה",
	"ועל", "ואל", "ועם", "ולא", "וגם", "אנחנו", "אתם", "אתן",
)

func toSet(words ...string) TokenSet {
	s := make(TokenSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Tokenize splits a headline on anything that is not a letter or digit,
// lowercases the parts and drops stopwords and tokens shorter than two
// characters. An empty set is a valid result.
func Tokenize(title string) TokenSet {
	title = norm.NFKC.String(title)
	parts := strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make(TokenSet, len(parts))
	for _, p := range parts {
		t := strings.ToLower(p)
		if utf8.RuneCountInString(t) < 2 {
			continue
		}
		if _, stop := hebrewStopwords[t]; stop {
			continue
		}
		tokens[t] = struct{}{}
	}
	return tokens
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets score 1, one empty set
// scores 0.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	if len(a) > len(b) {
		a, b = b, a
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// union adds every token of other to s.
func (s TokenSet) union(other TokenSet) {
	for t := range other {
		s[t] = struct{}{}
	}
}

func (s TokenSet) clone() TokenSet {
	c := make(TokenSet, len(s))
	c.union(s)
	return c
}
