package summary

import (
	"regexp"
)

// glossaryRules enforce house spellings of Israeli institutions and cities.
// City rules keep the Cyrillic case ending of declined forms.
var glossaryRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)цахал`), "ЦАХАЛ"},
	{regexp.MustCompile(`(?i)шабак`), "ШАБАК"},
	{regexp.MustCompile(`(?i)кнес+ет([а-яё]*)`), "Кнессет${1}"},
	{regexp.MustCompile(`(?i)тель[\s-]?авив([а-яё]*)`), "Тель-Авив${1}"},
	{regexp.MustCompile(`(?i)иерусалим([а-яё]*)`), "Иерусалим${1}"},
	{regexp.MustCompile(`(?i)хайф([а-яё]+)`), "Хайф${1}"},
}

// ApplyGlossary normalizes proper nouns in generated text.
func ApplyGlossary(text string) string {
	for _, rule := range glossaryRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}
