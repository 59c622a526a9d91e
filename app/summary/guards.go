package summary

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/newshub/app/database"
)

const attributionPhrase = "по данным источников"

var forbiddenWords = []string{"ужас", "кошмар", "шок", "сенсация", "скандал века"}

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?%?`)

// GuardError reports the first guard that blocked publication.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string { return e.Reason }

// GuardLength checks the body length in characters against [min, max].
func GuardLength(body string, min, max int) error {
	n := utf8.RuneCountInString(body)
	if n < min {
		return &GuardError{Reason: fmt.Sprintf("too_short:%d<%d", n, min)}
	}
	if n > max {
		return &GuardError{Reason: fmt.Sprintf("too_long:%d>%d", n, max)}
	}
	return nil
}

// GuardForbiddenWords rejects sensationalist vocabulary.
func GuardForbiddenWords(text string) error {
	lower := strings.ToLower(text)
	for _, w := range forbiddenWords {
		if strings.Contains(lower, w) {
			return &GuardError{Reason: "forbidden_word:" + w}
		}
	}
	return nil
}

// GuardNumbers requires every number in the source headlines to appear
// verbatim in the generated text.
func GuardNumbers(sourceTitles []string, generated string) error {
	present := make(map[string]bool)
	for _, n := range numberPattern.FindAllString(generated, -1) {
		present[n] = true
	}

	seen := make(map[string]bool)
	var missing []string
	for _, title := range sourceTitles {
		for _, n := range numberPattern.FindAllString(title, -1) {
			if seen[n] {
				continue
			}
			seen[n] = true
			if !present[n] {
				missing = append(missing, n)
			}
		}
	}

	if len(missing) > 0 {
		return &GuardError{Reason: "missing_numbers:" + strings.Join(missing, ",")}
	}
	return nil
}

// GuardHighRisk requires the attribution phrase in high risk bodies.
func GuardHighRisk(body string, risk database.RiskLevel) error {
	if risk != database.RiskHigh {
		return nil
	}
	if !strings.Contains(strings.ToLower(body), attributionPhrase) {
		return &GuardError{Reason: "high_risk_requires_attribution"}
	}
	return nil
}

// RunGuards applies the guards in order and returns the first failure. The
// length guard is skipped for last resort output.
func RunGuards(s Sections, sourceTitles []string, risk database.RiskLevel, minLen, maxLen int, lastResort bool) error {
	body := s.Body()
	full := s.Full()

	var checks []func() error
	if !lastResort {
		checks = append(checks, func() error { return GuardLength(body, minLen, maxLen) })
	}
	checks = append(checks,
		func() error { return GuardForbiddenWords(full) },
		func() error { return GuardNumbers(sourceTitles, full) },
		func() error { return GuardHighRisk(body, risk) },
	)

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
