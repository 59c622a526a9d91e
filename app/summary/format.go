package summary

import (
	"errors"
	"strings"
)

const (
	sectionTitle        = "Заголовок"
	sectionWhatHappened = "Что произошло"
	sectionWhyImportant = "Почему важно"
	sectionWhatsNext    = "Что дальше"
	sectionSources      = "Источники"
)

var sectionOrder = []string{sectionTitle, sectionWhatHappened, sectionWhyImportant, sectionWhatsNext, sectionSources}

// ErrParse means generated text lacks a mandatory section or has an empty one.
var ErrParse = errors.New("format_parse_failed")

type Sections struct {
	Title        string
	WhatHappened string
	WhyImportant string
	WhatsNext    string
	Sources      string
}

// ParseSections reads the five labelled sections. A section starts on the
// first line beginning with "<label>:" and runs until the next section's
// label; continuation lines are joined with spaces.
func ParseSections(text string) (Sections, error) {
	lines := strings.Split(text, "\n")
	values := make(map[string]string, len(sectionOrder))

	for i, key := range sectionOrder {
		start := findSection(lines, key, 0)
		if start == -1 {
			return Sections{}, ErrParse
		}

		end := len(lines)
		if i+1 < len(sectionOrder) {
			if next := findSection(lines, sectionOrder[i+1], start+1); next != -1 {
				end = next
			}
		}

		first := strings.TrimSpace(strings.TrimSpace(lines[start])[len(key)+1:])
		parts := []string{}
		if first != "" {
			parts = append(parts, first)
		}
		for _, l := range lines[start+1 : end] {
			if l = strings.TrimSpace(l); l != "" {
				parts = append(parts, l)
			}
		}

		value := strings.Join(parts, " ")
		if value == "" {
			return Sections{}, ErrParse
		}
		values[key] = value
	}

	return Sections{
		Title:        values[sectionTitle],
		WhatHappened: values[sectionWhatHappened],
		WhyImportant: values[sectionWhyImportant],
		WhatsNext:    values[sectionWhatsNext],
		Sources:      values[sectionSources],
	}, nil
}

func findSection(lines []string, key string, from int) int {
	for i := from; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), key+":") {
			return i
		}
	}
	return -1
}

// Body is the narrative part checked by the length guard.
func (s Sections) Body() string {
	return strings.Join([]string{
		sectionWhatHappened + ": " + s.WhatHappened,
		sectionWhyImportant + ": " + s.WhyImportant,
		sectionWhatsNext + ": " + s.WhatsNext,
	}, "\n")
}

// Full is the stored display text: title, blank line, body, sources.
func (s Sections) Full() string {
	return strings.Join([]string{
		s.Title,
		"",
		s.Body(),
		sectionSources + ": " + s.Sources,
	}, "\n")
}
