package crosspost

import (
	"strings"
)

// StoryURL is the public page of a story.
func StoryURL(siteBaseURL, storyID string) string {
	return strings.TrimRight(siteBaseURL, "/") + "/story/" + storyID
}

// BuildMessage formats the post: pinned title, the first two non-empty
// summary lines, and a read-more link, separated by blank lines.
func BuildMessage(title, summary, storyURL string) string {
	if title == "" {
		title = "Новость"
	}

	var excerpt []string
	for _, line := range strings.Split(summary, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		excerpt = append(excerpt, line)
		if len(excerpt) == 2 {
			break
		}
	}

	parts := []string{"📌 " + title}
	if len(excerpt) > 0 {
		parts = append(parts, strings.Join(excerpt, "\n"))
	}
	parts = append(parts, "Читать полностью → "+storyURL)
	return strings.Join(parts, "\n\n")
}
