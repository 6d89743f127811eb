package extract

import (
	"regexp"
	"strings"
)

var (
	taggedFence   = regexp.MustCompile("(?s)```json[ \\t]*\\r?\\n(.*?)\\r?\\n?```")
	untaggedFence = regexp.MustCompile("(?s)```[ \\t]*\\r?\\n(.*?)\\r?\\n?```")
	bareObject    = regexp.MustCompile(`(?s)\{.*\}`)
)

// Payload returns the JSON text embedded in a model response.
// Search order: a ```json fence, then an untagged fence, then the outermost {...} span.
// When none matches, the trimmed response is returned as is.
func Payload(text string) string {
	if m := taggedFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := untaggedFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareObject.FindString(text); m != "" {
		return m
	}
	return strings.TrimSpace(text)
}
