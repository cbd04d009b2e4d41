package translate

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrEmptyResponse is returned when nothing is left after cleanup.
var ErrEmptyResponse = errors.New("empty translation")

const systemPromptTemplate = `You are a professional translator. Translate the user's text from %s to %s.
Rules:
- Output ONLY the translation, nothing else.
- Preserve line breaks, numbers, names, URLs and placeholders exactly.
- Do not add explanations, notes, quotes or comments.`

// commentaryPrefixes mark lines that models add around the actual translation.
var commentaryPrefixes = []string{
	"translation:", "translation :", "translated text:",
	"here is", "here's", "voici",
	"les règles", "the following", "rules:", "règles:",
	"note:", "note :", "remarque:", "remarque :",
	"context:", "contexte:", "hint:", "indice:",
}

// commentaryLines are whole lines that carry no translated content.
var commentaryLines = map[string]bool{
	"translation": true,
	"traduction":  true,
	"rules":       true,
	"règles":      true,
}

// LanguageName returns the English display name of a BCP 47 tag, or the tag
// itself when it cannot be named.
func LanguageName(tag string) string {
	if tag == "" || tag == "auto" {
		return "the source language"
	}
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return tag
}

// SystemPrompt builds the instruction sent with every request.
func SystemPrompt(source, target string) string {
	return fmt.Sprintf(systemPromptTemplate, LanguageName(source), LanguageName(target))
}

// Clean strips commentary lines and wrapping quotes from a model response.
func Clean(raw string) (string, error) {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		if isCommentary(lower) {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.TrimSpace(strings.Join(kept, "\n"))
	out = trimQuotes(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func isCommentary(lower string) bool {
	if commentaryLines[lower] {
		return true
	}
	for _, p := range commentaryPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func trimQuotes(s string) string {
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}}
	for _, p := range pairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			inner := strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
			if !strings.Contains(inner, p[0]) {
				return inner
			}
		}
	}
	return s
}
