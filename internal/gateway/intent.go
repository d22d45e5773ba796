package gateway

import (
	"slices"
	"strings"
	"unicode"
)

// Intent is the local guess of what a prompt asks for.
type Intent int

const (
	// IntentQuestion asks about the page without changing it.
	IntentQuestion Intent = iota
	// IntentChange asks for the page to be modified.
	IntentChange
)

func (i Intent) String() string {
	if i == IntentChange {
		return "change"
	}
	return "question"
}

// changeKeywords are verbs that signal an edit request. Dutch forms are
// included because editors write prompts in both languages.
var changeKeywords = []string{
	"add", "change", "make", "create", "remove", "delete", "replace",
	"update", "modify", "move", "insert", "set", "turn", "rename",
	"build", "design", "style", "convert", "fix", "translate",
	"maak", "voeg", "verander", "wijzig", "verwijder", "vervang", "zet",
}

// questionWords open a prompt that asks instead of instructs. Polite
// requests ("can you add ...") are not listed and fall through to the
// keyword scan.
var questionWords = []string{
	"what", "why", "how", "who", "when", "where", "which", "explain",
	"wat", "waarom", "hoe", "wie", "welke", "waar",
}

// ClassifyIntent decides whether a prompt requests a change to the page.
// A prompt that opens with an interrogative word and ends with a question
// mark is a question. Otherwise any change keyword marks a change.
func ClassifyIntent(prompt string) Intent {
	words := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(words) == 0 {
		return IntentQuestion
	}

	question := strings.HasSuffix(strings.TrimSpace(prompt), "?")
	if question && slices.Contains(questionWords, words[0]) {
		return IntentQuestion
	}

	for _, w := range words {
		if slices.Contains(changeKeywords, w) {
			return IntentChange
		}
	}
	return IntentQuestion
}

