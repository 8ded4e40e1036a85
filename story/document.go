// Package story serves the bot's story texts and the per-user /start debounce.
package story

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDocument is returned when a bot text is missing or blank. The
// wrapping error names the missing keys.
var ErrEmptyDocument = errors.New("story: document is missing bot texts")

// Texts holds the free-text replies read from the bot section.
type Texts struct {
	FirstChapter   string `yaml:"first_chapter"`
	HelpMessage    string `yaml:"help_message"`
	WelcomeMessage string `yaml:"welcome_message"`
}

// Document is the story document. It is read-only once parsed.
type Document struct {
	Bot Texts `yaml:"bot"`
}

// Parse decodes a YAML story document. Unknown top-level sections are ignored
// so the story may live next to the process configuration.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("story: parse document: %w", err)
	}
	if missing := doc.Bot.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, strings.Join(missing, ", "))
	}
	return &doc, nil
}

// missing lists the bot.* keys whose text is blank, in document order.
func (t Texts) missing() []string {
	var keys []string
	for _, f := range []struct{ key, text string }{
		{"bot.first_chapter", t.FirstChapter},
		{"bot.help_message", t.HelpMessage},
		{"bot.welcome_message", t.WelcomeMessage},
	} {
		if strings.TrimSpace(f.text) == "" {
			keys = append(keys, f.key)
		}
	}
	return keys
}
