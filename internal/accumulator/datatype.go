package accumulator

import (
	"strings"
	"unicode"
)

// Deriver maps a REDCap project title to a data type label.
type Deriver func(projectTitle string) string

// Rule maps projects whose title contains Keyword to Label.
type Rule struct {
	Keyword string `yaml:"keyword"`
	Label   string `yaml:"label"`
}

// Questionnaire is the label for questionnaire projects. Reports of this type
// are grouped by event rather than by repeat instrument.
const Questionnaire = "questionnaire"

// DefaultRules covers the project naming convention used by the study.
var DefaultRules = []Rule{
	{Keyword: "questionnaire", Label: Questionnaire},
	{Keyword: "ema", Label: "ema"},
}

// DefaultDeriver returns a KeywordDeriver over DefaultRules.
func DefaultDeriver() Deriver { return KeywordDeriver(DefaultRules) }

// KeywordDeriver returns a Deriver that checks rules in order. A rule matches
// when some word of the title starts with its keyword, case-insensitively.
// Titles matching no rule are labelled with their own slug.
func KeywordDeriver(rules []Rule) Deriver {
	return func(title string) string {
		words := tokenize(title)
		for _, rule := range rules {
			kw := strings.ToLower(strings.TrimSpace(rule.Keyword))
			if kw == "" {
				continue
			}
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return rule.Label
				}
			}
		}
		if len(words) == 0 {
			return "unknown"
		}
		return strings.Join(words, "_")
	}
}

func tokenize(title string) []string {
	return strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
