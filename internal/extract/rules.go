package extract

import (
	"regexp"
	"strings"
)

// Rule is one named syntactic repair. Rules are applied cumulatively, in
// order, until the candidate parses.
type Rule struct {
	Name  string
	Apply func(string) string
}

var (
	trailingCommaObject = regexp.MustCompile(`,\s*}`)
	trailingCommaArray  = regexp.MustCompile(`,\s*\]`)
)

// Rules is the ordered repair list.
var Rules = []Rule{
	{
		Name:  "trailing-comma-object",
		Apply: func(s string) string { return trailingCommaObject.ReplaceAllString(s, "}") },
	},
	{
		Name:  "trailing-comma-array",
		Apply: func(s string) string { return trailingCommaArray.ReplaceAllString(s, "]") },
	},
	{
		Name:  "newlines",
		Apply: func(s string) string { return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s) },
	},
}

// RuleByName returns the named rule.
func RuleByName(name string) (Rule, bool) {
	for _, r := range Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}
