package translator

import (
	"fmt"
	"regexp"
)

// Block delimitation markers for the two surface syntaxes.
const (
	jacHeaderSuffix = "->"
	jacTerminator   = "ye"
	jacComment      = "//"

	pyHeaderSuffix = ":"
	pyComment      = "#"

	indentUnit = 4
)

// headerRule recognizes one structural construct in both syntaxes and
// re-emits it in either. The table below is the entire recognized grammar;
// extending the translator means adding a row here, and anything outside
// the table is passed through with a warning rather than guessed at.
type headerRule struct {
	name  string
	jac   *regexp.Regexp
	py    *regexp.Regexp
	toJac func(match []string) string
	toPy  func(match []string) string
}

// headerRules is ordered: more specific keywords (elif) come before their
// prefixes (if) so classification is unambiguous.
var headerRules = []headerRule{
	{
		name: "function",
		jac:  regexp.MustCompile(`^can\s+([A-Za-z_]\w*)\s*\((.*)\)\s*->$`),
		py:   regexp.MustCompile(`^def\s+([A-Za-z_]\w*)\s*\((.*)\)\s*:$`),
		toJac: func(m []string) string {
			return fmt.Sprintf("can %s(%s) ->", m[1], m[2])
		},
		toPy: func(m []string) string {
			return fmt.Sprintf("def %s(%s):", m[1], m[2])
		},
	},
	{
		name:  "elif",
		jac:   regexp.MustCompile(`^elif\s+(.+?)\s*->$`),
		py:    regexp.MustCompile(`^elif\s+(.+?)\s*:$`),
		toJac: func(m []string) string { return fmt.Sprintf("elif %s ->", m[1]) },
		toPy:  func(m []string) string { return fmt.Sprintf("elif %s:", m[1]) },
	},
	{
		name:  "if",
		jac:   regexp.MustCompile(`^if\s+(.+?)\s*->$`),
		py:    regexp.MustCompile(`^if\s+(.+?)\s*:$`),
		toJac: func(m []string) string { return fmt.Sprintf("if %s ->", m[1]) },
		toPy:  func(m []string) string { return fmt.Sprintf("if %s:", m[1]) },
	},
	{
		name:  "else",
		jac:   regexp.MustCompile(`^else\s*->$`),
		py:    regexp.MustCompile(`^else\s*:$`),
		toJac: func([]string) string { return "else ->" },
		toPy:  func([]string) string { return "else:" },
	},
	{
		name:  "for",
		jac:   regexp.MustCompile(`^for\s+(.+?)\s*->$`),
		py:    regexp.MustCompile(`^for\s+(.+?)\s*:$`),
		toJac: func(m []string) string { return fmt.Sprintf("for %s ->", m[1]) },
		toPy:  func(m []string) string { return fmt.Sprintf("for %s:", m[1]) },
	},
	{
		name:  "while",
		jac:   regexp.MustCompile(`^while\s+(.+?)\s*->$`),
		py:    regexp.MustCompile(`^while\s+(.+?)\s*:$`),
		toJac: func(m []string) string { return fmt.Sprintf("while %s ->", m[1]) },
		toPy:  func(m []string) string { return fmt.Sprintf("while %s:", m[1]) },
	},
}

// lineClass is the classification assigned to one logical line.
type lineClass int

const (
	classStatement lineClass = iota
	classComment
	classHeader
	classUnknownHeader
	classTerminator
)
