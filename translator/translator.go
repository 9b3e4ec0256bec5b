package translator

import (
	"fmt"
	"strings"

	"github.com/jaclearn/runbox/lang"
)

// Translate rewrites source code from one surface syntax into the other by
// structural line classification, not text substitution. It is a pure
// function with no side effects.
//
// The caller boundary guarantees from != to; if invoked anyway the call
// degenerates to the empty translation (success, empty output), the same
// as empty input.
func Translate(source string, from, to lang.ID) Result {
	if from == to || strings.TrimSpace(source) == "" {
		return Result{Success: true}
	}

	if from == lang.JAC {
		return jacToPy(source)
	}
	return pyToJac(source)
}

// jacToPy rewrites explicit-delimiter code into indentation style. Block
// depth is first-class state: headers push a level, "ye" terminators pop
// one, and every emitted line is re-indented by the tracked depth.
func jacToPy(source string) Result {
	var out []string
	var warnings []string
	depth := 0

	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		class, rewritten := classify(line, lang.JAC)
		switch class {
		case classTerminator:
			depth--
			if depth < 0 {
				return Result{
					Success:        false,
					TranslatedCode: strings.Join(out, "\n"),
					Errors:         []string{fmt.Sprintf("line %d: unexpected block terminator %q", lineNo, jacTerminator)},
					Warnings:       warnings,
				}
			}
		case classHeader, classComment:
			out = append(out, indent(depth)+rewritten)
			if class == classHeader {
				depth++
			}
		case classUnknownHeader:
			out = append(out, indent(depth)+line)
			warnings = append(warnings, fmt.Sprintf("line %d: unrecognized construct passed through", lineNo))
			depth++
		default:
			out = append(out, indent(depth)+line)
		}
	}

	if depth != 0 {
		return Result{
			Success:        false,
			TranslatedCode: strings.Join(out, "\n"),
			Errors:         []string{fmt.Sprintf("missing block terminator: %d unclosed block(s) at end of input", depth)},
			Warnings:       warnings,
		}
	}

	return Result{
		Success:        true,
		TranslatedCode: strings.Join(out, "\n"),
		Warnings:       warnings,
	}
}

// pyToJac rewrites indentation-style code into explicit-delimiter style,
// emitting a terminator line on every dedent and for every block still
// open at end of input.
func pyToJac(source string) Result {
	var out []string
	var warnings []string
	depth := 0
	unit := detectIndentUnit(source)

	fail := func(lineNo int, msg string) Result {
		return Result{
			Success:        false,
			TranslatedCode: strings.Join(out, "\n"),
			Errors:         []string{fmt.Sprintf("line %d: %s", lineNo, msg)},
			Warnings:       warnings,
		}
	}

	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		leading := leadingSpaces(raw)
		if leading%unit != 0 {
			return fail(lineNo, fmt.Sprintf("indentation of %d spaces is not a multiple of %d", leading, unit))
		}
		level := leading / unit
		if level > depth {
			return fail(lineNo, "unexpected indent: block nesting cannot be determined")
		}

		for depth > level {
			depth--
			out = append(out, indent(depth)+jacTerminator)
		}

		class, rewritten := classify(line, lang.PY)
		switch class {
		case classHeader, classComment:
			out = append(out, indent(depth)+rewritten)
			if class == classHeader {
				depth++
			}
		case classUnknownHeader:
			out = append(out, indent(depth)+line)
			warnings = append(warnings, fmt.Sprintf("line %d: unrecognized construct passed through", lineNo))
			depth++
		default:
			out = append(out, indent(depth)+line)
		}
	}

	for depth > 0 {
		depth--
		out = append(out, indent(depth)+jacTerminator)
	}

	return Result{
		Success:        true,
		TranslatedCode: strings.Join(out, "\n"),
		Warnings:       warnings,
	}
}

// classify assigns a line class given the source syntax and, for
// recognized constructs, returns the line rewritten in the target syntax.
func classify(line string, from lang.ID) (lineClass, string) {
	if from == lang.JAC {
		if line == jacTerminator {
			return classTerminator, ""
		}
		if rest, ok := strings.CutPrefix(line, jacComment); ok {
			return classComment, pyComment + rest
		}
		for _, rule := range headerRules {
			if m := rule.jac.FindStringSubmatch(line); m != nil {
				return classHeader, rule.toPy(m)
			}
		}
		if strings.HasSuffix(line, jacHeaderSuffix) {
			return classUnknownHeader, ""
		}
		return classStatement, ""
	}

	if rest, ok := strings.CutPrefix(line, pyComment); ok {
		return classComment, jacComment + rest
	}
	for _, rule := range headerRules {
		if m := rule.py.FindStringSubmatch(line); m != nil {
			return classHeader, rule.toJac(m)
		}
	}
	if strings.HasSuffix(line, pyHeaderSuffix) {
		return classUnknownHeader, ""
	}
	return classStatement, ""
}

// detectIndentUnit infers the indent width from the first indented line,
// defaulting to four spaces.
func detectIndentUnit(source string) int {
	for _, raw := range strings.Split(source, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if n := leadingSpaces(raw); n > 0 {
			return n
		}
	}
	return indentUnit
}

func leadingSpaces(raw string) int {
	n := 0
	for _, r := range raw {
		switch r {
		case ' ':
			n++
		case '\t':
			n += indentUnit
		default:
			return n
		}
	}
	return n
}

func indent(depth int) string {
	return strings.Repeat(" ", depth*indentUnit)
}
