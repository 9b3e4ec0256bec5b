// Package lang defines the surface language identifiers shared by the
// policy, sandbox, and translator packages.
package lang

import "fmt"

// ID identifies one of the two surface languages accepted by the platform.
type ID string

// Supported surface languages.
const (
	// JAC is the explicit-delimiter syntax: block headers end with "->"
	// and blocks are closed with a "ye" terminator line.
	JAC ID = "jac"

	// PY is the indentation syntax: block headers end with ":" and blocks
	// are delimited by indentation, Python-style.
	PY ID = "py"
)

// All lists every supported language.
func All() []ID {
	return []ID{JAC, PY}
}

// Parse converts a string into a language ID.
func Parse(s string) (ID, error) {
	switch ID(s) {
	case JAC:
		return JAC, nil
	case PY:
		return PY, nil
	default:
		return "", fmt.Errorf("unsupported language: %q, must be one of: %s, %s", s, JAC, PY)
	}
}

// Other returns the counterpart surface language.
func (id ID) Other() ID {
	if id == JAC {
		return PY
	}
	return JAC
}

// SourceFile returns the conventional file name for code in this language.
func (id ID) SourceFile() string {
	if id == JAC {
		return "main.jac"
	}
	return "main.py"
}

func (id ID) String() string {
	return string(id)
}
