package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, id := range All() {
		parsed, err := Parse(string(id))
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}

	for _, bad := range []string{"", "python", "JAC", "jaclang"} {
		_, err := Parse(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestOther(t *testing.T) {
	assert.Equal(t, PY, JAC.Other())
	assert.Equal(t, JAC, PY.Other())
}

func TestSourceFile(t *testing.T) {
	assert.Equal(t, "main.jac", JAC.SourceFile())
	assert.Equal(t, "main.py", PY.SourceFile())
}
