package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxExecutionTime: 10 * time.Second,
		MaxMemory:        256 * 1024 * 1024,
		MaxOutputSize:    64 * 1024,
		MaxCodeSize:      64 * 1024,
	}
}

func TestResourceLimitsValidate(t *testing.T) {
	t.Run("ValidLimits", func(t *testing.T) {
		require.NoError(t, defaultLimits().Validate())
	})

	t.Run("ZeroExecutionTime", func(t *testing.T) {
		limits := defaultLimits()
		limits.MaxExecutionTime = 0
		assert.Error(t, limits.Validate())
	})

	t.Run("NegativeMemory", func(t *testing.T) {
		limits := defaultLimits()
		limits.MaxMemory = -1
		assert.Error(t, limits.Validate())
	})

	t.Run("ZeroOutputSize", func(t *testing.T) {
		limits := defaultLimits()
		limits.MaxOutputSize = 0
		assert.Error(t, limits.Validate())
	})

	t.Run("ZeroCodeSize", func(t *testing.T) {
		limits := defaultLimits()
		limits.MaxCodeSize = 0
		assert.Error(t, limits.Validate())
	})
}

func TestMergeLimits(t *testing.T) {
	defaults := defaultLimits()

	t.Run("ZeroOverrideKeepsDefaults", func(t *testing.T) {
		merged := MergeLimits(defaults, ResourceLimits{})
		assert.Equal(t, defaults, merged)
	})

	t.Run("TighterOverrideWins", func(t *testing.T) {
		override := ResourceLimits{
			MaxExecutionTime: 200 * time.Millisecond,
			MaxMemory:        1024 * 1024,
		}
		merged := MergeLimits(defaults, override)
		assert.Equal(t, 200*time.Millisecond, merged.MaxExecutionTime)
		assert.Equal(t, int64(1024*1024), merged.MaxMemory)
		assert.Equal(t, defaults.MaxOutputSize, merged.MaxOutputSize)
		assert.Equal(t, defaults.MaxCodeSize, merged.MaxCodeSize)
	})

	t.Run("LooserOverrideIsClampedToDefault", func(t *testing.T) {
		override := ResourceLimits{
			MaxExecutionTime: time.Hour,
			MaxMemory:        defaults.MaxMemory * 10,
			MaxOutputSize:    defaults.MaxOutputSize * 10,
			MaxCodeSize:      defaults.MaxCodeSize * 10,
		}
		merged := MergeLimits(defaults, override)
		assert.Equal(t, defaults, merged)
	})
}
