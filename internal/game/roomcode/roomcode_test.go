package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGenerator_NewCode(t *testing.T) {
	g := New(6)
	code, err := g.NewCode()
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, c := range code {
		assert.Contains(t, Alphabet, string(c))
	}
}

func TestGenerator_DefaultLength(t *testing.T) {
	for _, bad := range []int{0, -3} {
		g := New(bad)
		code, err := g.NewCode()
		require.NoError(t, err)
		assert.Len(t, code, DefaultLength)
	}
}

func TestAlphabet_ExcludesAmbiguousCharacters(t *testing.T) {
	for _, c := range "ILO01" {
		assert.NotContains(t, Alphabet, string(c))
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "AB12CD", Normalize("ab12cd"))
	assert.Equal(t, "AB12CD", Normalize("  Ab12Cd\n"))
	assert.Equal(t, "", Normalize("   "))
}

// Property: any generated code survives a lowercase round trip through
// Normalize, so codes typed in any case resolve to the same room.
func TestGenerator_CodesNormalizeCleanly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(4, 12).Draw(t, "length")
		g := New(length)
		code, err := g.NewCode()
		if err != nil {
			t.Fatalf("generating code: %v", err)
		}
		if len(code) != length {
			t.Fatalf("expected length %d, got %d", length, len(code))
		}
		if Normalize(strings.ToLower(code)) != code {
			t.Fatalf("code %q does not normalize back to itself", code)
		}
	})
}
