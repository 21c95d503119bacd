package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsImpliedLevels(t *testing.T) {
	s := Of(Experimental).Normalize()
	assert.True(t, s.Has(ExternC))
	assert.True(t, s.Has(Supported))
	assert.True(t, s.Has(Wrapper))
	assert.True(t, s.Has(Experimental))

	s = Of(Supported).Normalize()
	assert.True(t, s.Has(ExternC))
	assert.False(t, s.Has(Wrapper))
}

func TestCovers(t *testing.T) {
	enabled := Of(Supported).Normalize()
	assert.True(t, enabled.Covers(Of(ExternC)))
	assert.True(t, enabled.Covers(Of(Supported)))
	assert.False(t, enabled.Covers(Of(Experimental)))
	assert.True(t, None.Covers(None))
}

func TestMissing(t *testing.T) {
	enabled := Of(ExternC)
	missing := enabled.Missing(Of(Experimental))
	assert.True(t, missing.Has(Experimental))
	assert.False(t, missing.Has(ExternC))
}

func TestParseSet(t *testing.T) {
	s, err := ParseSet([]string{"supported"})
	require.NoError(t, err)
	assert.True(t, s.Has(Supported))
	assert.True(t, s.Has(ExternC), "parsing normalizes implied levels")

	_, err = ParseSet([]string{"bogus"})
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	s := Of(ExternC, Experimental)
	assert.Equal(t, "[extern_c, experimental]", s.String())
}

func TestGateErrorMessage(t *testing.T) {
	err := Check("//foo:bar", Of(ExternC), Of(Experimental), "ns::Symbol", "reference binding")
	require.Error(t, err)
	assert.Equal(t,
		"//foo:bar needs [experimental] for ns::Symbol (reference binding)",
		err.Error())
}

func TestCheckPasses(t *testing.T) {
	assert.NoError(t, Check("lbl", Of(Experimental), Of(Supported), "s", "r"))
}
