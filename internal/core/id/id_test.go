package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsTimeOrdered(t *testing.T) {
	a, b := New(), New()
	assert.Equal(t, 7, int(a.Version()))
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a.String()[:12], b.String()[:12])
}

func TestParseOptional(t *testing.T) {
	got, err := ParseOptional("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	v := New()
	got, err = ParseOptional(" " + v.String() + "\n")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, v, *got)

	_, err = ParseOptional("lot-42")
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	v := New()
	assert.True(t, Matches(&v, v))
	assert.False(t, Matches(nil, v))
	other := New()
	assert.False(t, Matches(&other, v))
	assert.True(t, IsNil(Nil()))
}
