package sampling

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawDeterministic(t *testing.T) {
	l := Default()
	l.Seed = 42
	a, err := l.Draw(50)
	require.NoError(t, err)
	b, err := l.Draw(50)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	l.Seed = 43
	c, err := l.Draw(50)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDrawRange(t *testing.T) {
	l := Default()
	l.Seed = 7
	got, err := l.Draw(2001)
	require.NoError(t, err)
	for _, v := range got {
		assert.GreaterOrEqual(t, v, 0)
	}
	sort.Ints(got)
	// median of lognormal(6, 1) is e^6 ~ 403
	median := got[len(got)/2]
	assert.InDelta(t, 403, median, 60)
}

func TestDrawInvalid(t *testing.T) {
	_, err := LogNormal{Mu: 6, Sigma: 0}.Draw(2)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Default().Draw(-1)
	assert.ErrorIs(t, err, ErrInvalid)
	got, err := Default().Draw(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
