package runs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Run{}.Validate(), ErrInvalidRun)
	require.NoError(t, Run{ID: "a"}.Validate())
}

func TestCloneIsolatesSamples(t *testing.T) {
	r := Run{ID: "a", Samples: []Sample{{Index: 0, Dir: "sample_0"}}}
	c := r.Clone()
	c.Samples[0].Done = true
	assert.False(t, r.Samples[0].Done)
	assert.Nil(t, Run{ID: "b"}.Clone().Samples)
}

func TestPending(t *testing.T) {
	r := Run{Samples: []Sample{
		{Dir: "sample_0", Done: true},
		{Dir: "sample_1"},
		{Dir: "sample_2", SubmitError: "qsub: exit status 1"},
	}}
	assert.Equal(t, []string{"sample_1", "sample_2"}, r.Pending())
	assert.Empty(t, Run{}.Pending())
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	list := []Run{
		{ID: "old", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Hour)},
		{ID: "a", CreatedAt: base.Add(time.Hour)},
	}
	SortNewestFirst(list)
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "b", "old"}, ids)
}
