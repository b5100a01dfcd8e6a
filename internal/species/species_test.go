package species

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allValid() []Species {
	var out []Species
	for _, l := range []Ligand{NoLigand, Foreign, Self} {
		for m := Mod(0); m < 1<<6; m++ {
			c := Complex{Ligand: l, Mods: m}
			if c.Valid() == nil {
				out = append(out, c)
			}
		}
	}
	out = append(out, Foreign, Self, Lck, LckI, Zap, LAT)
	for _, l := range []Ligand{Foreign, Self} {
		out = append(out, Pool{Ligand: l, Stage: LATP}, Pool{Ligand: l, Stage: Product})
	}
	return out
}

func TestLabelsAreInjectiveAndParseable(t *testing.T) {
	seen := map[string]Species{}
	for _, s := range allValid() {
		label := s.Label()
		require.NotEmpty(t, label)
		if prev, dup := seen[label]; dup {
			t.Fatalf("label %q shared by %#v and %#v", label, prev, s)
		}
		seen[label] = s

		parsed, err := Parse(label)
		require.NoError(t, err, label)
		assert.Equal(t, s, parsed, label)
	}
}

func TestCanonicalLabels(t *testing.T) {
	tests := []struct {
		c    Complex
		want string
	}{
		{Receptor(), "R"},
		{Complex{Ligand: Foreign}, "RLf"},
		{Complex{Ligand: Foreign, Mods: LckBound}, "RLf_Lck"},
		{Complex{Ligand: Self, Mods: Phospho | LckBound}, "RPLs_Lck"},
		{Complex{Ligand: Foreign, Mods: Phospho | LckBound | ZapBound | ZapPhospho | LATBound}, "RPLf_Lck_Zap_P_LAT"},
		{Complex{Mods: Phospho | ZapBound | LATBound}, "RP_Zap_LAT"},
		{Complex{Mods: Phospho | ZapBound}, "RP_Zap"},
		{Complex{Ligand: Self, Mods: LckInactive}, "RLs_LckI"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.c.Label())
	}
	assert.Equal(t, "Lf_LATP", Pool{Ligand: Foreign, Stage: LATP}.Label())
	assert.Equal(t, "Ls_Product", Pool{Ligand: Self, Stage: Product}.Label())
}

func TestWithWithoutAreInverse(t *testing.T) {
	base := Complex{Ligand: Foreign, Mods: Phospho | LckBound | ZapBound}
	added, err := base.With(ZapPhospho)
	require.NoError(t, err)
	assert.Equal(t, "RPLf_Lck_Zap_P", added.Label())

	removed, err := added.Without(ZapPhospho)
	require.NoError(t, err)
	assert.Equal(t, base, removed)

	unbound, err := added.Unbind()
	require.NoError(t, err)
	assert.Equal(t, "RP_Lck_Zap_P", unbound.Label())
	rebound, err := unbound.Bind(Foreign)
	require.NoError(t, err)
	assert.Equal(t, added, rebound)
}

func TestTagErrors(t *testing.T) {
	c := Complex{Ligand: Foreign, Mods: LckBound | ZapBound | ZapPhospho}

	_, err := c.With(LckBound)
	assert.ErrorIs(t, err, ErrTagPresent)

	_, err = c.Without(LATBound)
	assert.ErrorIs(t, err, ErrTagAbsent)

	_, err = c.Without(ZapBound)
	assert.ErrorIs(t, err, ErrTagDependency)

	_, err = c.With(LckInactive)
	assert.ErrorIs(t, err, ErrTagDependency)

	_, err = Receptor().With(LATBound)
	assert.ErrorIs(t, err, ErrTagDependency)

	_, err = c.Bind(Self)
	assert.ErrorIs(t, err, ErrTagPresent)

	_, err = Receptor().Unbind()
	assert.ErrorIs(t, err, ErrTagAbsent)

	_, err = Receptor().Bind(NoLigand)
	assert.ErrorIs(t, err, ErrTagAbsent)
}

func TestParseRejectsNonCanonical(t *testing.T) {
	for _, label := range []string{
		"",
		"X",
		"RLx",
		"RLf_Zap_Lck",
		"RLf_Lck_Lck",
		"R_P",
		"RLf_LAT",
		"RPP",
		"Lf_Foo",
	} {
		_, err := Parse(label)
		assert.ErrorIs(t, err, ErrUnknownLabel, label)
	}
}
