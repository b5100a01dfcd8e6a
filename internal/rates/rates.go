// Package rates holds the kinetic constants of the TCR kinetic proofreading
// network. Every constant is derived from a small Primary set through fixed
// multiplicative relationships; a Set is read-only once constructed.
package rates

import (
	"errors"
	"fmt"
	"sort"
)

// Name identifies a rate constant inside a Set.
type Name string

// Ligand binding (step 0).
const (
	LigandOn   Name = "k_L_on"
	ForeignOff Name = "k_foreign_off"
	SelfOff    Name = "k_self_off"
)

// Cycle 1: Lck binding.
const (
	LckOnRPMHC  Name = "k_lck_on_R_pmhc"
	LckOffRPMHC Name = "k_lck_off_R_pmhc"
	LckOnR      Name = "k_lck_on_R"
	LckOffR     Name = "k_lck_off_R"
)

// Cycle 2: receptor phosphorylation by Lck.
const (
	POnRPMHC  Name = "k_p_on_R_pmhc"
	POffRPMHC Name = "k_p_off_R_pmhc"
	LckOnRP   Name = "k_lck_on_RP"
	LckOffRP  Name = "k_lck_off_RP"
	POnR      Name = "k_p_on_R"
	POffR     Name = "k_p_off_R"
)

// Cycle 3: Zap binding.
const (
	ZapOnRPMHC  Name = "k_zap_on_R_pmhc"
	ZapOffRPMHC Name = "k_zap_off_R_pmhc"
	LckOnZapR   Name = "k_lck_on_zap_R"
	LckOffZapR  Name = "k_lck_off_zap_R"
	ZapOnR      Name = "k_zap_on_R"
	ZapOffR     Name = "k_zap_off_R"
)

// Cycle 4: Zap phosphorylation.
const (
	POnZap     Name = "k_p_on_zap_species"
	POffZap    Name = "k_p_off_zap_species"
	LckOnZapP  Name = "k_lck_on_zap_p"
	LckOffZapP Name = "k_lck_off_zap_p"
)

// Negative feedback (trans-inhibition of Lck).
const (
	NegativeLoop Name = "k_negative_loop"
	LckIRelease  Name = "k_lcki_release"
	LckRecovery  Name = "k_lck_recovery"
)

// Cycle 6 onwards: LAT recruitment, LAT phosphorylation, product, positive feedback.
const (
	LATOn        Name = "k_lat_on_species"
	LATOff       Name = "k_lat_off_species"
	LATOffRPZap  Name = "k_lat_off_rp_zap"
	LATOnRPZap   Name = "k_lat_on_rp_zap"
	PLATOn       Name = "k_p_lat_on_species"
	PLATOff      Name = "k_p_lat_off_species"
	ProductOn    Name = "k_product_on"
	ProductOff   Name = "k_product_off"
	PositiveLoop Name = "k_positive_loop"
	POnLAT       Name = "k_p_on_lat"
	POffLAT      Name = "k_p_off_lat"
)

// Variant names.
const (
	VariantSecondOrder = "second-order"
	VariantFirstOrder  = "first-order"
)

var (
	// ErrUnknownRate is returned when an override names a constant the base set lacks.
	ErrUnknownRate = errors.New("rates: unknown rate constant")
	// ErrNonPositive is returned when a constant is zero, negative or NaN.
	ErrNonPositive = errors.New("rates: rate must be positive")
)

// Primary holds the free biophysical constants. Everything else is derived.
type Primary struct {
	LigandOn      float64 `yaml:"ligand_on" json:"ligand_on"`
	ForeignOff    float64 `yaml:"foreign_off" json:"foreign_off"`
	SelfOffFactor float64 `yaml:"self_off_factor" json:"self_off_factor"` // self off-rate = factor * foreign off-rate
	Dilution      float64 `yaml:"dilution" json:"dilution"`               // pMHC-bound vs free receptor binding ratio
}

// DefaultPrimary returns the reference constants.
func DefaultPrimary() Primary {
	return Primary{
		LigandOn:      0.0022,
		ForeignOff:    0.2,
		SelfOffFactor: 10.0,
		Dilution:      10000.0,
	}
}

// Validate reports whether every primary constant is positive.
func (p Primary) Validate() error {
	for name, v := range map[string]float64{
		"ligand_on":       p.LigandOn,
		"foreign_off":     p.ForeignOff,
		"self_off_factor": p.SelfOffFactor,
		"dilution":        p.Dilution,
	} {
		if !(v > 0) {
			return fmt.Errorf("primary %s=%g: %w", name, v, ErrNonPositive)
		}
	}
	return nil
}

// Set is an immutable collection of named rate constants.
type Set struct {
	variant string
	values  map[Name]float64
}

// Derive builds the second-order (default) rate set from p.
func Derive(p Primary) Set {
	v := make(map[Name]float64, 48)

	v[LigandOn] = p.LigandOn
	v[ForeignOff] = p.ForeignOff
	v[SelfOff] = p.SelfOffFactor * p.ForeignOff

	v[LckOnRPMHC] = p.ForeignOff / 10.0
	v[LckOffRPMHC] = p.ForeignOff / 50.0
	v[LckOnR] = v[LckOnRPMHC] / p.Dilution
	v[LckOffR] = 20.0

	v[POnRPMHC] = 5.0
	v[POffRPMHC] = 0.01
	v[LckOnRP] = v[LckOnRPMHC] / p.Dilution
	v[LckOffRP] = 20.0
	v[POnR] = v[POnRPMHC] / p.Dilution
	v[POffR] = 10.0

	v[ZapOnRPMHC] = v[LckOnRPMHC]
	v[ZapOffRPMHC] = v[LckOffRPMHC]
	v[LckOnZapR] = v[LckOnRP]
	v[LckOffZapR] = 0.3
	v[ZapOnR] = v[ZapOnRPMHC] / p.Dilution
	v[ZapOffR] = 20.0

	v[POnZap] = v[POnRPMHC]
	v[POffZap] = v[POffRPMHC]
	v[LckOnZapP] = v[LckOnRP]
	v[LckOffZapP] = v[LckOffZapR]

	v[NegativeLoop] = 1.0
	v[LckIRelease] = 10.0
	v[LckRecovery] = 1.0

	v[LATOn] = v[LckOnRPMHC]
	v[LATOff] = v[LckOffRPMHC]
	v[LATOffRPZap] = 20.0
	v[LATOnRPZap] = v[ZapOnR]

	v[PLATOn] = 0.006
	v[PLATOff] = v[POffZap]
	v[ProductOn] = 0.008
	v[ProductOff] = v[POffRPMHC]
	v[PositiveLoop] = 0.00027
	v[POnLAT] = v[POnRPMHC] / p.Dilution
	v[POffLAT] = 20.0

	return Set{variant: VariantSecondOrder, values: v}
}

// Default is Derive(DefaultPrimary()).
func Default() Set { return Derive(DefaultPrimary()) }

// FirstOrderOverrides lists the constants the first-order variant replaces.
func FirstOrderOverrides(p Primary) map[Name]float64 {
	lckOn := 10.0
	return map[Name]float64{
		LckOnRPMHC:  lckOn,
		LckOffRPMHC: p.ForeignOff / 10.0,
		POffRPMHC:   p.ForeignOff / 10.0,
		ZapOnRPMHC:  3 * lckOn,
		ZapOffRPMHC: p.ForeignOff / 10.0,
		LckOffZapR:  1.0,
	}
}

// FirstOrder layers FirstOrderOverrides on top of Derive(p). Constants that
// are not overridden keep the second-order values, including those that the
// second-order derivation computed from an overridden constant.
func FirstOrder(p Primary) Set {
	s, err := Derive(p).override(VariantFirstOrder, FirstOrderOverrides(p))
	if err != nil {
		// every override key is a constant Derive always sets
		panic(err)
	}
	return s
}

func (s Set) override(variant string, values map[Name]float64) (Set, error) {
	out := make(map[Name]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	for k, v := range values {
		if _, ok := out[k]; !ok {
			return Set{}, fmt.Errorf("override %s: %w", k, ErrUnknownRate)
		}
		out[k] = v
	}
	return Set{variant: variant, values: out}, nil
}

// Variant returns the variant name of the set.
func (s Set) Variant() string { return s.variant }

// Get returns the constant for n, or 0 if the set lacks it.
func (s Set) Get(n Name) float64 { return s.values[n] }

// Lookup returns the constant for n and whether it exists.
func (s Set) Lookup(n Name) (float64, bool) {
	v, ok := s.values[n]
	return v, ok
}

// Names returns all constant names in ascending order.
func (s Set) Names() []Name {
	names := make([]Name, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Map returns a copy of the constants.
func (s Set) Map() map[Name]float64 {
	out := make(map[Name]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Validate reports the first non-positive constant, in name order.
func (s Set) Validate() error {
	if len(s.values) == 0 {
		return fmt.Errorf("empty rate set: %w", ErrNonPositive)
	}
	for _, n := range s.Names() {
		if v := s.values[n]; !(v > 0) {
			return fmt.Errorf("%s=%g: %w", n, v, ErrNonPositive)
		}
	}
	return nil
}
