// Package species encodes molecular state of the TCR network as typed values.
//
// A receptor complex is a base receptor plus an ordered set of modification
// flags. Labels are produced only by Label and always render the flags in one
// canonical order:
//
//	R [P] [Lf|Ls] [_Lck|_LckI] [_Zap] [_P] [_LAT]
//
// so two distinct states can never share a label, and removing a flag is the
// exact inverse of adding it. Parse reverses Label.
package species

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTagPresent is returned when adding a flag the complex already carries.
	ErrTagPresent = errors.New("species: tag already present")
	// ErrTagAbsent is returned when removing a flag the complex does not carry.
	ErrTagAbsent = errors.New("species: tag absent")
	// ErrTagDependency is returned when a change would orphan a dependent flag
	// (for example removing Zap while Zap is phosphorylated).
	ErrTagDependency = errors.New("species: tag dependency violated")
	// ErrUnknownLabel is returned by Parse for labels outside the algebra.
	ErrUnknownLabel = errors.New("species: unknown label")
)

// Kind classifies a species.
type Kind uint8

const (
	KindLigand Kind = iota + 1
	KindMolecule
	KindComplex
	KindPool
)

// Species is anything that can appear as a reactant or product.
type Species interface {
	Label() string
	Kind() Kind
}

// Ligand identifies the pMHC ligand bound to (or floating next to) a receptor.
type Ligand uint8

const (
	NoLigand Ligand = iota
	Foreign
	Self
)

// Token returns the label fragment of the ligand ("Lf", "Ls").
func (l Ligand) Token() string {
	switch l {
	case Foreign:
		return "Lf"
	case Self:
		return "Ls"
	default:
		return ""
	}
}

// Label implements Species for the free ligand.
func (l Ligand) Label() string { return l.Token() }

// Kind implements Species.
func (l Ligand) Kind() Kind { return KindLigand }

func (l Ligand) String() string {
	switch l {
	case Foreign:
		return "foreign"
	case Self:
		return "self"
	default:
		return "none"
	}
}

// Molecule is a free enzyme or adaptor.
type Molecule uint8

const (
	Lck Molecule = iota + 1
	LckI
	Zap
	LAT
)

var moleculeLabels = map[Molecule]string{
	Lck:  "Lck",
	LckI: "LckI",
	Zap:  "Zap",
	LAT:  "LAT",
}

// Label implements Species.
func (m Molecule) Label() string { return moleculeLabels[m] }

// Kind implements Species.
func (m Molecule) Kind() Kind { return KindMolecule }

// Stage names a downstream per-ligand pool.
type Stage uint8

const (
	LATP Stage = iota + 1
	Product
)

// Pool is a downstream species attributed to the ligand that produced it
// (phosphorylated LAT and the terminal product).
type Pool struct {
	Ligand Ligand
	Stage  Stage
}

// Label implements Species.
func (p Pool) Label() string {
	switch p.Stage {
	case LATP:
		return p.Ligand.Token() + "_LATP"
	case Product:
		return p.Ligand.Token() + "_Product"
	default:
		return ""
	}
}

// Kind implements Species.
func (p Pool) Kind() Kind { return KindPool }

// Mod is a modification flag on a receptor complex.
type Mod uint8

const (
	Phospho     Mod = 1 << iota // receptor phosphorylated, rendered "P" right after R
	LckBound                    // "_Lck"
	LckInactive                 // "_LckI"
	ZapBound                    // "_Zap"
	ZapPhospho                  // "_P"
	LATBound                    // "_LAT"
)

// suffixOrder is the canonical rendering order of the underscore suffixes.
var suffixOrder = []struct {
	mod   Mod
	token string
}{
	{LckBound, "Lck"},
	{LckInactive, "LckI"},
	{ZapBound, "Zap"},
	{ZapPhospho, "P"},
	{LATBound, "LAT"},
}

func (m Mod) String() string {
	if m == Phospho {
		return "P(receptor)"
	}
	for _, s := range suffixOrder {
		if s.mod == m {
			return "_" + s.token
		}
	}
	return fmt.Sprintf("Mod(%d)", uint8(m))
}

// Complex is a receptor with an optional ligand and modification flags.
type Complex struct {
	Ligand Ligand
	Mods   Mod
}

// Receptor returns the bare receptor R.
func Receptor() Complex { return Complex{} }

// Kind implements Species.
func (c Complex) Kind() Kind { return KindComplex }

// Has reports whether every flag in m is set.
func (c Complex) Has(m Mod) bool { return c.Mods&m == m }

// Label renders the canonical label.
func (c Complex) Label() string {
	var b strings.Builder
	b.WriteString("R")
	if c.Has(Phospho) {
		b.WriteString("P")
	}
	b.WriteString(c.Ligand.Token())
	for _, s := range suffixOrder {
		if c.Has(s.mod) {
			b.WriteString("_")
			b.WriteString(s.token)
		}
	}
	return b.String()
}

// Valid reports whether the flag combination is reachable.
func (c Complex) Valid() error {
	if c.Has(LckBound | LckInactive) {
		return fmt.Errorf("%s: active and inactive Lck: %w", c.Label(), ErrTagDependency)
	}
	if c.Has(ZapPhospho) && !c.Has(ZapBound) {
		return fmt.Errorf("%s: phosphorylated Zap without Zap: %w", c.Label(), ErrTagDependency)
	}
	if c.Has(LATBound) && !c.Has(ZapBound) {
		return fmt.Errorf("%s: LAT without Zap: %w", c.Label(), ErrTagDependency)
	}
	if c.Ligand > Self {
		return fmt.Errorf("ligand %d: %w", c.Ligand, ErrUnknownLabel)
	}
	return nil
}

// With adds a single flag.
func (c Complex) With(m Mod) (Complex, error) {
	if c.Has(m) {
		return c, fmt.Errorf("%s + %s: %w", c.Label(), m, ErrTagPresent)
	}
	out := Complex{Ligand: c.Ligand, Mods: c.Mods | m}
	if err := out.Valid(); err != nil {
		return c, fmt.Errorf("%s + %s: %w", c.Label(), m, err)
	}
	return out, nil
}

// Without removes a single flag.
func (c Complex) Without(m Mod) (Complex, error) {
	if !c.Has(m) {
		return c, fmt.Errorf("%s - %s: %w", c.Label(), m, ErrTagAbsent)
	}
	out := Complex{Ligand: c.Ligand, Mods: c.Mods &^ m}
	if err := out.Valid(); err != nil {
		return c, fmt.Errorf("%s - %s: %w", c.Label(), m, err)
	}
	return out, nil
}

// Bind attaches ligand l to an unliganded complex.
func (c Complex) Bind(l Ligand) (Complex, error) {
	if l == NoLigand {
		return c, fmt.Errorf("%s: bind without ligand: %w", c.Label(), ErrTagAbsent)
	}
	if c.Ligand != NoLigand {
		return c, fmt.Errorf("%s + %s: %w", c.Label(), l.Token(), ErrTagPresent)
	}
	return Complex{Ligand: l, Mods: c.Mods}, nil
}

// Unbind detaches the ligand, returning the ligand-free complex.
func (c Complex) Unbind() (Complex, error) {
	if c.Ligand == NoLigand {
		return c, fmt.Errorf("%s: unbind: %w", c.Label(), ErrTagAbsent)
	}
	return Complex{Mods: c.Mods}, nil
}

// Parse converts a label back into its typed species.
func Parse(label string) (Species, error) {
	switch label {
	case "Lf":
		return Foreign, nil
	case "Ls":
		return Self, nil
	}
	for m, l := range moleculeLabels {
		if l == label {
			return m, nil
		}
	}
	for _, l := range []Ligand{Foreign, Self} {
		for _, st := range []Stage{LATP, Product} {
			p := Pool{Ligand: l, Stage: st}
			if p.Label() == label {
				return p, nil
			}
		}
	}
	c, err := parseComplex(label)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func parseComplex(label string) (Complex, error) {
	parts := strings.Split(label, "_")
	head := parts[0]
	if !strings.HasPrefix(head, "R") {
		return Complex{}, fmt.Errorf("%q: %w", label, ErrUnknownLabel)
	}
	var c Complex
	head = head[1:]
	if strings.HasPrefix(head, "P") {
		c.Mods |= Phospho
		head = head[1:]
	}
	switch head {
	case "":
	case "Lf":
		c.Ligand = Foreign
	case "Ls":
		c.Ligand = Self
	default:
		return Complex{}, fmt.Errorf("%q: %w", label, ErrUnknownLabel)
	}
	next := 0
	for _, tok := range parts[1:] {
		found := false
		for next < len(suffixOrder) {
			s := suffixOrder[next]
			next++
			if s.token == tok {
				c.Mods |= s.mod
				found = true
				break
			}
		}
		if !found {
			return Complex{}, fmt.Errorf("%q: suffix %q out of order or unknown: %w", label, tok, ErrUnknownLabel)
		}
	}
	if err := c.Valid(); err != nil {
		return Complex{}, fmt.Errorf("%q: %w: %w", label, ErrUnknownLabel, err)
	}
	return c, nil
}

// Labels renders a species list.
func Labels(list []Species) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Label()
	}
	return out
}
