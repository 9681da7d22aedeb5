package catalog

import (
	"fmt"
	"strings"
)

// Design identifies an electrochemical cell layout.
type Design uint8

const (
	// SingleChamber is one chamber holding both electrodes.
	SingleChamber Design = iota + 1

	// DualChamber is two chambers split by a membrane.
	DualChamber

	// Stacked is several thin cells stacked vertically.
	Stacked

	// Tubular is a cylindrical chamber around a central anode.
	Tubular

	// FlowCell is a flat channel with inlet and outlet.
	FlowCell
)

var designNames = map[Design]string{
	SingleChamber: "single-chamber",
	DualChamber:   "dual-chamber",
	Stacked:       "stacked",
	Tubular:       "tubular",
	FlowCell:      "flow-cell",
}

// Designs returns every known design in declaration order.
func Designs() []Design {
	return []Design{SingleChamber, DualChamber, Stacked, Tubular, FlowCell}
}

// String returns the canonical design id.
func (d Design) String() string {
	if s, ok := designNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Design(%d)", d)
}

// ParseDesign parses a design id. Case, '-', '_' and spaces are ignored,
// so "single-chamber", "SingleChamber" and "single_chamber" are equal.
func ParseDesign(s string) (Design, error) {
	key := normalize(s)
	for d, name := range designNames {
		if normalize(name) == key {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDesign, s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Design) MarshalText() ([]byte, error) {
	if _, ok := designNames[d]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDesign, d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Design) UnmarshalText(text []byte) error {
	v, err := ParseDesign(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}
