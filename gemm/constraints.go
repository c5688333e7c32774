package gemm

import (
	"fmt"
	"strings"
)

// Scratch is the workspace mode of one input matrix.
type Scratch int

const (
	// ScratchUnused reads the matrix in place.
	ScratchUnused Scratch = iota
	// ScratchCopy re-lays the matrix into workspace with a padded leading
	// dimension (the cw1 byline copy).
	ScratchCopy
	// ScratchNForm re-tiles the matrix into normal form in the coalesced
	// dimension (cw2).
	ScratchNForm
)

func (s Scratch) String() string {
	switch s {
	case ScratchUnused:
		return "UNUSED"
	case ScratchCopy:
		return "COPY"
	case ScratchNForm:
		return "NFORM"
	}
	return "?"
}

// Constraints are user-imposed restrictions on the kernel family, carried
// as a string key alongside geometry in the kernel cache. The empty string
// means no restriction. The only constrained axis in this schema is the
// per-matrix workspace mode: "A_WOS1__B_WOS2" pins A to COPY and B to NFORM.
type Constraints struct {
	// WOS is indexed by MatA and MatB.
	WOS [2]Scratch
}

// ParseConstraints parses a constraints string. Tokens are joined by "__";
// each token is <matrix>_WOS<mode>.
func ParseConstraints(s string) (Constraints, error) {
	var c Constraints
	if s == "" {
		return c, nil
	}
	for _, tok := range strings.Split(s, "__") {
		var mat Mat
		switch {
		case strings.HasPrefix(tok, "A_WOS"):
			mat = MatA
		case strings.HasPrefix(tok, "B_WOS"):
			mat = MatB
		default:
			return Constraints{}, fmt.Errorf("unrecognised constraints token %q, expected <A|B>_WOS<0|1|2>", tok)
		}
		mode := strings.TrimPrefix(tok[1:], "_WOS")
		switch mode {
		case "0":
			c.WOS[mat] = ScratchUnused
		case "1":
			c.WOS[mat] = ScratchCopy
		case "2":
			c.WOS[mat] = ScratchNForm
		default:
			return Constraints{}, fmt.Errorf("workspace mode %q in constraints token %q is not one of 0, 1, 2", mode, tok)
		}
	}
	return c, nil
}

// String returns the canonical constraints key, "" when unconstrained.
func (c Constraints) String() string {
	if c.WOS[MatA] == ScratchUnused && c.WOS[MatB] == ScratchUnused {
		return ""
	}
	var parts []string
	if c.WOS[MatA] != ScratchUnused {
		parts = append(parts, fmt.Sprintf("A_WOS%d", int(c.WOS[MatA])))
	}
	if c.WOS[MatB] != ScratchUnused {
		parts = append(parts, fmt.Sprintf("B_WOS%d", int(c.WOS[MatB])))
	}
	return strings.Join(parts, "__")
}
