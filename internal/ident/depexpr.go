package ident

import (
	"encoding/json"
	"strings"

	"github.com/cppack/cppack"
)

// DepExpr is a parsed dependency expression:
//
//	dep-expr   := name interval-op version ("using" ident-list)?
//	interval-op := "@" | "^" | "~" | "+" | "=" | " "
//
// Omitting "using" means "the library with the same name as the package".
type DepExpr struct {
	Name     Name
	Op       byte // one of '@','^','~','+','=', or ' ' (bare space)
	Version  Version
	Interval Interval
	Uses     []string // required library names; nil means [Name]
}

const intervalOps = "@^~+="

// ParseDepExpr parses s into a DepExpr, or returns InvalidDepExpr.
func ParseDepExpr(s string) (DepExpr, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return DepExpr{}, cppack.Errorf(cppack.MarkerInvalidDepExpr, "empty dependency expression")
	}

	rest := s
	nameEnd := strings.IndexAny(rest, intervalOps+" ")
	if nameEnd <= 0 {
		return DepExpr{}, cppack.Errorf(cppack.MarkerInvalidDepExpr, "%q: missing interval operator", orig)
	}
	namePart := rest[:nameEnd]
	op := rest[nameEnd]
	rest = rest[nameEnd+1:]

	name, err := ParseName(namePart)
	if err != nil {
		return DepExpr{}, cppack.Wrap(cppack.MarkerInvalidDepExpr, err, "parse name in "+orig)
	}

	var uses []string
	if idx := strings.Index(rest, " using "); idx >= 0 {
		usesPart := rest[idx+len(" using "):]
		rest = rest[:idx]
		for _, u := range strings.Split(usesPart, ",") {
			u = strings.TrimSpace(u)
			if u == "" {
				return DepExpr{}, cppack.Errorf(cppack.MarkerInvalidDepExpr, "%q: empty entry in using-list", orig)
			}
			if _, err := ParseName(u); err != nil {
				return DepExpr{}, cppack.Wrap(cppack.MarkerInvalidDepExpr, err, "parse using-list in "+orig)
			}
			uses = append(uses, u)
		}
	}
	rest = strings.TrimSpace(rest)

	version, err := ParseVersion(rest)
	if err != nil {
		return DepExpr{}, cppack.Wrap(cppack.MarkerInvalidDepExpr, err, "parse version in "+orig)
	}

	interval, err := intervalForOp(op, version)
	if err != nil {
		return DepExpr{}, cppack.Wrap(cppack.MarkerInvalidDepExpr, err, "interval in "+orig)
	}

	return DepExpr{
		Name:     name,
		Op:       op,
		Version:  version,
		Interval: interval,
		Uses:     uses,
	}, nil
}

// intervalForOp applies the interval-operator table.
func intervalForOp(op byte, v Version) (Interval, error) {
	switch op {
	case '=':
		return Interval{Low: v, Exact: true}, nil
	case '@', ' ':
		// Bare space defaults to the same patch-level compatibility range
		// as "@", matching the common "name version" manifest shorthand.
		return Interval{Low: v, High: v.NextPatch()}, nil
	case '~':
		return Interval{Low: v, High: v.NextMinor()}, nil
	case '^':
		return Interval{Low: v, High: v.NextMajor()}, nil
	case '+':
		return Interval{Low: v}, nil
	default:
		return Interval{}, cppack.Errorf(cppack.MarkerInvalidDepExpr, "unknown interval operator %q", string(op))
	}
}

// RequiredUses returns the set of library names this expression requires,
// defaulting to [Name] when "using" was omitted.
func (d DepExpr) RequiredUses() []string {
	if len(d.Uses) > 0 {
		return d.Uses
	}
	return []string{string(d.Name)}
}

// String formats the expression back to its canonical textual form.
func (d DepExpr) String() string {
	var b strings.Builder
	b.WriteString(string(d.Name))
	if d.Op == ' ' {
		b.WriteByte(' ')
	} else {
		b.WriteByte(d.Op)
	}
	b.WriteString(d.Version.String())
	if len(d.Uses) > 0 {
		b.WriteString(" using ")
		b.WriteString(strings.Join(d.Uses, ","))
	}
	return b.String()
}

// MarshalJSON encodes the expression as its canonical textual form.
func (d DepExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses the expression from its canonical textual form.
func (d *DepExpr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDepExpr(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
