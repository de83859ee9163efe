package manifest

import (
	"strings"

	"github.com/cppack/cppack"
)

// knownSPDXLicenses is a representative subset of the SPDX license list
// covering the identifiers that show up in practice for C/C++ packages.
// It is not exhaustive: ValidateSPDX rejects any plain identifier outside
// this set unless it carries the LicenseRef- prefix.
var knownSPDXLicenses = map[string]bool{
	"MIT": true, "Apache-2.0": true, "BSD-2-Clause": true, "BSD-3-Clause": true,
	"GPL-2.0-only": true, "GPL-2.0-or-later": true, "GPL-3.0-only": true, "GPL-3.0-or-later": true,
	"LGPL-2.1-only": true, "LGPL-2.1-or-later": true, "LGPL-3.0-only": true, "LGPL-3.0-or-later": true,
	"MPL-2.0": true, "ISC": true, "Zlib": true, "BSL-1.0": true, "Unlicense": true,
	"CC0-1.0": true, "0BSD": true, "Python-2.0": true, "NCSA": true, "Artistic-2.0": true,
}

// ValidateSPDX checks that expr is a well-formed SPDX license expression:
// identifiers (optionally suffixed with "+") joined by AND/OR, with WITH
// exception clauses and parentheses for grouping. No third-party SPDX
// expression parser appears anywhere in the example corpus, so this is
// hand-rolled against the stdlib rather than pulled from an ecosystem
// library. Every plain identifier must be in knownSPDXLicenses or carry the
// LicenseRef- escape hatch; anything else is InvalidSpdx.
func ValidateSPDX(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return spdxErrf("license expression is empty")
	}
	if strings.Count(expr, "(") != strings.Count(expr, ")") {
		return spdxErrf("license expression %q has unbalanced parentheses", expr)
	}
	cleaned := strings.NewReplacer("(", " ", ")", " ").Replace(expr)
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return spdxErrf("license expression %q has no identifiers", expr)
	}

	expectOperator := false
	for i, tok := range tokens {
		switch strings.ToUpper(tok) {
		case "AND", "OR":
			if !expectOperator {
				return spdxErrf("license expression %q: unexpected operator %q", expr, tok)
			}
			expectOperator = false
		case "WITH":
			if !expectOperator {
				return spdxErrf("license expression %q: unexpected WITH", expr)
			}
			// Exception identifier follows; consumed implicitly below.
			expectOperator = false
		default:
			if expectOperator {
				return spdxErrf("license expression %q: expected AND/OR/WITH before %q", expr, tok)
			}
			if i > 0 && strings.ToUpper(tokens[i-1]) == "WITH" {
				expectOperator = true
				continue
			}
			id := strings.TrimSuffix(tok, "+")
			if !isLicenseRefOrKnown(id) {
				return spdxErrf("license expression %q: unknown SPDX identifier %q", expr, id)
			}
			expectOperator = true
		}
	}
	if !expectOperator {
		return spdxErrf("license expression %q ends with a dangling operator", expr)
	}
	return nil
}

// spdxErrf builds an InvalidSpdx error with context, the SPDX-specific
// counterpart of manifest.go's errf.
func spdxErrf(format string, args ...interface{}) error {
	return cppack.Errorf(cppack.MarkerInvalidSpdx, format, args...)
}

func isLicenseRefOrKnown(id string) bool {
	if knownSPDXLicenses[id] {
		return true
	}
	return strings.HasPrefix(id, "LicenseRef-")
}
