package toolchain

import "strings"

// parseMakeDepfile extracts the header list from a GNU-style Makefile
// dependency file (what -MMD -MF produces): "target: dep dep \\\n dep...".
// This normalizes the compiler's own dependency notation into the plain
// header-path list the dependency database stores.
func parseMakeDepfile(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\\\n", " ")
	colon := strings.IndexByte(text, ':')
	if colon < 0 {
		return nil
	}
	return strings.Fields(text[colon+1:])
}
