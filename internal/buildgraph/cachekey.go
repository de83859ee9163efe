package buildgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
)

// KeyMode selects how a recorded header's cache-sensitive state is
// captured.
type KeyMode int

const (
	// KeyModeFast records (mtime, size) per header. Default; sufficient on
	// local development filesystems where mtimes are trustworthy.
	KeyModeFast KeyMode = iota
	// KeyModeStrict records a content hash per header. Portable and stable
	// across machines, at the cost of reading every recorded header on
	// every cache-key computation.
	KeyModeStrict
)

// headerRecord is one header's contribution to a compile node's cache key,
// in whichever form mode demands.
type headerRecord struct {
	Path    string `json:"path"`
	Hash    string `json:"hash,omitempty"`
	ModTime int64  `json:"mtime,omitempty"`
	Size    int64  `json:"size,omitempty"`
}

func fileDigest(mode KeyMode, path string) (string, error) {
	switch mode {
	case KeyModeStrict:
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		h := sha256.New()
		buf := make([]byte, 64*1024)
		for {
			n, rerr := f.Read(buf)
			if n > 0 {
				h.Write(buf[:n])
			}
			if rerr != nil {
				break
			}
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		fi, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d-%d", fi.ModTime().UnixNano(), fi.Size()), nil
	}
}

// headerState computes the recorded state for every header in headers,
// sorted by path so the result (and anything hashed from it) is
// deterministic regardless of discovery order.
func headerState(mode KeyMode, headers []string) ([]headerRecord, error) {
	sorted := append([]string(nil), headers...)
	sort.Strings(sorted)
	out := make([]headerRecord, 0, len(sorted))
	for _, h := range sorted {
		digest, err := fileDigest(mode, h)
		if err != nil {
			return nil, err
		}
		rec := headerRecord{Path: h}
		if mode == KeyModeStrict {
			rec.Hash = digest
		} else {
			rec.ModTime, rec.Size = splitFast(digest)
		}
		out = append(out, rec)
	}
	return out, nil
}

func splitFast(digest string) (int64, int64) {
	var mtime, size int64
	fmt.Sscanf(digest, "%d-%d", &mtime, &size)
	return mtime, size
}

// computeCacheKey hashes together the canonical command, the source file's
// own content, and every recorded header's state: exactly the inputs
// spec'd for a compile node's cache key.
func computeCacheKey(mode KeyMode, command, source string, headers []string) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "command:%s\n", command)

	srcDigest, err := fileDigest(KeyModeStrict, source)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(h, "source:%s:%s\n", source, srcDigest)

	states, err := headerState(mode, headers)
	if err != nil {
		return "", err
	}
	for _, st := range states {
		fmt.Fprintf(h, "header:%s:%s:%d:%d\n", st.Path, st.Hash, st.ModTime, st.Size)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
