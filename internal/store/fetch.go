package store

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"github.com/orcaman/writerseeker"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
	"github.com/cppack/cppack/internal/repoindex"
)

// Fetch downloads the archive named by entry from src, verifies its digest,
// and unpacks it into the store under entry.ID — all before anything under
// Path(entry.ID) becomes visible to Has/List. If entry.ID is already
// present, Fetch reuses it after confirming the on-disk manifest still
// identifies as entry.ID, per §4.3 step 1.
func Fetch(ctx context.Context, s *Store, src repoindex.Source, entry repoindex.Entry) error {
	if s.Has(entry.ID) {
		return s.VerifyEntry(entry.ID)
	}

	rc, err := repoindex.Reader(ctx, src, entry.ArchiveName, false)
	if err != nil {
		return cppack.Wrap(cppack.MarkerNetworkFailure, err, "fetch archive "+entry.ArchiveName)
	}
	defer rc.Close()

	// Buffer the whole archive in memory while hashing it, so a checksum
	// mismatch never causes a partially-written archive to touch disk.
	buf := writerseeker.WriterSeeker{}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(&buf, h), rc); err != nil {
		return cppack.Wrap(cppack.MarkerNetworkFailure, err, "download archive "+entry.ArchiveName)
	}
	if got := "sha256:" + hex.EncodeToString(h.Sum(nil)); got != entry.Digest {
		return cppack.Errorf(cppack.MarkerArchiveMalformed,
			"archive %s: digest mismatch: got %s, want %s", entry.ArchiveName, got, entry.Digest)
	}

	stagingDir, err := os.MkdirTemp(s.tmpDir(), "fetch-*")
	if err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "create staging directory")
	}
	defer os.RemoveAll(stagingDir)

	if err := unpackArchive(buf.Reader(), stagingDir); err != nil {
		return cppack.Wrap(cppack.MarkerArchiveMalformed, err, "unpack archive "+entry.ArchiveName)
	}

	m, err := manifest.Load(stagingDir)
	if err != nil {
		return cppack.Wrap(cppack.MarkerArchiveMalformed, err, "load manifest from archive "+entry.ArchiveName)
	}
	gotID := ident.PkgID{Name: m.Name, Version: m.Version, PkgRev: m.PkgRev}
	if !gotID.Equal(entry.ID) {
		return cppack.Errorf(cppack.MarkerManifestMismatch,
			"archive %s: embedded manifest identifies as %s, want %s", entry.ArchiveName, gotID, entry.ID)
	}

	dest := s.Path(entry.ID)
	if err := os.RemoveAll(dest); err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "clear destination "+dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "create "+filepath.Dir(dest))
	}
	if err := os.Rename(stagingDir, dest); err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "publish "+dest)
	}

	return publishComplete(dest)
}

// publishComplete writes the completion marker last, via renameio so the
// marker file itself never appears half-written.
func publishComplete(dir string) error {
	f, err := renameio.TempFile("", filepath.Join(dir, completeMarker))
	if err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "stage completion marker")
	}
	defer f.Cleanup()
	if err := f.CloseAtomicallyReplace(); err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "publish completion marker")
	}
	return nil
}

func unpackArchive(r io.Reader, destDir string) error {
	zr, err := pgzip.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// skip devices, fifos, etc. — not meaningful for a source tree
		}
	}
}

// safeJoin joins base and name, rejecting any archive entry that would
// escape base via ".." path segments or an absolute path.
func safeJoin(base, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("archive entry has absolute path %q", name)
	}
	joined := filepath.Join(base, name)
	if joined != base && !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination directory", name)
	}
	return joined, nil
}
