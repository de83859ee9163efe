package store

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"

	"github.com/cppack/cppack"
)

// PackResult describes an archive PackArchive produced.
type PackResult struct {
	Digest string // "sha256:<hex>"
	Size   int64
}

// PackArchive walks srcDir and writes a tar.gz archive of its contents to w,
// the producer counterpart of unpackArchive: the same layout Fetch expects
// to unpack, built by "pack-sdist" from a project tree instead of downloaded
// from a repository.
func PackArchive(w io.Writer, srcDir string) (PackResult, error) {
	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(w, h)}

	zw := pgzip.NewWriter(cw)
	tw := tar.NewWriter(zw)

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			hdr.Name += "/"
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = target
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			_, err = io.Copy(tw, f)
			f.Close()
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PackResult{}, cppack.Wrap(cppack.MarkerArchiveMalformed, err, "pack "+srcDir)
	}
	if err := tw.Close(); err != nil {
		return PackResult{}, err
	}
	if err := zw.Close(); err != nil {
		return PackResult{}, err
	}

	return PackResult{
		Digest: "sha256:" + hex.EncodeToString(h.Sum(nil)),
		Size:   cw.n,
	}, nil
}

// countingWriter tracks the number of compressed bytes written, giving
// PackArchive the archive's final Size without a second pass.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
