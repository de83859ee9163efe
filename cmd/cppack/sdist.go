package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cppack/cppack/internal/manifest"
	"github.com/cppack/cppack/internal/store"
)

const packSdistHelp = `cppack pack-sdist [-flags]

Produce a publishable source archive from a package directory: a
tar.gz of the directory tree (manifest included) named
"<name>@<version>~<pkg-rev>.tar.gz", the same format "fetch"/"build"
unpack on the consuming side.

Example:
  % cppack pack-sdist -dir mypkg -out out/
`

func packSdist(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("pack-sdist", flag.ExitOnError)
	var (
		dir = fset.String("dir", ".", "package directory to archive")
		out = fset.String("out", ".", "directory the archive is written into")
	)
	fset.Usage = usage(fset, packSdistHelp)
	fset.Parse(args)

	m, err := manifest.Load(*dir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	archiveName := fmt.Sprintf("%s@%s~%d.tar.gz", m.Name, m.Version, m.PkgRev)
	dest := filepath.Join(*out, archiveName)

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := store.PackArchive(f, *dir)
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\t%d bytes\n", dest, result.Digest, result.Size)
	return nil
}
