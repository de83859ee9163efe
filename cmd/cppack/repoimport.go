package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
	"github.com/cppack/cppack/internal/repoindex"
	"github.com/cppack/cppack/internal/store"
)

const repoImportHelp = `cppack repo-import [-flags]

Build a repository index out of a directory of package sources: every
immediate subdirectory of -src holding a manifest is packed into an
archive under -out and added as one repository index entry, then the index is
published to <out>/index.json.gz.

Example:
  % cppack repo-import -src pkgs/ -out out/
`

func repoImport(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("repo-import", flag.ExitOnError)
	var (
		src = fset.String("src", ".", "directory containing one subdirectory per package")
		out = fset.String("out", "out", "directory archives and the index are written into")
	)
	fset.Usage = usage(fset, repoImportHelp)
	fset.Parse(args)

	subdirs, err := os.ReadDir(*src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	var entries []repoindex.Entry
	for _, sd := range subdirs {
		if !sd.IsDir() {
			continue
		}
		pkgDir := filepath.Join(*src, sd.Name())
		m, err := manifest.Load(pkgDir)
		if err != nil {
			continue // not a package directory; skip rather than fail the whole import
		}

		id := ident.PkgID{Name: m.Name, Version: m.Version, PkgRev: m.PkgRev}
		archiveName := id.String() + ".tar.gz"

		f, err := os.Create(filepath.Join(*out, archiveName))
		if err != nil {
			return err
		}
		result, err := store.PackArchive(f, pkgDir)
		cerr := f.Close()
		if err != nil {
			return err
		}
		if cerr != nil {
			return cerr
		}

		entries = append(entries, repoindex.Entry{
			ID:          id,
			Manifest:    *m,
			ArchiveName: archiveName,
			Digest:      result.Digest,
			Size:        result.Size,
		})
		fmt.Printf("imported %s\n", id)
	}

	indexPath := filepath.Join(*out, repoindex.IndexFileName)
	if err := repoindex.WriteIndexFile(indexPath, entries); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d entries)\n", indexPath, len(entries))
	return nil
}
