// Package env captures details about the cppack environment: where the
// content-addressed store lives, which repositories to consult by default,
// and how much download concurrency to use. Inspect it with `cppack env`.
package env

import (
	"os"
	"strconv"
	"strings"
)

// CacheRoot is the root directory of the local content-addressed package
// store (internal/store).
var CacheRoot = findCacheRoot()

// Repos is the default, comma-separated list of repository locations
// (internal/repoindex.Source.Path values) consulted when a command is not
// given an explicit -repo flag.
var Repos = findRepos()

// DownloadJobs bounds how many archive/index fetches run concurrently,
// per spec.md §5 ("may be serialized by a small download pool, default
// 10").
var DownloadJobs = findDownloadJobs()

func findCacheRoot() string {
	if v := os.Getenv("CPPACK_CACHE"); v != "" {
		return v
	}
	if ucd, err := os.UserCacheDir(); err == nil {
		return ucd + "/cppack/store"
	}
	return os.ExpandEnv("$HOME/.cache/cppack/store") // default
}

func findRepos() []string {
	v := os.Getenv("CPPACK_REPOS")
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func findDownloadJobs() int {
	if v := os.Getenv("CPPACK_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 10 // default, per spec.md §5
}
