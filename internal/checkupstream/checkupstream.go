// Package checkupstream detects newer upstream versions of a package's
// source than the one its manifest currently declares, the pull side of
// the bump workflow (cmd/cppack's checkupstream/bump verbs). A package
// manifest names its upstream project once (manifest.Manifest.Upstream);
// this package knows two ways to resolve that into a version: the GitHub
// releases API for github.com projects, and a generic HTML-listing scrape
// for everything else.
package checkupstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/net/html"
	"golang.org/x/oauth2"

	"github.com/google/go-github/v27/github"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/ident"
)

// Result is the outcome of a successful upstream check.
type Result struct {
	// Version is the newest upstream version found, in the canonical form
	// internal/ident.ParseVersion accepts.
	Version ident.Version
	// SourceURL is where that version's source can be fetched from, when
	// the checker was able to determine one (github.com release tarball
	// URL, or a scraped listing link); empty if unknown.
	SourceURL string
}

// GitHubClient constructs a go-github client; unauthenticated when token is
// empty, otherwise using an OAuth2 static token source, matching the
// teacher's own "optionally authenticated" GitHub access pattern (higher
// unauthenticated rate limits are often too low for a full package set).
func GitHubClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// CheckGitHub queries the latest release of owner/repo and reports it as a
// Result, skipping pre-releases and drafts.
func CheckGitHub(ctx context.Context, cl *github.Client, owner, repo string) (*Result, error) {
	releases, _, err := cl.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: 20})
	if err != nil {
		return nil, cppack.Wrap(cppack.MarkerNetworkFailure, err, "list releases for "+owner+"/"+repo)
	}
	for _, rel := range releases {
		if rel.GetDraft() || rel.GetPrerelease() {
			continue
		}
		tag := rel.GetTagName()
		v, err := ident.ParseVersion(maybeV(tag))
		if err != nil {
			continue // not a semver-shaped tag; skip rather than fail the whole check
		}
		return &Result{
			Version:   v,
			SourceURL: rel.GetTarballURL(),
		}, nil
	}
	return nil, cppack.Errorf(cppack.MarkerNetworkFailure, "%s/%s: no non-prerelease, non-draft release found", owner, repo)
}

// githubRepo extracts (owner, repo) from a github.com upstream URL.
func githubRepo(raw string) (owner, repo string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// Check resolves upstream (a manifest's Upstream field) to its newest
// available version, dispatching to CheckGitHub for github.com projects and
// falling back to scraping an HTML directory listing at upstream itself for
// everything else.
func Check(ctx context.Context, cl *github.Client, upstream string) (*Result, error) {
	if owner, repo, ok := githubRepo(upstream); ok {
		return CheckGitHub(ctx, cl, owner, repo)
	}
	return checkListing(ctx, upstream)
}

// releaseNumber extracts the leading dotted-number run from a path segment,
// e.g. "proj-1.2.3.tar.gz" -> "1.2.3", the same loose heuristic the
// teacher's own regexp-driven release_regexp fallback uses when no explicit
// pattern is configured.
var releaseNumberRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+){1,3}`)

func checkListing(ctx context.Context, listingURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, cppack.Wrap(cppack.MarkerNetworkFailure, err, "fetch upstream listing "+listingURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, cppack.Errorf(cppack.MarkerNetworkFailure, "%s: HTTP %s", listingURL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cppack.Wrap(cppack.MarkerNetworkFailure, err, "read upstream listing "+listingURL)
	}

	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, err
	}
	links, err := extractLinks(base, body)
	if err != nil {
		return nil, cppack.Wrap(cppack.MarkerRepoSyncInvalid, err, "parse upstream listing "+listingURL)
	}

	type candidate struct {
		version string
		link    string
	}
	var candidates []candidate
	for _, l := range links {
		m := releaseNumberRe.FindString(path.Base(l))
		if m == "" || !semver.IsValid(maybeV(m)) {
			continue
		}
		candidates = append(candidates, candidate{version: m, link: l})
	}
	if len(candidates) == 0 {
		return nil, cppack.Errorf(cppack.MarkerNetworkFailure, "%s: no versioned links found", listingURL)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return semver.Compare(maybeV(candidates[i].version), maybeV(candidates[j].version)) > 0
	})
	winner := candidates[0]
	v, err := ident.ParseVersion(winner.version)
	if err != nil {
		return nil, fmt.Errorf("%q is not a valid version: %w", winner.version, err)
	}
	return &Result{Version: v, SourceURL: winner.link}, nil
}

// extractLinks walks an HTML document's anchor tags, resolving each href
// against parent.
func extractLinks(parent *url.URL, body []byte) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" || attr.Val == "" {
					continue
				}
				if ref, err := url.Parse(attr.Val); err == nil {
					links = append(links, parent.ResolveReference(ref).String())
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func maybeV(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
