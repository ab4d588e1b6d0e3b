// Package resolve reconciles a received package with a local install target.
// The resolver is a pure function of its hints plus a pre-fetched snapshot of
// installed-package metadata, so it is testable without a live mod manager.
package resolve

import (
	"sort"
	"strings"

	"github.com/glorpus-work/modshare/pkg/config"
	"github.com/glorpus-work/modshare/pkg/model"
	version "github.com/hashicorp/go-version"
)

// FallbackName is used when no hint survives sanitization and no digest is
// available.
const FallbackName = "UnknownMod"

const digestSuffixLen = 8

// Resolver scores install-folder candidates with configurable weights.
type Resolver struct {
	weights config.ResolverConfig
}

// New creates a resolver with the given score weights.
func New(weights config.ResolverConfig) *Resolver {
	return &Resolver{weights: weights}
}

// NewDefault creates a resolver with the default weights.
func NewDefault() *Resolver {
	return New(config.DefaultConfig().Resolver)
}

// Resolve determines the install-folder name for the hinted package.
// Precedence, stopping at the first success:
//  1. exact (case-sensitive) folder-name match,
//  2. unique case-insensitive display-name match,
//  3. scored disambiguation across display-name matches and entries whose
//     metadata lookup failed,
//  4. sanitized hint name when it already exists on disk or in the list,
//  5. sanitized hint plus the first 8 digest characters,
//  6. the sanitized hint, or FallbackName when empty.
//
// diskFolders is the set of folder names present under the install root; it
// may overlap the installed snapshot.
func (r *Resolver) Resolve(hints model.ResolveHints, installed []model.InstalledPackage, diskFolders []string) string {
	// 1. Exact folder-name match.
	if hints.Name != "" {
		for _, pkg := range installed {
			if pkg.FolderName == hints.Name {
				return pkg.FolderName
			}
		}
	}

	// 2./3. Display-name matches, plus lookup failures which could be
	// anything and are penalized instead of excluded.
	var candidates []model.InstalledPackage
	if hints.Name != "" {
		for _, pkg := range installed {
			if pkg.LookupFailed || strings.EqualFold(pkg.DisplayName, hints.Name) {
				candidates = append(candidates, pkg)
			}
		}
	}
	named := 0
	for _, c := range candidates {
		if !c.LookupFailed {
			named++
		}
	}
	if named == 1 {
		for _, c := range candidates {
			if !c.LookupFailed {
				return c.FolderName
			}
		}
	}
	if named >= 2 {
		return r.pickBest(hints, candidates)
	}

	// 4. Sanitized-name fallback.
	sanitized := Sanitize(hints.Name)
	if sanitized != "" && (contains(diskFolders, sanitized) || folderInstalled(installed, sanitized)) {
		return sanitized
	}

	// 5. Hash-suffixed fallback.
	if len(hints.Digest) >= digestSuffixLen {
		base := sanitized
		if base == "" {
			base = FallbackName
		}
		return base + "-" + hints.Digest[:digestSuffixLen]
	}

	// 6. Final fallback.
	if sanitized == "" {
		return FallbackName
	}
	return sanitized
}

// pickBest scores each candidate and returns the winner. Candidates are
// evaluated in ordinal folder-name order; ties go to the ordinally smallest.
func (r *Resolver) pickBest(hints model.ResolveHints, candidates []model.InstalledPackage) string {
	ordered := append([]model.InstalledPackage(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool {
		return strings.Compare(ordered[i].FolderName, ordered[j].FolderName) < 0
	})

	best := ordered[0]
	bestScore := r.score(hints, ordered[0])
	for _, c := range ordered[1:] {
		if s := r.score(hints, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best.FolderName
}

func (r *Resolver) score(hints model.ResolveHints, pkg model.InstalledPackage) int {
	if pkg.LookupFailed {
		return -r.weights.LookupFailurePenalty
	}
	score := 0
	if strings.EqualFold(pkg.DisplayName, hints.Name) {
		score += r.weights.NameWeight
	}
	if hints.Author != "" && strings.EqualFold(pkg.Author, hints.Author) {
		score += r.weights.AuthorWeight
	}
	if hints.Version != "" && versionsEqual(pkg.Version, hints.Version) {
		score += r.weights.VersionWeight
	}
	return score
}

// versionsEqual compares versions semantically when both sides parse and
// falls back to a case-insensitive string comparison otherwise.
func versionsEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Equal(vb)
	}
	return strings.EqualFold(a, b)
}

// Sanitize derives a filesystem-safe folder name from a display name:
// characters invalid in a path become '_', trailing dots and whitespace are
// trimmed.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), ". \t")
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func folderInstalled(installed []model.InstalledPackage, folder string) bool {
	for _, pkg := range installed {
		if pkg.FolderName == folder {
			return true
		}
	}
	return false
}
