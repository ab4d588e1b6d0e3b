// Package model provides the shared data structures for packages, transfers
// and backups exchanged through the relay.
package model

import (
	"github.com/hashicorp/go-version"
)

// PackageEntry describes one mod package. Identity is Digest; InstallFolderName
// is a hint for the receiving side, not unique across backups. Entries are
// immutable once constructed.
type PackageEntry struct {
	Digest            string `json:"digest"`
	InstallFolderName string `json:"install_folder_name"`
	DisplayName       string `json:"display_name"`
	Author            string `json:"author,omitempty"`
	Version           string `json:"version,omitempty"`
	Description       string `json:"description,omitempty"`
	Website           string `json:"website,omitempty"`
	FolderDigest      string `json:"folder_digest,omitempty"`
}

// GetVersion returns the parsed version of this entry, or nil if the version
// field is absent or not parseable. The version is only an ordering hint.
func (e *PackageEntry) GetVersion() *version.Version {
	if e.Version == "" {
		return nil
	}
	v, err := version.NewVersion(e.Version)
	if err != nil {
		return nil
	}
	return v
}

// InstalledPackage is one element of the installed-package snapshot taken from
// the external mod manager. LookupFailed marks entries whose metadata query
// failed; the resolver penalizes rather than excludes them.
type InstalledPackage struct {
	FolderName   string
	DisplayName  string
	Author       string
	Version      string
	LookupFailed bool
}

// GetVersion returns the parsed installed version, or nil when unknown.
func (p *InstalledPackage) GetVersion() *version.Version {
	if p.Version == "" {
		return nil
	}
	v, err := version.NewVersion(p.Version)
	if err != nil {
		return nil
	}
	return v
}

// ResolveHints carries the metadata used to reconcile a received package with
// a local install target.
type ResolveHints struct {
	Digest  string
	Name    string
	Author  string
	Version string
}

// HintsFromEntry derives resolver hints from a package entry.
func HintsFromEntry(e *PackageEntry) ResolveHints {
	return ResolveHints{
		Digest:  e.Digest,
		Name:    e.DisplayName,
		Author:  e.Author,
		Version: e.Version,
	}
}
