package dataset

import (
	"slices"
	"strings"
)

// =============================================================================
// SourceKind - where a dataset came from
// =============================================================================

// SourceKind identifies how a rule inventory was obtained.
type SourceKind string

const (
	// SourceKindSheet is a published Google Sheet fetched as CSV.
	SourceKindSheet SourceKind = "sheet"

	// SourceKindUpload is a CSV file posted by a client.
	SourceKindUpload SourceKind = "upload"

	// SourceKindObject is a CSV object in an S3-compatible bucket.
	SourceKindObject SourceKind = "object"
)

// AllSourceKinds returns all valid source kinds.
func AllSourceKinds() []SourceKind {
	return []SourceKind{SourceKindSheet, SourceKindUpload, SourceKindObject}
}

// String returns the string representation of the source kind.
func (k SourceKind) String() string {
	return string(k)
}

// IsValid checks if the source kind is valid.
func (k SourceKind) IsValid() bool {
	return slices.Contains(AllSourceKinds(), k)
}

// Refreshable reports whether the source can be fetched again.
func (k SourceKind) Refreshable() bool {
	return k == SourceKindSheet || k == SourceKindObject
}

// =============================================================================
// Source
// =============================================================================

// Source records where the active dataset was loaded from. Location is the
// URL the user supplied (sheet or s3://), or the upload's file name.
type Source struct {
	Kind     SourceKind `json:"kind"`
	Location string     `json:"location"`
}

// NewSource builds a Source, trimming the location.
func NewSource(kind SourceKind, location string) (Source, error) {
	if !kind.IsValid() {
		return Source{}, ErrInvalidSourceKind
	}
	location = strings.TrimSpace(location)
	if location == "" && kind != SourceKindUpload {
		return Source{}, ErrLocationRequired
	}
	return Source{Kind: kind, Location: location}, nil
}
