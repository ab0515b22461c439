// Package validation holds the pure predicates that gate every tool call
// before credentials are resolved or the remote API is contacted.
package validation

import (
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// DefaultRegion is used when a caller omits the region argument.
const DefaultRegion = "ap1"

// KnownRegions is the closed set of region codes served by the remote API.
var KnownRegions = []string{"ap1", "us1", "eu1", "dev"}

// workspace names double as DNS labels under the region domain.
var workspacePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]{0,61}[a-z0-9])?$`)

// ValidRegion reports whether code is one of KnownRegions.
func ValidRegion(code string) bool {
	return ValidRegionIn(code, KnownRegions)
}

// ValidRegionIn reports whether code is a member of allowed.
func ValidRegionIn(code string, allowed []string) bool {
	if code == "" {
		return false
	}
	return slices.Contains(allowed, code)
}

// ValidWorkspace reports whether name is a well-formed workspace name:
// lowercase alphanumerics, hyphens and underscores, starting and ending
// with an alphanumeric, at most 63 characters.
func ValidWorkspace(name string) bool {
	return workspacePattern.MatchString(name)
}

// ValidIdentifier reports whether id is a canonical 36-character UUID.
func ValidIdentifier(id string) bool {
	if len(id) != 36 {
		return false
	}
	return uuid.Validate(id) == nil
}

// InvalidIdentifiers returns every element of ids that fails ValidIdentifier,
// in input order.
func InvalidIdentifiers(ids []string) []string {
	var bad []string
	for _, id := range ids {
		if !ValidIdentifier(id) {
			bad = append(bad, id)
		}
	}
	return bad
}

// PathProblem explains why ValidatePath rejected a path. The zero value means ok.
type PathProblem string

const (
	PathOK          PathProblem = ""
	PathEmpty       PathProblem = "path must not be empty"
	PathNullByte    PathProblem = "path must not contain null bytes"
	PathNotAbsolute PathProblem = "path must be absolute"
	PathTraversal   PathProblem = "path must not contain '..' segments"
)

// ValidatePath checks a file path and returns the first problem found.
func ValidatePath(path string, mustBeAbsolute, forbidTraversal bool) PathProblem {
	if path == "" {
		return PathEmpty
	}
	if strings.ContainsRune(path, 0) {
		return PathNullByte
	}
	if mustBeAbsolute && !strings.HasPrefix(path, "/") {
		return PathNotAbsolute
	}
	if forbidTraversal {
		for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
			if seg == ".." {
				return PathTraversal
			}
		}
	}
	return PathOK
}

// ValidPath is the boolean form of ValidatePath.
func ValidPath(path string, mustBeAbsolute, forbidTraversal bool) bool {
	return ValidatePath(path, mustBeAbsolute, forbidTraversal) == PathOK
}
