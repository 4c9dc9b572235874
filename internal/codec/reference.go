package codec

import (
	"strings"
	"unicode"

	"geobridge/internal/domain"
)

// ParseReference recognizes an asset reference path such as
// /Game/Meshes/Rock.Rock or StaticMesh'/Game/Meshes/Rock.Rock'. Import
// info after ';' is dropped first. The returned path is unwrapped.
func ParseReference(s string) (domain.ObjectPath, bool) {
	s = StripReferenceSuffix(s)
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", false
	}

	// ClassName'/Path'
	if i := strings.IndexByte(s, '\''); i >= 0 {
		if i == 0 || !strings.HasSuffix(s, "'") || len(s) < i+2 {
			return "", false
		}
		if strings.ContainsAny(s[:i], "/.:") {
			return "", false
		}
		s = s[i+1 : len(s)-1]
		if strings.ContainsRune(s, '\'') {
			return "", false
		}
	}

	if !strings.HasPrefix(s, "/") {
		return "", false
	}
	path := s
	if i := strings.IndexByte(path, ':'); i >= 0 {
		if i == len(path)-1 {
			return "", false
		}
		path = path[:i]
	}
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		if i == len(path)-1 {
			return "", false
		}
		path = path[:i]
	}

	segments := strings.Split(path[1:], "/")
	if len(segments) < 2 {
		return "", false
	}
	for _, seg := range segments {
		if seg == "" {
			return "", false
		}
	}
	return domain.ObjectPath(s), true
}

// IsReference reports whether s parses as a reference path
func IsReference(s string) bool {
	_, ok := ParseReference(s)
	return ok
}
