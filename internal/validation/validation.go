package validation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"ledgervcs/internal/errors"
)

// ReservedPath is the repository descriptor file. It lives in the working
// tree root and is never tracked.
const ReservedPath = ".repodata.json"

const maxNameLength = 255

// NormalizePath cleans a slash-separated repository path. Paths recorded with
// a leading "./" are accepted. Absolute paths, paths escaping the root and the
// reserved descriptor path are rejected. Only "/" separates components; a
// backslash is an ordinary file name byte.
func NormalizePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.ValidationError("path cannot be empty", nil)
	}
	if strings.ContainsRune(p, 0) {
		return "", errors.ValidationError("path contains NUL byte", p)
	}

	cleaned := path.Clean(p)
	switch {
	case path.IsAbs(cleaned):
		return "", errors.ValidationError(fmt.Sprintf("path %q must be relative", p), p)
	case cleaned == "." || cleaned == "..", strings.HasPrefix(cleaned, "../"):
		return "", errors.ValidationError(fmt.Sprintf("path %q escapes the repository root", p), p)
	case cleaned == ReservedPath:
		return "", errors.ValidationError(fmt.Sprintf("path %q is reserved", p), p)
	}
	return cleaned, nil
}

// CommitFiles validates a commit's parallel path and hash lists and returns
// the normalized paths.
func CommitFiles(paths, hashes []string) ([]string, error) {
	if len(paths) != len(hashes) {
		return nil, errors.ValidationError(
			fmt.Sprintf("got %d paths but %d hashes", len(paths), len(hashes)), nil)
	}

	normalized := make([]string, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for i, p := range paths {
		n, err := NormalizePath(p)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[n]; dup {
			return nil, errors.ValidationError(fmt.Sprintf("duplicate path %q", n), n)
		}
		seen[n] = struct{}{}

		if strings.TrimSpace(hashes[i]) == "" {
			return nil, errors.ValidationError(fmt.Sprintf("empty content hash for %q", n), n)
		}
		normalized[i] = n
	}
	return normalized, nil
}

func Name(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.ValidationError(kind+" name cannot be empty", nil)
	}
	if len(name) > maxNameLength {
		return errors.ValidationError(fmt.Sprintf("%s name longer than %d bytes", kind, maxNameLength), nil)
	}
	if strings.ContainsAny(name, "\n\r") {
		return errors.ValidationError(kind+" name cannot contain line breaks", nil)
	}
	return nil
}

func Account(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.ValidationError("account cannot be empty", nil)
	}
	return nil
}

// DecodeJSON decodes a request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ValidationError("invalid request body", err.Error())
	}
	return nil
}
