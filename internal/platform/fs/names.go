// SPDX-License-Identifier: MIT

package fs

import (
	"errors"
	"strings"
)

// ErrUnsafeName is returned for file names that could address anything other
// than a single entry directly inside a directory.
var ErrUnsafeName = errors.New("unsafe file name")

// ValidateName accepts a bare file name. Path separators, traversal
// sequences, NUL bytes and dot-files are rejected.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrUnsafeName
	case strings.ContainsAny(name, "/\\\x00"):
		return ErrUnsafeName
	case strings.Contains(name, ".."):
		return ErrUnsafeName
	case strings.HasPrefix(name, "."):
		return ErrUnsafeName
	}
	return nil
}
