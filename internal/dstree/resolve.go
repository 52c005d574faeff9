package dstree

import (
	"fmt"
	"strings"
)

// DefaultDelimiter separates qualifier segments.
const DefaultDelimiter = "."

// ResolveOptions controls qualifier resolution. The zero value means
// dot-delimited, case-insensitive matching.
type ResolveOptions struct {
	// Delimiter between qualifier segments; defaults to ".".
	Delimiter string

	// MatchCase requires exact-case name matches. Threaded through every
	// recursive traversal step.
	MatchCase bool
}

// Resolve looks up a node by dotted qualifier among the named root sources.
// The first segment is matched against root names; the remainder is
// delegated to the matched root's Traverse. Each qualifier resolves
// independently of any other; a failed lookup returns ErrNotFound without
// affecting the roots.
func Resolve(roots []*Source, qualifier string, opts ResolveOptions) (Node, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}

	segments := strings.Split(qualifier, delim)
	if len(segments) == 0 || segments[0] == "" {
		return nil, fmt.Errorf("empty qualifier %q: %w", qualifier, ErrNotFound)
	}

	first, rest := segments[0], segments[1:]

	for _, root := range roots {
		if !matchName(root.Name(), first, opts.MatchCase) {
			continue
		}

		if len(rest) == 0 {
			return root, nil
		}

		return root.Traverse(rest, opts.MatchCase)
	}

	return nil, fmt.Errorf("no root source %q: %w", first, ErrNotFound)
}
