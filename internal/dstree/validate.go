package dstree

import "os"

// SizeUnknown marks a remote size the server did not (usably) report,
// matching the net/http convention of -1 for unknown content length.
const SizeUnknown int64 = -1

// Validity is the three-valued outcome of comparing a local file against
// its remote counterpart.
type Validity int

const (
	// Invalid: the local file is absent or its size mismatches.
	Invalid Validity = iota
	// Valid: the local size equals the reported remote size.
	Valid
	// ValidityUnknown: the file exists but the remote size is unknown, so
	// no size comparison is possible. Not an error; Decide resolves it via
	// the reloadUnconfirmable policy.
	ValidityUnknown
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ValidateFile inspects the local file at path against the reported remote
// size (SizeUnknown when unreported). Only sizes are compared; a
// stale-but-same-size file passes. This is a deliberate cheap heuristic,
// not a correctness guarantee.
func ValidateFile(path string, remoteSize int64) (exists bool, valid Validity) {
	info, err := os.Stat(path)
	if err != nil {
		return false, Invalid
	}

	if remoteSize == SizeUnknown {
		return true, ValidityUnknown
	}

	if info.Size() == remoteSize {
		return true, Valid
	}

	return true, Invalid
}

// Decide maps a validation outcome to a retrieve/skip decision (true =
// download). An absent file always downloads; a confirmed-valid file always
// skips; a confirmed-invalid file always downloads; an unconfirmable file
// follows reloadUnconfirmable.
func Decide(exists bool, valid Validity, reloadUnconfirmable bool) bool {
	if !exists {
		return true
	}

	switch valid {
	case Valid:
		return false
	case Invalid:
		return true
	default:
		return reloadUnconfirmable
	}
}
