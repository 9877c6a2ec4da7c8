package model

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMisconfigured indicates required secrets or settings are absent
	// or malformed. Not recoverable by retry.
	ErrMisconfigured = errors.New("misconfigured")
	// ErrCorruptChain indicates a merge chain exceeded the sanity depth
	// cap or referenced a nonexistent user. Surfaced loudly instead of
	// returning a possibly stale resolution.
	ErrCorruptChain = errors.New("merge chain corrupt")
)

// MaxMergeDepth bounds merge-chain walks. Chains are acyclic and shallow
// by construction; hitting the cap means the data is damaged.
const MaxMergeDepth = 10
