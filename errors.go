package hinako

import "github.com/dk2014/hinako/memerr"

// Error model (spec §4.B). The taxonomy itself lives in the leaf package
// memerr so that winproc (an internal collaborator of this package) can
// construct and return these errors without an import cycle back through
// hinako; this package re-exports the public names so callers never need
// to import memerr directly.
type (
	Kind         = memerr.Kind
	MemError     = memerr.MemError
	MemStateInfo = memerr.MemStateInfo
)

const (
	KindTimeoutReached     = memerr.KindTimeoutReached
	KindMemoryStateInvalid = memerr.KindMemoryStateInvalid
	KindPatternNotFound    = memerr.KindPatternNotFound
	KindOsAPI              = memerr.KindOsAPI
	KindOther              = memerr.KindOther

	InvalidAllocationType  = memerr.InvalidAllocationType
	InvalidProtectionFlags = memerr.InvalidProtectionFlags
	InvalidPageType        = memerr.InvalidPageType
)

var (
	TimeoutError         = memerr.TimeoutError
	MemoryStateError     = memerr.MemoryStateError
	PatternNotFoundError = memerr.PatternNotFoundError
	OsAPIError           = memerr.OsAPIError
	OtherError           = memerr.OtherError
	Otherf               = memerr.Otherf
	IsTimeout            = memerr.IsTimeout
	IsMemoryStateInvalid = memerr.IsMemoryStateInvalid
	IsPatternNotFound    = memerr.IsPatternNotFound
)
