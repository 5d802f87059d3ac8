package domain

import "errors"

// Run-failure taxonomy for the resolution workflow. Unavailable
// conditions from classifier, resolver and store abort the run;
// retrieval unavailability degrades to zero hits for the failing
// partition; malformed classifier output is recovered locally.
var (
	ErrClassificationUnavailable = errors.New("classifier unavailable")
	ErrGenerationUnavailable     = errors.New("resolution agent unavailable")
	ErrRetrievalUnavailable      = errors.New("embedding retrieval unavailable")
	ErrStoreUnavailable          = errors.New("ticket store unavailable")
	ErrMalformedAgentOutput      = errors.New("malformed agent output")
)
