package pretrained

import "errors"

// Sentinel errors for pretrained model resolution. None of these are
// retryable; configuration errors must be fixed by the caller.
var (
	// ErrInvalidRepo indicates a local model repository path that does not
	// exist or is not a directory.
	ErrInvalidRepo = errors.New("pretrained: model repository must exist and be a directory")

	// ErrNotPretrained indicates a variant request (extra, quantized, hq)
	// without pretrained weights; no such un-pretrained variants exist.
	ErrNotPretrained = errors.New("pretrained: extra, quantized and hq require pretrained weights")

	// ErrConflictingVariants indicates more than one of extra, quantized
	// and hq requested at once.
	ErrConflictingVariants = errors.New("pretrained: only one of extra, quantized and hq may be set")

	// ErrUnsupportedVariant indicates a variant the requested architecture
	// does not ship.
	ErrUnsupportedVariant = errors.New("pretrained: variant not available for this architecture")

	// ErrUnknownModel indicates a name outside the closed pretrained set.
	ErrUnknownModel = errors.New("pretrained: invalid pretrained name")
)
