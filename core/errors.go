package core

import "errors"

// Error taxonomy. Each sentinel corresponds to one row of the error table:
// parsers and sources wrap these with detail via fmt.Errorf("%w: ...", ...)
// and callers distinguish them with errors.Is.
var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrInvalidCandle = errors.New("invalid candlestick")
	// ErrVolumeOverflow is fatal for the window being flushed; the
	// generator keeps the window intact so the caller can retry or
	// inspect it.
	ErrVolumeOverflow = errors.New("volume overflow during candle flush")
	ErrOutOfMemory    = errors.New("arena out of memory")
	ErrOutOfBounds    = errors.New("index out of bounds")
	// ErrShutdownTimeout is returned by FeedManager.StopAll when a
	// source's worker goroutine does not finish within the shutdown
	// deadline. It is surfaced, never papered over with a detach.
	ErrShutdownTimeout = errors.New("shutdown timeout waiting for source")
	// ErrFatal wraps an error that should be treated as unrecoverable by
	// whichever top-level recover sees it, standing in for the original
	// PANIC macro without scattering process exits through leaf code.
	ErrFatal = errors.New("fatal error")
	// ErrDuplicateSourceTag is returned by FeedManager.StartAll when
	// uniqueTags is requested and two registered sources share a tag.
	ErrDuplicateSourceTag = errors.New("duplicate feed source tag")
)
