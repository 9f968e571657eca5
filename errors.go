package assetcache

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// errOp names which collaborator produced a CacheError.
type errOp int

const (
	// OpVfs marks an error surfaced by the Vfs while resolving a key to
	// bytes.
	OpVfs errOp = iota
	// OpDecoder marks an error surfaced by the Decoder while turning
	// bytes into a decoded value or estimating its cost.
	OpDecoder
)

func (o errOp) String() string {
	switch o {
	case OpVfs:
		return "vfs"
	case OpDecoder:
		return "decoder"
	default:
		return "unknown"
	}
}

// CacheError reports which collaborator, Vfs or Decoder, produced an
// error, while preserving the collaborator's native error (wrapped, with
// a stack trace attached by pkg/errors) rather than discarding it.
type CacheError struct {
	Op  errOp
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("assetcache: %s error: %v", e.Op, e.Err)
}

// Unwrap allows errors.Is/errors.As to see through to the collaborator's
// original error.
func (e *CacheError) Unwrap() error { return e.Err }

func wrapVfsErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return &CacheError{Op: OpVfs, Err: pkgerrors.Wrapf(err, "opening key %q", key)}
}

func wrapDecoderErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return &CacheError{Op: OpDecoder, Err: pkgerrors.Wrapf(err, "decoding key %q", key)}
}

// IsVfsError reports whether err is a CacheError originating from the Vfs.
func IsVfsError(err error) bool {
	var ce *CacheError
	return errors.As(err, &ce) && ce.Op == OpVfs
}

// IsDecoderError reports whether err is a CacheError originating from the
// Decoder.
func IsDecoderError(err error) bool {
	var ce *CacheError
	return errors.As(err, &ce) && ce.Op == OpDecoder
}

// invariant panics loudly when an internal consistency check fails. Cost
// underflow, a corrupted free list, a missing slot during unlink, or a
// double Close are programming defects, not recoverable runtime
// conditions, so they must never silently produce a wrong result.
func invariant(cond bool, msg string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assetcache: invariant violation: "+msg, args...))
	}
}
