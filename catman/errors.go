package catman

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated reports a stream that ends before a read completes.
	ErrTruncated = errors.New("catman: truncated stream")
	// ErrNegativeLength reports a negative length prefix.
	ErrNegativeLength = errors.New("catman: negative length prefix")
	// ErrMalformedHeader reports a file header with impossible values.
	ErrMalformedHeader = errors.New("catman: malformed file header")
	// ErrMalformedDescriptor reports a channel descriptor that could not be decoded.
	ErrMalformedDescriptor = errors.New("catman: malformed channel descriptor")
	// ErrLengthOutOfRange reports a channel length above the header's maximum.
	ErrLengthOutOfRange = errors.New("catman: channel length out of range")
	// ErrExtendedHeaderMismatch reports an extended header whose declared
	// length differs from the known layout.
	ErrExtendedHeaderMismatch = errors.New("catman: extended header layout mismatch")
	// ErrMalformedExportFormat reports an unknown sample export format.
	ErrMalformedExportFormat = errors.New("catman: malformed export format")
	// ErrUnsupportedFormat reports a channel whose payload is not numeric.
	ErrUnsupportedFormat = errors.New("catman: unsupported channel format")
	// ErrEmptyChannel reports a channel declared without samples.
	ErrEmptyChannel = errors.New("catman: channel has no samples")
	// ErrUnresolvedTimeChannel reports a length bucket without a time channel.
	ErrUnresolvedTimeChannel = errors.New("catman: unresolved time channel")
	// ErrInsufficientBucket reports a channel with no peer of equal length.
	ErrInsufficientBucket = errors.New("catman: channel has no peer of equal length")
	// ErrParallelTask reports a failed parallel payload task.
	ErrParallelTask = errors.New("catman: parallel payload task failed")
)

// DescriptorError reports a channel descriptor that could not be decoded.
// Position is the zero-based position of the descriptor in the file.
type DescriptorError struct {
	Position int
	Index    int16
	Name     string
	Err      error
}

func (e *DescriptorError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("catman: channel descriptor %d (%q): %v", e.Position, e.Name, e.Err)
	}
	return fmt.Sprintf("catman: channel descriptor %d: %v", e.Position, e.Err)
}

// Unwrap lets errors.Is match both ErrMalformedDescriptor and the cause.
func (e *DescriptorError) Unwrap() []error {
	return []error{ErrMalformedDescriptor, e.Err}
}
