package catman

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/rjboer/GoCatman/internal/logging"
)

// reservedHeaderStrings is the number of length-prefixed strings between the
// file comment and the channel count.
const reservedHeaderStrings = 32

// Config controls a decode. The zero value decodes little-endian files
// sequentially, declines ambiguous time channels and logs to logging.Default.
type Config struct {
	ByteOrder binary.ByteOrder
	// Pool enables the parallel payload path when non-nil.
	Pool *Pool
	// Resolver is consulted when a length bucket has no channel whose name
	// marks it as time.
	Resolver TimeResolver
	Logger   logging.Logger
	// Name overrides the source name used to qualify channel names.
	Name string
}

// Header is the file-level header.
type Header struct {
	FileID      int16
	DataOffset  int32
	Comment     string
	NumChannels int16
	// MaxLength is the maximum channel length, 0 meaning unbounded.
	MaxLength int32
}

// File is the result of one decode session.
type File struct {
	name     string
	header   Header
	channels []*Channel
	groups   []*Group
	diags    []error
}

func (f *File) Name() string { return f.name }

// Header returns the decoded file header.
func (f *File) Header() Header { return f.header }

// Channels returns the channels that survived decoding and grouping, in
// descriptor order.
func (f *File) Channels() []*Channel { return append([]*Channel(nil), f.channels...) }

// Groups returns the groups in the order their lengths were first seen.
func (f *File) Groups() []*Group { return append([]*Group(nil), f.groups...) }

// Date is the acquisition date of the first channel, or the zero time if
// there is none.
func (f *File) Date() time.Time {
	if len(f.channels) == 0 {
		return time.Time{}
	}
	return f.channels[0].Date()
}

// Diagnostics lists the non-fatal problems met while decoding.
func (f *File) Diagnostics() []error { return append([]error(nil), f.diags...) }

// Err combines all diagnostics into one error, or nil if there were none.
func (f *File) Err() error { return multierr.Combine(f.diags...) }

type session struct {
	cfg   Config
	src   Source
	name  string
	diags []error
}

func (s *session) diag(log logging.Logger, level logging.Level, err error, msg string, fields ...logging.Field) {
	s.diags = append(s.diags, err)
	fields = append(fields, logging.F("err", err))
	switch level {
	case logging.Debug:
		log.Debug(msg, fields...)
	case logging.Info:
		log.Info(msg, fields...)
	case logging.Warn:
		log.Warn(msg, fields...)
	default:
		log.Error(msg, fields...)
	}
}

// Open decodes the file at path.
func Open(ctx context.Context, path string, cfg Config) (*File, error) {
	return Decode(ctx, FileSource(path), cfg)
}

// DecodeBytes decodes an in-memory file.
func DecodeBytes(ctx context.Context, name string, data []byte, cfg Config) (*File, error) {
	return Decode(ctx, BytesSource{Label: name, Data: data}, cfg)
}

// Decode reads the header, all channel descriptors and all payloads from src,
// then groups channels around their time channels.
//
// Errors are returned only for failures that make the rest of the stream
// unreadable: a truncated or malformed header, a truncated payload, or a
// failed parallel task. Everything else is recorded in File.Diagnostics.
func Decode(ctx context.Context, src Source, cfg Config) (*File, error) {
	if cfg.ByteOrder == nil {
		cfg.ByteOrder = binary.LittleEndian
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = DeclineResolver{}
	}
	s := &session{cfg: cfg, src: src, name: cfg.Name}
	if s.name == "" {
		s.name = src.Name()
	}
	log := cfg.Logger.With(logging.F("file", s.name))

	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.name, err)
	}
	defer rc.Close()

	c, err := NewCursor(rc, cfg.ByteOrder)
	if err != nil {
		return nil, err
	}

	header, err := readHeader(c)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	log.Debug("header decoded",
		logging.F("file_id", header.FileID),
		logging.F("channels", header.NumChannels),
		logging.F("data_offset", header.DataOffset))

	live := s.readChannels(c, header, log)

	if err := c.Seek(int64(header.DataOffset)); err != nil {
		return nil, fmt.Errorf("failed to seek to data offset: %w", err)
	}

	live, err = s.readPayloads(ctx, c, live, log)
	if err != nil {
		return nil, err
	}

	live, groups := s.group(live, log)
	log.Info("decode complete",
		logging.F("channels", len(live)),
		logging.F("groups", len(groups)),
		logging.F("diagnostics", len(s.diags)))

	return &File{
		name:     s.name,
		header:   header,
		channels: live,
		groups:   groups,
		diags:    s.diags,
	}, nil
}

func readHeader(c *Cursor) (Header, error) {
	var h Header
	var err error
	if h.FileID, err = c.ReadInt16(); err != nil {
		return h, err
	}
	if h.DataOffset, err = c.ReadInt32(); err != nil {
		return h, err
	}
	if h.DataOffset < 0 {
		return h, fmt.Errorf("%w: data offset %d", ErrMalformedHeader, h.DataOffset)
	}
	if h.Comment, err = c.ReadString16(); err != nil {
		return h, err
	}
	for i := 0; i < reservedHeaderStrings; i++ {
		n, err := c.ReadInt16()
		if err != nil {
			return h, err
		}
		if n < 0 {
			return h, fmt.Errorf("%w: reserved string %d", ErrNegativeLength, i)
		}
		if err := c.Skip(int(n)); err != nil {
			return h, err
		}
	}
	if h.NumChannels, err = c.ReadInt16(); err != nil {
		return h, err
	}
	if h.NumChannels < 0 {
		return h, fmt.Errorf("%w: %d channels", ErrMalformedHeader, h.NumChannels)
	}
	if h.MaxLength, err = c.ReadInt32(); err != nil {
		return h, err
	}
	// per-channel length table and the reduction factor
	if err := c.Skip(4*int(h.NumChannels) + 4); err != nil {
		return h, err
	}
	return h, nil
}

// readChannels decodes descriptors in order and keeps the usable ones. A
// malformed descriptor leaves the stream position unknown, so decoding stops
// there and only the channels before it are kept. A length above the header's
// maximum is treated the same way: the payload region cannot be followed past
// a channel whose span is wrong.
func (s *session) readChannels(c *Cursor, h Header, log logging.Logger) []*Channel {
	n := int(h.NumChannels)
	live := make([]*Channel, 0, n)
	for i := 0; i < n; i++ {
		ch, err := s.readChannel(c, log)
		if err == nil && h.MaxLength != 0 && ch.desc.Length > h.MaxLength {
			ch.desc.Broken = true
			err = fmt.Errorf("%w: %d samples, header allows %d", ErrLengthOutOfRange, ch.desc.Length, h.MaxLength)
		}
		if err != nil {
			derr := &DescriptorError{Position: i, Index: ch.desc.Index, Name: ch.desc.Name, Err: err}
			s.diag(log, logging.Error, derr, "channel descriptor is malformed, skipping remaining channels",
				logging.F("position", i),
				logging.F("skipped", n-i))
			break
		}
		if ch.desc.Length <= 0 {
			s.diag(log, logging.Debug, fmt.Errorf("%w: channel %q (length %d)", ErrEmptyChannel, ch.desc.Name, ch.desc.Length),
				"skipping channel without samples", logging.F("channel", ch.desc.Name))
			continue
		}
		live = append(live, ch)
	}
	return live
}

// readPayloads decodes payloads in descriptor order. Payloads are contiguous,
// so a channel whose sample width is unknown ends the usable region: it and
// every later channel are dropped.
func (s *session) readPayloads(ctx context.Context, c *Cursor, live []*Channel, log logging.Logger) ([]*Channel, error) {
	for i, ch := range live {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ch.desc.Format != FormatNumeric {
			s.diag(log, logging.Warn, fmt.Errorf("%w: channel %q has format %d", ErrUnsupportedFormat, ch.desc.Name, ch.desc.Format),
				"payload region cannot be followed past a non-numeric channel, dropping it and later channels",
				logging.F("dropped", len(live)-i))
			return live[:i], nil
		}
		if err := s.readPayload(ctx, c, ch, log.With(logging.F("channel", ch.desc.Name))); err != nil {
			return nil, fmt.Errorf("channel %q: %w", ch.desc.Name, err)
		}
	}
	return live, nil
}
