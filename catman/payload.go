package catman

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/rjboer/GoCatman/internal/decoder"
	"github.com/rjboer/GoCatman/internal/logging"
)

// scaledFullRange is the raw value that maps to the max of a scaled payload.
const scaledFullRange = 32767

// payloadChunk bounds how many bytes the sequential path decodes at once.
const payloadChunk = 64 * 1024

// Pool bounds how many payload sub-ranges are decoded concurrently. A nil
// *Pool means sequential decoding.
type Pool struct {
	workers int
}

// NewPool returns a pool with the given number of workers. A non-positive
// count uses GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers returns the worker count.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workers
}

// itemDecoder converts raw little or big endian items to float64.
type itemDecoder struct {
	prec  Precision
	order binary.ByteOrder
	min   float64
	scale float64
}

func (d itemDecoder) decode(dst []float64, raw []byte) {
	w := int(d.prec)
	for i := range dst {
		b := raw[i*w : i*w+w]
		switch d.prec {
		case PrecisionDouble:
			dst[i] = math.Float64frombits(d.order.Uint64(b))
		case PrecisionFloat:
			dst[i] = float64(math.Float32frombits(d.order.Uint32(b)))
		case PrecisionScaled:
			dst[i] = float64(d.order.Uint16(b))*d.scale + d.min
		}
	}
}

// readPayload decodes the channel's samples starting at the cursor and leaves
// the cursor directly after them. It must be called in descriptor order.
func (s *session) readPayload(ctx context.Context, c *Cursor, ch *Channel, log logging.Logger) error {
	if ch.desc.Broken {
		return nil
	}
	n := int(ch.desc.Length)
	dec := itemDecoder{prec: ch.precision, order: c.Order()}

	if ch.precision == PrecisionScaled {
		minV, err := c.ReadFloat64()
		if err != nil {
			return fmt.Errorf("scaled payload min: %w", err)
		}
		maxV, err := c.ReadFloat64()
		if err != nil {
			return fmt.Errorf("scaled payload max: %w", err)
		}
		dec.min = minV
		dec.scale = (maxV - minV) / scaledFullRange
	}

	if err := c.Need(int64(n) * int64(dec.prec)); err != nil {
		return fmt.Errorf("payload of %d samples: %w", n, err)
	}

	if s.cfg.Pool != nil && s.src != nil && n > 1 {
		data, err := s.readPayloadParallel(ctx, c, n, dec, log)
		if err != nil {
			return err
		}
		ch.data = data
		return nil
	}

	data := make([]float64, n)
	w := int(dec.prec)
	perChunk := payloadChunk / w
	raw := make([]byte, min(n, perChunk)*w)
	for first := 0; first < n; first += perChunk {
		count := min(perChunk, n-first)
		buf := raw[:count*w]
		if err := c.ReadFull(buf); err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		dec.decode(data[first:first+count], buf)
	}
	ch.data = data
	return nil
}

// readPayloadParallel splits the payload span into sub-ranges, decodes each on
// its own read handle and merges them in index order. The owning cursor only
// moves past the whole span; workers never touch it.
func (s *session) readPayloadParallel(ctx context.Context, c *Cursor, n int, dec itemDecoder, log logging.Logger) ([]float64, error) {
	start := c.Tell()
	plan, err := decoder.Plan(start, n, int(dec.prec), s.cfg.Pool.Workers())
	if err != nil {
		return nil, err
	}

	results := make([][]float64, len(plan.Ranges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Pool.Workers())
	for i, rng := range plan.Ranges {
		i, rng := i, rng
		g.Go(func() error {
			out, err := s.readRange(gctx, plan, rng, dec)
			if err != nil {
				log.Error("payload task failed",
					logging.F("first", rng.First),
					logging.F("count", rng.Count),
					logging.F("offset", rng.Offset),
					logging.F("err", err))
				return fmt.Errorf("%w: items [%d,%d): %w", ErrParallelTask, rng.First, rng.End(), err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make([]float64, n)
	for i, rng := range plan.Ranges {
		if len(results[i]) != rng.Count {
			return nil, fmt.Errorf("%w: missing result for items [%d,%d)", ErrParallelTask, rng.First, rng.End())
		}
		copy(data[rng.First:rng.End()], results[i])
	}

	if err := c.Seek(start + plan.Span()); err != nil {
		return nil, fmt.Errorf("advance past payload: %w", err)
	}
	return data, nil
}

func (s *session) readRange(ctx context.Context, plan decoder.DecodeMap, rng decoder.Range, dec itemDecoder) (out []float64, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := s.src.Open()
	if err != nil {
		return nil, fmt.Errorf("open read handle: %w", err)
	}
	defer func() {
		err = multierr.Append(err, h.Close())
		if err != nil {
			out = nil
		}
	}()

	if _, err := h.Seek(rng.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to %d: %w", rng.Offset, err)
	}
	raw := make([]byte, plan.Bytes(rng))
	if _, err := io.ReadFull(h, raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: need %d bytes at offset %d", ErrTruncated, len(raw), rng.Offset)
		}
		return nil, err
	}
	out = make([]float64, rng.Count)
	dec.decode(out, raw)
	return out, nil
}
