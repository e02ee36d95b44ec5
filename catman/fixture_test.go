package catman

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/rjboer/GoCatman/internal/logging"
)

// builder writes primitives the way the instrument lays them out.
type builder struct {
	order binary.ByteOrder
	buf   bytes.Buffer
}

func newBuilder(order binary.ByteOrder) *builder {
	if order == nil {
		order = binary.LittleEndian
	}
	return &builder{order: order}
}

func (b *builder) put(v any) *builder {
	if err := binary.Write(&b.buf, b.order, v); err != nil {
		panic(err)
	}
	return b
}

func (b *builder) i16(v int16) *builder    { return b.put(v) }
func (b *builder) i32(v int32) *builder    { return b.put(v) }
func (b *builder) u16(v uint16) *builder   { return b.put(v) }
func (b *builder) f32(v float32) *builder  { return b.put(v) }
func (b *builder) f64(v float64) *builder  { return b.put(v) }
func (b *builder) u8(v byte) *builder      { b.buf.WriteByte(v); return b }
func (b *builder) raw(p []byte) *builder   { b.buf.Write(p); return b }
func (b *builder) zeros(n int) *builder    { return b.raw(make([]byte, n)) }
func (b *builder) str16(s string) *builder { return b.i16(int16(len(s))).raw([]byte(s)) }
func (b *builder) str32(s string) *builder { return b.i32(int32(len(s))).raw([]byte(s)) }
func (b *builder) len() int                { return b.buf.Len() }
func (b *builder) bytes() []byte           { return b.buf.Bytes() }

func (b *builder) fixed(s string, n int) *builder {
	p := make([]byte, n)
	copy(p, s)
	return b.raw(p)
}

// testChannel describes one channel of a synthetic file.
type testChannel struct {
	name   string
	unit   string
	length int32
	format int16
	export byte
	// extLen is the declared extended header length; 0 means the real layout size.
	extLen    int32
	timestamp float64
	calPoints int
	// values is the payload for export formats 0 and 1 (and any fallback to doubles).
	values []float64
	// scaled payload for export format 2.
	min, max float64
	raw      []uint16
	// badName writes a negative name length and ends the descriptor table there.
	badName bool
	// sensorInfoLen, when set, replaces the sensor info length prefix.
	sensorInfoLen int32
}

func (tc testChannel) declaredExtLen() int32 {
	if tc.extLen == 0 {
		return ExtendedHeaderSize
	}
	return tc.extLen
}

// effectiveExport is the export format the decoder will actually use.
func (tc testChannel) effectiveExport() byte {
	if tc.declaredExtLen() != ExtendedHeaderSize || tc.export > 2 {
		return 0
	}
	return tc.export
}

func extendedHeaderBytes(order binary.ByteOrder, tc testChannel) []byte {
	e := newBuilder(order)
	e.f64(tc.timestamp) // T0
	e.f64(0.001)        // dt
	e.i16(3).i16(5).i16(1).i16(100)
	e.f32(0.5).f32(0.25).f32(10)
	e.f32(1).f32(2).f32(3).f32(4)
	e.fixed("SN-0042", 32)
	e.fixed(tc.unit, 8)
	e.fixed("mV/V", 8)
	e.i16(2).i16(1).i16(7).i16(9)
	e.f32(2.5).f32(-1.5)
	e.i16(11).i16(12).i16(13)
	e.u8(1).u8(2)
	e.f32(0.75)
	e.u8(1)
	e.zeros(3)
	e.f32(10).f32(1)
	e.u8(tc.export)
	e.zeros(7)
	if e.len() != ExtendedHeaderSize {
		panic("extended header fixture does not match layout size")
	}

	out := append([]byte(nil), e.bytes()...)
	declared := int(tc.declaredExtLen())
	if declared > len(out) {
		out = append(out, make([]byte, declared-len(out))...)
	}
	return out[:declared]
}

func writeDescriptor(b *builder, idx int, tc testChannel) {
	b.i16(int16(idx)).i32(tc.length)
	if tc.badName {
		b.i16(-5)
		return
	}
	b.str16(tc.name).str16(tc.unit).str16("comment " + tc.name)
	b.i16(tc.format).i16(8)
	b.f64(tc.timestamp)
	b.i32(tc.declaredExtLen())
	b.raw(extendedHeaderBytes(b.order, tc))
	b.u8('l').u8('u')
	b.u8(byte(tc.calPoints))
	for i := 0; i < tc.calPoints; i++ {
		b.f64(float64(i) * 1.5)
	}
	b.i16(0)
	b.str16("x*2")
	info := "sensor " + tc.name
	if tc.sensorInfoLen != 0 {
		b.i32(tc.sensorInfoLen).raw([]byte(info))
		return
	}
	b.str32(info)
}

func writePayload(b *builder, tc testChannel) {
	switch tc.effectiveExport() {
	case 1:
		for _, v := range tc.values {
			b.f32(float32(v))
		}
	case 2:
		b.f64(tc.min).f64(tc.max)
		for _, r := range tc.raw {
			b.u16(r)
		}
	default:
		for _, v := range tc.values {
			b.f64(v)
		}
	}
}

type testFile struct {
	data       []byte
	dataOffset int
}

// buildFile assembles a complete file. Payloads are written for every channel
// before the first badName channel that declares a positive length.
func buildFile(order binary.ByteOrder, chans []testChannel) testFile {
	return buildFileMax(order, chans, 0)
}

// buildFileMax is buildFile with the header's max channel length set.
func buildFileMax(order binary.ByteOrder, chans []testChannel, maxLength int32) testFile {
	b := newBuilder(order)
	b.i16(5012)
	offsetPos := b.len()
	b.i32(0)
	b.str16("test file")
	for i := 0; i < reservedHeaderStrings; i++ {
		if i%8 == 0 {
			b.str16("reserved")
		} else {
			b.str16("")
		}
	}
	b.i16(int16(len(chans)))
	b.i32(maxLength)
	for _, tc := range chans {
		b.i32(tc.length)
	}
	b.i32(1)

	written := chans
	for i, tc := range chans {
		writeDescriptor(b, i, tc)
		if tc.badName {
			written = chans[:i]
			break
		}
	}

	// some writers leave slack between the descriptors and the payload region
	b.zeros(13)
	dataOffset := b.len()
	for _, tc := range written {
		if tc.length > 0 && tc.format == FormatNumeric {
			writePayload(b, tc)
		}
	}

	data := append([]byte(nil), b.bytes()...)
	order.PutUint32(data[offsetPos:offsetPos+4], uint32(dataOffset))
	return testFile{data: data, dataOffset: dataOffset}
}

func ramp(n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}

func sine(n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(float64(i)/7)
	}
	return out
}

func quietConfig() Config {
	return Config{Logger: logging.New(logging.Debug, logging.Text, io.Discard)}
}

func mustDecode(t *testing.T, data []byte, cfg Config) *File {
	t.Helper()
	f, err := DecodeBytes(context.Background(), "fixture", data, cfg)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	return f
}

func channelNames(chans []*Channel) []string {
	out := make([]string, len(chans))
	for i, ch := range chans {
		out[i] = ch.Name()
	}
	return out
}
