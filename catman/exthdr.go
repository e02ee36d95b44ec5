package catman

import (
	"fmt"

	"github.com/rjboer/GoCatman/internal/logging"
)

// ExtendedHeaderSize is the number of bytes the known extended header layout
// occupies. Fields are stored at offsets that are multiples of their width
// relative to the instrument's struct, which is why padding appears after
// WriteProtected and ExportFormat.
const ExtendedHeaderSize = 148

// Precision is the on-disk width of one payload sample in bytes.
type Precision int

const (
	// PrecisionDouble stores each sample as a float64.
	PrecisionDouble Precision = 8
	// PrecisionFloat stores each sample as a float32.
	PrecisionFloat Precision = 4
	// PrecisionScaled stores each sample as a uint16 scaled between a
	// float64 min/max pair that precedes the samples.
	PrecisionScaled Precision = 2
)

func (p Precision) String() string {
	switch p {
	case PrecisionDouble:
		return "float64"
	case PrecisionFloat:
		return "float32"
	case PrecisionScaled:
		return "scaled-uint16"
	default:
		return fmt.Sprintf("Precision(%d)", int(p))
	}
}

// ExtendedHeader is the fixed sub-record embedded in each channel descriptor.
type ExtendedHeader struct {
	T0              float64
	DT              float64
	SensorType      int16
	SupplyVoltage   int16
	FiltChar        int16
	FiltFreq        int16
	TareVal         float32
	ZeroVal         float32
	MeasRange       float32
	InChar          [4]float32
	SerNo           string
	PhysUnit        string
	NativeUnit      string
	Slot            int16
	SubSlot         int16
	AmpType         int16
	APType          int16
	KFactor         float32
	BFactor         float32
	MeasSig         int16
	AmpInput        int16
	HPFilt          int16
	OLImportInfo    byte
	ScaleType       byte
	SoftwareTareVal float32
	WriteProtected  byte
	NominalRange    float32
	CLCFactor       float32
	ExportFormat    byte

	// Consumed is the number of bytes the fixed layout read. When it differs
	// from the declared length LayoutMismatch is set and the fields above are
	// not reliable.
	Consumed       int
	LayoutMismatch bool
}

// precisionFor maps an ExportFormat byte to a sample width.
func precisionFor(exportFormat byte) (Precision, bool) {
	switch exportFormat {
	case 0:
		return PrecisionDouble, true
	case 1:
		return PrecisionFloat, true
	case 2:
		return PrecisionScaled, true
	default:
		return PrecisionDouble, false
	}
}

// readExtendedHeader decodes the extended header starting at the cursor. The
// declared length always wins: if the fixed layout consumed a different number
// of bytes the cursor is moved to pos0+declared and the channel falls back to
// double precision. A declared length shorter than the layout cannot hold it,
// so no field is read and the header stays zero. The returned error is only
// set for stream failures.
func (s *session) readExtendedHeader(c *Cursor, declared int32, log logging.Logger) (ExtendedHeader, Precision, error) {
	if declared < 0 {
		return ExtendedHeader{}, PrecisionDouble, fmt.Errorf("%w: extended header of %d bytes", ErrNegativeLength, declared)
	}
	pos0 := c.Tell()

	if declared < ExtendedHeaderSize {
		h := ExtendedHeader{LayoutMismatch: true}
		s.diag(log, logging.Warn, fmt.Errorf("%w: declared %d bytes, layout needs %d", ErrExtendedHeaderMismatch, declared, ExtendedHeaderSize),
			"extended header shorter than the known layout, skipping it and assuming double precision")
		if err := c.Skip(int(declared)); err != nil {
			return h, PrecisionDouble, err
		}
		return h, PrecisionDouble, nil
	}

	r := &fieldReader{c: c}
	var h ExtendedHeader
	h.T0 = r.f64()
	h.DT = r.f64()
	h.SensorType = r.i16()
	h.SupplyVoltage = r.i16()
	h.FiltChar = r.i16()
	h.FiltFreq = r.i16()
	h.TareVal = r.f32()
	h.ZeroVal = r.f32()
	h.MeasRange = r.f32()
	for i := range h.InChar {
		h.InChar[i] = r.f32()
	}
	h.SerNo = r.fixedStr(32)
	h.PhysUnit = r.fixedStr(8)
	h.NativeUnit = r.fixedStr(8)
	h.Slot = r.i16()
	h.SubSlot = r.i16()
	h.AmpType = r.i16()
	h.APType = r.i16()
	h.KFactor = r.f32()
	h.BFactor = r.f32()
	h.MeasSig = r.i16()
	h.AmpInput = r.i16()
	h.HPFilt = r.i16()
	h.OLImportInfo = r.u8()
	h.ScaleType = r.u8()
	h.SoftwareTareVal = r.f32()
	h.WriteProtected = r.u8()
	r.skip(3)
	h.NominalRange = r.f32()
	h.CLCFactor = r.f32()
	h.ExportFormat = r.u8()
	r.skip(7)
	if r.err != nil {
		return h, PrecisionDouble, r.err
	}

	h.Consumed = int(c.Tell() - pos0)
	if h.Consumed != int(declared) {
		h.LayoutMismatch = true
		s.diag(log, logging.Warn, fmt.Errorf("%w: read %d bytes, declared %d", ErrExtendedHeaderMismatch, h.Consumed, declared),
			"extended header layout does not match declared length, reseeking and assuming double precision")
		if err := c.Seek(pos0 + int64(declared)); err != nil {
			return h, PrecisionDouble, err
		}
		h.ExportFormat = 0
		return h, PrecisionDouble, nil
	}

	prec, ok := precisionFor(h.ExportFormat)
	if !ok {
		s.diag(log, logging.Warn, fmt.Errorf("%w: %d", ErrMalformedExportFormat, h.ExportFormat),
			"unexpected export format, assuming double precision")
	}
	return h, prec, nil
}
