package catman

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rjboer/GoCatman/internal/dsp"
	"github.com/rjboer/GoCatman/internal/logging"
)

// Channel formats as declared in the descriptor. Only numeric payloads can be
// decoded.
const (
	FormatNumeric int16 = 0
	FormatString  int16 = 1
	FormatBinary  int16 = 2
)

// Descriptor is the self-describing per-channel record that precedes the
// payload region.
type Descriptor struct {
	Index        int16
	Length       int32
	Name         string
	Unit         string
	Comment      string
	Format       int16
	DW           int16
	Timestamp    float64 // serial days, see SerialToTime
	ExtHeaderLen int32
	Ext          ExtendedHeader
	LinMode      byte
	UserScale    byte
	// CalibrationPoints is the number of calibration doubles that were skipped.
	CalibrationPoints int
	Formula           string
	SensorInfo        string
	Broken            bool
}

// Stats summarizes a channel's samples.
type Stats = dsp.Stats

// Channel is one decoded measurement channel. It is read-only once the
// decode that produced it has returned.
type Channel struct {
	desc      Descriptor
	precision Precision
	data      []float64
	isTime    bool
	time      *Channel
	fileName  string
}

func (c *Channel) Name() string    { return c.desc.Name }
func (c *Channel) Unit() string    { return c.desc.Unit }
func (c *Channel) Comment() string { return c.desc.Comment }
func (c *Channel) Index() int16    { return c.desc.Index }

// Length is the declared number of samples.
func (c *Channel) Length() int { return int(c.desc.Length) }

// Len is the number of decoded samples. It equals Length after a successful
// decode.
func (c *Channel) Len() int { return len(c.data) }

// At returns sample i.
func (c *Channel) At(i int) float64 { return c.data[i] }

// Data returns a copy of the decoded samples.
func (c *Channel) Data() []float64 { return slices.Clone(c.data) }

// IsTime reports whether grouping chose this channel as a time base.
func (c *Channel) IsTime() bool { return c.isTime }

// Time returns the time channel this channel was linked to, or nil. The
// pointer does not transfer ownership; the Group owns both channels.
func (c *Channel) Time() *Channel { return c.time }

// Precision is the on-disk sample width that was used to decode the payload.
func (c *Channel) Precision() Precision { return c.precision }

// Descriptor returns a copy of the decoded descriptor.
func (c *Channel) Descriptor() Descriptor { return c.desc }

// Date converts the acquisition timestamp to calendar time.
func (c *Channel) Date() time.Time { return SerialToTime(c.desc.Timestamp) }

// FullName qualifies the channel name with the file name.
func (c *Channel) FullName() string { return qualify(c.fileName, c.desc.Name) }

// Stats summarizes the decoded samples.
func (c *Channel) Stats() Stats { return dsp.Summarize(c.data) }

func (c *Channel) String() string {
	return fmt.Sprintf("Channel %q (%d Entries)", c.desc.Name, c.desc.Length)
}

func qualify(fileName, name string) string {
	return fmt.Sprintf("%s.%s", fileName, strings.ReplaceAll(name, " ", "_"))
}

// readChannel decodes one channel descriptor. On failure the returned channel
// is marked broken, holds whatever fields were read before the failure, and
// the stream position is undefined.
func (s *session) readChannel(c *Cursor, log logging.Logger) (*Channel, error) {
	ch := &Channel{fileName: s.name, precision: PrecisionDouble}
	d := &ch.desc
	r := &fieldReader{c: c}

	fail := func(err error) (*Channel, error) {
		d.Broken = true
		return ch, err
	}

	d.Index = r.i16()
	d.Length = r.i32()
	d.Name = r.str16()
	d.Unit = r.str16()
	d.Comment = r.str16()
	d.Format = r.i16()
	d.DW = r.i16()
	d.Timestamp = r.f64()
	d.ExtHeaderLen = r.i32()
	if r.err != nil {
		return fail(r.err)
	}

	ext, prec, err := s.readExtendedHeader(c, d.ExtHeaderLen, log.With(logging.F("channel", d.Name)))
	if err != nil {
		return fail(fmt.Errorf("extended header: %w", err))
	}
	d.Ext = ext
	ch.precision = prec

	d.LinMode = r.u8()
	d.UserScale = r.u8()
	d.CalibrationPoints = int(r.u8())
	r.skip(d.CalibrationPoints * 8)
	r.i16() // thermo type
	d.Formula = r.str16()
	d.SensorInfo = r.str32()
	if r.err != nil {
		return fail(r.err)
	}
	return ch, nil
}
