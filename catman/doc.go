// Package catman decodes catman binary measurement files into numeric
// channels and links every value channel to the time channel it was sampled
// against.
//
// A file is laid out as follows. Every multi-byte value uses the configured
// byte order (little-endian by default). str16 is an int16 length followed by
// that many bytes, str32 the same with an int32 length.
//
//	header =
//	  int16  file id
//	  int32  data offset (absolute offset of the payload region)
//	  str16  comment
//	  32 x str16 reserved
//	  int16  channel count (N)
//	  int32  max channel length, 0 = unbounded
//	  N x int32 channel lengths (ignored)
//	  int32  reduction factor (ignored)
//
//	descriptor (repeated N times) =
//	  int16  index
//	  int32  length (samples)
//	  str16  name, str16 unit, str16 comment
//	  int16  format (0 numeric, 1 string, 2 binary)
//	  int16  dw
//	  double acquisition timestamp (serial days)
//	  int32  extended header length, followed by the extended header
//	  byte   linearization mode, byte user scale
//	  byte   P, then P x double calibration points (ignored)
//	  int16  thermo type (ignored)
//	  str16  formula, str32 sensor info
//
//	payload (at data offset, one span per usable channel in descriptor order) =
//	  length x double                   export format 0
//	  length x float                    export format 1
//	  double min, double max,
//	  length x uint16                   export format 2, value = raw*(max-min)/32767 + min
//
// The extended header has a fixed 148 byte layout (see ExtendedHeader). Its
// declared length always wins: when the layout and the declared length
// disagree the decoder skips to the declared end and assumes doubles.
//
// The format does not record which channel is the time base. Channels of
// equal length are assumed to share one; the first channel whose name
// contains "time" or "zeit" (any case) becomes the group's time channel.
// Buckets without such a name can be resolved with a TimeResolver.
package catman
