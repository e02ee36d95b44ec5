package catman

import (
	"fmt"
	"regexp"

	"github.com/rjboer/GoCatman/internal/dsp"
	"github.com/rjboer/GoCatman/internal/logging"
)

// timeName matches channel names that mark a time base.
var timeName = regexp.MustCompile(`(?i)time|zeit`)

// secondsUnit is the unit that makes a channel a time candidate.
const secondsUnit = "s"

// Group is one time channel and the value channels sampled against it. All
// channels in a group share the same length.
type Group struct {
	name      string
	fileName  string
	channelX  *Channel
	channelsY []*Channel
	channels  []*Channel

	interval       float64
	frequency      float64
	intervalString string
}

// Name is the time channel's name.
func (g *Group) Name() string { return g.name }

// FullName qualifies the group name with the file name.
func (g *Group) FullName() string { return qualify(g.fileName, g.name) }

// ChannelX returns the time channel.
func (g *Group) ChannelX() *Channel { return g.channelX }

// ChannelsY returns the value channels in descriptor order.
func (g *Group) ChannelsY() []*Channel { return append([]*Channel(nil), g.channelsY...) }

// Channels returns every channel of the group, time channel included, in
// descriptor order.
func (g *Group) Channels() []*Channel { return append([]*Channel(nil), g.channels...) }

// Interval is the sampling interval in seconds, taken from the second sample
// of the time channel.
func (g *Group) Interval() float64 { return g.interval }

// Frequency is 1/Interval, or 0 when the interval is 0.
func (g *Group) Frequency() float64 { return g.frequency }

// IntervalString renders Interval with a unit chosen by magnitude, e.g.
// "10.000ms".
func (g *Group) IntervalString() string { return g.intervalString }

// At returns the time value and every value channel's sample at index i.
func (g *Group) At(i int) (float64, []float64) {
	ys := make([]float64, len(g.channelsY))
	for j, ch := range g.channelsY {
		ys[j] = ch.data[i]
	}
	return g.channelX.data[i], ys
}

// Spectrum returns the magnitude spectrum of value channel i, with
// frequencies in Hz derived from the group's sampling frequency.
func (g *Group) Spectrum(i int) (freqs []float64, mags []float64) {
	return dsp.Spectrum(g.channelsY[i].data, g.frequency)
}

func (g *Group) String() string {
	return fmt.Sprintf("Group %q (%d Data-channels, %d Entries)", g.name, len(g.channelsY), g.channelX.desc.Length)
}

func newGroup(fileName string, timeCh *Channel, members []*Channel) *Group {
	g := &Group{
		name:     timeCh.desc.Name,
		fileName: fileName,
		channelX: timeCh,
		channels: members,
	}
	for _, ch := range members {
		if ch != timeCh {
			g.channelsY = append(g.channelsY, ch)
		}
	}
	if len(timeCh.data) > 1 {
		g.interval = timeCh.data[1]
	}
	if g.interval != 0 {
		g.frequency = 1 / g.interval
	}
	g.intervalString = formatInterval(g.interval)
	return g
}

// formatInterval picks s, ms, μs or ns by successive magnitude thresholds.
func formatInterval(iv float64) string {
	unit, fac := "s", 1.0
	if iv < 1 {
		unit, fac = "ms", 1e3
	}
	if iv < 1e-3 {
		unit, fac = "μs", 1e6
	}
	if iv < 1e-6 {
		unit, fac = "ns", 1e9
	}
	return fmt.Sprintf("%.3f%s", iv*fac, unit)
}

// group links value channels to time channels. Channels are bucketed by
// length; a bucket with a single channel cannot be paired and its channel is
// dropped. Buckets without a time channel keep their channels ungrouped.
func (s *session) group(channels []*Channel, log logging.Logger) ([]*Channel, []*Group) {
	if len(channels) == 0 {
		return channels, nil
	}

	var order []int32
	buckets := make(map[int32][]*Channel)
	for _, ch := range channels {
		l := ch.desc.Length
		if _, ok := buckets[l]; !ok {
			order = append(order, l)
		}
		buckets[l] = append(buckets[l], ch)
	}

	var groups []*Group
	for _, length := range order {
		if length <= 0 {
			continue
		}
		bucket := buckets[length]
		if len(bucket) < 2 {
			for _, ch := range bucket {
				ch.desc.Broken = true
				s.diag(log, logging.Warn, fmt.Errorf("%w: channel %q (length %d)", ErrInsufficientBucket, ch.desc.Name, length),
					"dropping channel without a time base", logging.F("channel", ch.desc.Name))
			}
			continue
		}

		timeCh := s.findTimeChannel(bucket, log)
		if timeCh == nil {
			s.diag(log, logging.Error, fmt.Errorf("%w: %d channels of length %d", ErrUnresolvedTimeChannel, len(bucket), length),
				"channel group does not contain a time channel and is not grouped", logging.F("length", length))
			continue
		}

		for _, ch := range bucket {
			if ch == timeCh {
				ch.isTime = true
				continue
			}
			ch.time = timeCh
			ch.isTime = false
		}
		g := newGroup(s.name, timeCh, bucket)
		log.Debug("group built",
			logging.F("group", g.name),
			logging.F("value_channels", len(g.channelsY)),
			logging.F("interval", g.intervalString))
		groups = append(groups, g)
	}

	kept := make([]*Channel, 0, len(channels))
	for _, ch := range channels {
		if !ch.desc.Broken {
			kept = append(kept, ch)
		}
	}
	return kept, groups
}

// findTimeChannel returns the first channel whose name marks it as time. If
// there is none, channels with unit "s" are offered to the resolver.
func (s *session) findTimeChannel(bucket []*Channel, log logging.Logger) *Channel {
	for _, ch := range bucket {
		if timeName.MatchString(ch.desc.Name) {
			return ch
		}
	}

	var candidates []*Channel
	for _, ch := range bucket {
		if ch.desc.Unit == secondsUnit {
			candidates = append(candidates, ch)
		}
	}
	if len(candidates) == 0 || s.cfg.Resolver == nil {
		return nil
	}
	picked, ok := s.cfg.Resolver.ResolveTimeChannel(candidates)
	if !ok || picked == nil {
		return nil
	}
	for _, ch := range candidates {
		if ch == picked {
			return ch
		}
	}
	log.Warn("resolver returned a channel that was not a candidate, ignoring it",
		logging.F("channel", picked.desc.Name))
	return nil
}
