package catman

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2, "2.000s"},
		{1, "1.000s"},
		{0.01, "10.000ms"},
		{0.001, "1.000ms"},
		{0.0005, "500.000μs"},
		{2e-9, "2.000ns"},
		{0, "0.000ns"},
	}
	for _, tt := range tests {
		if got := formatInterval(tt.in); got != tt.want {
			t.Errorf("formatInterval(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGroupInterval(t *testing.T) {
	f := mustDecode(t, buildFile(binary.LittleEndian, timeAndStrain(100)).data, quietConfig())
	g := f.Groups()[0]

	if g.Interval() != 0.01 {
		t.Errorf("Interval = %v, want 0.01", g.Interval())
	}
	if math.Abs(g.Frequency()-100) > 1e-9 {
		t.Errorf("Frequency = %v, want 100", g.Frequency())
	}
	if g.IntervalString() != "10.000ms" {
		t.Errorf("IntervalString = %q", g.IntervalString())
	}
	if got := g.String(); got != `Group "Time - 1" (1 Data-channels, 100 Entries)` {
		t.Errorf("String = %q", got)
	}
	x, ys := g.At(3)
	if x != ramp(100, 0.01)[3] || len(ys) != 1|| ys[0] != sine(100, 250)[3] {
		t.Errorf("At(3) = %v, %v", x, ys)
	}
	if diff := cmp.Diff([]string{"Time - 1", "Strain - 1"}, channelNames(g.Channels())); diff != "" {
		t.Errorf("Channels mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupShortTimeChannel(t *testing.T) {
	chans := []testChannel{
		{name: "time", unit: "s", length: 1, values: []float64{0}},
		{name: "Load", unit: "N", length: 1, values: []float64{4}},
	}
	g := mustDecode(t, buildFile(binary.LittleEndian, chans).data, quietConfig()).Groups()[0]
	if g.Interval() != 0 || g.Frequency() != 0 {
		t.Errorf("Interval/Frequency = %v/%v, want 0/0", g.Interval(), g.Frequency())
	}
}

func TestGroupZeroIntervalHasZeroFrequency(t *testing.T) {
	chans := []testChannel{
		{name: "Time", unit: "s", length: 3, values: []float64{0, 0, 0}},
		{name: "Load", unit: "N", length: 3, values: []float64{1, 2, 3}},
	}
	g := mustDecode(t, buildFile(binary.LittleEndian, chans).data, quietConfig()).Groups()[0]
	if g.Frequency() != 0 || math.IsInf(g.Frequency(), 0) {
		t.Errorf("Frequency = %v, want 0", g.Frequency())
	}
}

func TestTimeChannelSelection(t *testing.T) {
	tests := []struct {
		name     string
		chans    []testChannel
		resolver TimeResolver
		want     string
	}{
		{
			name: "name match is case insensitive",
			chans: []testChannel{
				{name: "Load", unit: "N"},
				{name: "TIME stamp", unit: "ms"},
			},
			want: "TIME stamp",
		},
		{
			name: "german name",
			chans: []testChannel{
				{name: "Messzeit", unit: "s"},
				{name: "Kraft", unit: "kN"},
			},
			want: "Messzeit",
		},
		{
			name: "first name match wins",
			chans: []testChannel{
				{name: "Strain", unit: "µm/m"},
				{name: "Time 1", unit: "s"},
				{name: "Time 2", unit: "s"},
			},
			want: "Time 1",
		},
		{
			name: "name match beats unit",
			chans: []testChannel{
				{name: "Clock", unit: "s"},
				{name: "Zeit 2", unit: "ms"},
			},
			resolver: SecondsUnitResolver{},
			want:     "Zeit 2",
		},
		{
			name: "seconds unit with resolver",
			chans: []testChannel{
				{name: "Load", unit: "N"},
				{name: "t", unit: "s"},
				{name: "u", unit: "s"},
			},
			resolver: SecondsUnitResolver{},
			want:     "t",
		},
		{
			name: "seconds unit declined by default",
			chans: []testChannel{
				{name: "Load", unit: "N"},
				{name: "t", unit: "s"},
			},
			want: "",
		},
		{
			name: "resolver picks second candidate",
			chans: []testChannel{
				{name: "t", unit: "s"},
				{name: "u", unit: "s"},
			},
			resolver: TimeResolverFunc(func(c []*Channel) (*Channel, bool) { return c[1], true }),
			want:     "u",
		},
		{
			name: "resolver picks a foreign channel",
			chans: []testChannel{
				{name: "t", unit: "s"},
				{name: "u", unit: "s"},
			},
			resolver: TimeResolverFunc(func([]*Channel) (*Channel, bool) { return &Channel{}, true }),
			want:     "",
		},
		{
			name: "unit must match exactly",
			chans: []testChannel{
				{name: "a", unit: "S"},
				{name: "b", unit: "sec"},
			},
			resolver: SecondsUnitResolver{},
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chans := make([]testChannel, len(tt.chans))
			for i, tc := range tt.chans {
				tc.length = 5
				tc.values = ramp(5, float64(i+1))
				chans[i] = tc
			}
			cfg := quietConfig()
			cfg.Resolver = tt.resolver
			f := mustDecode(t, buildFile(binary.LittleEndian, chans).data, cfg)

			groups := f.Groups()
			if tt.want == "" {
				if len(groups) != 0 {
					t.Fatalf("got group %q, want none", groups[0].Name())
				}
				if !errors.Is(f.Err(), ErrUnresolvedTimeChannel) {
					t.Errorf("Err() = %v, want ErrUnresolvedTimeChannel", f.Err())
				}
				return
			}
			if len(groups) != 1 {
				t.Fatalf("got %d groups, want 1", len(groups))
			}
			if got := groups[0].Name(); got != tt.want {
				t.Errorf("time channel = %q, want %q", got, tt.want)
			}
			if len(groups[0].ChannelsY()) != len(chans)-1 {
				t.Errorf("got %d value channels, want %d", len(groups[0].ChannelsY()), len(chans)-1)
			}
		})
	}
}

func TestGroupsFollowFirstSeenLength(t *testing.T) {
	chans := []testChannel{
		{name: "Slow time", unit: "s", length: 4, values: ramp(4, 1)},
		{name: "Fast time", unit: "s", length: 8, values: ramp(8, 0.5)},
		{name: "Fast load", unit: "N", length: 8, values: ramp(8, 2)},
		{name: "Slow load", unit: "N", length: 4, values: ramp(4, 3)},
		{name: "Fast temp", unit: "C", length: 8, values: ramp(8, 4)},
	}
	f := mustDecode(t, buildFile(binary.LittleEndian, chans).data, quietConfig())

	var names []string
	for _, g := range f.Groups() {
		names = append(names, g.Name())
	}
	if diff := cmp.Diff([]string{"Slow time", "Fast time"}, names); diff != "" {
		t.Errorf("group order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Fast load", "Fast temp"}, channelNames(f.Groups()[1].ChannelsY())); diff != "" {
		t.Errorf("value channels mismatch (-want +got):\n%s", diff)
	}
	for _, g := range f.Groups() {
		for _, ch := range g.Channels() {
			if ch.Length() != g.ChannelX().Length() {
				t.Errorf("channel %q has length %d in group of length %d", ch.Name(), ch.Length(), g.ChannelX().Length())
			}
		}
	}
}

func TestGroupSpectrum(t *testing.T) {
	const n, rate, tone = 64, 1000.0, 125.0
	times := make([]float64, n)
	values := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / rate
		values[i] = math.Sin(2 * math.Pi * tone * times[i])
	}
	chans := []testChannel{
		{name: "Time", unit: "s", length: n, values: times},
		{name: "Vibration", unit: "g", length: n, values: values},
	}
	g := mustDecode(t, buildFile(binary.LittleEndian, chans).data, quietConfig()).Groups()[0]

	freqs, mags := g.Spectrum(0)
	peak := 0
	for i := range mags {
		if mags[i] > mags[peak] {
			peak = i
		}
	}
	if math.Abs(freqs[peak]-tone) > 1e-6 {
		t.Errorf("peak at %v Hz, want %v Hz", freqs[peak], tone)
	}
}
