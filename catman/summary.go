package catman

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Dataset pairs a value channel with its time base.
type Dataset struct {
	X     []float64
	Y     []float64
	Label string // "<name>[<unit>]"
	Title string
}

// ChannelsByName returns the channels whose names equal one of names,
// ordered by names and then by descriptor order.
func (f *File) ChannelsByName(names ...string) []*Channel {
	var out []*Channel
	for _, name := range names {
		for _, ch := range f.channels {
			if ch.desc.Name == name {
				out = append(out, ch)
			}
		}
	}
	return out
}

// Datasets returns one Dataset for every grouped value channel whose name
// contains any of the given substrings.
func (f *File) Datasets(substrings ...string) []Dataset {
	var out []Dataset
	for _, ch := range f.channels {
		if ch.time == nil || !containsAny(ch.desc.Name, substrings) {
			continue
		}
		out = append(out, Dataset{
			X:     ch.time.Data(),
			Y:     ch.Data(),
			Label: fmt.Sprintf("%s[%s]", ch.desc.Name, ch.desc.Unit),
			Title: ch.desc.Name,
		})
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WriteSummary writes each group name followed by its value channels and
// their sample counts.
func (f *File) WriteSummary(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, g := range f.groups {
		fmt.Fprintln(bw, "---------")
		fmt.Fprintf(bw, "%s (%s, %.3f Hz)\n", g.name, g.intervalString, g.frequency)
		for _, ch := range g.channelsY {
			fmt.Fprintf(bw, "\t%s (%d)\n", ch.desc.Name, len(ch.data))
		}
	}
	return bw.Flush()
}
