package catman

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TimeResolver picks a time channel for a length bucket in which no channel
// name marks one. candidates are the bucket's channels whose unit is exactly
// "s", in descriptor order. Returning false leaves the bucket ungrouped.
type TimeResolver interface {
	ResolveTimeChannel(candidates []*Channel) (*Channel, bool)
}

// TimeResolverFunc adapts a function to TimeResolver.
type TimeResolverFunc func(candidates []*Channel) (*Channel, bool)

func (f TimeResolverFunc) ResolveTimeChannel(candidates []*Channel) (*Channel, bool) {
	return f(candidates)
}

// DeclineResolver never picks a channel. It is the default.
type DeclineResolver struct{}

func (DeclineResolver) ResolveTimeChannel([]*Channel) (*Channel, bool) { return nil, false }

// SecondsUnitResolver accepts the first candidate with unit "s".
type SecondsUnitResolver struct{}

func (SecondsUnitResolver) ResolveTimeChannel(candidates []*Channel) (*Channel, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

// PromptResolver asks a person to confirm each candidate in turn. Only an
// answer of "y" accepts; end of input declines.
type PromptResolver struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewPromptResolver reads answers from in and writes questions to out.
func NewPromptResolver(in io.Reader, out io.Writer) *PromptResolver {
	return &PromptResolver{in: bufio.NewReader(in), out: out}
}

func (p *PromptResolver) ResolveTimeChannel(candidates []*Channel) (*Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range candidates {
		fmt.Fprintf(p.out, "Is '%s' your time/reference channel? [y/n] ", ch.Name())
		line, err := p.in.ReadString('\n')
		if strings.TrimSpace(line) == "y" {
			return ch, true
		}
		if err != nil {
			return nil, false
		}
	}
	return nil, false
}
