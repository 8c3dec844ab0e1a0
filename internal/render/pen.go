// Package render turns values and diff trees into line-structured, styled
// text. Output is built on a Pen and serialized either as plain text or as
// ANSI text colored by a lipgloss theme.
package render

import (
	"fmt"
	"strings"
	"sync"
)

// Segment is a run of text with an optional style name.
type Segment struct {
	Style string
	Text  string
}

// StyleFunc writes a named style onto a pen.
type StyleFunc func(p *Pen, args ...any)

// StyleSet holds named styles. It is safe for concurrent use.
type StyleSet struct {
	mu     sync.RWMutex
	styles map[string]StyleFunc
}

// NewStyleSet creates an empty style set.
func NewStyleSet() *StyleSet {
	return &StyleSet{styles: make(map[string]StyleFunc)}
}

// Add registers or replaces a style.
func (s *StyleSet) Add(name string, fn StyleFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.styles[name] = fn
}

// Get returns a style by name.
func (s *StyleSet) Get(name string) (StyleFunc, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.styles[name]
	return fn, ok
}

// Names returns the registered style names.
func (s *StyleSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.styles))
	for name := range s.styles {
		out = append(out, name)
	}
	return out
}

// Clone returns an independent copy.
func (s *StyleSet) Clone() *StyleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := NewStyleSet()
	for k, v := range s.styles {
		c.styles[k] = v
	}
	return c
}

// Pen accumulates styled lines.
type Pen struct {
	lines  [][]Segment
	indent int
	styles *StyleSet
}

// NewPen creates an empty pen. styles may be nil.
func NewPen(styles *StyleSet) *Pen {
	return &Pen{styles: styles}
}

// Clone returns an empty pen sharing the style set.
func (p *Pen) Clone() *Pen {
	return NewPen(p.styles)
}

func (p *Pen) current() *[]Segment {
	if len(p.lines) == 0 {
		p.lines = append(p.lines, nil)
	}
	return &p.lines[len(p.lines)-1]
}

// Text appends text with an optional style. Embedded newlines start new
// lines.
func (p *Pen) Text(s string, style ...string) *Pen {
	name := ""
	if len(style) > 0 {
		name = style[0]
	}
	for i, part := range strings.Split(s, "\n") {
		if i > 0 {
			p.Nl()
		}
		if part == "" {
			continue
		}
		line := p.current()
		*line = append(*line, Segment{Style: name, Text: part})
	}
	return p
}

// Nl starts a new line.
func (p *Pen) Nl() *Pen {
	p.current()
	p.lines = append(p.lines, nil)
	return p
}

// IndentLines increases the indentation written by Indent.
func (p *Pen) IndentLines() *Pen {
	p.indent++
	return p
}

// OutdentLines decreases the indentation written by Indent.
func (p *Pen) OutdentLines() *Pen {
	if p.indent > 0 {
		p.indent--
	}
	return p
}

// Indent writes the current indentation.
func (p *Pen) Indent() *Pen {
	if p.indent > 0 {
		p.Text(strings.Repeat("  ", p.indent))
	}
	return p
}

// Append continues the current line with the first line of o and adds the
// rest of o as new lines.
func (p *Pen) Append(o *Pen) *Pen {
	for i, line := range o.lines {
		if i > 0 {
			p.Nl()
		}
		cur := p.current()
		*cur = append(*cur, line...)
	}
	return p
}

// Block places o at the current column: every line of o after the first
// is padded to start where the first one did.
func (p *Pen) Block(o *Pen) *Pen {
	col := p.width(len(p.lines) - 1)
	pad := strings.Repeat(" ", col)
	for i, line := range o.lines {
		if i > 0 {
			p.Nl()
			if col > 0 {
				p.Text(pad)
			}
		}
		cur := p.current()
		*cur = append(*cur, line...)
	}
	return p
}

// Style invokes a named style from the pen's style set. Unknown styles
// write their first argument unstyled.
func (p *Pen) Style(name string, args ...any) *Pen {
	if fn, ok := p.styles.Get(name); ok {
		fn(p, args...)
		return p
	}
	if len(args) > 0 {
		p.Text(fmt.Sprint(args[0]), name)
	}
	return p
}

// IsEmpty reports whether nothing was written.
func (p *Pen) IsEmpty() bool {
	for _, l := range p.lines {
		if len(l) > 0 {
			return false
		}
	}
	return true
}


// IsMultiline reports whether the pen holds more than one line.
func (p *Pen) IsMultiline() bool { return len(p.lines) > 1 }

func (p *Pen) width(i int) int {
	if i < 0 || i >= len(p.lines) {
		return 0
	}
	n := 0
	for _, s := range p.lines[i] {
		n += len([]rune(s.Text))
	}
	return n
}

// Width returns the length of the longest line.
func (p *Pen) Width() int {
	w := 0
	for i := range p.lines {
		w = max(w, p.width(i))
	}
	return w
}

// String serializes the pen as plain text.
func (p *Pen) String() string {
	return p.Render(nil)
}

// Render serializes the pen, coloring segments with theme. A nil theme
// yields plain text.
func (p *Pen) Render(theme *Theme) string {
	var b strings.Builder
	for i, line := range p.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, s := range line {
			b.WriteString(theme.Apply(s.Style, s.Text))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
