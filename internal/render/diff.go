package render

import (
	"fmt"
	"strings"

	"expectkit/internal/diff"
	"expectkit/internal/types"
)

// Diff renders a diff tree. The result is empty for an all-equal tree.
func (ins *Inspector) Diff(n *diff.Node) *Pen {
	p := NewPen(ins.Styles)
	if n == nil || n.IsEqual() {
		return p
	}
	switch {
	case n.Kind == diff.Suppressed:
		p.Text(n.Note, StyleComment)
	case n.Note != "" && len(n.Children) == 0 && (n.Kind == diff.Mismatch || n.Kind == diff.Changed):
		p.Text(n.Note, StyleComment)
	case len(n.Children) > 0:
		ins.writeContainer(p, n)
	case n.Rows != nil:
		ins.writeRows(p, n, "")
	case n.Chars != nil:
		ins.writeChars(p, n.Chars, "")
	default:
		p.Append(ins.Pen(n.Actual))
		p.Text(" // should equal ", StyleComment)
		p.Block(ins.Pen(n.Expected))
	}
	return p
}

func (ins *Inspector) isSequence(n *diff.Node) bool {
	if ins.Types != nil {
		if d, err := ins.Types.Lookup(n.Type); err == nil {
			return d.Is("array-like")
		}
	}
	for _, c := range n.Children {
		if _, ok := c.Key.(int); ok {
			return true
		}
	}
	return false
}

type diffEntry struct {
	pen    *Pen
	group  int
	target bool
	source bool
}

func (ins *Inspector) writeContainer(p *Pen, n *diff.Node) {
	sequence := ins.isSequence(n)

	opening, closing := "{", "}"
	if sequence {
		opening, closing = "[", "]"
		if n.Type == "arguments" {
			opening, closing = "arguments(", ")"
		}
	} else if n.Constructor != "" && n.Constructor != "Object" {
		opening, closing = n.Constructor+"({", "})"
	}

	lastValue := -1
	for i, c := range n.Children {
		if c.Kind != diff.Missing && c.Kind != diff.Inserted {
			lastValue = i
		}
	}

	var entries []diffEntry
	for i, c := range n.Children {
		if c.Kind == diff.Inserted {
			if k := len(entries); k > 0 && entries[k-1].target && entries[k-1].group == c.Group {
				continue
			}
			entries = append(entries, diffEntry{pen: p.Clone(), group: c.Group, target: true})
			continue
		}
		key := ""
		if !sequence {
			key = FormatKey(fmt.Sprint(c.Key))
		}
		e := diffEntry{pen: p.Clone(), group: c.Group, source: c.Kind == diff.Moved}
		ins.writeEntry(e.pen, key, c, i < lastValue)
		entries = append(entries, e)
	}

	p.Text(opening)
	for _, line := range layoutEntries(entries) {
		p.Nl()
		p.Text(line.gutter, StyleMove)
		p.Append(line.pen)
	}
	p.Nl().Text(closing)
}

type gutterLine struct {
	gutter string
	pen    *Pen
}

// layoutEntries flattens entries into lines and draws a bracket for every
// move group, from the arrow at the target position to the moved entries.
func layoutEntries(entries []diffEntry) []gutterLine {
	type span struct{ top, bottom, target int }
	var lines []gutterLine
	firstLine := make([]int, len(entries))
	spans := make(map[int]*span)
	var order []int

	for i, e := range entries {
		firstLine[i] = len(lines)
		for _, l := range splitPen(e.pen) {
			lines = append(lines, gutterLine{pen: l})
		}
		if e.group == 0 || (!e.target && !e.source) {
			continue
		}
		s, ok := spans[e.group]
		if !ok {
			s = &span{top: firstLine[i], bottom: firstLine[i], target: -1}
			spans[e.group] = s
			order = append(order, e.group)
		}
		s.top = min(s.top, firstLine[i])
		s.bottom = max(s.bottom, firstLine[i])
		if e.target {
			s.target = firstLine[i]
		}
	}

	sources := make(map[int]bool)
	for i, e := range entries {
		if e.source {
			sources[firstLine[i]] = true
		}
	}

	if len(order) == 0 {
		for i := range lines {
			lines[i].gutter = "  "
		}
		return lines
	}
	for i := range lines {
		var g strings.Builder
		for _, group := range order {
			s := spans[group]
			switch {
			case i == s.target && i == s.top:
				g.WriteString("┌─▷")
			case i == s.target:
				g.WriteString("└─▷")
			case sources[i] && i == s.top:
				g.WriteString("┌──")
			case sources[i] && i == s.bottom:
				g.WriteString("└──")
			case sources[i] && i > s.top && i < s.bottom:
				g.WriteString("├──")
			case i > s.top && i < s.bottom:
				g.WriteString("│  ")
			default:
				g.WriteString("   ")
			}
		}
		g.WriteString(" ")
		lines[i].gutter = g.String()
	}
	return lines
}

// splitPen returns one pen per line of p; an empty pen yields one empty line.
func splitPen(p *Pen) []*Pen {
	if len(p.lines) == 0 {
		return []*Pen{p.Clone()}
	}
	out := make([]*Pen, len(p.lines))
	for i, l := range p.lines {
		out[i] = &Pen{lines: [][]Segment{l}, styles: p.styles}
	}
	return out
}

func (ins *Inspector) writeEntry(p *Pen, key string, n *diff.Node, comma bool) {
	if n.Kind == diff.Missing {
		p.Text("// missing ", StyleComment)
		if types.IsUndefined(n.Expected) {
			p.Text(key, StyleComment)
			return
		}
		if key != "" {
			p.Text(key+": ", StyleComment)
		}
		p.Block(ins.Pen(n.Expected))
		return
	}

	if key != "" {
		p.Text(key, StyleKey).Text(": ")
	}
	sep := ""
	if comma {
		sep = ","
	}

	if n.Kind == diff.Changed && len(n.Children) > 0 {
		sub := p.Clone()
		ins.writeContainer(sub, n)
		p.Append(sub).Text(sep)
		return
	}

	p.Append(ins.Pen(n.Actual)).Text(sep)
	switch n.Kind {
	case diff.Equal:
	case diff.Extra:
		p.Text(" // should be removed", StyleComment)
	case diff.Moved:
		p.Text(" // should be moved", StyleComment)
	case diff.Suppressed:
		p.Text(" // "+n.Note, StyleComment)
	case diff.Changed:
		if n.Note == "" {
			ins.writeExpected(p, n)
			break
		}
		// Explanation only, e.g. a failed nested assertion.
		comment := p.Clone()
		for i, line := range strings.Split(n.Note, "\n") {
			if i > 0 {
				comment.Nl()
			}
			comment.Text("// "+line, StyleComment)
		}
		p.Text(" ").Block(comment)
	default:
		ins.writeExpected(p, n)
	}
}

func (ins *Inspector) writeExpected(p *Pen, n *diff.Node) {
	comment := p.Clone()
	comment.Text("// should equal ", StyleComment).Append(ins.Pen(n.Expected))
	switch {
	case n.Note != "":
		comment.Nl().Text("// "+n.Note, StyleComment)
	case n.Rows != nil:
		comment.Nl().Text("//", StyleComment).Nl()
		ins.writeRows(comment, n, "// ")
	case n.Chars != nil:
		comment.Nl().Text("//", StyleComment).Nl()
		ins.writeChars(comment, n.Chars, "// ")
	}
	p.Text(" ").Block(comment)
}

// writeChars writes a "-actual" and a "+expected" line with the differing
// spans highlighted.
func (ins *Inspector) writeChars(p *Pen, changes []diff.Change, prefix string) {
	if prefix != "" {
		p.Text(prefix, StyleComment)
	}
	p.Text("-", StyleRemoved)
	for _, c := range changes {
		switch c.Op {
		case diff.OpEqual:
			p.Text(c.Text, StyleRemoved)
		case diff.OpDelete:
			p.Text(c.Text, StyleRemovedHi)
		}
	}
	p.Nl()
	if prefix != "" {
		p.Text(prefix, StyleComment)
	}
	p.Text("+", StyleAdded)
	for _, c := range changes {
		switch c.Op {
		case diff.OpEqual:
			p.Text(c.Text, StyleAdded)
		case diff.OpInsert:
			p.Text(c.Text, StyleAddedHi)
		}
	}
}

// writeRows writes hex rows. Equal rows are shown once; differing rows as
// a "-" actual and a "+" expected line.
func (ins *Inspector) writeRows(p *Pen, n *diff.Node, prefix string) {
	width := max(n.Width, 1)
	perRow := 0
	for _, r := range n.Rows {
		perRow = max(perRow, len(r.Actual), len(r.Expected))
	}
	for i, r := range n.Rows {
		if i > 0 {
			p.Nl()
		}
		if prefix != "" {
			p.Text(prefix, StyleComment)
		}
		if !r.Differs {
			p.Text(" " + HexRow(r.Actual, width, perRow))
			continue
		}
		p.Text("-"+HexRow(r.Actual, width, perRow), StyleRemoved).Nl()
		if prefix != "" {
			p.Text(prefix, StyleComment)
		}
		p.Text("+"+HexRow(r.Expected, width, perRow), StyleAdded)
	}
}

// HexRow formats one row of elements as upper-case hex padded to perRow
// cells. Byte rows get an ASCII gutter.
func HexRow(vals []uint64, width, perRow int) string {
	var b strings.Builder
	cell := width * 2
	for i := 0; i < perRow; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i < len(vals) {
			fmt.Fprintf(&b, "%0*X", cell, vals[i])
		} else {
			b.WriteString(strings.Repeat(" ", cell))
		}
	}
	if width == 1 {
		b.WriteString(" │")
		for _, v := range vals {
			if v >= 0x20 && v < 0x7f {
				b.WriteByte(byte(v))
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("│")
	}
	return b.String()
}
