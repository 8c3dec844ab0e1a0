package render

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"expectkit/internal/diff"
	"expectkit/internal/promise"
	"expectkit/internal/types"
)

// Inspector formats values as literal-like text.
type Inspector struct {
	Types  *types.Registry
	Styles *StyleSet

	MaxDepth      int
	LineWidth     int
	BinaryPreview int
}

// NewInspector creates an inspector with default limits.
func NewInspector(reg *types.Registry, styles *StyleSet) *Inspector {
	return &Inspector{
		Types:         reg,
		Styles:        styles,
		MaxDepth:      8,
		LineWidth:     80,
		BinaryPreview: 16,
	}
}

// Inspect returns the plain text form of v.
func (ins *Inspector) Inspect(v any) string {
	return ins.Pen(v).String()
}

// Pen renders v onto a new pen.
func (ins *Inspector) Pen(v any) *Pen {
	p := NewPen(ins.Styles)
	st := &inspectState{seen: make(map[types.Ref]bool)}
	ins.write(p, v, 0, st)
	return p
}

type inspectState struct {
	seen map[types.Ref]bool
}

func (ins *Inspector) write(p *Pen, v any, depth int, st *inspectState) {
	d := ins.Types.Classify(v)
	if fn := d.InspectFunc(); fn != nil {
		p.Text(fn(v, func(inner any) string {
			sub := p.Clone()
			ins.write(sub, inner, depth+1, st)
			return sub.String()
		}))
		return
	}

	if ref, ok := types.Identity(v); ok {
		if st.seen[ref] {
			p.Text("[Circular]", StyleKeyword)
			return
		}
		st.seen[ref] = true
		defer delete(st.seen, ref)
	}

	switch {
	case d.Is("undefined"):
		p.Text("undefined", StyleKeyword)
	case d.Is("null"):
		p.Text("null", StyleKeyword)
	case d.Is("boolean"):
		p.Text(fmt.Sprint(v), StyleKeyword)
	case d.Is("number"):
		p.Text(FormatNumber(v), StyleNumber)
	case d.Is("string"):
		p.Text(QuoteString(reflect.ValueOf(v).String()), StyleString)
	case d.Is("regexp"):
		p.Text("/"+v.(*regexp.Regexp).String()+"/", StyleString)
	case d.Is("date"):
		p.Text("new Date(", StyleKeyword).
			Text(QuoteString(v.(time.Time).Format(time.RFC3339Nano)), StyleString).
			Text(")", StyleKeyword)
	case d.Is("function"):
		p.Text(FunctionName(v), StyleKeyword)
	case d.Is("Promise"):
		ins.writePromise(p, v, depth, st)
	case d.Is("binaryArray"):
		ins.writeBinary(p, d.Name, v)
	case d.Is("array-like"):
		ins.writeSequence(p, d, v, depth, st)
	case d.Is("Error"):
		ins.writeError(p, v, depth, st)
	case d.Is("object"):
		if r, ok := types.AsRecord(v); ok {
			ins.writeRecord(p, r, depth, st)
			return
		}
		p.Text(fmt.Sprintf("%v", v))
	default:
		p.Text(fmt.Sprintf("%v", v))
	}
}

func (ins *Inspector) writePromise(p *Pen, v any, depth int, st *inspectState) {
	pr, ok := v.(*promise.Promise)
	if !ok {
		p.Text("Promise", StyleKeyword)
		return
	}
	switch pr.State() {
	case promise.Fulfilled:
		p.Text("Promise (fulfilled) => ", StyleKeyword)
		sub := p.Clone()
		ins.write(sub, pr.Value(), depth+1, st)
		p.Append(sub)
	case promise.Rejected:
		p.Text("Promise (rejected) => ", StyleKeyword)
		sub := p.Clone()
		ins.write(sub, pr.Reason(), depth+1, st)
		p.Append(sub)
	default:
		p.Text("Promise (pending)", StyleKeyword)
	}
}

func (ins *Inspector) writeBinary(p *Pen, name string, v any) {
	vals, width, _ := types.BinaryElements(v)
	p.Text(name+"([", StyleKeyword)
	limit := ins.BinaryPreview
	if limit <= 0 {
		limit = len(vals)
	}
	for i, x := range vals {
		if i == limit {
			p.Text(fmt.Sprintf(" /* %d more */ ", len(vals)-limit), StyleComment)
			break
		}
		if i > 0 {
			p.Text(", ")
		}
		p.Text(fmt.Sprintf("0x%0*X", width*2, x), StyleNumber)
	}
	p.Text("])", StyleKeyword)
}

func (ins *Inspector) writeSequence(p *Pen, d *types.Descriptor, v any, depth int, st *inspectState) {
	elems, _ := types.Elements(v)
	opening, closing := "[", "]"
	if d.Is("arguments") {
		opening, closing = "arguments(", ")"
	}
	if depth >= ins.MaxDepth && len(elems) > 0 {
		p.Text(opening + " ... " + closing)
		return
	}
	items := make([]*Pen, len(elems))
	for i, e := range elems {
		items[i] = p.Clone()
		if !types.IsHole(e) {
			ins.write(items[i], e, depth+1, st)
		}
	}
	ins.writeList(p, opening, closing, items)
}

func (ins *Inspector) writeError(p *Pen, v any, depth int, st *inspectState) {
	r, _ := types.AsRecord(v)
	if r == nil {
		p.Text(fmt.Sprint(v))
		return
	}
	if keys := r.Keys(); len(keys) == 1 && keys[0] == "message" {
		msg, _ := r.Own("message")
		p.Text(r.Constructor+"(", StyleKeyword).Text(QuoteString(fmt.Sprint(msg)), StyleString).Text(")", StyleKeyword)
		return
	}
	ins.writeRecord(p, r, depth, st)
}

func (ins *Inspector) writeRecord(p *Pen, r *types.Record, depth int, st *inspectState) {
	prefix, suffix := "", ""
	if r.Constructor != "" && r.Constructor != "Object" {
		prefix, suffix = r.Constructor+"(", ")"
	}
	keys := r.Keys()
	if depth >= ins.MaxDepth && len(keys) > 0 {
		p.Text(prefix + "{ ... }" + suffix)
		return
	}
	items := make([]*Pen, 0, len(keys))
	for _, k := range keys {
		val, _ := r.Own(k)
		if types.IsUndefined(val) {
			continue
		}
		item := p.Clone()
		item.Text(FormatKey(k), StyleKey).Text(": ")
		sub := p.Clone()
		ins.write(sub, val, depth+1, st)
		item.Append(sub)
		items = append(items, item)
	}
	p.Text(prefix)
	ins.writeList(p, "{", "}", items)
	p.Text(suffix)
}

// writeList lays items out on one line when they fit, else one per line.
func (ins *Inspector) writeList(p *Pen, opening, closing string, items []*Pen) {
	if len(items) == 0 {
		p.Text(opening + closing)
		return
	}
	width := len(opening) + len(closing) + 2
	multiline := false
	for _, it := range items {
		width += it.Width() + 2
		if it.IsMultiline() {
			multiline = true
		}
	}
	if !multiline && (ins.LineWidth <= 0 || width <= ins.LineWidth) {
		p.Text(opening + " ")
		for i, it := range items {
			if i > 0 {
				p.Text(", ")
			}
			p.Append(it)
		}
		p.Text(" " + closing)
		return
	}

	p.Text(opening)
	for i, it := range items {
		p.Nl().Text("  ")
		p.Block(it)
		if i < len(items)-1 {
			p.Text(",")
		}
	}
	p.Nl().Text(closing)
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// FormatKey renders a property name, quoting it unless it is an identifier.
func FormatKey(k string) string {
	if identifier.MatchString(k) {
		return k
	}
	return QuoteString(k)
}

// QuoteString renders s as a single-quoted, escaped literal.
func QuoteString(s string) string {
	return "'" + diff.EscapeString(s) + "'"
}

// FormatNumber renders any Go numeric value. Floats follow same-value
// conventions: NaN, Infinity, -Infinity and -0.
func FormatNumber(v any) string {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		bits := 64
		if rv.Kind() == reflect.Float32 {
			bits = 32
		}
		switch {
		case math.IsNaN(f):
			return "NaN"
		case math.IsInf(f, 1):
			return "Infinity"
		case math.IsInf(f, -1):
			return "-Infinity"
		case f == 0 && math.Signbit(f):
			return "-0"
		}
		abs := math.Abs(f)
		if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
			return strconv.FormatFloat(f, 'g', -1, bits)
		}
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	return fmt.Sprint(v)
}

// FunctionName renders a func value as "function name".
func FunctionName(v any) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return "function"
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "function"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if strings.Contains(name, ".func") || strings.HasPrefix(name, "func") {
		return "function"
	}
	return "function " + name
}
