package expect

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"expectkit/internal/assertion"
	"expectkit/internal/compare"
	"expectkit/internal/diff"
	"expectkit/internal/failure"
	"expectkit/internal/promise"
	"expectkit/internal/render"
	"expectkit/internal/types"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func registerBuiltins(r *assertion.Registry[Handler]) {
	// Identity and equality.
	r.MustRegister("<any> [not] to be <any>", toBe)
	r.MustRegister("<any> [not] to equal <any>", toEqual)
	r.MustRegister("<any> [not] to be (ok|truthy)", func(c *Context) (any, error) {
		return nil, c.Verify(truthy(c.Subject))
	})
	r.MustRegister("<any> [not] to be true", func(c *Context) (any, error) {
		return nil, c.Verify(c.Subject == true)
	})
	r.MustRegister("<any> [not] to be false", func(c *Context) (any, error) {
		return nil, c.Verify(c.Subject == false)
	})
	r.MustRegister("<any> [not] to be undefined", func(c *Context) (any, error) {
		return nil, c.Verify(types.IsUndefined(c.Subject))
	})
	r.MustRegister("<any> [not] to be null", func(c *Context) (any, error) {
		return nil, c.Verify(types.IsNil(c.Subject))
	})
	r.MustRegister("<any> [not] to be (a|an) <string>", toBeA)
	r.MustRegister("<any> to inspect as <string>", func(c *Context) (any, error) {
		text := c.Inspect(c.Subject)
		if text == c.Arg(0) {
			return text, nil
		}
		return nil, c.FailWithDiff(text, c.Arg(0))
	})

	// Properties.
	r.MustRegister("<object> [not] to [only] have [own] properties <array>", haveProperties,
		assertion.WithExclusiveFlags("not", "only", "to only have properties"),
		assertion.WithExclusiveFlags("own", "only", "to only have properties"))
	r.MustRegister("<object> to have [own] properties <object>", havePropertyValues)
	r.MustRegister("<object> [not] to have [own] property <string> <any?>", haveProperty)
	r.MustRegister("<Error> to have message <any>", func(c *Context) (any, error) {
		msg := c.Subject.(error).Error()
		phrase := "to satisfy"
		if _, ok := c.Arg(0).(string); ok {
			phrase = "to equal"
		}
		if _, err := c.Call(msg, phrase, c.Arg(0)); err != nil {
			return nil, err
		}
		return msg, nil
	})
	r.MustRegister("<any> [not] to satisfy <any>", toSatisfy)

	// Strings and collections.
	r.MustRegister("<string> [not] to match <regexp>", func(c *Context) (any, error) {
		m := c.Arg(0).(*regexp.Regexp).FindStringSubmatch(c.Subject.(string))
		if err := c.Verify(m != nil); err != nil {
			return nil, err
		}
		return m, nil
	})
	r.MustRegister("<string> [not] to contain <string+>", func(c *Context) (any, error) {
		s := c.Subject.(string)
		return nil, c.verifyEach(func(arg any) bool { return strings.Contains(s, arg.(string)) })
	})
	r.MustRegister("<array-like> [not] to contain <any+>", func(c *Context) (any, error) {
		elems, _ := types.Elements(c.Subject)
		var cmpErr error
		err := c.verifyEach(func(arg any) bool {
			for _, e := range elems {
				eq, err := c.Equal(e, arg)
				if err != nil {
					cmpErr = err
					return false
				}
				if eq {
					return true
				}
			}
			return false
		})
		if cmpErr != nil {
			return nil, cmpErr
		}
		return nil, err
	})
	r.MustRegister("<string> [not] to have length <number>", func(c *Context) (any, error) {
		return haveLength(c, utf8.RuneCountInString(c.Subject.(string)))
	})
	r.MustRegister("<array-like> [not] to have length <number>", func(c *Context) (any, error) {
		elems, _ := types.Elements(c.Subject)
		return haveLength(c, len(elems))
	})
	r.MustRegister("<string> [not] to be empty", func(c *Context) (any, error) {
		return nil, c.Verify(c.Subject.(string) == "")
	})
	r.MustRegister("<array-like> [not] to be empty", func(c *Context) (any, error) {
		elems, _ := types.Elements(c.Subject)
		return nil, c.Verify(len(elems) == 0)
	})
	r.MustRegister("<object> [not] to be empty", func(c *Context) (any, error) {
		rec := propertiesOf(c.Subject)
		return nil, c.Verify(len(definedKeys(rec)) == 0)
	})

	// Asynchronous outcomes. Functions are called and their outcome treated
	// as a promise: an error result or a panic counts as a rejection.
	for _, subject := range []string{"<Promise>", "<function>"} {
		r.MustRegister(subject+" to be rejected", toBeRejected)
		r.MustRegister(subject+" to be rejected with <any>", toBeRejectedWith)
		r.MustRegister(subject+" when rejected <assertion?>", whenRejected)
		r.MustRegister(subject+" to be fulfilled", toBeFulfilled)
		r.MustRegister(subject+" when fulfilled <assertion?>", whenFulfilled)
	}
	r.MustRegister("<function> [not] to throw <any?>", toThrow)
	r.MustRegister("<function> to error <any?>", toError)

	// Transformations handing their result to a continuation.
	r.MustRegister("<array-like> [when] sorted by <function> <assertion?>", sortedBy)
	r.MustRegister("<array-like> [when] sorted numerically <assertion?>", sortedNumerically)
	r.MustRegister("<Buffer> [when] decoded as <string> <assertion?>", decodedAs)
}

func toBe(c *Context) (any, error) {
	same := compare.SameValue(c.Subject, c.Arg(0))
	if same != c.Negated() {
		return nil, nil
	}
	_, sa := c.Subject.(string)
	_, sb := c.Arg(0).(string)
	if sa && sb {
		return nil, c.FailWithDiff(c.Subject, c.Arg(0))
	}
	return nil, c.Fail()
}

func toEqual(c *Context) (any, error) {
	eq, err := c.Equal(c.Subject, c.Arg(0))
	if err != nil {
		return nil, err
	}
	if eq != c.Negated() {
		return nil, nil
	}
	return nil, c.FailWithDiff(c.Subject, c.Arg(0))
}

func truthy(v any) bool {
	if types.IsNil(v) || types.IsUndefined(v) {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := compare.AsFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

func toBeA(c *Context) (any, error) {
	name := c.Arg(0).(string)
	if !c.inst.types.Has(name) {
		return nil, failure.Usage(failure.ErrInvalidArgument, "%s\n  Unknown type: %s", c.Headline(), name)
	}
	return nil, c.Verify(c.Is(c.Subject, name))
}

// verifyEach passes when every argument satisfies ok, or under "not" when
// none does.
func (c *Context) verifyEach(ok func(arg any) bool) error {
	for _, arg := range c.Args {
		if ok(arg) == c.Negated() {
			return c.Fail()
		}
	}
	return nil
}

func haveLength(c *Context, n int) (any, error) {
	want, ok := compare.AsFloat(c.Arg(0))
	if !ok {
		return nil, failure.Usage(failure.ErrInvalidArgument, "%s\n  Length must be a number", c.Headline())
	}
	if c.Negated() || float64(n) == want {
		return nil, c.Verify(float64(n) == want)
	}
	_, err := c.Call(n, "to be", c.Arg(0))
	return nil, err
}

// propertiesOf presents v as a record. Sequences expose their indices.
func propertiesOf(v any) *types.Record {
	if rec, ok := types.AsRecord(v); ok {
		return rec
	}
	rec := types.NewRecord(types.TypeName(v))
	if elems, ok := types.Elements(v); ok {
		for k, e := range elems {
			if !types.IsHole(e) {
				rec.Set(render.FormatNumber(k), e)
			}
		}
	}
	return rec
}

func definedKeys(rec *types.Record) []string {
	var out []string
	for _, k := range rec.Keys() {
		if v, _ := rec.Own(k); !types.IsUndefined(v) {
			out = append(out, k)
		}
	}
	return out
}

func lookupProperty(rec *types.Record, key string, own bool) (any, bool) {
	var (
		v  any
		ok bool
	)
	if own {
		v, ok = rec.Own(key)
	} else {
		v, ok = rec.Get(key)
	}
	if !ok || types.IsUndefined(v) {
		return nil, false
	}
	return v, true
}

// propertyNames validates a property name list: names are strings or
// integral numbers.
func propertyNames(c *Context, list any) ([]string, error) {
	elems, _ := types.Elements(list)
	names := make([]string, 0, len(elems))
	var invalid []string
	for _, e := range elems {
		switch {
		case c.Is(e, "string"):
			names = append(names, reflect.ValueOf(e).String())
		case c.Is(e, "number"):
			f, _ := compare.AsFloat(e)
			if f != math.Trunc(f) {
				invalid = append(invalid, c.Inspect(e))
				continue
			}
			names = append(names, render.FormatNumber(e))
		default:
			invalid = append(invalid, c.Inspect(e))
		}
	}
	if len(invalid) > 0 {
		return nil, failure.Usage(failure.ErrInvalidArgument,
			"%s\n  All expected properties must be passed as strings, symbols, or numbers, but these are not:\n%s",
			c.Headline(), failure.Indent(strings.Join(invalid, "\n"), 4))
	}
	return names, nil
}

func haveProperties(c *Context) (any, error) {
	names, err := propertyNames(c, c.Arg(0))
	if err != nil {
		return nil, err
	}
	rec := propertiesOf(c.Subject)
	own := c.Flag("own")
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	node := &diff.Node{Kind: diff.Changed, Type: "object", Constructor: rec.Constructor, Actual: c.Subject}
	ok := true
	for _, k := range definedKeys(rec) {
		v, _ := rec.Own(k)
		child := &diff.Node{Kind: diff.Equal, Key: k, Actual: v, Expected: v}
		switch {
		case c.Negated() && wanted[k]:
			child.Kind = diff.Extra
			ok = false
		case c.Flag("only") && !wanted[k]:
			child.Kind = diff.Extra
			ok = false
		}
		node.Children = append(node.Children, child)
	}
	for _, n := range names {
		if _, present := lookupProperty(rec, n, own); present {
			if _, isOwn := rec.Own(n); !isOwn && !c.Negated() {
				// Inherited property listed explicitly.
				v, _ := rec.Get(n)
				node.Children = append(node.Children, &diff.Node{Kind: diff.Equal, Key: n, Actual: v, Expected: v})
			}
			if c.Negated() {
				ok = false
			}
			continue
		}
		if !c.Negated() {
			node.Children = append(node.Children, &diff.Node{Kind: diff.Missing, Key: n, Expected: types.Undefined})
			ok = false
		}
	}
	if ok {
		return nil, nil
	}
	return nil, c.FailWithNode(node.Settle())
}

func havePropertyValues(c *Context) (any, error) {
	spec, ok := types.AsRecord(c.Arg(0))
	if !ok {
		return nil, failure.Usage(failure.ErrInvalidArgument, "%s\n  Expected properties must be an object", c.Headline())
	}
	rec := propertiesOf(c.Subject)
	own := c.Flag("own")

	node := &diff.Node{Kind: diff.Changed, Type: "object", Constructor: rec.Constructor, Actual: c.Subject, Expected: c.Arg(0)}
	listed := make(map[string]bool)
	for _, k := range spec.Keys() {
		listed[k] = true
	}
	for _, k := range definedKeys(rec) {
		v, _ := rec.Own(k)
		if !listed[k] {
			node.Children = append(node.Children, &diff.Node{Kind: diff.Equal, Key: k, Actual: v, Expected: v})
			continue
		}
		sv, _ := spec.Own(k)
		child, err := c.Diff(v, sv)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, withKey(child, k))
	}
	for _, k := range spec.Keys() {
		if _, isOwn := rec.Own(k); isOwn {
			continue
		}
		sv, _ := spec.Own(k)
		if v, present := lookupProperty(rec, k, own); present {
			child, err := c.Diff(v, sv)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, withKey(child, k))
			continue
		}
		if !types.IsUndefined(sv) {
			node.Children = append(node.Children, &diff.Node{Kind: diff.Missing, Key: k, Expected: sv})
		}
	}
	node.Settle()
	if node.IsEqual() {
		return nil, nil
	}
	return nil, c.FailWithNode(node)
}

func haveProperty(c *Context) (any, error) {
	rec := propertiesOf(c.Subject)
	v, present := lookupProperty(rec, c.Arg(0).(string), c.Flag("own"))
	if !c.HasArg(1) {
		if err := c.Verify(present); err != nil {
			return nil, err
		}
		return v, nil
	}
	ok := false
	if present {
		eq, err := c.Equal(v, c.Arg(1))
		if err != nil {
			return nil, err
		}
		ok = eq
	}
	switch {
	case ok != c.Negated():
		return v, nil
	case present && !c.Negated():
		return nil, c.FailWithDiff(v, c.Arg(1))
	}
	return nil, c.Fail()
}

func toSatisfy(c *Context) (any, error) {
	n, err := c.Satisfy(c.Subject, c.Arg(0))
	if err != nil {
		return nil, err
	}
	switch {
	case c.Negated() && n.IsEqual():
		return nil, c.Fail()
	case c.Negated():
		return nil, nil
	case !n.IsEqual():
		return nil, c.FailWithNode(n)
	}
	return c.Subject, nil
}

// promiseOf returns the promise for a Promise subject, or calls a function
// subject and wraps its outcome.
func promiseOf(v any) *promise.Promise {
	if p, ok := v.(*promise.Promise); ok {
		return p
	}
	result, err := invoke(v)
	if err != nil {
		return promise.Reject(err)
	}
	if p, ok := result.(*promise.Promise); ok {
		return p
	}
	return promise.Resolve(result)
}

// invoke calls a function without arguments. A trailing error result is
// returned as the error; a panic is recovered into one.
func invoke(fn any) (result any, err error) {
	rv := reflect.ValueOf(fn)
	t := rv.Type()
	if t.NumIn() > 1 || (t.NumIn() == 1 && !t.IsVariadic()) {
		return nil, failure.Usage(failure.ErrInvalidArgument, "Function %s must not take arguments", render.FunctionName(fn))
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, failure.FromPanic(r)
		}
	}()
	out := rv.Call(nil)
	if n := len(out); n > 0 && t.Out(n-1) == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	if len(out) > 0 {
		return out[0].Interface(), nil
	}
	return nil, nil
}

// capture calls fn and reports the value it panicked with, if any.
func capture(fn any) (thrown any, threw bool, err error) {
	rv := reflect.ValueOf(fn)
	t := rv.Type()
	if t.NumIn() > 1 || (t.NumIn() == 1 && !t.IsVariadic()) {
		return nil, false, failure.Usage(failure.ErrInvalidArgument, "Function %s must not take arguments", render.FunctionName(fn))
	}
	defer func() {
		if r := recover(); r != nil {
			thrown, threw = r, true
		}
	}()
	rv.Call(nil)
	return nil, false, nil
}

func (c *Context) unexpectedlyFulfilled(v any) error {
	if v == nil || types.IsUndefined(v) {
		return c.Explainf("Promise unexpectedly fulfilled")
	}
	return c.Explainf("Promise unexpectedly fulfilled with %s", c.Inspect(v))
}

func (c *Context) unexpectedlyRejected(reason error) error {
	return c.Explainf("Promise unexpectedly rejected with %s", c.Inspect(rejectionValue(reason)))
}

// rejectionValue is what a rejection is reported and compared as: the
// panic value for panics that did not carry an error, the error otherwise.
func rejectionValue(reason error) any {
	var pe *failure.PanicError
	if errors.As(reason, &pe) {
		if _, isErr := pe.Value.(error); !isErr {
			return pe.Value
		}
	}
	return reason
}

func toBeRejected(c *Context) (any, error) {
	return promiseOf(c.Subject).Then(
		func(v any) (any, error) { return nil, c.unexpectedlyFulfilled(v) },
		func(reason error) (any, error) { return reason, nil },
	), nil
}

func toBeRejectedWith(c *Context) (any, error) {
	return promiseOf(c.Subject).Then(
		func(v any) (any, error) { return nil, c.unexpectedlyFulfilled(v) },
		func(reason error) (any, error) {
			if _, err := c.Call(rejectionValue(reason), "to satisfy", c.Arg(0)); err != nil {
				return nil, err
			}
			return reason, nil
		},
	), nil
}

func whenRejected(c *Context) (any, error) {
	return promiseOf(c.Subject).Then(
		func(v any) (any, error) { return nil, c.unexpectedlyFulfilled(v) },
		func(reason error) (any, error) { return c.Shift(rejectionValue(reason)) },
	), nil
}

func toBeFulfilled(c *Context) (any, error) {
	return promiseOf(c.Subject).Then(
		func(v any) (any, error) { return v, nil },
		func(reason error) (any, error) { return nil, c.unexpectedlyRejected(reason) },
	), nil
}

func whenFulfilled(c *Context) (any, error) {
	return promiseOf(c.Subject).Then(
		func(v any) (any, error) { return c.Shift(v) },
		func(reason error) (any, error) { return nil, c.unexpectedlyRejected(reason) },
	), nil
}

func toThrow(c *Context) (any, error) {
	thrown, threw, err := capture(c.Subject)
	if err != nil {
		return nil, err
	}
	if c.Negated() {
		if !threw {
			return nil, nil
		}
		if c.HasArg(0) {
			n, err := c.Satisfy(thrown, c.Arg(0))
			if err != nil {
				return nil, err
			}
			if !n.IsEqual() {
				return nil, nil
			}
		}
		return nil, c.Explainf("threw: %s", c.Inspect(thrown))
	}
	if !threw {
		return nil, c.Explainf("did not throw")
	}
	if c.HasArg(0) {
		if _, err := c.Call(thrown, "to satisfy", c.Arg(0)); err != nil {
			return nil, err
		}
	}
	return thrown, nil
}

func toError(c *Context) (any, error) {
	return promiseOf(c.Subject).Then(
		func(v any) (any, error) {
			if v == nil {
				return nil, c.Explainf("did not error")
			}
			return nil, c.Explainf("returned %s", c.Inspect(v))
		},
		func(reason error) (any, error) {
			if c.HasArg(0) {
				if _, err := c.Call(rejectionValue(reason), "to satisfy", c.Arg(0)); err != nil {
					return nil, err
				}
			}
			return reason, nil
		},
	), nil
}

// comparator adapts a two-argument function returning a bool (less) or a
// number (negative when less) into a less function.
func comparator(fn any) (func(a, b any) bool, error) {
	rv := reflect.ValueOf(fn)
	t := rv.Type()
	if t.NumIn() != 2 || t.NumOut() != 1 {
		return nil, failure.Usage(failure.ErrInvalidArgument, "Comparator %s must take two arguments and return one value", render.FunctionName(fn))
	}
	arg := func(v any, want reflect.Type) reflect.Value {
		if v == nil {
			return reflect.Zero(want)
		}
		av := reflect.ValueOf(v)
		if !av.Type().AssignableTo(want) && av.Type().ConvertibleTo(want) {
			return av.Convert(want)
		}
		return av
	}
	out := t.Out(0)
	switch {
	case out.Kind() == reflect.Bool:
		return func(a, b any) bool {
			return rv.Call([]reflect.Value{arg(a, t.In(0)), arg(b, t.In(1))})[0].Bool()
		}, nil
	case out.Kind() >= reflect.Int && out.Kind() <= reflect.Float64:
		return func(a, b any) bool {
			f, _ := compare.AsFloat(rv.Call([]reflect.Value{arg(a, t.In(0)), arg(b, t.In(1))})[0].Interface())
			return f < 0
		}, nil
	}
	return nil, failure.Usage(failure.ErrInvalidArgument, "Comparator %s must return a bool or a number", render.FunctionName(fn))
}

func sortedBy(c *Context) (any, error) {
	less, err := comparator(c.Arg(0))
	if err != nil {
		return nil, err
	}
	elems, _ := types.Elements(c.Subject)
	sorted := append([]any{}, elems...)
	sort.SliceStable(sorted, func(a, b int) bool { return less(sorted[a], sorted[b]) })
	return c.Shift(sorted)
}

func sortedNumerically(c *Context) (any, error) {
	elems, _ := types.Elements(c.Subject)
	keys := make([]float64, len(elems))
	for k, e := range elems {
		f, ok := compare.AsFloat(e)
		if !ok {
			return nil, failure.Usage(failure.ErrInvalidArgument, "%s\n  Cannot sort %s numerically", c.Headline(), c.Inspect(e))
		}
		keys[k] = f
	}
	idx := make([]int, len(elems))
	for k := range idx {
		idx[k] = k
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
	sorted := make([]any, len(elems))
	for k, i := range idx {
		sorted[k] = elems[i]
	}
	return c.Shift(sorted)
}

func decodedAs(c *Context) (any, error) {
	buf := c.Subject.([]byte)
	var s string
	switch enc := strings.ToLower(c.Arg(0).(string)); enc {
	case "utf-8", "utf8":
		s = string(buf)
	case "base64":
		s = base64.StdEncoding.EncodeToString(buf)
	case "hex":
		s = hex.EncodeToString(buf)
	case "ascii":
		b := make([]byte, len(buf))
		for k, ch := range buf {
			b[k] = ch & 0x7f
		}
		s = string(b)
	case "latin1", "binary":
		r := make([]rune, len(buf))
		for k, ch := range buf {
			r[k] = rune(ch)
		}
		s = string(r)
	default:
		return nil, failure.Usage(failure.ErrInvalidArgument, "%s\n  Unknown encoding: %s", c.Headline(), enc)
	}
	return c.Shift(s)
}
