package expect

import (
	"context"
	"errors"
	"strings"

	"expectkit/internal/assertion"
	"expectkit/internal/failure"
	"expectkit/internal/logging"
	"expectkit/internal/promise"
)

// Dispatch runs one assertion call. The result is the handler's value,
// which may be a *promise.Promise for asynchronous assertions.
type Dispatch func(subject any, phrase string, args ...any) (any, error)

// Hook wraps a dispatch function. It may rewrite the call, replace the
// outcome, or skip next entirely.
type Hook func(next Dispatch) Dispatch

// Call runs an assertion through the hook chain. Hooks are read at call
// time.
func (i *Instance) Call(subject any, phrase string, args ...any) (any, error) {
	return i.dispatcher()(subject, phrase, args...)
}

// dispatcher composes the hooks around the base dispatch, so the last
// installed hook is outermost.
func (i *Instance) dispatcher() Dispatch {
	i.mu.RLock()
	hooks := append([]Hook(nil), i.hooks...)
	i.mu.RUnlock()

	d := Dispatch(i.dispatch)
	for _, h := range hooks {
		d = h(d)
	}
	return d
}

// Expect runs an assertion and waits for an asynchronous result.
func (i *Instance) Expect(ctx context.Context, subject any, phrase string, args ...any) error {
	result, err := i.Call(subject, phrase, args...)
	if err != nil {
		return err
	}
	if p, ok := result.(*promise.Promise); ok {
		_, err = p.Wait(ctx)
	}
	return err
}

func (i *Instance) dispatch(subject any, phrase string, args ...any) (result any, err error) {
	if i.cfg.Types.Strict {
		if amb := i.types.Ambiguities(subject); len(amb) > 1 {
			names := make([]string, len(amb))
			for k, d := range amb {
				names[k] = d.Name
			}
			return nil, failure.Usage(failure.ErrAmbiguousType,
				"Ambiguous subject %s: types %s match with equal specificity",
				i.Inspect(subject), strings.Join(names, ", "))
		}
	}

	m, err := i.assertions.Resolve(i.types, subject, phrase, args)
	if err != nil {
		var se *failure.SignatureError
		if errors.As(err, &se) && !se.Unknown {
			se.Headline = i.headline(subject, assertion.NormalizePhrase(phrase), args, nil)
		}
		logging.DispatchDebug("Resolution failed for %q: %v", phrase, err)
		return nil, err
	}

	c := newContext(i, subject, m)
	logging.DispatchDebug("Dispatching %q (%s)", m.Phrase, m.Entry.Signature.Text)

	defer func() {
		if r := recover(); r != nil {
			err = failure.FromPanic(r)
			logging.Get(logging.CategoryDispatch).Error("Assertion %q panicked: %v", m.Phrase, err)
		}
	}()
	return m.Handler()(c)
}

// headline renders "expected <subject> <phrase> <args>". Arguments bound
// to a nested assertion are rendered after its phrase. Promises are shown
// without their state, which may change before the failure is reported.
func (i *Instance) headline(subject any, phrase string, args []any, m *assertion.Match[Handler]) string {
	ins := i.inspector()
	var b strings.Builder
	b.WriteString("expected ")
	subj := "Promise"
	if _, ok := subject.(*promise.Promise); !ok {
		subj = ins.Inspect(subject)
	}
	if strings.Contains(subj, "\n") {
		b.WriteString("\n" + subj + "\n")
	} else {
		b.WriteString(subj + " ")
	}
	b.WriteString(phrase)

	writeArgs := func(list []any) {
		for k, a := range list {
			if k == 0 {
				b.WriteString(" ")
			} else {
				b.WriteString(", ")
			}
			b.WriteString(ins.Inspect(a))
		}
	}
	if m == nil {
		writeArgs(args)
		return b.String()
	}
	writeArgs(m.Args)
	if m.Nested {
		b.WriteString(" " + m.NestedPhrase)
		writeArgs(m.NestedArgs)
	}
	return b.String()
}
