package assertion

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/sahilm/fuzzy"

	"expectkit/internal/failure"
	"expectkit/internal/logging"
	"expectkit/internal/types"
)

// maxSuggestions bounds "did you mean" lists for unknown phrases.
const maxSuggestions = 5

// Option configures a registered signature.
type Option func(*entryOptions)

type conflict struct {
	flag, other, phrase string
}

type entryOptions struct {
	conflicts []conflict
}

// WithExclusiveFlags rejects calls that set both flag and other. The usage
// error names phrase as the construct flag cannot be combined with.
func WithExclusiveFlags(flag, other, phrase string) Option {
	return func(o *entryOptions) {
		o.conflicts = append(o.conflicts, conflict{flag, other, phrase})
	}
}

// Entry is a registered signature bound to its handler.
type Entry[H any] struct {
	Signature *Signature
	Handler   H

	conflicts []conflict
	seq       int
}

type phraseEntry[H any] struct {
	entry   *Entry[H]
	variant Variant
}

// Registry maps phrases to overloaded handlers. It is safe for concurrent
// use.
type Registry[H any] struct {
	mu       sync.RWMutex
	entries  []*Entry[H]
	byPhrase map[string][]phraseEntry[H]
	seq      int
}

// NewRegistry creates an empty registry.
func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{byPhrase: make(map[string][]phraseEntry[H])}
}

// Register parses signature and binds every phrase variant to h.
func (r *Registry[H]) Register(signature string, h H, opts ...Option) error {
	sig, err := ParseSignature(signature)
	if err != nil {
		return err
	}
	var o entryOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e := &Entry[H]{Signature: sig, Handler: h, conflicts: o.conflicts, seq: r.seq}
	r.entries = append(r.entries, e)
	for _, v := range sig.Variants() {
		if v.Phrase == "" {
			continue
		}
		r.byPhrase[v.Phrase] = append(r.byPhrase[v.Phrase], phraseEntry[H]{entry: e, variant: v})
	}

	logging.AssertionsDebug("Registered assertion: %s", sig.Text)
	return nil
}

// MustRegister registers a signature and panics on error.
// Use this for static registration at init time.
func (r *Registry[H]) MustRegister(signature string, h H, opts ...Option) {
	if err := r.Register(signature, h, opts...); err != nil {
		panic(fmt.Sprintf("failed to register assertion %s: %v", signature, err))
	}
}

// Has reports whether any signature accepts phrase.
func (r *Registry[H]) Has(phrase string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPhrase[NormalizePhrase(phrase)]
	return ok
}

// Signatures returns the registered signatures in registration order.
func (r *Registry[H]) Signatures() []*Signature {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Signature, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Signature
	}
	return out
}

// Phrases returns every accepted phrase, sorted.
func (r *Registry[H]) Phrases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byPhrase))
	for p := range r.byPhrase {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered signatures.
func (r *Registry[H]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clone returns an independent copy. Entries are immutable and shared.
func (r *Registry[H]) Clone() *Registry[H] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry[H]{
		entries:  append([]*Entry[H](nil), r.entries...),
		byPhrase: make(map[string][]phraseEntry[H], len(r.byPhrase)),
		seq:      r.seq,
	}
	for p, list := range r.byPhrase {
		c.byPhrase[p] = append([]phraseEntry[H](nil), list...)
	}
	return c
}

// Import copies e into r, keeping its options. Used to export an assertion
// from one registry to another.
func (r *Registry[H]) Import(e *Entry[H]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	imported := &Entry[H]{Signature: e.Signature, Handler: e.Handler, conflicts: e.conflicts, seq: r.seq}
	r.entries = append(r.entries, imported)
	for _, v := range e.Signature.Variants() {
		if v.Phrase == "" {
			continue
		}
		r.byPhrase[v.Phrase] = append(r.byPhrase[v.Phrase], phraseEntry[H]{entry: imported, variant: v})
	}
}

// Lookup returns the entries registered under signature text, most recent
// last.
func (r *Registry[H]) Lookup(signature string) ([]*Entry[H], error) {
	sig, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry[H]
	for _, e := range r.entries {
		if e.Signature.Text == sig.Text {
			out = append(out, e)
		}
	}
	return out, nil
}

// Match is a resolved call.
type Match[H any] struct {
	Entry *Entry[H]
	// Phrase is the phrase the handler was matched by, without any nested
	// assertion words.
	Phrase       string
	Flags        map[string]bool
	Alternations []string
	// Args are the arguments bound to the signature's own placeholders.
	Args []any

	// Nested is set when the call continues into another assertion.
	Nested       bool
	NestedPhrase string
	NestedArgs   []any
}

// Handler returns the bound handler.
func (m *Match[H]) Handler() H { return m.Entry.Handler }

type candidate[H any] struct {
	pe     phraseEntry[H]
	nested string
}

// Resolve finds the handler for a call. Exact phrase matches are tried
// first; otherwise the longest phrase prefix whose signature ends in an
// assertion placeholder, with the remaining words forming the nested
// phrase. Among matching signatures the most specific subject type wins,
// then the most specific argument types, then the most recent
// registration.
func (r *Registry[H]) Resolve(reg *types.Registry, subject any, phrase string, args []any) (*Match[H], error) {
	phrase = NormalizePhrase(phrase)
	if phrase == "" {
		return nil, failure.Usage(failure.ErrInvalidArgument, "%v", ErrEmptyPhrase)
	}

	r.mu.RLock()
	cands := r.candidates(phrase)
	var known []string
	if len(cands) == 0 {
		known = make([]string, 0, len(r.byPhrase))
		for p := range r.byPhrase {
			known = append(known, p)
		}
	}
	r.mu.RUnlock()

	if len(cands) == 0 {
		logging.AssertionsDebug("Unknown assertion: %s", phrase)
		return nil, &failure.SignatureError{
			Phrase:      phrase,
			Unknown:     true,
			Suggestions: suggestPhrases(phrase, known),
		}
	}

	var (
		best      *Match[H]
		bestScore []int
		bestSeq   int
	)
	for _, c := range cands {
		m, score, ok := bind(reg, c, subject, args)
		if !ok {
			continue
		}
		seq := c.pe.entry.seq
		if best == nil || better(score, seq, bestScore, bestSeq) {
			best, bestScore, bestSeq = m, score, seq
		}
	}
	if best == nil {
		return nil, signatureMismatch(reg, cands, subject, phrase, args)
	}

	for _, cf := range best.Entry.conflicts {
		if best.Flags[cf.flag] && best.Flags[cf.other] {
			return nil, failure.FlagConflict(cf.flag, cf.phrase)
		}
	}

	logging.AssertionsDebug("Resolved %q to %s", phrase, best.Entry.Signature.Text)
	return best, nil
}

// candidates must be called with r.mu held.
func (r *Registry[H]) candidates(phrase string) []candidate[H] {
	var out []candidate[H]
	for _, pe := range r.byPhrase[phrase] {
		out = append(out, candidate[H]{pe: pe})
	}
	if len(out) > 0 {
		return out
	}

	words := strings.Fields(phrase)
	for k := len(words) - 1; k >= 1; k-- {
		prefix := strings.Join(words[:k], " ")
		for _, pe := range r.byPhrase[prefix] {
			if pe.entry.Signature.TakesAssertion() {
				out = append(out, candidate[H]{pe: pe, nested: strings.Join(words[k:], " ")})
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func better(score []int, seq int, than []int, thanSeq int) bool {
	for i := 0; i < len(score) && i < len(than); i++ {
		if score[i] != than[i] {
			return score[i] > than[i]
		}
	}
	if len(score) != len(than) {
		return len(score) > len(than)
	}
	return seq > thanSeq
}

// slotLevel returns the level of the most specific type in p that v
// belongs to, or -1.
func slotLevel(reg *types.Registry, p Placeholder, v any) int {
	level := -1
	d := reg.Classify(v)
	for _, name := range p.Types {
		if !d.Is(name) {
			continue
		}
		if t, err := reg.Lookup(name); err == nil && t.Level() > level {
			level = t.Level()
		}
	}
	return level
}

func bind[H any](reg *types.Registry, c candidate[H], subject any, args []any) (*Match[H], []int, bool) {
	sig := c.pe.entry.Signature
	subjectLevel := slotLevel(reg, sig.Subject, subject)
	if subjectLevel < 0 {
		return nil, nil, false
	}

	m := &Match[H]{
		Entry:        c.pe.entry,
		Phrase:       c.pe.variant.Phrase,
		Flags:        make(map[string]bool, len(c.pe.variant.Flags)),
		Alternations: c.pe.variant.Alternations,
	}
	for _, f := range c.pe.variant.Flags {
		m.Flags[f] = true
	}
	score := []int{subjectLevel}

	i := 0
	for _, p := range sig.Args {
		switch {
		case p.IsAssertion():
			switch {
			case c.nested != "":
				m.Nested, m.NestedPhrase, m.NestedArgs = true, c.nested, args[i:]
			case i < len(args):
				next, ok := stringValue(args[i])
				if !ok {
					return nil, nil, false
				}
				m.Nested, m.NestedPhrase, m.NestedArgs = true, next, args[i+1:]
			case !p.Optional:
				return nil, nil, false
			}
			i = len(args)
		case p.Variadic:
			n := 0
			for i < len(args) {
				level := slotLevel(reg, p, args[i])
				if level < 0 {
					break
				}
				m.Args = append(m.Args, args[i])
				score = append(score, level)
				i++
				n++
			}
			if n == 0 && !p.Optional {
				return nil, nil, false
			}
		case i < len(args):
			level := slotLevel(reg, p, args[i])
			if level < 0 {
				return nil, nil, false
			}
			m.Args = append(m.Args, args[i])
			score = append(score, level)
			i++
		case !p.Optional:
			return nil, nil, false
		}
	}
	if i < len(args) || (c.nested != "" && !m.Nested) {
		return nil, nil, false
	}
	return m, score, true
}

func stringValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

// signatureMismatch builds the error for a known phrase whose signatures
// reject the runtime values. Suggestions are ranked by how many slots
// match.
func signatureMismatch[H any](reg *types.Registry, cands []candidate[H], subject any, phrase string, args []any) error {
	fields := []string{"<" + reg.Classify(subject).Name + ">", phrase}
	for _, a := range args {
		fields = append(fields, "<"+reg.Classify(a).Name+">")
	}

	type ranked struct {
		text  string
		score int
		seq   int
	}
	seen := make(map[string]bool)
	var list []ranked
	for _, c := range cands {
		sig := c.pe.entry.Signature
		if seen[sig.Text] {
			continue
		}
		seen[sig.Text] = true
		score := 0
		if slotLevel(reg, sig.Subject, subject) >= 0 {
			score++
		}
		for i, p := range sig.Args {
			if i < len(args) && !p.IsAssertion() && slotLevel(reg, p, args[i]) >= 0 {
				score++
			}
		}
		list = append(list, ranked{sig.Text, score, c.pe.entry.seq})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].seq < list[j].seq
	})

	suggestions := make([]string, len(list))
	for i, l := range list {
		suggestions[i] = l.text
	}
	return &failure.SignatureError{
		Phrase:      phrase,
		Attempted:   strings.Join(fields, " "),
		Suggestions: suggestions,
	}
}

// suggestPhrases ranks known phrases against an unknown one. A phrase is
// a candidate when either one fuzzily contains the other or when it is
// within a few edits of the unknown one. Closer edits rank first.
func suggestPhrases(phrase string, known []string) []string {
	sort.Strings(known)
	scores := make(map[string]int)
	for _, m := range fuzzy.Find(phrase, known) {
		scores[m.Str] = m.Score
	}
	for _, k := range known {
		if ms := fuzzy.Find(k, []string{phrase}); len(ms) > 0 {
			if s, ok := scores[k]; !ok || ms[0].Score > s {
				scores[k] = ms[0].Score
			}
		}
	}

	limit := max(2, len(phrase)/4)
	distances := make(map[string]int, len(known))
	for _, k := range known {
		d := levenshtein.ComputeDistance(phrase, k)
		distances[k] = d
		if _, ok := scores[k]; !ok && d <= limit {
			scores[k] = 0
		}
	}

	out := make([]string, 0, len(scores))
	for k := range scores {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if distances[a] != distances[b] {
			return distances[a] < distances[b]
		}
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return a < b
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
