// Package expect is the assertion front-end: instances own a type
// registry, an assertion registry, styles and themes, and a hook chain
// wrapped around dispatch. Instances are configured by value: Clone copies
// everything, Child copies everything but keeps a back-reference used only
// by the Export methods.
package expect

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"expectkit/internal/assertion"
	"expectkit/internal/compare"
	"expectkit/internal/config"
	"expectkit/internal/diff"
	"expectkit/internal/failure"
	"expectkit/internal/logging"
	"expectkit/internal/render"
	"expectkit/internal/types"
)

// Handler implements an assertion.
type Handler func(c *Context) (any, error)

// Plugin bundles types, assertions and styles. Installing a plugin whose
// name is already installed is a no-op.
type Plugin struct {
	Name string
	// Dependencies name plugins that must be installed first.
	Dependencies []string
	Install      func(*Instance) error
}

// Option configures a new instance.
type Option func(*Instance)

// WithConfig applies diff, inspection and classification settings.
func WithConfig(cfg *config.Config) Option {
	return func(i *Instance) {
		if cfg != nil {
			i.cfg = cfg
		}
	}
}

// WithoutBuiltins creates an instance with the built-in types but no
// assertions.
func WithoutBuiltins() Option {
	return func(i *Instance) { i.bare = true }
}

// Instance is an assertion configuration. All methods are safe for
// concurrent use.
type Instance struct {
	id    string
	cfg   *config.Config
	chars *diff.Engine

	mu         sync.RWMutex
	types      *types.Registry
	assertions *assertion.Registry[Handler]
	styles     *render.StyleSet
	themes     *render.Themes
	hooks      []Hook
	plugins    map[string]bool
	frozen     bool
	parent     *Instance
	bare       bool
}

// New creates a root instance holding the built-in types and assertions.
func New(opts ...Option) *Instance {
	i := &Instance{
		id:         uuid.NewString(),
		cfg:        config.DefaultConfig(),
		types:      compare.NewRegistry(),
		assertions: assertion.NewRegistry[Handler](),
		styles:     render.NewStyleSet(),
		themes:     render.NewThemes(),
		plugins:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.chars = diff.NewEngine(i.cfg.GetStringDiffTimeout())
	i.types.MustAdd(matcherType())
	registerStyles(i.styles)
	if !i.bare {
		registerBuiltins(i.assertions)
	}
	i.log().Debug("Created instance (assertions=%d, types=%d)", i.assertions.Count(), i.types.Count())
	return i
}

func (i *Instance) log() *logging.Logger {
	return logging.Get(logging.CategoryInstance).With("instance", i.id)
}

// ID identifies the instance in logs.
func (i *Instance) ID() string { return i.id }

// Config returns the settings the instance was created with.
func (i *Instance) Config() *config.Config { return i.cfg }

// copyInstance must be called with i.mu held.
func (i *Instance) copyInstance(hooks bool) *Instance {
	c := &Instance{
		id:         uuid.NewString(),
		cfg:        i.cfg,
		chars:      i.chars,
		types:      i.types.Clone(),
		assertions: i.assertions.Clone(),
		styles:     i.styles.Clone(),
		themes:     i.themes.Clone(),
		plugins:    make(map[string]bool, len(i.plugins)),
	}
	for name := range i.plugins {
		c.plugins[name] = true
	}
	if hooks {
		c.hooks = append([]Hook(nil), i.hooks...)
	}
	return c
}

// Clone returns an independent, unfrozen copy including the hooks
// installed so far.
func (i *Instance) Clone() *Instance {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c := i.copyInstance(true)
	i.log().Debug("Cloned into %s", c.id)
	return c
}

// Child returns an unfrozen copy without hooks whose Export methods push
// additions back into i.
func (i *Instance) Child() *Instance {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c := i.copyInstance(false)
	c.parent = i
	i.log().Debug("Created child %s", c.id)
	return c
}

// Freeze disables every mutating operation on i. It is idempotent and
// returns i for chaining.
func (i *Instance) Freeze() *Instance {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.frozen {
		i.frozen = true
		i.log().Debug("Frozen")
	}
	return i
}

// Frozen reports whether i has been frozen.
func (i *Instance) Frozen() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.frozen
}

// mutate runs fn under the write lock unless i is frozen.
func (i *Instance) mutate(verb string, fn func() error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.frozen {
		logging.InstanceWarn("Rejected mutation on frozen instance %s: %s", i.id, verb)
		return failure.Frozen(verb)
	}
	return fn()
}

// Use installs a plugin.
func (i *Instance) Use(p Plugin) error {
	if i.Frozen() {
		return failure.Frozen("install a plugin into")
	}
	if p.Install == nil {
		return failure.Usage(failure.ErrInvalidArgument, "Plugin %q has no install function", p.Name)
	}

	i.mu.RLock()
	installed := p.Name != "" && i.plugins[p.Name]
	var missing []string
	for _, dep := range p.Dependencies {
		if !i.plugins[dep] {
			missing = append(missing, dep)
		}
	}
	i.mu.RUnlock()

	if installed {
		i.log().Debug("Plugin %s already installed", p.Name)
		return nil
	}
	if len(missing) > 0 {
		return failure.Usage(failure.ErrInvalidArgument, "%s requires plugin(s): %v", p.Name, missing)
	}
	if err := p.Install(i); err != nil {
		return fmt.Errorf("failed to install plugin %s: %w", p.Name, err)
	}
	if p.Name != "" {
		i.mu.Lock()
		i.plugins[p.Name] = true
		i.mu.Unlock()
	}
	i.log().Debug("Installed plugin %s", p.Name)
	return nil
}

// Installed reports whether a plugin of that name was installed.
func (i *Instance) Installed(name string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.plugins[name]
}

// Hook wraps dispatch. A hook receives the dispatch as configured before
// it, so the most recently installed hook runs first.
func (i *Instance) Hook(h Hook) error {
	if h == nil {
		return failure.Usage(failure.ErrInvalidArgument, "hook must not be nil")
	}
	return i.mutate("install a hook into", func() error {
		i.hooks = append(i.hooks, h)
		logging.HooksDebug("Installed hook #%d on %s", len(i.hooks), i.id)
		return nil
	})
}

// AddType registers a type descriptor.
func (i *Instance) AddType(d *types.Descriptor) error {
	return i.mutate("add a type to", func() error {
		return i.types.Add(d)
	})
}

// AddAssertion registers a handler under signature. Every type the
// signature names must already be registered.
func (i *Instance) AddAssertion(signature string, h Handler, opts ...assertion.Option) error {
	if h == nil {
		return failure.Usage(failure.ErrInvalidArgument, "assertion %q has no handler", signature)
	}
	return i.mutate("add an assertion to", func() error {
		sig, err := assertion.ParseSignature(signature)
		if err != nil {
			return err
		}
		for _, name := range sig.TypeNames() {
			if !i.types.Has(name) {
				return fmt.Errorf("%w: %s in %q", types.ErrUnknownType, name, signature)
			}
		}
		return i.assertions.Register(signature, h, opts...)
	})
}

// AddStyle registers a named style.
func (i *Instance) AddStyle(name string, fn render.StyleFunc) error {
	return i.mutate("add a style to", func() error {
		i.styles.Add(name, fn)
		return nil
	})
}

// InstallTheme adds or replaces a theme.
func (i *Instance) InstallTheme(t *render.Theme) error {
	if t == nil {
		return failure.Usage(failure.ErrInvalidArgument, "theme must not be nil")
	}
	return i.mutate("install a theme into", func() error {
		i.themes.Install(t)
		return nil
	})
}

// Theme returns an installed theme.
func (i *Instance) Theme(name string) (*render.Theme, error) {
	return i.themes.Get(name)
}

func (i *Instance) requireParent(op string) (*Instance, error) {
	if i.parent == nil {
		return nil, failure.Usage(failure.ErrInvalidArgument, "%s can only be called on a child instance", op)
	}
	return i.parent, nil
}

// ExportType adds d to the parent and to i.
func (i *Instance) ExportType(d *types.Descriptor) error {
	parent, err := i.requireParent("ExportType")
	if err != nil {
		return err
	}
	if err := parent.AddType(d); err != nil {
		return err
	}
	return i.AddType(d)
}

// ExportAssertion adds an assertion to the parent and to i.
func (i *Instance) ExportAssertion(signature string, h Handler, opts ...assertion.Option) error {
	parent, err := i.requireParent("ExportAssertion")
	if err != nil {
		return err
	}
	if parent.Frozen() {
		return failure.Frozen("add an assertion to")
	}
	if err := i.AddAssertion(signature, h, opts...); err != nil {
		return err
	}
	entries, err := i.assertions.Lookup(signature)
	if err != nil {
		return err
	}
	entry := entries[len(entries)-1]
	return parent.mutate("add an assertion to", func() error {
		for _, name := range entry.Signature.TypeNames() {
			if !parent.types.Has(name) {
				return fmt.Errorf("%w: %s in %q", types.ErrUnknownType, name, signature)
			}
		}
		parent.assertions.Import(entry)
		return nil
	})
}

// ExportStyle adds a style to the parent and to i.
func (i *Instance) ExportStyle(name string, fn render.StyleFunc) error {
	parent, err := i.requireParent("ExportStyle")
	if err != nil {
		return err
	}
	if err := parent.AddStyle(name, fn); err != nil {
		return err
	}
	return i.AddStyle(name, fn)
}

// Types returns a snapshot of the type registry.
func (i *Instance) Types() *types.Registry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.types.Clone()
}

// Signatures lists the registered assertion signatures.
func (i *Instance) Signatures() []*assertion.Signature {
	return i.assertions.Signatures()
}

// Phrases lists every accepted assertion phrase.
func (i *Instance) Phrases() []string {
	return i.assertions.Phrases()
}

func (i *Instance) engine() *compare.Engine {
	return compare.New(i.types,
		compare.WithBinaryLimits(i.cfg.Diff.BytesPerRow, i.cfg.Diff.BinarySuppressThreshold),
		compare.WithStringEngine(i.chars),
	)
}

func (i *Instance) inspector() *render.Inspector {
	ins := render.NewInspector(i.types, i.styles)
	ins.MaxDepth = i.cfg.Inspect.MaxDepth
	ins.LineWidth = i.cfg.Inspect.LineWidth
	ins.BinaryPreview = i.cfg.Inspect.BinaryPreview
	return ins
}

// Equal compares two values structurally.
func (i *Instance) Equal(a, b any) (bool, error) {
	return i.engine().Equal(a, b)
}

// Diff computes the structural delta between actual a and expected b.
func (i *Instance) Diff(a, b any) (*diff.Node, error) {
	return i.engine().Diff(a, b)
}

// Inspect renders v as plain text.
func (i *Instance) Inspect(v any) string {
	return i.inspector().Inspect(v)
}

// RenderDiff renders a diff tree with the named theme; an empty theme
// name yields plain text.
func (i *Instance) RenderDiff(n *diff.Node, theme string) (string, error) {
	pen := i.inspector().Diff(n)
	if theme == "" {
		return pen.String(), nil
	}
	t, err := i.themes.Get(theme)
	if err != nil {
		return "", err
	}
	return pen.Render(t), nil
}

// Explain renders err for display. Failures carrying a diff are re-rendered
// with theme; everything else is returned as err.Error().
func (i *Instance) Explain(err error, theme string) string {
	af, ok := failure.IsFailure(err)
	if !ok || !af.ShowDiff || af.Diff == nil || theme == "" {
		return err.Error()
	}
	body, rerr := i.RenderDiff(af.Diff, theme)
	if rerr != nil {
		return err.Error()
	}
	return af.Message + "\n\n" + body
}

func registerStyles(s *render.StyleSet) {
	s.Add("text", func(p *render.Pen, args ...any) {
		for _, a := range args {
			p.Text(fmt.Sprint(a))
		}
	})
	for _, name := range []string{
		render.StyleString, render.StyleNumber, render.StyleKeyword, render.StyleKey,
		render.StyleComment, render.StyleError,
	} {
		style := name
		s.Add(style, func(p *render.Pen, args ...any) {
			for _, a := range args {
				p.Text(fmt.Sprint(a), style)
			}
		})
	}
}
