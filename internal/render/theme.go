package render

import (
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Style names used by the inspector and diff renderer.
const (
	StyleString    = "jsString"
	StyleNumber    = "jsNumber"
	StyleKeyword   = "jsKeyword"
	StyleKey       = "key"
	StyleComment   = "jsComment"
	StyleRemoved   = "diffRemovedLine"
	StyleAdded     = "diffAddedLine"
	StyleRemovedHi = "diffRemovedHighlight"
	StyleAddedHi   = "diffAddedHighlight"
	StyleError     = "error"
	StyleMove      = "diffMoveArrow"
)

// Theme maps style names to lipgloss styles.
type Theme struct {
	Name   string
	styles map[string]lipgloss.Style
}

// NewTheme builds a theme from style name to foreground color (hex or
// ANSI index). A color prefixed with "bg:" sets the background instead.
func NewTheme(name string, colors map[string]string) *Theme {
	t := &Theme{Name: name, styles: make(map[string]lipgloss.Style, len(colors))}
	for style, color := range colors {
		s := lipgloss.NewStyle()
		if len(color) > 3 && color[:3] == "bg:" {
			s = s.Background(lipgloss.Color(color[3:]))
		} else {
			s = s.Foreground(lipgloss.Color(color))
		}
		t.styles[style] = s
	}
	return t
}

// Apply renders text in the named style. Unknown styles and a nil theme
// leave the text untouched.
func (t *Theme) Apply(style, text string) string {
	if t == nil || style == "" {
		return text
	}
	s, ok := t.styles[style]
	if !ok {
		return text
	}
	return s.Render(text)
}

// Has reports whether the theme defines a style.
func (t *Theme) Has(style string) bool {
	_, ok := t.styles[style]
	return ok
}

// LightTheme is the default palette.
func LightTheme() *Theme {
	return NewTheme("default", map[string]string{
		StyleString:    "#2196F3",
		StyleNumber:    "#8E24AA",
		StyleKeyword:   "#101F38",
		StyleKey:       "#29434e",
		StyleComment:   "#7f8c8d",
		StyleRemoved:   "#e53935",
		StyleAdded:     "#388E3C",
		StyleRemovedHi: "bg:#ffcdd2",
		StyleAddedHi:   "bg:#c8e6c9",
		StyleError:     "#e53935",
		StyleMove:      "#FFC107",
	})
}

// DarkTheme suits dark terminals.
func DarkTheme() *Theme {
	return NewTheme("dark", map[string]string{
		StyleString:    "#4db6ac",
		StyleNumber:    "#ffd54f",
		StyleKeyword:   "#f2f2f2",
		StyleKey:       "#8BC34A",
		StyleComment:   "#6b7a90",
		StyleRemoved:   "#e57373",
		StyleAdded:     "#8BC34A",
		StyleRemovedHi: "bg:#5c1f1f",
		StyleAddedHi:   "bg:#1f4a24",
		StyleError:     "#e57373",
		StyleMove:      "#ff8a65",
	})
}

// Themes is a named theme table. It is safe for concurrent use.
type Themes struct {
	mu     sync.RWMutex
	themes map[string]*Theme
}

// NewThemes creates a table holding the built-in themes.
func NewThemes() *Themes {
	ts := &Themes{themes: make(map[string]*Theme)}
	ts.Install(LightTheme())
	ts.Install(DarkTheme())
	return ts
}

// Install adds or replaces a theme.
func (ts *Themes) Install(t *Theme) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.themes[t.Name] = t
}

// Get returns a theme by name.
func (ts *Themes) Get(name string) (*Theme, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.themes[name]
	if !ok {
		return nil, fmt.Errorf("unknown theme: %s", name)
	}
	return t, nil
}

// Names returns the installed theme names, sorted.
func (ts *Themes) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]string, 0, len(ts.themes))
	for n := range ts.themes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (ts *Themes) Clone() *Themes {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	c := &Themes{themes: make(map[string]*Theme, len(ts.themes))}
	for k, v := range ts.themes {
		c.themes[k] = v
	}
	return c
}
