// Package fixture decodes YAML documents into assertion values.
//
// Mappings become ordered records, sequences become []any, and scalars
// become the matching Go value. Local tags reach the value kinds YAML has
// no syntax for:
//
//	!undefined          types.Undefined
//	!hole               types.Hole (inside sequences)
//	!regexp ^a+$        *regexp.Regexp
//	!error boom         error with message "boom"
//	!buffer 68 69       []byte from hex (whitespace ignored)
//	!base64 aGk=        []byte from base64
//	!arguments [1, 2]   types.Arguments
//	!bare {a: 1}        record without a prototype
//	!Person {name: x}   record with constructor "Person"
//
// Anchors and aliases keep identity: an alias decodes to the same
// record or slice as its anchor.
package fixture

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"expectkit/internal/types"
)

// ErrEmptyDocument is returned when a document holds no value.
var ErrEmptyDocument = errors.New("empty document")

// Decode decodes a single YAML document.
func Decode(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, ErrEmptyDocument
	}
	return NodeValue(&doc)
}

// DecodeFile decodes the YAML document stored at path.
func DecodeFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	v, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// NodeValue converts an already parsed node.
func NodeValue(n *yaml.Node) (any, error) {
	d := &decoder{seen: make(map[*yaml.Node]any)}
	return d.value(n)
}

type decoder struct {
	seen map[*yaml.Node]any
}

func (d *decoder) value(n *yaml.Node) (any, error) {
	if v, ok := d.seen[n]; ok {
		return v, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, ErrEmptyDocument
		}
		return d.value(n.Content[0])
	case yaml.AliasNode:
		return d.value(n.Alias)
	case yaml.MappingNode:
		return d.mapping(n)
	case yaml.SequenceNode:
		return d.sequence(n)
	case yaml.ScalarNode:
		return scalar(n)
	}
	return nil, nodeError(n, "unsupported node kind %d", n.Kind)
}

func (d *decoder) mapping(n *yaml.Node) (any, error) {
	var rec *types.Record
	switch tag := localTag(n.Tag); {
	case tag == "!!map" || tag == "" || tag == "!":
		rec = types.Object()
	case tag == "!bare":
		rec = types.Bare()
	case tag == "!error":
		return d.errorValue(n)
	case strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!"):
		rec = types.NewRecord(strings.TrimPrefix(tag, "!"))
	default:
		return nil, nodeError(n, "unsupported mapping tag %s", tag)
	}
	d.seen[n] = rec

	for k := 0; k+1 < len(n.Content); k += 2 {
		keyNode, valNode := n.Content[k], n.Content[k+1]
		if keyNode.Kind == yaml.ScalarNode && keyNode.Tag == "!!merge" {
			if err := d.merge(rec, valNode); err != nil {
				return nil, err
			}
			continue
		}
		if keyNode.Kind != yaml.ScalarNode {
			return nil, nodeError(keyNode, "mapping keys must be scalars")
		}
		val, err := d.value(valNode)
		if err != nil {
			return nil, err
		}
		rec.Set(keyNode.Value, val)
	}
	return rec, nil
}

// merge applies a "<<" key: the referenced record (or list of records)
// becomes the prototype chain instead of being copied.
func (d *decoder) merge(rec *types.Record, n *yaml.Node) error {
	v, err := d.value(n)
	if err != nil {
		return err
	}
	switch src := v.(type) {
	case *types.Record:
		rec.Proto = src
	case []any:
		cur := rec
		for _, item := range src {
			r, ok := item.(*types.Record)
			if !ok {
				return nodeError(n, "merge sources must be mappings")
			}
			proto := types.NewRecord(r.Constructor)
			for _, k := range r.Keys() {
				pv, _ := r.Own(k)
				proto.Set(k, pv)
			}
			cur.Proto = proto
			cur = proto
		}
	default:
		return nodeError(n, "merge source must be a mapping")
	}
	return nil
}

func (d *decoder) errorValue(n *yaml.Node) (any, error) {
	msg := ""
	for k := 0; k+1 < len(n.Content); k += 2 {
		if n.Content[k].Value == "message" {
			msg = n.Content[k+1].Value
		}
	}
	return errors.New(msg), nil
}

func (d *decoder) sequence(n *yaml.Node) (any, error) {
	items := make([]any, len(n.Content))
	tag := localTag(n.Tag)
	switch tag {
	case "!!seq", "", "!":
		d.seen[n] = items
	case "!arguments":
	default:
		return nil, nodeError(n, "unsupported sequence tag %s", tag)
	}
	for k, c := range n.Content {
		v, err := d.value(c)
		if err != nil {
			return nil, err
		}
		items[k] = v
	}
	if tag == "!arguments" {
		return types.Arguments(items), nil
	}
	return items, nil
}

// localTag strips flow indicators the YAML scanner leaves attached to a
// local tag written without a value, as in [1, !hole, 3].
func localTag(tag string) string {
	if !strings.HasPrefix(tag, "!") || strings.HasPrefix(tag, "!!") {
		return tag
	}
	return strings.TrimRight(tag, ",]}")
}

func scalar(n *yaml.Node) (any, error) {
	tag := localTag(n.Tag)
	switch tag {
	case "!undefined":
		return types.Undefined, nil
	case "!hole":
		return types.Hole, nil
	case "!regexp":
		re, err := regexp.Compile(n.Value)
		if err != nil {
			return nil, nodeError(n, "invalid regexp: %v", err)
		}
		return re, nil
	case "!error":
		return errors.New(n.Value), nil
	case "!buffer":
		b, err := hex.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return nil, nodeError(n, "invalid hex buffer: %v", err)
		}
		return b, nil
	case "!base64":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(n.Value))
		if err != nil {
			return nil, nodeError(n, "invalid base64 buffer: %v", err)
		}
		return b, nil
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		err := n.Decode(&b)
		return b, wrapNode(n, err)
	case "!!int":
		var i int
		if err := n.Decode(&i); err != nil {
			var f float64
			if ferr := n.Decode(&f); ferr != nil {
				return nil, wrapNode(n, err)
			}
			return f, nil
		}
		return i, nil
	case "!!float":
		var f float64
		err := n.Decode(&f)
		return f, wrapNode(n, err)
	case "!!timestamp":
		var t time.Time
		err := n.Decode(&t)
		return t, wrapNode(n, err)
	case "!!str", "!", "", "!!binary":
		if tag == "!!binary" {
			b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
			return b, wrapNode(n, err)
		}
		return n.Value, nil
	}
	return nil, nodeError(n, "unsupported scalar tag %s", tag)
}

func nodeError(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

func wrapNode(n *yaml.Node, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("line %d: %w", n.Line, err)
}
