// Package rawtree holds upstream payloads as a loosely typed parse tree.
//
// A Node is a tagged union of null, scalar, sequence and mapping. JSON and
// XML payloads decode into the same shape so that envelope paths such as
// response.body.items.item work for both formats.
package rawtree

import (
	"sort"
	"strings"
)

type Kind uint8

const (
	Null Kind = iota
	Scalar
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return "null"
	}
}

type Node struct {
	kind   Kind
	text   string
	items  []Node
	fields map[string]Node
}

func NewScalar(text string) Node {
	return Node{kind: Scalar, text: text}
}

func NewSequence(items ...Node) Node {
	return Node{kind: Sequence, items: items}
}

func NewMapping(fields map[string]Node) Node {
	if fields == nil {
		fields = map[string]Node{}
	}
	return Node{kind: Mapping, fields: fields}
}

func (n Node) Kind() Kind {
	return n.kind
}

func (n Node) IsNull() bool {
	return n.kind == Null
}

// Text returns the trimmed scalar value. Empty scalars and non-scalars
// report false.
func (n Node) Text() (string, bool) {
	if n.kind != Scalar {
		return "", false
	}
	trimmed := strings.TrimSpace(n.text)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// Get returns the child stored under key. An exact key match wins; otherwise
// keys are compared case-insensitively in sorted order.
func (n Node) Get(key string) (Node, bool) {
	if n.kind != Mapping {
		return Node{}, false
	}
	if value, ok := n.fields[key]; ok {
		return value, true
	}
	for _, fieldKey := range n.Keys() {
		if strings.EqualFold(fieldKey, key) {
			return n.fields[fieldKey], true
		}
	}
	return Node{}, false
}

// First returns the first child found among keys.
func (n Node) First(keys ...string) (Node, bool) {
	for _, key := range keys {
		if value, ok := n.Get(key); ok {
			return value, true
		}
	}
	return Node{}, false
}

// Lookup walks path from n. When a sequence is met on the way, the first
// element that can continue the walk is taken.
func (n Node) Lookup(path ...string) (Node, bool) {
	current := n
	for _, segment := range path {
		next, ok := current.step(segment)
		if !ok {
			return Node{}, false
		}
		current = next
	}
	return current, true
}

func (n Node) step(segment string) (Node, bool) {
	switch n.kind {
	case Mapping:
		return n.Get(segment)
	case Sequence:
		for _, item := range n.items {
			if value, ok := item.step(segment); ok {
				return value, true
			}
		}
	}
	return Node{}, false
}

// List views n as a list of rows. A single mapping is one row; null and
// blank scalars are no rows.
func (n Node) List() []Node {
	switch n.kind {
	case Sequence:
		out := make([]Node, 0, len(n.items))
		for _, item := range n.items {
			if item.kind == Null {
				continue
			}
			out = append(out, item)
		}
		return out
	case Mapping:
		return []Node{n}
	case Scalar:
		if _, ok := n.Text(); ok {
			return []Node{n}
		}
	}
	return nil
}

// Keys returns mapping keys in sorted order.
func (n Node) Keys() []string {
	if n.kind != Mapping {
		return nil
	}
	keys := make([]string, 0, len(n.fields))
	for key := range n.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (n Node) Len() int {
	switch n.kind {
	case Sequence:
		return len(n.items)
	case Mapping:
		return len(n.fields)
	default:
		return 0
	}
}
