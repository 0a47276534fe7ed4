package rawtree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

var ErrEmptyPayload = errors.New("rawtree: empty payload")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode parses body into a tree. The format is sniffed from the first
// significant byte; hint is used only when sniffing is inconclusive. Portals
// answer JSON requests with XML error envelopes, so the declared format of an
// endpoint cannot be trusted on its own.
func Decode(body []byte, hint Format) (Node, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(trimmed) == 0 {
		return Node{}, ErrEmptyPayload
	}
	switch trimmed[0] {
	case '<':
		return DecodeXML(trimmed)
	case '{', '[':
		return DecodeJSON(trimmed)
	}
	if hint == FormatXML {
		return DecodeXML(trimmed)
	}
	return DecodeJSON(trimmed)
}

func DecodeJSON(body []byte) (Node, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return Node{}, fmt.Errorf("rawtree: decode json: %w", err)
	}
	return fromJSON(payload), nil
}

func fromJSON(value any) Node {
	switch typed := value.(type) {
	case nil:
		return Node{}
	case map[string]any:
		fields := make(map[string]Node, len(typed))
		for key, item := range typed {
			fields[key] = fromJSON(item)
		}
		return NewMapping(fields)
	case []any:
		items := make([]Node, 0, len(typed))
		for _, item := range typed {
			items = append(items, fromJSON(item))
		}
		return NewSequence(items...)
	case string:
		return NewScalar(typed)
	case json.Number:
		return NewScalar(typed.String())
	case bool:
		return NewScalar(strconv.FormatBool(typed))
	case float64:
		return NewScalar(strconv.FormatFloat(typed, 'f', -1, 64))
	default:
		return NewScalar(fmt.Sprint(typed))
	}
}

// DecodeXML parses an XML document. The root element becomes the single key
// of the returned mapping; leaf elements become scalars and repeated sibling
// tags become sequences. Attributes are stored under "@name".
func DecodeXML(body []byte) (Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return Node{}, fmt.Errorf("rawtree: decode xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return Node{}, errors.New("rawtree: xml document has no root element")
	}
	return NewMapping(map[string]Node{root.Tag: fromElement(root)}), nil
}

func fromElement(el *etree.Element) Node {
	children := el.ChildElements()
	if len(children) == 0 && len(el.Attr) == 0 {
		return NewScalar(el.Text())
	}

	fields := make(map[string]Node, len(children)+len(el.Attr))
	for _, attr := range el.Attr {
		fields["@"+attr.Key] = NewScalar(attr.Value)
	}
	for _, child := range children {
		node := fromElement(child)
		existing, ok := fields[child.Tag]
		switch {
		case !ok:
			fields[child.Tag] = node
		case existing.kind == Sequence:
			existing.items = append(existing.items, node)
			fields[child.Tag] = existing
		default:
			fields[child.Tag] = NewSequence(existing, node)
		}
	}
	if len(children) == 0 {
		fields["#text"] = NewScalar(el.Text())
	}
	return NewMapping(fields)
}
