package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NodeType tags the JSON value held by a Node.
type NodeType int

const (
	NodeNull NodeType = iota
	NodeBool
	NodeNumber
	NodeString
	NodeArray
	NodeObject
)

// Node is one value of a parsed payload. Objects keep their keys in document
// order so the deep search is deterministic.
type Node struct {
	Type   NodeType
	Text   string // string value, or the literal text of a number
	Bool   bool
	Fields []Field
	Items  []*Node
}

// Field is one key/value pair of an object node.
type Field struct {
	Key   string
	Value *Node
}

const maxPayloadDepth = 64

// ParsePayload decodes raw JSON into a Node tree.
func ParsePayload(raw []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	root, err := decodeNode(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return root, nil
}

func decodeNode(dec *json.Decoder, depth int) (*Node, error) {
	if depth > maxPayloadDepth {
		return nil, errors.New("payload nested too deeply")
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case nil:
		return &Node{Type: NodeNull}, nil
	case bool:
		return &Node{Type: NodeBool, Bool: t}, nil
	case json.Number:
		return &Node{Type: NodeNumber, Text: t.String()}, nil
	case string:
		return &Node{Type: NodeString, Text: t}, nil
	case json.Delim:
		switch t {
		case '{':
			n := &Node{Type: NodeObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				child, err := decodeNode(dec, depth+1)
				if err != nil {
					return nil, err
				}
				n.Fields = append(n.Fields, Field{Key: key, Value: child})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &Node{Type: NodeArray}
			for dec.More() {
				child, err := decodeNode(dec, depth+1)
				if err != nil {
					return nil, err
				}
				n.Items = append(n.Items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// Lookup returns the value of key in an object node. An exact match wins
// over a case-insensitive one.
func (n *Node) Lookup(key string) *Node {
	if n == nil || n.Type != NodeObject {
		return nil
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	for _, f := range n.Fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value
		}
	}
	return nil
}

// Get follows a dot path. Numeric segments index into arrays.
func (n *Node) Get(path string) *Node {
	cur := n
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			return nil
		}
		if cur.Type == NodeArray {
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(cur.Items) {
				return nil
			}
			cur = cur.Items[i]
			continue
		}
		cur = cur.Lookup(seg)
	}
	return cur
}

// String returns the scalar text of n, or "" for null, objects and arrays.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case NodeString, NodeNumber:
		return strings.TrimSpace(n.Text)
	case NodeBool:
		return strconv.FormatBool(n.Bool)
	default:
		return ""
	}
}

// IsScalar reports whether n is a string, number or bool.
func (n *Node) IsScalar() bool {
	return n != nil && (n.Type == NodeString || n.Type == NodeNumber || n.Type == NodeBool)
}

// Truthy interprets booleans and common boolean spellings.
func (n *Node) Truthy() bool {
	if n == nil {
		return false
	}
	if n.Type == NodeBool {
		return n.Bool
	}
	switch strings.ToLower(n.String()) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// Walk visits every node depth-first in document order. key is the object
// key the node is stored under; array items inherit the key of their array
// and the root has "". Returning false stops the walk.
func (n *Node) Walk(fn func(key string, node *Node) bool) {
	n.walk("", fn)
}

func (n *Node) walk(key string, fn func(string, *Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(key, n) {
		return false
	}
	switch n.Type {
	case NodeObject:
		for _, f := range n.Fields {
			if !f.Value.walk(f.Key, fn) {
				return false
			}
		}
	case NodeArray:
		for _, item := range n.Items {
			if !item.walk(key, fn) {
				return false
			}
		}
	}
	return true
}

// firstString returns the first non-empty scalar found at paths.
func (n *Node) firstString(paths []string) string {
	for _, p := range paths {
		if v := n.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}

// allStrings returns the distinct non-empty scalars found at paths, in path order.
func (n *Node) allStrings(paths []string) []string {
	var out []string
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		v := n.Get(p).String()
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// IsObjectWith reports whether n is an object holding every key.
func (n *Node) IsObjectWith(keys ...string) bool {
	if n == nil || n.Type != NodeObject {
		return false
	}
	for _, k := range keys {
		if n.Lookup(k) == nil {
			return false
		}
	}
	return true
}
