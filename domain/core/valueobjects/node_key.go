package valueobjects

import (
	"errors"
	"strings"
)

// Entry node keys, in lookup order. Every usable story graph designates
// its starting node under one of these.
const (
	EntryKeyRoot  = "root"
	EntryKeyStart = "start"
)

// NodeKey is a value object identifying a story node within a graph.
// Keys are author-chosen strings, unique per graph; they are not UUIDs.
type NodeKey struct {
	value string
}

// NewNodeKey creates a NodeKey from an author-supplied string
func NewNodeKey(key string) (NodeKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return NodeKey{}, errors.New("node key cannot be empty")
	}
	if strings.ContainsAny(key, "\n\r\t") {
		return NodeKey{}, errors.New("node key cannot contain control characters")
	}
	return NodeKey{value: key}, nil
}

// MustNodeKey creates a NodeKey and panics on invalid input. Intended
// for literals in tests and fixtures.
func MustNodeKey(key string) NodeKey {
	k, err := NewNodeKey(key)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the string representation of the NodeKey
func (k NodeKey) String() string {
	return k.value
}

// Equals checks if two NodeKeys are equal
func (k NodeKey) Equals(other NodeKey) bool {
	return k.value == other.value
}

// IsZero checks if the NodeKey is the zero value
func (k NodeKey) IsZero() bool {
	return k.value == ""
}

// IsEntry reports whether this key designates a story's starting node
func (k NodeKey) IsEntry() bool {
	return k.value == EntryKeyRoot || k.value == EntryKeyStart
}

// MarshalJSON implements json.Marshaler
func (k NodeKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (k *NodeKey) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeKey must be a string")
	}
	k.value = string(data[1 : len(data)-1])
	return nil
}
