package graph

import (
	"encoding/json"
	"sort"
)

// Node is a graph vertex produced from one or more result rows.
type Node struct {
	ID    string
	Group string

	// Attributes holds group defaults and mapped properties; they are
	// rendered at the top level of the node's JSON object.
	Attributes Attributes

	// Properties is the catch-all bag of predicate -> value pairs that no
	// mapping rule claimed. Nil when the transformation never uses it.
	Properties map[string]string
}

// NewNode creates a node in group with the group's default attributes,
// applied in key order.
func NewNode(id, group string, defaults map[string]any) *Node {
	n := &Node{ID: id, Group: group}
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attributes.Set(k, defaults[k])
	}
	return n
}

// SetProperty records a predicate -> value pair in the generic bag.
func (n *Node) SetProperty(predicate, value string) {
	if n.Properties == nil {
		n.Properties = make(map[string]string)
	}
	n.Properties[predicate] = value
}

func (n *Node) MarshalJSON() ([]byte, error) {
	fixed := []field{{"id", n.ID}, {"group", n.Group}}
	var trailing []field
	if n.Properties != nil {
		trailing = append(trailing, field{"properties", n.Properties})
	}
	return marshalObject(fixed, &n.Attributes, trailing)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	raw, attrs, err := unmarshalObject(data, map[string]bool{"id": true, "group": true, "properties": true})
	if err != nil {
		return err
	}

	*n = Node{Attributes: *attrs}
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &n.ID); err != nil {
			return err
		}
	}
	if v, ok := raw["group"]; ok {
		if err := json.Unmarshal(v, &n.Group); err != nil {
			return err
		}
	}
	if v, ok := raw["properties"]; ok {
		if err := json.Unmarshal(v, &n.Properties); err != nil {
			return err
		}
	}
	return nil
}
