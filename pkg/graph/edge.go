package graph

import (
	"encoding/json"
)

// EdgeKey identifies an edge by its endpoints. It is compared as a value,
// so node ids containing "-" cannot collide.
type EdgeKey struct {
	From string
	To   string
}

// Reverse returns the key pointing the other way
func (k EdgeKey) Reverse() EdgeKey {
	return EdgeKey{From: k.To, To: k.From}
}

// String renders the key as an edge id ("from-to").
func (k EdgeKey) String() string {
	return k.From + "-" + k.To
}

// Edge connects two nodes.
type Edge struct {
	ID   string
	From string
	To   string

	Attributes Attributes

	// Count is the number of row-derived edges bundled into this one.
	// Zero when counting is disabled.
	Count int
}

// NewEdge creates an edge whose id is derived from its endpoints.
func NewEdge(from, to string) *Edge {
	return &Edge{
		ID:   EdgeKey{From: from, To: to}.String(),
		From: from,
		To:   to,
	}
}

// Key returns the endpoint pair of the edge
func (e *Edge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To}
}

func (e *Edge) MarshalJSON() ([]byte, error) {
	fixed := []field{{"id", e.ID}, {"from", e.From}, {"to", e.To}}
	var trailing []field
	if e.Count > 0 {
		trailing = append(trailing, field{"_count", e.Count})
	}
	return marshalObject(fixed, &e.Attributes, trailing)
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	raw, attrs, err := unmarshalObject(data, map[string]bool{"id": true, "from": true, "to": true, "_count": true})
	if err != nil {
		return err
	}

	*e = Edge{Attributes: *attrs}
	for key, dst := range map[string]any{"id": &e.ID, "from": &e.From, "to": &e.To, "_count": &e.Count} {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return err
			}
		}
	}
	return nil
}
