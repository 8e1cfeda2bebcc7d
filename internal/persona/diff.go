package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Change is one field-level difference between two persona documents.
// Both sides are rendered as canonical JSON so list and map fields
// compare stably.
type Change struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Diff lists the top-level fields that differ between two documents,
// sorted by field name.
func Diff(a, b *Persona) ([]Change, error) {
	am, err := fieldMap(a)
	if err != nil {
		return nil, err
	}
	bm, err := fieldMap(b)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(am))
	for k := range am {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	changes := []Change{}
	for _, f := range fields {
		av, err := canonicalJSON(am[f])
		if err != nil {
			return nil, err
		}
		bv, err := canonicalJSON(bm[f])
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(av, bv) {
			changes = append(changes, Change{Field: f, From: string(av), To: string(bv)})
		}
	}
	return changes, nil
}

func fieldMap(p *Persona) (map[string]interface{}, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal persona: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decompose persona: %w", err)
	}
	return m, nil
}
