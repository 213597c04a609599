// Package params implements the nested parameter tree shared by the planner
// and the orchestrator. Values are addressed by dotted key paths
// ("scf.mixing_percent") so callers stay independent of any concrete solver's
// input format.
package params

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// Tree is a nested parameter dictionary with dotted-path access.
// It is not safe for concurrent mutation; each session works on its own copy.
type Tree struct {
	root map[string]any
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: make(map[string]any)}
}

// FromMap builds a tree from a nested map. The input is deep-copied so later
// mutations of the tree never alias the caller's data.
func FromMap(m map[string]any) *Tree {
	return &Tree{root: copyMap(m)}
}

// FromJSON parses a JSON object into a tree.
func FromJSON(data []byte) (*Tree, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, domain.WrapEngineError(domain.ErrParameterType.Code, "parse parameter JSON", err)
	}
	return &Tree{root: m}, nil
}

// Get resolves a dotted path. The second return is false when any segment is
// missing or a non-leaf segment is not a nested map.
func (t *Tree) Get(path string) (any, bool) {
	cur := t.root
	segs := strings.Split(path, ".")
	for i, seg := range segs {
		v, ok := cur[seg]
		if !ok {
			return nil, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// GetFloat resolves a path to a float64, accepting int and float values.
func (t *Tree) GetFloat(path string) (float64, bool) {
	v, ok := t.Get(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Set writes a value at a dotted path, creating intermediate maps as needed.
// It fails if an intermediate segment already holds a non-map leaf.
func (t *Tree) Set(path string, value any) error {
	cur := t.root
	segs := strings.Split(path, ".")
	for _, seg := range segs[:len(segs)-1] {
		v, ok := cur[seg]
		if !ok {
			next := make(map[string]any)
			cur[seg] = next
			cur = next
			continue
		}
		next, ok := v.(map[string]any)
		if !ok {
			return domain.NewEngineError(domain.ErrParameterPath.Code,
				fmt.Sprintf("segment %q of %q is not a nested block", seg, path))
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
	return nil
}

// SetDefault writes value at path only when the path is absent, and returns
// the value now present there.
func (t *Tree) SetDefault(path string, value any) (any, error) {
	if v, ok := t.Get(path); ok {
		return v, nil
	}
	if err := t.Set(path, value); err != nil {
		return nil, err
	}
	return value, nil
}

// Clone returns an independent deep copy of the tree.
func (t *Tree) Clone() *Tree {
	return &Tree{root: copyMap(t.root)}
}

// Snapshot returns a deep copy of the underlying map, suitable for recording
// on a CalculationAttempt without aliasing the live tree.
func (t *Tree) Snapshot() map[string]any {
	return copyMap(t.root)
}

// ToJSON renders the tree as canonical JSON (keys sorted by encoding/json).
func (t *Tree) ToJSON() ([]byte, error) {
	return json.Marshal(t.root)
}

// Fingerprint returns the blake3 hash of the canonical JSON rendering,
// used as an integrity checksum when attempts are archived.
func (t *Tree) Fingerprint() string {
	data, err := t.ToJSON()
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	default:
		return val
	}
}
