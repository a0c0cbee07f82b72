package cfg

import "fmt"

type mapEntry struct {
	keyStr string
	keyTok Token
	val    Node
}

// MappingValue is a lazy, insertion-ordered view over a MappingNode: keys
// map to unevaluated AST until Get is called. It holds a back-reference to
// the owning Config so Get can recurse into the shared evaluator.
type MappingValue struct {
	owner   *Config
	entries []mapEntry
	index   map[string]int
}

func newMappingValue(owner *Config, node *MappingNode) (*MappingValue, error) {
	mv := &MappingValue{owner: owner, index: make(map[string]int, len(node.Elements))}

	for _, e := range node.Elements {
		keyStr, ok := e.Key.Value.(string)
		if !ok {
			keyStr = e.Key.Text
		}

		if i, exists := mv.index[keyStr]; exists {
			if owner.noDuplicates {
				prev := mv.entries[i].keyTok
				return nil, &ConfigError{Msg: fmt.Sprintf("Duplicate key %s seen at %s (previously at %s)", keyStr, e.Key.Start, prev.Start)}
			}
			mv.entries[i] = mapEntry{keyStr: keyStr, keyTok: e.Key, val: e.Value}
			continue
		}

		mv.index[keyStr] = len(mv.entries)
		mv.entries = append(mv.entries, mapEntry{keyStr: keyStr, keyTok: e.Key, val: e.Value})
	}
	return mv, nil
}

// Keys returns the mapping's keys in insertion order.
func (mv *MappingValue) Keys() []string {
	keys := make([]string, len(mv.entries))
	for i, e := range mv.entries {
		keys[i] = e.keyStr
	}
	return keys
}

// BaseGet returns the raw, unevaluated AST for k.
func (mv *MappingValue) BaseGet(k string) (Node, bool) {
	i, ok := mv.index[k]
	if !ok {
		return nil, false
	}
	return mv.entries[i].val, true
}

// Get evaluates and returns the value stored under k.
func (mv *MappingValue) Get(k string) (interface{}, error) {
	n, ok := mv.BaseGet(k)
	if !ok {
		return nil, configErr(Location{}, "Not found in configuration: %s", k)
	}
	return mv.owner.evalNode(n)
}

// AsPlain recursively evaluates every entry into a native
// map[string]interface{}, unwrapping nested mappings, lists, and included
// Configs.
func (mv *MappingValue) AsPlain() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(mv.entries))

	for _, e := range mv.entries {
		v, err := mv.owner.evalNode(e.val)
		if err != nil {
			return nil, err
		}

		plain, err := plainify(v)
		if err != nil {
			return nil, err
		}
		out[e.keyStr] = plain
	}
	return out, nil
}

// ListValue is the list counterpart of MappingValue.
type ListValue struct {
	owner    *Config
	elements []Node
	loc      Location
}

func newListValue(owner *Config, node *ListNode) *ListValue {
	return &ListValue{owner: owner, elements: node.Elements, loc: node.Loc}
}

func (lv *ListValue) Len() int { return len(lv.elements) }

func (lv *ListValue) BaseGet(i int) (Node, bool) {
	if i < 0 || i >= len(lv.elements) {
		return nil, false
	}
	return lv.elements[i], true
}

func (lv *ListValue) Get(i int) (interface{}, error) {
	n, ok := lv.BaseGet(i)
	if !ok {
		return nil, badIndexErr(lv.loc, "index out of range: is %d, must be between 0 and %d", i, len(lv.elements)-1)
	}
	return lv.owner.evalNode(n)
}

// AsPlain recursively evaluates every element into a native
// []interface{}.
func (lv *ListValue) AsPlain() ([]interface{}, error) {
	out := make([]interface{}, len(lv.elements))

	for i, n := range lv.elements {
		v, err := lv.owner.evalNode(n)
		if err != nil {
			return nil, err
		}

		plain, err := plainify(v)
		if err != nil {
			return nil, err
		}
		out[i] = plain
	}
	return out, nil
}

// plainify unwraps wrapper and Config values into native Go structures;
// scalars pass through unchanged.
func plainify(v interface{}) (interface{}, error) {
	switch vv := v.(type) {
	case *MappingValue:
		return vv.AsPlain()
	case *ListValue:
		return vv.AsPlain()
	case *Config:
		return vv.AsDict()
	default:
		return v, nil
	}
}
