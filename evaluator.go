package cfg

import (
	"fmt"
	"math"
	"math/cmplx"
	"reflect"
	"sort"
	"strings"

	"dario.cat/mergo"
)

// litNode wraps an already-evaluated value so it can stand in for AST where
// the evaluator needs one, e.g. the synthesized result of a mapping merge.
type litNode struct {
	val interface{}
	loc Location
}

func (n *litNode) Pos() Location { return n.loc }

// evalNode is the evaluator's single dispatch point: every Node variant
// funnels through here.
func (c *Config) evalNode(n Node) (interface{}, error) {
	switch v := n.(type) {
	case *litNode:
		return v.val, nil
	case *TokenNode:
		return c.evalToken(v.Tok)
	case *UnaryNode:
		return c.evalUnary(v)
	case *BinaryNode:
		return c.evalBinary(v)
	case *MappingNode:
		return newMappingValue(c, v)
	case *ListNode:
		return newListValue(c, v), nil
	default:
		return nil, configErr(n.Pos(), "cannot evaluate node of type %T", n)
	}
}

func (c *Config) evalToken(t Token) (interface{}, error) {
	switch t.Kind {
	case INTEGER, FLOAT, COMPLEX, STRING, TRUE, FALSE:
		return t.Value, nil
	case NULL:
		return nil, nil
	case WORD:
		v, ok := c.context[t.Text]
		if !ok {
			return nil, configErr(t.Start, "Unknown variable: %s", t.Text)
		}
		return v, nil
	case BACKTICK:
		return c.convertSpecial(t.Value.(string), t.Start)
	default:
		return nil, configErr(t.Start, "cannot evaluate token of kind %s", tokenRepr(t.Kind))
	}
}

func (c *Config) evalUnary(u *UnaryNode) (interface{}, error) {
	switch u.Kind {
	case NOT:
		v, err := c.evalNode(u.Operand)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case PLUS:
		v, err := c.evalNode(u.Operand)
		if err != nil {
			return nil, err
		}
		if numKind(v) < 0 {
			return nil, configErr(u.Loc, "unable to + %v", v)
		}
		return v, nil
	case MINUS:
		v, err := c.evalNode(u.Operand)
		if err != nil {
			return nil, err
		}
		return negate(v, u.Loc)
	case TILDE:
		v, err := c.evalNode(u.Operand)
		if err != nil {
			return nil, err
		}
		i, ok := toInt(v)
		if !ok {
			return nil, configErr(u.Loc, "unable to ~ %v", v)
		}
		return int64(^i), nil
	case AT:
		return c.evalInclude(u)
	case DOLLAR:
		return c.evalReference(u)
	default:
		return nil, configErr(u.Loc, "cannot evaluate unary kind %s", tokenRepr(u.Kind))
	}
}

func (c *Config) evalBinary(b *BinaryNode) (interface{}, error) {
	switch b.Kind {
	case DOT:
		left, err := c.evalNode(b.Left)
		if err != nil {
			return nil, err
		}
		name, ok := b.Right.(*TokenNode)
		if !ok {
			return nil, configErr(b.Pos(), "invalid path navigation")
		}
		return c.applyDot(left, name.Tok.Text, b.Pos())
	case LBRACK:
		left, err := c.evalNode(b.Left)
		if err != nil {
			return nil, err
		}
		return c.applyIndex(left, b.Right, b.Pos())
	case COLON:
		left, err := c.evalNode(b.Left)
		if err != nil {
			return nil, err
		}
		sl, ok := b.Right.(*SliceNode)
		if !ok {
			return nil, configErr(b.Pos(), "invalid slice")
		}
		return c.applySlice(left, sl, b.Pos())
	case AND:
		left, err := c.evalNode(b.Left)
		if err != nil {
			return nil, err
		}
		if !truthy(left) {
			return false, nil
		}
		right, err := c.evalNode(b.Right)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case OR:
		left, err := c.evalNode(b.Left)
		if err != nil {
			return nil, err
		}
		if truthy(left) {
			return true, nil
		}
		right, err := c.evalNode(b.Right)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case LT, LE, GT, GE, EQ, NEQ, ALTNEQ, IS, ISNOT, IN, NOTIN:
		left, err := c.evalNode(b.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.evalNode(b.Right)
		if err != nil {
			return nil, err
		}
		return compareOp(b.Kind, left, right, b.Pos())
	default:
		left, err := c.evalNode(b.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.evalNode(b.Right)
		if err != nil {
			return nil, err
		}
		return arith(b.Kind, left, right, b.Pos())
	}
}

// applyDot, applyIndex, and applySlice apply one path-navigation step to an
// already-evaluated base value; they back both the `${...}` path walk and
// plain dotted/bracketed expressions.
func (c *Config) applyDot(base interface{}, name string, loc Location) (interface{}, error) {
	switch v := base.(type) {
	case *MappingValue:
		n, ok := v.BaseGet(name)
		if !ok {
			return nil, configErr(loc, "Not found in configuration: %s", name)
		}
		return v.owner.evalNode(n)
	case *Config:
		return c.applyDot(v.root, name, loc)
	default:
		return nil, configErr(loc, "string required, but found %v", base)
	}
}

func (c *Config) applyIndex(base interface{}, idxNode Node, loc Location) (interface{}, error) {
	if sub, ok := base.(*Config); ok {
		return c.applyIndex(sub.root, idxNode, loc)
	}

	lv, ok := base.(*ListValue)
	if !ok {
		return nil, badIndexErr(loc, "integer required, but found %v", base)
	}

	idx, err := c.evalIndexOperand(idxNode)
	if err != nil {
		return nil, err
	}

	n := lv.Len()
	orig := idx

	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return nil, badIndexErr(loc, "index out of range: is %d, must be between 0 and %d", orig, n-1)
	}
	return lv.Get(idx)
}

func (c *Config) applySlice(base interface{}, sl *SliceNode, loc Location) (interface{}, error) {
	if sub, ok := base.(*Config); ok {
		return c.applySlice(sub.root, sl, loc)
	}

	lv, ok := base.(*ListValue)
	if !ok {
		return nil, badIndexErr(loc, "slices can only operate on lists")
	}
	return c.evalSlice(lv, sl)
}

func (c *Config) evalIndexOperand(n Node) (int, error) {
	v, err := c.evalNode(n)
	if err != nil {
		return 0, err
	}
	i, ok := toInt(v)
	if !ok {
		return 0, badIndexErr(n.Pos(), "integer required, but found %v", v)
	}
	return i, nil
}

func clampPos(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return i
}

func clampNeg(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < -1 {
		i = -1
	}
	if i > n-1 {
		i = n - 1
	}
	return i
}

// evalSlice implements the Python-like slice semantics of spec §4.6: for a
// positive step, start is inclusive and stop exclusive; for a negative
// step, the iteration runs downward with stop exclusive on the low side.
func (c *Config) evalSlice(lv *ListValue, sl *SliceNode) (*ListValue, error) {
	n := lv.Len()
	step := 1

	if sl.Step != nil {
		v, err := c.evalNode(sl.Step)
		if err != nil {
			return nil, err
		}
		iv, ok := toInt(v)
		if !ok {
			return nil, badIndexErr(sl.Loc, "integer required, but found %v", v)
		}
		step = iv
	}
	if step == 0 {
		return nil, badIndexErr(sl.Loc, "slice step cannot be zero")
	}

	var startPtr, stopPtr *int

	if sl.Start != nil {
		v, err := c.evalNode(sl.Start)
		if err != nil {
			return nil, err
		}
		iv, ok := toInt(v)
		if !ok {
			return nil, badIndexErr(sl.Loc, "integer required, but found %v", v)
		}
		startPtr = &iv
	}
	if sl.Stop != nil {
		v, err := c.evalNode(sl.Stop)
		if err != nil {
			return nil, err
		}
		iv, ok := toInt(v)
		if !ok {
			return nil, badIndexErr(sl.Loc, "integer required, but found %v", v)
		}
		stopPtr = &iv
	}

	var start, stop int

	if step > 0 {
		start, stop = 0, n
		if startPtr != nil {
			start = clampPos(*startPtr, n)
		}
		if stopPtr != nil {
			stop = clampPos(*stopPtr, n)
		}
	} else {
		start, stop = n-1, -1
		if startPtr != nil {
			start = clampNeg(*startPtr, n)
		}
		if stopPtr != nil {
			stop = clampNeg(*stopPtr, n)
		}
	}

	var elems []Node

	if step > 0 {
		for i := start; i < stop; i += step {
			e, _ := lv.BaseGet(i)
			elems = append(elems, e)
		}
	} else {
		for i := start; i > stop; i += step {
			e, _ := lv.BaseGet(i)
			elems = append(elems, e)
		}
	}

	return &ListValue{owner: lv.owner, elements: elems, loc: lv.loc}, nil
}

// walkPath performs a left-to-right path walk from the Config's root,
// switching evaluation context to a sub-Config whenever a step resolves
// through an `@`-include.
func (c *Config) walkPath(node Node) (interface{}, error) {
	steps, err := pathIterator(node)
	if err != nil {
		src, _ := ToSource(node)
		return nil, newInvalidPathError(src, err)
	}
	if len(steps) == 0 {
		return nil, newInvalidPathError("", fmt.Errorf("empty path"))
	}

	root := steps[0]

	n, ok := c.root.BaseGet(root.Name)
	if !ok {
		return nil, configErr(node.Pos(), "Not found in configuration: %s", root.Name)
	}

	owner := c.root.owner

	cur, err := owner.evalNode(n)
	if err != nil {
		return nil, err
	}

	for _, st := range steps[1:] {
		switch st.Kind {
		case stepDot:
			cur, err = owner.applyDot(cur, st.Name, node.Pos())
		case stepIndex:
			cur, err = owner.applyIndex(cur, st.Index, node.Pos())
		case stepSlice:
			cur, err = owner.applySlice(cur, st.Slice, node.Pos())
		}
		if err != nil {
			return nil, err
		}

		if sub, ok := cur.(*Config); ok {
			owner = sub
		}
	}

	return cur, nil
}

// evalReference evaluates `${...}`, detecting cycles through a per-Config
// stack of in-flight reference nodes.
func (c *Config) evalReference(u *UnaryNode) (interface{}, error) {
	if c.refSeen[u] {
		err := c.buildCycleError(u)
		if c.debugLog {
			debugEvent("cycle", u.Loc, err.Error())
		}
		return nil, err
	}

	c.refSeen[u] = true
	c.refStack = append(c.refStack, u)

	v, err := c.walkPath(u.Operand)

	c.refStack = c.refStack[:len(c.refStack)-1]
	delete(c.refSeen, u)

	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Config) buildCycleError(u *UnaryNode) error {
	idx := -1
	for i, n := range c.refStack {
		if n == u {
			idx = i
			break
		}
	}

	var nodes []*UnaryNode
	if idx >= 0 {
		nodes = c.refStack[idx:]
	} else {
		nodes = []*UnaryNode{u}
	}

	entries := make([]refEntry, len(nodes))
	for i, n := range nodes {
		src, _ := ToSource(n.Operand)
		entries[i] = refEntry{source: src, loc: n.Loc}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].source < entries[j].source })
	return &CircularReferenceError{Entries: entries}
}

// --- arithmetic, comparison, merge/subtract ---

func numKind(v interface{}) int {
	switch v.(type) {
	case int64:
		return 0
	case float64:
		return 1
	case complex128:
		return 2
	default:
		return -1
	}
}

func toComplex128(v interface{}) complex128 {
	switch vv := v.(type) {
	case int64:
		return complex(float64(vv), 0)
	case float64:
		return complex(vv, 0)
	case complex128:
		return vv
	}
	return 0
}

func toFloat64(v interface{}) (float64, bool) {
	switch vv := v.(type) {
	case int64:
		return float64(vv), true
	case float64:
		return vv, true
	}
	return 0, false
}

func toInt(v interface{}) (int, bool) {
	switch vv := v.(type) {
	case int64:
		return int(vv), true
	case float64:
		if vv == math.Trunc(vv) {
			return int(vv), true
		}
	}
	return 0, false
}

func truthy(v interface{}) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case bool:
		return vv
	case int64:
		return vv != 0
	case float64:
		return vv != 0
	case complex128:
		return vv != 0
	case string:
		return vv != ""
	case *ListValue:
		return vv.Len() > 0
	case *MappingValue:
		return len(vv.entries) > 0
	default:
		return true
	}
}

func negate(v interface{}, loc Location) (interface{}, error) {
	switch vv := v.(type) {
	case int64:
		return -vv, nil
	case float64:
		return -vv, nil
	case complex128:
		return -vv, nil
	default:
		return nil, configErr(loc, "unable to - %v", v)
	}
}

func opSymbol(k Kind) string {
	switch k {
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case STAR:
		return "*"
	case SLASH:
		return "/"
	case SLASHSLASH:
		return "//"
	case MODULO:
		return "%"
	case POWER:
		return "**"
	case BITAND:
		return "&"
	case BITOR:
		return "|"
	case BITXOR:
		return "^"
	case LSHIFT:
		return "<<"
	case RSHIFT:
		return ">>"
	default:
		return tokenRepr(k)
	}
}

func intPow(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func arith(op Kind, l, r interface{}, loc Location) (interface{}, error) {
	switch op {
	case PLUS:
		if ls, ok := l.(string); ok {
			if rs, ok2 := r.(string); ok2 {
				return ls + rs, nil
			}
		}
		if llv, ok := l.(*ListValue); ok {
			if rlv, ok2 := r.(*ListValue); ok2 {
				elems := append(append([]Node{}, llv.elements...), rlv.elements...)
				return &ListValue{owner: llv.owner, elements: elems, loc: llv.loc}, nil
			}
		}
		if lmv, ok := l.(*MappingValue); ok {
			if rmv, ok2 := r.(*MappingValue); ok2 {
				return mergeMappings(lmv, rmv, loc)
			}
		}
		return numericBinOp(op, l, r, loc)
	case MINUS:
		if lmv, ok := l.(*MappingValue); ok {
			if rmv, ok2 := r.(*MappingValue); ok2 {
				return subtractMappings(lmv, rmv), nil
			}
		}
		return numericBinOp(op, l, r, loc)
	case BITOR:
		if lmv, ok := l.(*MappingValue); ok {
			if rmv, ok2 := r.(*MappingValue); ok2 {
				return mergeMappings(lmv, rmv, loc)
			}
		}
		return numericBinOp(op, l, r, loc)
	default:
		return numericBinOp(op, l, r, loc)
	}
}

func numericBinOp(op Kind, l, r interface{}, loc Location) (interface{}, error) {
	lk, rk := numKind(l), numKind(r)
	if lk < 0 || rk < 0 {
		return nil, configErr(loc, "unable to %s %v and/by %v", opSymbol(op), l, r)
	}

	switch op {
	case BITAND, BITOR, BITXOR, LSHIFT, RSHIFT:
		li, lok := toInt(l)
		ri, rok := toInt(r)
		if !lok || !rok {
			return nil, configErr(loc, "unable to %s %v and/by %v", opSymbol(op), l, r)
		}
		switch op {
		case BITAND:
			return int64(li & ri), nil
		case BITOR:
			return int64(li | ri), nil
		case BITXOR:
			return int64(li ^ ri), nil
		case LSHIFT:
			return int64(li << ri), nil
		case RSHIFT:
			return int64(li >> ri), nil
		}
	case MODULO:
		li, lok := toInt(l)
		ri, rok := toInt(r)
		if !lok || !rok || ri == 0 {
			return nil, configErr(loc, "unable to %% %v and/by %v", l, r)
		}
		m := li % ri
		if m != 0 && ((m < 0) != (ri < 0)) {
			m += ri
		}
		return int64(m), nil
	case SLASHSLASH:
		if lk == 0 && rk == 0 {
			li, _ := toInt(l)
			ri, _ := toInt(r)
			if ri == 0 {
				return nil, configErr(loc, "unable to // %v and/by %v", l, r)
			}
			q := li / ri
			if li%ri != 0 && ((li < 0) != (ri < 0)) {
				q--
			}
			return int64(q), nil
		}
		lf, _ := toFloat64(l)
		rf, _ := toFloat64(r)
		if rf == 0 {
			return nil, configErr(loc, "unable to // %v and/by %v", l, r)
		}
		return math.Floor(lf / rf), nil
	case SLASH:
		if lk == 2 || rk == 2 {
			rc := toComplex128(r)
			if rc == 0 {
				return nil, configErr(loc, "unable to / %v and/by %v", l, r)
			}
			return toComplex128(l) / rc, nil
		}
		lf, _ := toFloat64(l)
		rf, _ := toFloat64(r)
		if rf == 0 {
			return nil, configErr(loc, "unable to / %v and/by %v", l, r)
		}
		return lf / rf, nil
	case POWER:
		if lk == 2 || rk == 2 {
			return cmplx.Pow(toComplex128(l), toComplex128(r)), nil
		}
		if lk == 0 && rk == 0 {
			li, _ := toInt(l)
			ri, _ := toInt(r)
			if ri >= 0 {
				return int64(intPow(li, ri)), nil
			}
		}
		lf, _ := toFloat64(l)
		rf, _ := toFloat64(r)
		return math.Pow(lf, rf), nil
	default: // PLUS, MINUS, STAR
		if lk == 2 || rk == 2 {
			lc, rc := toComplex128(l), toComplex128(r)
			switch op {
			case PLUS:
				return lc + rc, nil
			case MINUS:
				return lc - rc, nil
			case STAR:
				return lc * rc, nil
			}
		}
		if lk == 0 && rk == 0 {
			li, _ := toInt(l)
			ri, _ := toInt(r)
			switch op {
			case PLUS:
				return int64(li + ri), nil
			case MINUS:
				return int64(li - ri), nil
			case STAR:
				return int64(li * ri), nil
			}
		}
		lf, _ := toFloat64(l)
		rf, _ := toFloat64(r)
		switch op {
		case PLUS:
			return lf + rf, nil
		case MINUS:
			return lf - rf, nil
		case STAR:
			return lf * rf, nil
		}
	}
	return nil, configErr(loc, "unable to %s %v and/by %v", opSymbol(op), l, r)
}

func valuesEqual(l, r interface{}) bool {
	lk, rk := numKind(l), numKind(r)
	if lk >= 0 && rk >= 0 {
		return toComplex128(l) == toComplex128(r)
	}
	return reflect.DeepEqual(l, r)
}

func membership(l, r interface{}) (bool, error) {
	switch rv := r.(type) {
	case *ListValue:
		for i := 0; i < rv.Len(); i++ {
			v, err := rv.Get(i)
			if err != nil {
				return false, err
			}
			if valuesEqual(l, v) {
				return true, nil
			}
		}
		return false, nil
	case *MappingValue:
		ls, ok := l.(string)
		if !ok {
			return false, fmt.Errorf("string required, but found %v", l)
		}
		_, found := rv.BaseGet(ls)
		return found, nil
	case string:
		ls, ok := l.(string)
		if !ok {
			return false, fmt.Errorf("string required, but found %v", l)
		}
		return strings.Contains(rv, ls), nil
	default:
		return false, fmt.Errorf("'in' requires a list, mapping, or string")
	}
}

func orderedCompare(op Kind, l, r interface{}, loc Location) (interface{}, error) {
	if ls, ok := l.(string); ok {
		if rs, ok2 := r.(string); ok2 {
			switch op {
			case LT:
				return ls < rs, nil
			case LE:
				return ls <= rs, nil
			case GT:
				return ls > rs, nil
			case GE:
				return ls >= rs, nil
			}
		}
	}

	lf, lok := toFloat64(l)
	rf, rok := toFloat64(r)
	if !lok || !rok {
		return nil, configErr(loc, "unable to compare %v and %v", l, r)
	}

	switch op {
	case LT:
		return lf < rf, nil
	case LE:
		return lf <= rf, nil
	case GT:
		return lf > rf, nil
	case GE:
		return lf >= rf, nil
	}
	return nil, configErr(loc, "unable to compare %v and %v", l, r)
}

func compareOp(op Kind, l, r interface{}, loc Location) (interface{}, error) {
	switch op {
	case IN, NOTIN:
		found, err := membership(l, r)
		if err != nil {
			return nil, configErrWrap(loc, err, "unable to evaluate 'in'")
		}
		if op == NOTIN {
			return !found, nil
		}
		return found, nil
	case IS:
		return valuesEqual(l, r), nil
	case ISNOT:
		return !valuesEqual(l, r), nil
	case EQ:
		return valuesEqual(l, r), nil
	case NEQ, ALTNEQ:
		return !valuesEqual(l, r), nil
	case LT, LE, GT, GE:
		return orderedCompare(op, l, r, loc)
	}
	return nil, configErr(loc, "cannot compare")
}

func wrapPlainMapping(owner *Config, m map[string]interface{}, order []string) *MappingValue {
	mv := &MappingValue{owner: owner, index: make(map[string]int, len(order))}

	for _, k := range order {
		mv.index[k] = len(mv.entries)
		mv.entries = append(mv.entries, mapEntry{keyStr: k, val: wrapPlainValue(owner, m[k])})
	}
	return mv
}

// wrapPlainValue rewraps a native Go value produced by AsPlain/mergo back
// into the lazy wrapper types the evaluator navigates (MappingValue,
// ListValue), recursing into nested maps and lists so a path walk into a
// merge result works at any depth, not just the top level. Nested mapping
// key order isn't available past the top level (AsPlain already flattened
// it before mergo ran), so nested mappings are re-wrapped in sorted key
// order.
func wrapPlainValue(owner *Config, v interface{}) Node {
	switch vv := v.(type) {
	case map[string]interface{}:
		order := make([]string, 0, len(vv))
		for k := range vv {
			order = append(order, k)
		}
		sort.Strings(order)
		return &litNode{val: wrapPlainMapping(owner, vv, order)}
	case []interface{}:
		elems := make([]Node, len(vv))
		for i, e := range vv {
			elems[i] = wrapPlainValue(owner, e)
		}
		return &litNode{val: &ListValue{owner: owner, elements: elems}}
	default:
		return &litNode{val: v}
	}
}

// mergeMappings implements `mapping + mapping` and `mapping | mapping`: a
// deep merge where the right operand wins on scalar collisions. The actual
// recursive merge is delegated to mergo so nested mappings combine
// correctly without a hand-rolled walk.
func mergeMappings(l, r *MappingValue, loc Location) (*MappingValue, error) {
	lp, err := l.AsPlain()
	if err != nil {
		return nil, err
	}
	rp, err := r.AsPlain()
	if err != nil {
		return nil, err
	}

	merged := make(map[string]interface{}, len(lp)+len(rp))
	for k, v := range lp {
		merged[k] = v
	}

	if err := mergo.Merge(&merged, rp, mergo.WithOverride); err != nil {
		return nil, configErrWrap(loc, err, "unable to merge mappings")
	}

	order := append([]string{}, l.Keys()...)
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		seen[k] = true
	}
	for _, k := range r.Keys() {
		if !seen[k] {
			order = append(order, k)
			seen[k] = true
		}
	}

	return wrapPlainMapping(r.owner, merged, order), nil
}

// subtractMappings implements `mapping - mapping`: l with any top-level key
// present in r removed. No recursion, and no merge library needed here.
func subtractMappings(l, r *MappingValue) *MappingValue {
	drop := make(map[string]bool, len(r.entries))
	for _, k := range r.Keys() {
		drop[k] = true
	}

	mv := &MappingValue{owner: l.owner, index: make(map[string]int)}
	for _, e := range l.entries {
		if drop[e.keyStr] {
			continue
		}
		mv.index[e.keyStr] = len(mv.entries)
		mv.entries = append(mv.entries, e)
	}
	return mv
}
