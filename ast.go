package cfg

// Node is the AST node interface. Every node answers Pos with the location
// of its first token.
type Node interface {
	Pos() Location
}

// TokenNode is a leaf: a scalar token used directly as an expression.
type TokenNode struct {
	Tok Token
}

func (n *TokenNode) Pos() Location { return n.Tok.Start }

// UnaryNode is `op operand`: PLUS, MINUS, TILDE, NOT, AT (include), DOLLAR
// (reference).
type UnaryNode struct {
	Kind    Kind
	Operand Node
	Loc     Location
}

func (n *UnaryNode) Pos() Location { return n.Loc }

// BinaryNode is `left op right`: arithmetic, bitwise, logical, comparison,
// and the DOT/LBRACK/COLON path-navigation operators.
type BinaryNode struct {
	Kind  Kind
	Left  Node
	Right Node
}

func (n *BinaryNode) Pos() Location { return n.Left.Pos() }

// SliceNode is the `[start:stop:step]` trailer. Any of the three may be
// nil; a nil Step means 1.
type SliceNode struct {
	Start Node
	Stop  Node
	Step  Node
	Loc   Location
}

func (n *SliceNode) Pos() Location { return n.Loc }

// ListNode is an ordered `[a, b, c]` expression sequence.
type ListNode struct {
	Elements []Node
	Loc      Location
}

func (n *ListNode) Pos() Location { return n.Loc }

// MappingEntry is one `key: value` pair of a MappingNode, in source order.
type MappingEntry struct {
	Key   Token
	Value Node
}

// MappingNode is an ordered `{key: value, ...}` expression sequence.
// Duplicate-key detection happens after parsing, not here.
type MappingNode struct {
	Elements []MappingEntry
	Loc      Location
}

func (n *MappingNode) Pos() Location { return n.Loc }
