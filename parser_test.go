package cfg

import "testing"

func parseExprString(t *testing.T, src string) Node {
	t.Helper()

	node, err := Parse(src, "expr")
	if err != nil {
		t.Fatalf("Parse(%q): %s", src, err)
	}
	return node
}

func Test_Parser_Precedence(t *testing.T) {
	node := parseExprString(t, "1 + 2 * 3")

	bin, ok := node.(*BinaryNode)
	if !ok || bin.Kind != PLUS {
		t.Fatalf("expected top-level '+', got %#v", node)
	}

	right, ok := bin.Right.(*BinaryNode)
	if !ok || right.Kind != STAR {
		t.Fatalf("expected right operand to be '*', got %#v", bin.Right)
	}
}

func Test_Parser_PowerIsRightAssociative(t *testing.T) {
	node := parseExprString(t, "2 ** 3 ** 2")

	bin, ok := node.(*BinaryNode)
	if !ok || bin.Kind != POWER {
		t.Fatalf("expected top-level '**', got %#v", node)
	}

	if _, ok := bin.Left.(*TokenNode); !ok {
		t.Errorf("expected left operand to be a single token, got %#v", bin.Left)
	}
	right, ok := bin.Right.(*BinaryNode)
	if !ok || right.Kind != POWER {
		t.Errorf("expected right operand to itself be '**', got %#v", bin.Right)
	}
}

func Test_Parser_NotInAndIsNot(t *testing.T) {
	node := parseExprString(t, "x not in y")
	bin, ok := node.(*BinaryNode)
	if !ok || bin.Kind != NOTIN {
		t.Fatalf("expected NOTIN, got %#v", node)
	}

	node = parseExprString(t, "x is not y")
	bin, ok = node.(*BinaryNode)
	if !ok || bin.Kind != ISNOT {
		t.Fatalf("expected ISNOT, got %#v", node)
	}
}

func Test_Parser_LeadingNot(t *testing.T) {
	node := parseExprString(t, "not x")

	un, ok := node.(*UnaryNode)
	if !ok || un.Kind != NOT {
		t.Fatalf("expected leading NOT, got %#v", node)
	}
}

func Test_Parser_Mapping(t *testing.T) {
	node, err := Parse(`{a: 1, b: 2}`, "")
	if err != nil {
		t.Fatal(err)
	}

	m, ok := node.(*MappingNode)
	if !ok {
		t.Fatalf("expected MappingNode, got %#v", node)
	}
	if len(m.Elements) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m.Elements))
	}
	if m.Elements[0].Key.Text != "a" || m.Elements[1].Key.Text != "b" {
		t.Errorf("unexpected key order: %s, %s", m.Elements[0].Key.Text, m.Elements[1].Key.Text)
	}
}

func Test_Parser_BareMappingBody(t *testing.T) {
	node, err := Parse("a: 1\nb: 2\n", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := node.(*MappingNode); !ok {
		t.Fatalf("expected a bare mapping body to parse as MappingNode, got %#v", node)
	}
}

func Test_Parser_MissingSeparatorError(t *testing.T) {
	_, err := Parse("a 1", "")
	if err == nil {
		t.Fatal("expected an error for a missing ':' or '='")
	}
}

func Test_Parser_IndexAndSlice(t *testing.T) {
	node := parseExprString(t, "x[1]")
	bin, ok := node.(*BinaryNode)
	if !ok || bin.Kind != LBRACK {
		t.Fatalf("expected LBRACK trailer, got %#v", node)
	}

	node = parseExprString(t, "x[1:4:2]")
	bin, ok = node.(*BinaryNode)
	if !ok || bin.Kind != COLON {
		t.Fatalf("expected COLON (slice) trailer, got %#v", node)
	}
	sl, ok := bin.Right.(*SliceNode)
	if !ok {
		t.Fatalf("expected slice trailer operand to be a SliceNode, got %#v", bin.Right)
	}
	if sl.Start == nil || sl.Stop == nil || sl.Step == nil {
		t.Errorf("expected all three slice parts to be present, got %#v", sl)
	}
}

func Test_Parser_TooManyColonsInSlice(t *testing.T) {
	if _, err := Parse("x[1:2:3:4]", "expr"); err == nil {
		t.Fatal("expected an error for a 4-part slice")
	}
}

func Test_Parser_DollarReference(t *testing.T) {
	node := parseExprString(t, "${a.b[0]}")

	un, ok := node.(*UnaryNode)
	if !ok || un.Kind != DOLLAR {
		t.Fatalf("expected DOLLAR unary, got %#v", node)
	}
	if _, err := ToSource(un.Operand); err != nil {
		t.Errorf("expected the reference operand to be a reconstructable path: %s", err)
	}
}

func Test_Parser_AtInclude(t *testing.T) {
	node := parseExprString(t, `@ "other.cfg"`)

	un, ok := node.(*UnaryNode)
	if !ok || un.Kind != AT {
		t.Fatalf("expected AT unary, got %#v", node)
	}
}

func Test_Parser_ConcatenatedStringKey(t *testing.T) {
	node, err := Parse(`'a' 'b': 1`, "")
	if err != nil {
		t.Fatal(err)
	}

	m := node.(*MappingNode)
	if m.Elements[0].Key.Value.(string) != "ab" {
		t.Errorf("expected concatenated key %q, got %q", "ab", m.Elements[0].Key.Value)
	}
}
