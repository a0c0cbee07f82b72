package cfg

import (
	"fmt"
	"strings"
)

// ParsePath parses s as a `primary` expression and requires it to begin
// with a WORD and consume the whole string. Any failure is reported as an
// InvalidPathError wrapping the underlying cause.
func ParsePath(s string) (Node, error) {
	cs, err := newCharSource("<path>", strings.NewReader(s))
	if err != nil {
		return nil, newInvalidPathError(s, err)
	}

	tz := newTokenizer("<path>", cs)

	p, err := newParser(tz)
	if err != nil {
		return nil, newInvalidPathError(s, err)
	}

	if p.tok.Kind != WORD {
		return nil, newInvalidPathError(s, parseErr(p.tok.Start, "expected %s, but found %s", tokenRepr(WORD), tokenRepr(p.tok.Kind)))
	}

	node, err := p.parsePrimary()
	if err != nil {
		return nil, newInvalidPathError(s, err)
	}

	if p.tok.Kind != EOF {
		return nil, newInvalidPathError(s, parseErr(p.tok.Start, "unexpected %s", tokenRepr(p.tok.Kind)))
	}
	return node, nil
}

// IsIdentifier reports whether s tokenizes as exactly one WORD.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}

	cs, err := newCharSource("<ident>", strings.NewReader(s))
	if err != nil {
		return false
	}

	tz := newTokenizer("<ident>", cs)

	tok, err := tz.getToken()
	if err != nil || tok.Kind != WORD {
		return false
	}

	next, err := tz.getToken()
	if err != nil || next.Kind != EOF {
		return false
	}
	return true
}

type stepKind int

const (
	stepRoot stepKind = iota
	stepDot
	stepIndex
	stepSlice
)

// pathStep is one (operator, operand) hop of a parsed path, in document
// order, rooted at the first WORD.
type pathStep struct {
	Kind  stepKind
	Name  string
	Index Node
	Slice *SliceNode
}

// pathIterator walks a path AST in-order and yields its steps.
func pathIterator(node Node) ([]pathStep, error) {
	var steps []pathStep

	var walk func(n Node) error
	walk = func(n Node) error {
		switch v := n.(type) {
		case *TokenNode:
			if v.Tok.Kind != WORD {
				return fmt.Errorf("invalid path node: %s", tokenRepr(v.Tok.Kind))
			}
			steps = append(steps, pathStep{Kind: stepRoot, Name: v.Tok.Text})
			return nil
		case *BinaryNode:
			if err := walk(v.Left); err != nil {
				return err
			}

			switch v.Kind {
			case DOT:
				name, ok := v.Right.(*TokenNode)
				if !ok || name.Tok.Kind != WORD {
					return fmt.Errorf("invalid path node after '.'")
				}
				steps = append(steps, pathStep{Kind: stepDot, Name: name.Tok.Text})
			case LBRACK:
				steps = append(steps, pathStep{Kind: stepIndex, Index: v.Right})
			case COLON:
				sl, ok := v.Right.(*SliceNode)
				if !ok {
					return fmt.Errorf("invalid path node after ':'")
				}
				steps = append(steps, pathStep{Kind: stepSlice, Slice: sl})
			default:
				return fmt.Errorf("invalid path node operator")
			}
			return nil
		default:
			return fmt.Errorf("invalid path node type %T", n)
		}
	}

	if err := walk(node); err != nil {
		return nil, err
	}
	return steps, nil
}

// exprToSource reconstructs canonical source text for the small subset of
// expressions that legally appear as index/slice operands within a path.
func exprToSource(n Node) (string, error) {
	switch v := n.(type) {
	case *TokenNode:
		return v.Tok.Text, nil
	case *UnaryNode:
		inner, err := exprToSource(v.Operand)
		if err != nil {
			return "", err
		}
		switch v.Kind {
		case MINUS:
			return "-" + inner, nil
		case PLUS:
			return "+" + inner, nil
		case TILDE:
			return "~" + inner, nil
		}
		return "", fmt.Errorf("cannot reconstruct source for unary %s", tokenRepr(v.Kind))
	default:
		return "", fmt.Errorf("cannot reconstruct source for node type %T", n)
	}
}

func sliceToSource(s *SliceNode) (string, error) {
	part := func(n Node) (string, error) {
		if n == nil {
			return "", nil
		}
		return exprToSource(n)
	}

	start, err := part(s.Start)
	if err != nil {
		return "", err
	}
	stop, err := part(s.Stop)
	if err != nil {
		return "", err
	}

	if s.Step == nil {
		return start + ":" + stop, nil
	}

	step, err := part(s.Step)
	if err != nil {
		return "", err
	}
	return start + ":" + stop + ":" + step, nil
}

// ToSource reconstructs canonical path source text from a parsed path AST,
// e.g. "foo[::2]", "foo[:]", "foo[2:]".
func ToSource(node Node) (string, error) {
	steps, err := pathIterator(node)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, st := range steps {
		switch st.Kind {
		case stepRoot:
			b.WriteString(st.Name)
		case stepDot:
			b.WriteString(".")
			b.WriteString(st.Name)
		case stepIndex:
			src, err := exprToSource(st.Index)
			if err != nil {
				return "", err
			}
			b.WriteString("[")
			b.WriteString(src)
			b.WriteString("]")
		case stepSlice:
			src, err := sliceToSource(st.Slice)
			if err != nil {
				return "", err
			}
			b.WriteString("[")
			b.WriteString(src)
			b.WriteString("]")
		}
	}
	return b.String(), nil
}
