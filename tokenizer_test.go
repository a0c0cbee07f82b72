package cfg

import (
	"strings"
	"testing"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()

	cs, err := newCharSource("<test>", strings.NewReader(src))
	if err != nil {
		t.Fatalf("newCharSource: %s", err)
	}

	tz := newTokenizer("<test>", cs)

	var toks []Token
	for {
		tok, err := tz.getToken()
		if err != nil {
			t.Fatalf("getToken(%q): %s", src, err)
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func checkKinds(t *testing.T, src string, want ...Kind) []Token {
	t.Helper()

	toks := scanAll(t, src)
	if len(toks) != len(want) {
		t.Fatalf("%q: got %d tokens, want %d (%v)", src, len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("%q: token %d kind = %s, want %s", src, i, tokenRepr(toks[i].Kind), tokenRepr(k))
		}
	}
	return toks
}

func Test_Tokenizer_Punctuation(t *testing.T) {
	checkKinds(t, "<= >= == != <> << >> // ** && ||",
		LE, GE, EQ, NEQ, ALTNEQ, LSHIFT, RSHIFT, SLASHSLASH, POWER, AND, OR, EOF)
}

func Test_Tokenizer_Keywords(t *testing.T) {
	checkKinds(t, "true false null is in not and or",
		TRUE, FALSE, NULL, IS, IN, NOT, AND, OR, EOF)
}

func Test_Tokenizer_Integers(t *testing.T) {
	cases := []struct {
		src  string
		want int64
	}{
		{"0", 0},
		{"42", 42},
		{"1_000_000", 1000000},
		{"0x1F", 31},
		{"0o17", 15},
		{"0b101", 5},
		{"017", 15},
	}

	for _, c := range cases {
		toks := scanAll(t, c.src)
		if len(toks) != 2 || toks[0].Kind != INTEGER {
			t.Fatalf("%q: expected single INTEGER token, got %v", c.src, toks)
		}
		if got := toks[0].Value.(int64); got != c.want {
			t.Errorf("%q: value = %d, want %d", c.src, got, c.want)
		}
	}
}

func Test_Tokenizer_FloatsAndComplex(t *testing.T) {
	toks := scanAll(t, "3.14 2e10 1.5j")
	if len(toks) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(toks))
	}
	if toks[0].Kind != FLOAT || toks[0].Value.(float64) != 3.14 {
		t.Errorf("unexpected float token: %v", toks[0])
	}
	if toks[1].Kind != FLOAT {
		t.Errorf("expected exponent literal to scan as FLOAT, got %s", tokenRepr(toks[1].Kind))
	}
	if toks[2].Kind != COMPLEX {
		t.Errorf("expected imaginary literal to scan as COMPLEX, got %s", tokenRepr(toks[2].Kind))
	}
}

func Test_Tokenizer_Strings(t *testing.T) {
	toks := scanAll(t, `"hello\nworld" 'a\tb'`)
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(toks))
	}
	if toks[0].Value.(string) != "hello\nworld" {
		t.Errorf("unexpected decoded value: %q", toks[0].Value)
	}
	if toks[1].Value.(string) != "a\tb" {
		t.Errorf("unexpected decoded value: %q", toks[1].Value)
	}
}

func Test_Tokenizer_TripleQuoted(t *testing.T) {
	toks := scanAll(t, `"""line with "quotes" inside"""`)
	if len(toks) != 2 || toks[0].Kind != STRING {
		t.Fatalf("expected single STRING token, got %v", toks)
	}
	if toks[0].Value.(string) != `line with "quotes" inside` {
		t.Errorf("unexpected decoded value: %q", toks[0].Value)
	}
}

func Test_Tokenizer_Backtick(t *testing.T) {
	toks := scanAll(t, "`$HOME|/tmp`")
	if len(toks) != 2 || toks[0].Kind != BACKTICK {
		t.Fatalf("expected single BACKTICK token, got %v", toks)
	}
	if toks[0].Value.(string) != "$HOME|/tmp" {
		t.Errorf("unexpected decoded value: %q", toks[0].Value)
	}
}

func Test_Tokenizer_UnterminatedString(t *testing.T) {
	cs, err := newCharSource("<test>", strings.NewReader(`"unterminated`))
	if err != nil {
		t.Fatal(err)
	}
	tz := newTokenizer("<test>", cs)

	if _, err := tz.getToken(); err == nil {
		t.Fatal("expected an error for an unterminated string")
	}
}

func Test_Tokenizer_Newlines(t *testing.T) {
	checkKinds(t, "a\nb\r\nc", WORD, NEWLINE, WORD, NEWLINE, WORD, EOF)
}

func Test_Tokenizer_Comment(t *testing.T) {
	toks := checkKinds(t, "a # trailing comment\nb", WORD, NEWLINE, WORD, EOF)
	if !strings.HasPrefix(toks[1].Text, "#") {
		t.Errorf("expected comment text to be preserved, got %q", toks[1].Text)
	}
}
