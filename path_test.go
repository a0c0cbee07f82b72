package cfg

import "testing"

func Test_IsIdentifier(t *testing.T) {
	cases := map[string]bool{
		"foo":     true,
		"_foo1":   true,
		"foo.bar": false,
		"1foo":    false,
		"":        false,
		"foo bar": false,
	}

	for src, want := range cases {
		if got := IsIdentifier(src); got != want {
			t.Errorf("IsIdentifier(%q) = %v, want %v", src, got, want)
		}
	}
}

func Test_ParsePath_RoundTrip(t *testing.T) {
	cases := []string{
		"foo",
		"foo.bar",
		"foo.bar.baz",
		"foo[2]",
		"foo[-1]",
		"foo[1:4]",
		"foo[1:4:2]",
		"foo[::2]",
		"foo[::-1]",
		"foo.bar[0].baz",
	}

	for _, src := range cases {
		node, err := ParsePath(src)
		if err != nil {
			t.Fatalf("ParsePath(%q): %s", src, err)
		}

		got, err := ToSource(node)
		if err != nil {
			t.Fatalf("ToSource(%q): %s", src, err)
		}
		if got != src {
			t.Errorf("round trip mismatch: %q -> %q", src, got)
		}
	}
}

func Test_ParsePath_RejectsNonWordRoot(t *testing.T) {
	if _, err := ParsePath("[1]"); err == nil {
		t.Fatal("expected an InvalidPathError for a path with no leading identifier")
	}
}

func Test_ParsePath_RejectsTrailingGarbage(t *testing.T) {
	if _, err := ParsePath("foo.bar extra"); err == nil {
		t.Fatal("expected an InvalidPathError for unconsumed trailing text")
	}
}

func Test_ParsePath_WrapsErrorAsInvalidPathError(t *testing.T) {
	_, err := ParsePath("foo..bar")
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*InvalidPathError); !ok {
		t.Fatalf("expected *InvalidPathError, got %T", err)
	}
}
