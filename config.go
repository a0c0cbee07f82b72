package cfg

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Option configures a Config at construction time, mirroring the
// option-function style of the tokenizer/parser's own decoder ancestor.
type Option func(c *Config) *Config

// NoDuplicates rejects a mapping that repeats a key, rather than letting
// the later occurrence silently win.
func NoDuplicates(c *Config) *Config {
	c.noDuplicates = true
	return c
}

// PermitDuplicates allows a mapping to repeat a key; the last occurrence
// wins, matching ordinary JSON-superset behavior.
func PermitDuplicates(c *Config) *Config {
	c.noDuplicates = false
	return c
}

// StrictConversions rejects a backtick special value that matches none of
// the known forms, rather than passing its raw text through unchanged.
func StrictConversions(c *Config) *Config {
	c.strict = true
	return c
}

// LaxConversions passes an unrecognized backtick special value through as
// its raw text instead of raising an error.
func LaxConversions(c *Config) *Config {
	c.strict = false
	return c
}

// Cached memoizes the result of every top-level Get call for the lifetime
// of the Config.
func Cached(c *Config) *Config {
	c.cached = true
	c.cache = map[string]interface{}{}
	return c
}

// IncludePath adds directories to search, after the including document's
// own directory, when resolving an `@ "path"` include.
func IncludePath(dirs ...string) Option {
	return func(c *Config) *Config {
		c.includePath = append(c.includePath, dirs...)
		return c
	}
}

// WithContext supplies the variable bindings a bare WORD expression
// resolves against.
func WithContext(ctx map[string]interface{}) Option {
	return func(c *Config) *Config {
		c.context = ctx
		return c
	}
}

// WithHostResolver installs the callback used to resolve a bare dotted
// host-object path found inside a backtick special value.
func WithHostResolver(fn func(name string) (interface{}, bool)) Option {
	return func(c *Config) *Config {
		c.hostResolve = fn
		return c
	}
}

// WithDotenv loads NAME=value pairs from the .env-format file at path as
// fallback environment variable defaults, behind whatever is already set
// in the process environment.
func WithDotenv(path string) Option {
	return func(c *Config) *Config {
		m, err := godotenv.Read(path)
		if err == nil {
			c.dotenv = m
		}
		return c
	}
}

// Diagnostics configures the callback used to report non-fatal notices,
// such as a default value standing in for a missing key, or a resolved
// include. StderrHandler is used if this option is not given.
func Diagnostics(fn func(Location, string)) Option {
	return func(c *Config) *Config {
		c.diag = fn
		return c
	}
}

// WithDebugLog emits a zerolog debug event for every cache miss, include
// resolution, and circular-reference detection a Config performs.
func WithDebugLog(c *Config) *Config {
	c.debugLog = true
	return c
}

// Config is a lazily-evaluated, insertion-ordered configuration document.
// Its root is a MappingValue; values stay as unevaluated AST until Get (or
// AsDict) walks them.
type Config struct {
	name string
	dir  string

	root *MappingValue

	noDuplicates bool
	strict       bool
	includePath  []string
	context      map[string]interface{}
	hostResolve  func(string) (interface{}, bool)
	dotenv       map[string]string
	diag         func(Location, string)

	cached   bool
	cache    map[string]interface{}
	debugLog bool

	refSeen  map[*UnaryNode]bool
	refStack []*UnaryNode
}

func newConfig(opts ...Option) *Config {
	c := &Config{
		noDuplicates: true,
		strict:       true,
		context:      map[string]interface{}{},
		diag:         StderrHandler,
		refSeen:      map[*UnaryNode]bool{},
	}
	for _, opt := range opts {
		c = opt(c)
	}
	return c
}

// parseConfigSource tokenizes and parses name/r under the container rule,
// requiring the parser to consume the whole input.
func parseConfigSource(name string, r io.Reader) (Node, error) {
	cs, err := newCharSource(name, r)
	if err != nil {
		return nil, err
	}

	tz := newTokenizer(name, cs)

	p, err := newParser(tz)
	if err != nil {
		return nil, err
	}

	node, err := p.parseContainer()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != EOF {
		return nil, parseErr(p.tok.Start, "unexpected %s", tokenRepr(p.tok.Kind))
	}
	return node, nil
}

func (c *Config) load(name string, r io.Reader) error {
	node, err := parseConfigSource(name, r)
	if err != nil {
		return err
	}

	mapping, ok := node.(*MappingNode)
	if !ok {
		return configErr(node.Pos(), "root of configuration must be a mapping")
	}

	mv, err := newMappingValue(c, mapping)
	if err != nil {
		return err
	}
	c.root = mv
	return nil
}

// LoadFile parses the file at path into a new Config.
func LoadFile(path string, opts ...Option) (*Config, error) {
	c := newConfig(opts...)

	f, err := os.Open(path)
	if err != nil {
		return nil, configErrWrap(Location{}, err, "unable to read %s", path)
	}
	defer f.Close()

	c.name = path
	c.dir = filepath.Dir(path)

	if err := c.load(path, f); err != nil {
		return nil, err
	}
	return c, nil
}

// Load parses r into a new Config. Includes are resolved relative to the
// current working directory and any configured IncludePath entries.
func Load(r io.Reader, opts ...Option) (*Config, error) {
	c := newConfig(opts...)

	if err := c.load("<config>", r); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseString parses text into a new Config, same as Load but from a
// string.
func ParseString(text string, opts ...Option) (*Config, error) {
	return Load(strings.NewReader(text), opts...)
}

func (c *Config) resolveIncludePath(s string, loc Location) (string, error) {
	if filepath.IsAbs(s) {
		if _, err := os.Stat(s); err == nil {
			return s, nil
		}
		return "", configErr(loc, "unable to locate include %s", s)
	}

	var candidates []string
	if c.dir != "" {
		candidates = append(candidates, filepath.Join(c.dir, s))
	} else {
		candidates = append(candidates, s)
	}
	for _, d := range c.includePath {
		candidates = append(candidates, filepath.Join(d, s))
	}

	for _, cand := range candidates {
		if _, err := os.Stat(cand); err == nil {
			return cand, nil
		}
	}
	return "", configErr(loc, "unable to locate include %s", s)
}

// evalInclude implements `@ "path"`: the included file is parsed on its
// own. A mapping root is wrapped as a child Config inheriting this
// document's options; any other root is evaluated directly by a child
// Config that carries the same options and context but has no root
// mapping of its own.
func (c *Config) evalInclude(u *UnaryNode) (interface{}, error) {
	v, err := c.evalNode(u.Operand)
	if err != nil {
		return nil, err
	}

	s, ok := v.(string)
	if !ok {
		return nil, configErr(u.Loc, "@ operand must be a string, but is %v", v)
	}

	path, err := c.resolveIncludePath(s, u.Loc)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, configErrWrap(u.Loc, err, "unable to read %s", s)
	}
	defer f.Close()

	node, err := parseConfigSource(path, f)
	if err != nil {
		return nil, err
	}

	sub := &Config{
		name:         path,
		dir:          filepath.Dir(path),
		noDuplicates: c.noDuplicates,
		strict:       c.strict,
		includePath:  c.includePath,
		context:      c.context,
		hostResolve:  c.hostResolve,
		dotenv:       c.dotenv,
		diag:         c.diag,
		debugLog:     c.debugLog,
		refSeen:      map[*UnaryNode]bool{},
	}

	if c.diag != nil {
		c.diag(u.Loc, "including "+path)
	}
	if c.debugLog {
		debugEvent("include", u.Loc, "resolved include "+path)
	}

	mapping, ok := node.(*MappingNode)
	if !ok {
		return sub.evalNode(node)
	}

	mv, err := newMappingValue(sub, mapping)
	if err != nil {
		return nil, err
	}
	sub.root = mv
	return sub, nil
}

func allowDefault(err error) bool {
	switch err.(type) {
	case *InvalidPathError, *BadIndexError, *CircularReferenceError:
		return false
	default:
		return true
	}
}

// Get resolves keyOrPath: a literal top-level key is tried first, and only
// if that fails is the string re-interpreted as a path expression. If def
// is given, it is returned instead of propagating a "not found" style
// error; a malformed path, bad index, or reference cycle always
// propagates regardless of a default.
func (c *Config) Get(keyOrPath string, def ...interface{}) (interface{}, error) {
	hasDefault := len(def) > 0
	var defaultVal interface{}
	if hasDefault {
		defaultVal = def[0]
	}

	if c.cached {
		if v, ok := c.cache[keyOrPath]; ok {
			return v, nil
		}
		if c.debugLog {
			debugEvent("cache-miss", Location{}, keyOrPath)
		}
	}

	c.refSeen = map[*UnaryNode]bool{}
	c.refStack = nil

	if n, ok := c.root.BaseGet(keyOrPath); ok {
		v, err := c.root.owner.evalNode(n)
		if err != nil {
			if hasDefault && allowDefault(err) {
				if c.diag != nil {
					c.diag(Location{}, "using default for "+keyOrPath)
				}
				return defaultVal, nil
			}
			return nil, err
		}
		if c.cached {
			c.cache[keyOrPath] = v
		}
		return v, nil
	}

	if IsIdentifier(keyOrPath) {
		if hasDefault {
			if c.diag != nil {
				c.diag(Location{}, "using default for "+keyOrPath)
			}
			return defaultVal, nil
		}
		return nil, configErr(Location{}, "Not found in configuration: %s", keyOrPath)
	}

	pathNode, err := ParsePath(keyOrPath)
	if err != nil {
		return nil, err
	}

	v, err := c.walkPath(pathNode)
	if err != nil {
		if hasDefault && allowDefault(err) {
			if c.diag != nil {
				c.diag(Location{}, "using default for "+keyOrPath)
			}
			return defaultVal, nil
		}
		return nil, err
	}

	if c.cached {
		c.cache[keyOrPath] = v
	}
	return v, nil
}

// AsDict recursively evaluates the whole document into native Go values.
func (c *Config) AsDict() (map[string]interface{}, error) {
	return c.root.AsPlain()
}

// ConvertString applies the backtick special-value conversion rules to s
// directly, without requiring it to appear inside a document.
func (c *Config) ConvertString(s string) (interface{}, error) {
	return c.convertSpecial(s, Location{})
}

// Keys returns the document's top-level keys in insertion order.
func (c *Config) Keys() []string {
	return c.root.Keys()
}
