package cfg

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// isoDateTimeRe recognizes the date and date-time forms of spec §4.7: a
// bare date, or a date joined to a time by 'T' or a space, with optional
// fractional seconds and an optional 'Z' or numeric offset.
var isoDateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?)?$`)

// envVarRe recognizes `$NAME` or `$NAME|default`.
var envVarRe = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)(\|(.*))?$`)

// hostObjectRe recognizes a bare dotted identifier path with no `$` and no
// interpolation markers, resolved against the host-object callback.
var hostObjectRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)

// interpPlaceholderRe finds `${...}` placeholders inside an interpolated
// string; each one is parsed as a path and walked from the document root.
var interpPlaceholderRe = regexp.MustCompile(`\$\{([^}]*)\}`)

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseISODateTime(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// convertSpecial dispatches a backtick-delimited special value to its
// first matching form, in the priority order spec §4.7 lays out: ISO
// date-time, environment variable, host-object lookup, interpolated
// string. ConvertString reuses this for stray backtick text passed
// directly to Config.
func (c *Config) convertSpecial(raw string, loc Location) (interface{}, error) {
	if isoDateTimeRe.MatchString(raw) {
		if t, ok := parseISODateTime(raw); ok {
			return t, nil
		}
	}

	if m := envVarRe.FindStringSubmatch(raw); m != nil {
		return c.resolveEnvVar(m[1], m[3], m[2] != "", loc)
	}

	if hostObjectRe.MatchString(raw) && c.hostResolve != nil {
		if v, ok := c.hostResolve(raw); ok {
			return v, nil
		}
		if c.strict {
			return nil, configErr(loc, "unable to resolve host object: %s", raw)
		}
		return raw, nil
	}

	if interpPlaceholderRe.MatchString(raw) {
		return c.interpolate(raw, loc)
	}

	if c.strict {
		return nil, configErr(loc, "unable to convert special value: `%s`", raw)
	}
	return raw, nil
}

func (c *Config) resolveEnvVar(name, def string, hasDefault bool, loc Location) (interface{}, error) {
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	if c.dotenv != nil {
		if v, ok := c.dotenv[name]; ok {
			return v, nil
		}
	}
	if hasDefault {
		return def, nil
	}
	if c.strict {
		return nil, configErr(loc, "environment variable not set: %s", name)
	}
	return nil, nil
}

// interpolate substitutes every `${...}` placeholder in raw with the
// stringified result of walking that path from the document root.
func (c *Config) interpolate(raw string, loc Location) (string, error) {
	var outerErr error

	result := interpPlaceholderRe.ReplaceAllStringFunc(raw, func(match string) string {
		if outerErr != nil {
			return match
		}

		inner := interpPlaceholderRe.FindStringSubmatch(match)[1]

		node, err := ParsePath(strings.TrimSpace(inner))
		if err != nil {
			outerErr = err
			return match
		}

		v, err := c.walkPath(node)
		if err != nil {
			outerErr = err
			return match
		}

		s, err := stringFor(v)
		if err != nil {
			outerErr = configErrWrap(loc, err, "unable to interpolate %s", inner)
			return match
		}
		return s
	})

	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// stringFor renders an evaluation result as text for interpolation: lists
// as "[x, y]", mappings as "{k: v}" in key order, scalars in their native
// string form.
func stringFor(v interface{}) (string, error) {
	switch vv := v.(type) {
	case nil:
		return "", nil
	case string:
		return vv, nil
	case bool:
		if vv {
			return "true", nil
		}
		return "false", nil
	case int64:
		return strconv.FormatInt(vv, 10), nil
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64), nil
	case complex128:
		return fmt.Sprintf("%v", vv), nil
	case time.Time:
		return vv.Format(time.RFC3339), nil
	case *ListValue:
		parts := make([]string, vv.Len())
		for i := 0; i < vv.Len(); i++ {
			item, err := vv.Get(i)
			if err != nil {
				return "", err
			}
			s, err := stringFor(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case *MappingValue:
		keys := vv.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			item, err := vv.Get(k)
			if err != nil {
				return "", err
			}
			s, err := stringFor(item)
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("%s: %s", k, s)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("cannot interpolate non-scalar value %v", v)
	}
}
