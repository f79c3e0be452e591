package ics

import "strings"

// property is one tokenized KEY;PARAM=VAL;...:VALUE content line with the
// parameter suffix split off the name. The value is still escaped; text
// properties are unescaped when they are applied to an event.
type property struct {
	name   string
	params map[string]string
	value  string
}

// parseContentLine splits a logical line into a property. Lines without a
// colon are malformed; ok is false and the caller is expected to skip them.
func parseContentLine(line string) (property, bool) {
	colon := strings.Index(line, ":")
	if colon <= 0 {
		return property{}, false
	}

	key := line[:colon]
	value := line[colon+1:]

	parts := strings.Split(key, ";")
	p := property{
		name:  strings.ToUpper(strings.TrimSpace(parts[0])),
		value: value,
	}

	if len(parts) > 1 {
		p.params = make(map[string]string, len(parts)-1)
		for _, param := range parts[1:] {
			eq := strings.Index(param, "=")
			if eq <= 0 {
				continue
			}
			p.params[strings.ToUpper(param[:eq])] = param[eq+1:]
		}
	}

	return p, true
}

// paramEquals reports whether the parameter map carries key=want,
// comparing the value case-insensitively.
func paramEquals(params map[string]string, key, want string) bool {
	v, ok := params[key]
	return ok && strings.EqualFold(v, want)
}

// unescapeText reverses ICS text escaping: `\,` `\;` `\\` become the bare
// character and `\n` (or `\N`) becomes a newline. A single pass keeps
// sequences like `\\n` correct, which sequential string replacement
// would mangle.
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case ',', ';', '\\':
			b.WriteByte(s[i])
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			// Unknown escape; keep both characters.
			b.WriteByte(c)
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
