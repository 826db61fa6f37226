package signature

import (
	"fmt"
	"strings"
)

// ParseSignatureHeader parses a structured signature header of the form
//
//	keyid="...", algorithm="ed25519", signature="...", headers="..."
//
// Parameter names are lower-cased. Values must be double quoted; a backslash
// escapes the next character. Duplicate parameters are rejected.
func ParseSignatureHeader(value string) (map[string]string, error) {
	params := make(map[string]string)
	rest := strings.TrimSpace(value)
	if rest == "" {
		return nil, fmt.Errorf("%w: empty signature header", ErrMalformedProof)
	}

	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: expected name=\"value\" in signature header", ErrMalformedProof)
		}
		name := strings.ToLower(strings.TrimSpace(rest[:eq]))
		if name == "" || strings.ContainsAny(name, " \t\",") {
			return nil, fmt.Errorf("%w: invalid parameter name %q", ErrMalformedProof, name)
		}

		rest = strings.TrimLeft(rest[eq+1:], " \t")
		if rest == "" || rest[0] != '"' {
			return nil, fmt.Errorf("%w: parameter %q is not quoted", ErrMalformedProof, name)
		}

		var b strings.Builder
		i := 1
		closed := false
		for ; i < len(rest); i++ {
			c := rest[i]
			if c == '\\' && i+1 < len(rest) {
				i++
				b.WriteByte(rest[i])
				continue
			}
			if c == '"' {
				closed = true
				break
			}
			b.WriteByte(c)
		}
		if !closed {
			return nil, fmt.Errorf("%w: unterminated value for %q", ErrMalformedProof, name)
		}
		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrMalformedProof, name)
		}
		params[name] = b.String()

		rest = strings.TrimLeft(rest[i+1:], " \t")
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("%w: expected ',' after parameter %q", ErrMalformedProof, name)
		}
		rest = strings.TrimLeft(rest[1:], " \t")
	}

	return params, nil
}
