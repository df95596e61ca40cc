package engine

import "strings"

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites facet Lisp into something zygomys accepts:
//
//   - :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols and cannot clash with user variables.
//   - kebab-case identifiers become snake_case (merge-into -> merge_into),
//     since zygomys reads a hyphen as subtraction.
//   - ; line comments become // comments.
//
// String literals (double-quoted and backtick) pass through untouched.
func preprocessSource(source string) string {
	var out strings.Builder
	out.Grow(len(source) + len(source)/4)

	n := len(source)
	for i := 0; i < n; {
		c := source[i]
		switch {
		case c == '"':
			j := skipQuoted(source, i, '"', true)
			out.WriteString(source[i:j])
			i = j

		case c == '`':
			j := skipQuoted(source, i, '`', false)
			out.WriteString(source[i:j])
			i = j

		case c == ';':
			for i < n && source[i] == ';' {
				i++
			}
			j := strings.IndexByte(source[i:], '\n')
			if j < 0 {
				j = n - i
			}
			out.WriteString("//")
			out.WriteString(source[i : i+j])
			i += j

		case c == ':' && i+1 < n && source[i+1] == '=':
			out.WriteString(":=")
			i += 2

		case c == ':' && i+1 < n && isLetter(source[i+1]):
			j := i + 1
			for j < n && isKWChar(source[j]) {
				j++
			}
			out.WriteByte('"')
			out.WriteString(kwPrefix)
			out.WriteString(source[i+1 : j])
			out.WriteByte('"')
			i = j

		case c == '-' && i > 0 && i+1 < n && isIdentChar(source[i-1]) && isLetter(source[i+1]):
			out.WriteByte('_')
			i++

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// skipQuoted returns the index just past the literal opened at s[i].
// An unterminated literal runs to the end of s.
func skipQuoted(s string, i int, quote byte, escapes bool) int {
	for j := i + 1; j < len(s); j++ {
		switch {
		case escapes && s[j] == '\\':
			j++
		case s[j] == quote:
			return j + 1
		}
	}
	return len(s)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}
