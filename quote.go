package winnow

import "strings"

// Quote escapes s for transport as a single space-free token on a protocol
// line: '&' doubles, and space, newline, and carriage return map to '&_',
// '&n', and '&r'. Unquote(Quote(s)) == s for every byte string.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			b.WriteString("&&")
		case ' ':
			b.WriteString("&_")
		case '\n':
			b.WriteString("&n")
		case '\r':
			b.WriteString("&r")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Unquote reverses Quote. It is lenient with input it did not produce: an
// unknown pair '&x' decodes to 'x', and a trailing lone '&' is dropped.
func Unquote(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '&' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i == len(s) {
			break
		}
		switch s[i] {
		case '&':
			b.WriteByte('&')
		case '_':
			b.WriteByte(' ')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
