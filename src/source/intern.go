// Package source implements the pre-tokeniser and lexer stages of the pipeline: string interning,
// then the per-line lexer that produces typed token.Token slices.
//
// The lexer splits each line into atoms and then applies a priority-ordered list of fusion rules
// with a small peek(k) lookahead. It runs synchronously rather than over a goroutine/channel pair:
// the pipeline is single-threaded and non-suspending end to end, so there is no worker goroutine
// to hand tokens to.
package source

import (
	"strconv"
	"strings"

	"pimo/src/cerr"
)

// Intern replaces every quoted literal in src with an opaque handle of the form "&N". It returns
// the rewritten text and the handle-to-content table the lexer consults when it later encounters a
// string reference.
//
// Escape sequences are resolved while still inside the quoted literal, so that a user can embed
// characters ("//" "/*" "*/" ";") that would otherwise be swallowed by the lexer once the literal
// is unwrapped again.
func Intern(program, src string) (string, map[string]string, error) {
	table := make(map[string]string)
	var out strings.Builder
	out.Grow(len(src))

	runes := []rune(src)
	n := len(runes)
	handle := 0
	line := 1

	for i := 0; i < n; i++ {
		c := runes[i]
		if c == '\n' {
			line++
		}
		if c != '"' && c != '\'' {
			out.WriteRune(c)
			continue
		}

		quote := c
		startLine := line
		var buf strings.Builder
		i++
		closed := false
		for ; i < n; i++ {
			c = runes[i]
			if c == '\\' && i+1 < n {
				rest := string(runes[i+1:min(n, i+4)])
				switch {
				case strings.HasPrefix(rest, "so"):
					buf.WriteString("/*")
					i += 2
				case strings.HasPrefix(rest, "sc"):
					buf.WriteString("*/")
					i += 2
				case strings.HasPrefix(rest, "sm"):
					buf.WriteString(";")
					i += 2
				case strings.HasPrefix(rest, "s"):
					buf.WriteString("//")
					i++
				case strings.HasPrefix(rest, "\\"):
					buf.WriteRune('\\')
					i++
				case strings.HasPrefix(rest, "n"):
					buf.WriteRune('\n')
					i++
				case strings.HasPrefix(rest, "t"):
					buf.WriteRune('\t')
					i++
				case strings.HasPrefix(rest, "\""):
					buf.WriteRune('"')
					i++
				case strings.HasPrefix(rest, "'"):
					buf.WriteRune('\'')
					i++
				default:
					buf.WriteRune(c)
				}
				continue
			}
			if c == quote {
				closed = true
				break
			}
			if c == '\n' {
				line++
			}
			buf.WriteRune(c)
		}
		if !closed {
			return "", nil, cerr.New(cerr.InvalidStringReference, program, startLine, "unterminated string literal")
		}

		handle++
		id := "&" + strconv.Itoa(handle)
		table[id] = buf.String()
		out.WriteString(id)
	}

	return out.String(), table, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
