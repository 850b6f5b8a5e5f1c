package source

import (
	"strconv"
	"strings"

	"pimo/src/cerr"
	"pimo/src/token"
)

// Line is the lexer's unit of output: the 1-indexed source line number and the typed tokens
// scanned from it. Blank lines produce no Line at all.
type Line struct {
	Line   int
	Tokens []token.Token
}

// Lex processes interned text line by line, producing one Line per non-empty source line. strs is
// the handle table Intern produced; a "&N" atom with no matching entry is InvalidStringReference.
//
// The raw splitter (atomize) groups identifier/digit runs greedily; every other non-space rune is
// its own atom. The fused-token lookahead that follows then re-merges adjacent atoms that together
// spell a single lexeme (fused comparison operators, sized types, qualified names, and so on).
func Lex(program, text string, strs map[string]string) ([]Line, error) {
	var out []Line
	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		atoms := atomize(raw)
		if len(atoms) == 0 {
			continue
		}
		toks, err := lexLine(program, raw, atoms, lineNo, strs)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			continue
		}
		out = append(out, Line{Line: lineNo, Tokens: toks})
	}
	return out, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

// atomize splits one line into minimal atoms: maximal identifier/digit runs, and every other
// non-space rune as its own single-rune atom.
func atomize(line string) []string {
	var atoms []string
	runes := []rune(line)
	n := len(runes)
	for i := 0; i < n; {
		c := runes[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case isIdentChar(c):
			j := i + 1
			for j < n && isIdentChar(runes[j]) {
				j++
			}
			atoms = append(atoms, string(runes[i:j]))
			i = j
		default:
			atoms = append(atoms, string(c))
			i++
		}
	}
	return atoms
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// lexLine applies a fixed, priority-ordered list of fusion rules left to right over one line's
// atoms: each rule either consumes one or more atoms into a single token, or falls through to the
// next rule, so earlier rules always win over a looser later match.
func lexLine(program, raw string, atoms []string, lineNo int, strs map[string]string) ([]token.Token, error) {
	var toks []token.Token
	i := 0
	n := len(atoms)

	peek := func(k int) string {
		if i+k < n {
			return atoms[i+k]
		}
		return ""
	}

	for i < n {
		a0, a1, a2, a3 := atoms[i], peek(1), peek(2), peek(3)

		// Rule 1: line comment.
		if a0 == "/" && a1 == "/" {
			break
		}

		// Rule 2: fused "##".
		if a0 == "#" && a1 == "#" {
			toks = append(toks, token.NewKind("##", token.Operator, lineNo))
			i += 2
			continue
		}

		// Rule 3: string reference "&<digits>".
		if a0 == "&" && allDigits(a1) {
			handle := "&" + a1
			content, ok := strs[handle]
			if !ok {
				return nil, cerr.NewAt(cerr.InvalidStringReference, program, lineNo, raw, 0, handle)
			}
			toks = append(toks, token.NewKind(content, token.String, lineNo))
			i += 2
			continue
		}

		// Rule 4: decimal literal "<digits>.<digits>", optional ":<type>".
		if allDigits(a0) && a1 == "." && allDigits(a2) {
			text := a0 + "." + a2
			consumed := 3
			tok := token.NewKind(text, token.Decimal, lineNo)
			if peek(3) == ":" {
				if t, ok := token.LLVMTypeByName(peek(4)); ok {
					tok.LLVMType, tok.HasLLVMType = t, true
					consumed += 2
				}
			}
			toks = append(toks, tok)
			i += consumed
			continue
		}

		// Rule 5: macro call "§<UPPER_NAME>".
		if a0 == "§" {
			if a1 == "" || !token.IsValidName(a1) {
				return nil, cerr.NewAt(cerr.InvalidMacro, program, lineNo, raw, 0, a1)
			}
			if !token.IsUpperName(a1) {
				return nil, cerr.NewAt(cerr.NotUpperCaseMacroName, program, lineNo, raw, 0, a1)
			}
			toks = append(toks, token.NewKind(a1, token.Macro, lineNo))
			i += 2
			continue
		}

		// Rule 6: register "%<register>".
		if a0 == "%" && isRegisterName(a1) {
			toks = append(toks, token.NewKind(a1, token.Register, lineNo))
			i += 2
			continue
		}

		// Rule 7: sized type "<type><N>" (a type name immediately followed by a digit run, no
		// separating atom because the splitter already fused letters and digits into one atom).
		if baseName, lenStr, ok := splitSizedType(a0); ok {
			n64, _ := strconv.Atoi(lenStr)
			tok := token.NewKind(a0, token.Type, lineNo)
			t, _ := token.LLVMTypeByName(baseName)
			tok.LLVMType, tok.HasLLVMType = t, true
			tok.Length, tok.HasLength = n64, true
			toks = append(toks, tok)
			i++
			continue
		}

		// Rule 8: sized stack opener "<N>:[".
		if allDigits(a0) && a1 == ":" && a2 == "[" {
			size, _ := strconv.Atoi(a0)
			tok := token.NewKind("[", token.Delimiter, lineNo)
			tok.Size, tok.HasSize = size, true
			toks = append(toks, tok)
			i += 3
			continue
		}

		// Rule 9: qualified name "UPPER::lower".
		if token.IsValidName(a0) && token.IsUpperName(a0) && a1 == ":" && a2 == ":" && token.IsValidName(a3) && token.IsLowerName(a3) {
			tok := token.NewKind(a3, token.Name, lineNo)
			tok.Memory = a0
			toks = append(toks, tok)
			i += 4
			continue
		}

		// Rule 10: sized dereference "<N>:%".
		if allDigits(a0) && a1 == ":" && a2 == "%" {
			size, _ := strconv.Atoi(a0)
			tok := token.NewKind("%", token.Operator, lineNo)
			tok.Size, tok.HasSize = size, true
			toks = append(toks, tok)
			i += 3
			continue
		}

		// Rule 12a: "..%" (checked before the shorter "." "%" fusion).
		if a0 == "." && a1 == "." && a2 == "%" {
			toks = append(toks, token.NewKind("..%", token.Operator, lineNo))
			i += 3
			continue
		}
		if a0 == "." && a1 == "%" {
			toks = append(toks, token.NewKind(".%", token.Operator, lineNo))
			i += 2
			continue
		}
		if fused, ok := fuseComparison(a0, a1); ok {
			toks = append(toks, token.NewKind(fused, token.Operator, lineNo))
			i += 2
			continue
		}

		// Rule 11: explicit type suffix "<atom>:<type>", tried after the fused-operator forms
		// above so a bare "%" or "." isn't mistakenly treated as the base of a type suffix.
		if a1 == ":" {
			if t, ok := token.LLVMTypeByName(a2); ok {
				tok := token.New(a0, lineNo)
				tok.LLVMType, tok.HasLLVMType = t, true
				toks = append(toks, tok)
				i += 3
				continue
			}
		}

		// Rule 13: classify the atom alone.
		toks = append(toks, token.New(a0, lineNo))
		i++
	}

	return toks, nil
}

func isRegisterName(s string) bool {
	switch s {
	case "ax", "bx", "cx", "dx", "si", "di", "bp", "sp":
		return true
	default:
		return false
	}
}

func fuseComparison(a, b string) (string, bool) {
	switch {
	case a == "=" && b == "=":
		return "==", true
	case a == "!" && b == "=":
		return "!=", true
	case a == "<" && b == "=":
		return "<=", true
	case a == ">" && b == "=":
		return ">=", true
	default:
		return "", false
	}
}

// splitSizedType splits an atom like "u832" into base type name "u8" and length "32". Prefixes are
// tried longest first, so "u864" first tries the (non-existent) type "u86" and then resolves as
// base "u8" with length "64".
func splitSizedType(atom string) (base, length string, ok bool) {
	for cut := len(atom); cut > 0; cut-- {
		candidate := atom[:cut]
		rest := atom[cut:]
		if rest == "" || !allDigits(rest) {
			continue
		}
		if _, known := token.LLVMTypeByName(candidate); known {
			return candidate, rest, true
		}
	}
	return "", "", false
}
