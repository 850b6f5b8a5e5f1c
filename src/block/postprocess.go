package block

import "pimo/src/token"

// PostProcess runs a second pass over the whole tree to a fixpoint: dotted-name collapsing,
// type-suffix attachment, options attachment. Each full-tree sweep either strictly reduces some
// block's child count or leaves the tree unchanged, so the loop terminates.
func PostProcess(root *Block) {
	for {
		changed := false
		var walk func(b *Block)
		walk = func(b *Block) {
			if mergeOnce(b) {
				changed = true
			}
			for _, c := range b.Children {
				if cb, ok := c.(*Block); ok {
					walk(cb)
				}
			}
		}
		walk(root)
		if !changed {
			return
		}
	}
}

func asToken(e interface{}) (token.Token, bool) {
	t, ok := e.(token.Token)
	return t, ok
}

func asNameOrCaret(e interface{}) (token.Token, bool) {
	t, ok := e.(token.Token)
	if !ok {
		return token.Token{}, false
	}
	if t.Kind == token.Name {
		return t, true
	}
	if t.Kind == token.Operator && t.Text == "^" {
		return t, true
	}
	return token.Token{}, false
}

// mergeOnce performs a single left-to-right scan of b's direct children, applying whichever of the
// three pass-2 rules matches first at each position. Returns whether anything changed.
func mergeOnce(b *Block) bool {
	children := b.Children
	out := make([]interface{}, 0, len(children))
	changed := false
	i := 0
	n := len(children)

	for i < n {
		// Dotted-name collapse: name-or-^ "." name-or-^.
		if i+2 < n {
			a, aok := asNameOrCaret(children[i])
			dot, dok := asToken(children[i+1])
			c, cok := asNameOrCaret(children[i+2])
			if aok && dok && cok && dot.Kind == token.Operator && dot.Text == "." {
				merged := a
				merged.Text = a.Text + "." + c.Text
				merged.Kind = token.Name
				out = append(out, merged)
				i += 3
				changed = true
				continue
			}
		}

		// Type-suffix attachment: name ":" type.
		if i+2 < n {
			nameTok, nok := asToken(children[i])
			colon, cok := asToken(children[i+1])
			typeTok, tok2 := asToken(children[i+2])
			if nok && cok && tok2 && colon.Kind == token.Operator && colon.Text == ":" && typeTok.Kind == token.Type {
				nameTok.LLVMType, nameTok.HasLLVMType = typeTok.LLVMType, typeTok.HasLLVMType
				if typeTok.HasLength {
					nameTok.Length, nameTok.HasLength = typeTok.Length, true
				}
				out = append(out, nameTok)
				i += 3
				changed = true
				continue
			}
		}

		// Options attachment: name immediately followed by an options Block.
		if i+1 < n {
			nameTok, nok := asToken(children[i])
			if nok && nameTok.Kind == token.Name {
				if ob, ok := children[i+1].(*Block); ok && ob.Kind == Options {
					nameTok.CallOptions = ob
					out = append(out, nameTok)
					i += 2
					changed = true
					continue
				}
			}
		}

		out = append(out, children[i])
		i++
	}

	b.Children = out
	return changed
}
