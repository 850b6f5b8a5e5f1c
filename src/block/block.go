// Package block implements the block parser (component C): pass 1 folds the flat per-line token
// stream into a tree of stack/segment/options blocks, pass 2 fixpoints dotted-name collapsing,
// type-suffix attachment and options attachment over that tree.
//
// Pass 1 folds bracket-delimited stack/segment/options spans into nested Blocks with a single
// cursor over the flat token stream; pass 2 then fixpoints over the resulting tree collapsing
// dotted names, type suffixes and call options onto their owning token.
package block

import (
	"pimo/src/cerr"
	"pimo/src/source"
	"pimo/src/token"
)

// Kind is a Block's bracket flavour.
type Kind int

const (
	Root Kind = iota
	Stack
	Segment
	Options
)

func (k Kind) String() string {
	switch k {
	case Stack:
		return "stack"
	case Segment:
		return "segment"
	case Options:
		return "options"
	default:
		return "root"
	}
}

// Block is a tree node: children are either token.Token values or *Block pointers. Block satisfies
// token.Options so a Token can attach one as its CallOptions without an import cycle.
type Block struct {
	Kind       Kind
	Parent     *Block
	StartToken token.Token

	// Size is set for a Stack block opened with a sized opener ("N:[").
	Size    int
	HasSize bool

	Children []interface{}
}

// Elements implements token.Options.
func (b *Block) Elements() []interface{} { return b.Children }

// Parse runs pass 1 (bracket folding) over lexed lines. Lines whose first token is the "#"
// operator belong to the preprocessor layer and are invisible to this pass entirely — not merely
// skipped once seen, per the directive-ordering note this spec carries forward from
// parser.py.parse_blocks.
func Parse(program string, lines []source.Line) (*Block, error) {
	root := &Block{Kind: Root}
	open := []*Block{root}

	cur := func() *Block { return open[len(open)-1] }

	for _, ln := range lines {
		if len(ln.Tokens) > 0 && ln.Tokens[0].Kind == token.Operator && ln.Tokens[0].Text == "#" {
			continue
		}
		for _, tok := range ln.Tokens {
			switch {
			case tok.Kind == token.Delimiter && tok.Text == "[":
				nb := &Block{Kind: Stack, Parent: cur(), StartToken: tok}
				if tok.HasSize {
					nb.Size, nb.HasSize = tok.Size, true
				}
				cur().Children = append(cur().Children, nb)
				open = append(open, nb)
			case tok.Kind == token.Delimiter && tok.Text == "{":
				nb := &Block{Kind: Segment, Parent: cur(), StartToken: tok}
				cur().Children = append(cur().Children, nb)
				open = append(open, nb)
			case tok.Kind == token.Delimiter && tok.Text == "(":
				nb := &Block{Kind: Options, Parent: cur(), StartToken: tok}
				cur().Children = append(cur().Children, nb)
				open = append(open, nb)
			case tok.Kind == token.Delimiter && (tok.Text == "]" || tok.Text == "}" || tok.Text == ")"):
				want := map[string]Kind{"]": Stack, "}": Segment, ")": Options}[tok.Text]
				top := cur()
				if top.Kind != want || len(open) == 1 {
					return nil, cerr.NewAt(cerr.BlockDelimitation, program, tok.Line, "", 0, tok.Text)
				}
				if top.Kind == Stack && len(top.Children) == 0 {
					return nil, cerr.NewAt(cerr.BlockDelimitation, program, tok.Line, "", 0, "empty stack")
				}
				open = open[:len(open)-1]
			default:
				cur().Children = append(cur().Children, tok)
			}
		}
	}

	if len(open) != 1 {
		return nil, cerr.New(cerr.BlockDelimitation, program, 0, "unclosed block")
	}
	return root, nil
}
