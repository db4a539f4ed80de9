package doc

import "fmt"

// ParseDoc parses src into the top-level node list. It returns a lex/syntax
// error immediately (unlike recipe-level ParseErrors, the concrete syntax
// reader does not attempt partial recovery — a malformed document has no
// sensible node tree to return errors about).
func ParseDoc(src string) ([]Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var nodes []Node
	for p.peek().kind != tokEOF {
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

type syntaxError struct {
	pos Pos
	msg string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Col, e.msg)
}

func (p *parser) parseNode() (Node, error) {
	nameTok := p.next()
	if nameTok.kind != tokIdent {
		return Node{}, &syntaxError{nameTok.pos, fmt.Sprintf("expected node name, got %q", nameTok.text)}
	}
	n := Node{Pos: nameTok.pos, Name: nameTok.text}

	for {
		t := p.peek()
		switch t.kind {
		case tokString:
			p.next()
			n.Entries = append(n.Entries, Entry{Pos: t.pos, Value: Value{Str: t.text}})
			continue
		case tokIdent:
			// A property (IDENT '=' value) continues the current node's
			// entry list; a bare "true"/"false" is a positional boolean
			// entry; any other identifier starts the next sibling node
			// (or, if we're inside a block, is handled by the caller once
			// we return).
			if p.toks[p.pos+1].kind == tokEquals {
				p.next() // consume ident
				p.next() // consume '='
				val, err := p.parseValue()
				if err != nil {
					return Node{}, err
				}
				n.Entries = append(n.Entries, Entry{Pos: t.pos, Property: t.text, Value: val})
				continue
			}
			if t.text == "true" || t.text == "false" {
				p.next()
				n.Entries = append(n.Entries, Entry{Pos: t.pos, Value: Value{IsBool: true, Bool: t.text == "true"}})
				continue
			}
		}
		break
	}

	if p.peek().kind == tokLBrace {
		p.next()
		for p.peek().kind != tokRBrace {
			if p.peek().kind == tokEOF {
				return Node{}, &syntaxError{p.peek().pos, "unterminated block, expected '}'"}
			}
			child, err := p.parseNode()
			if err != nil {
				return Node{}, err
			}
			n.Children = append(n.Children, child)
		}
		p.next() // consume '}'
	}

	return n, nil
}

func (p *parser) parseValue() (Value, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return Value{Str: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return Value{IsBool: true, Bool: true}, nil
		case "false":
			return Value{IsBool: true, Bool: false}, nil
		}
	}
	return Value{}, &syntaxError{t.pos, fmt.Sprintf("expected string or boolean, got %q", t.text)}
}
