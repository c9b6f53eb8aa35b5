package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokOpen
	tokClose
)

type token struct {
	kind  tokenKind
	field string
	text  string
}

// Parser turns query strings into Query trees for one model.
//
// Supported syntax: field:value, bare values searched across the default
// fields, "quoted phrases", AND / OR / NOT between clauses and parentheses.
// Clauses without an operator are ANDed.
type Parser struct {
	model  model.Model
	fields []string
}

// NewParser returns a Parser that embeds terms with m and expands bare
// words over defaultFields.
func NewParser(m model.Model, defaultFields []string) *Parser {
	return &Parser{model: m, fields: defaultFields}
}

// Parse builds the query for one collection. An empty or all-stop-word query
// yields a Query without terms.
func (p *Parser) Parse(collectionID uint64, raw string, selectFields []string) (*Query, error) {
	tokens, err := lex(raw)
	if err != nil {
		return nil, err
	}
	pos := 0
	q, err := p.parseSequence(collectionID, tokens, &pos, 0)
	if err != nil {
		return nil, err
	}
	if pos != len(tokens) {
		return nil, fmt.Errorf("unbalanced ')' in %q: %w", raw, apperrors.ErrInvalidInput)
	}
	if q == nil {
		q = &Query{}
	}
	q.Select = selectFields
	return q, nil
}

// unit is one operand of a sequence: the terms of a single clause or a
// parenthesized group.
type unit struct {
	op     Combinator
	terms  []*Term
	group  *Query
	fields int
}

// parseSequence reads clauses until the closing parenthesis of depth or the
// end of input. Single-field clauses fold into the first level as terms
// until a group or multi-field clause has been chained; from then on every
// clause is chained in order so the reduction stays left to right.
func (p *Parser) parseSequence(collectionID uint64, tokens []token, pos *int, depth int) (*Query, error) {
	var units []unit
	op := Intersection
	for *pos < len(tokens) {
		tok := tokens[*pos]
		*pos++

		if tok.kind == tokWord && tok.field == "" {
			switch strings.ToUpper(tok.text) {
			case "AND":
				op = Intersection
				continue
			case "OR":
				op = Union
				continue
			case "NOT":
				op = Subtraction
				continue
			}
		}

		switch tok.kind {
		case tokClose:
			if depth == 0 {
				*pos--
			}
			return build(units), nil
		case tokOpen:
			group, err := p.parseSequence(collectionID, tokens, pos, depth+1)
			if err != nil {
				return nil, err
			}
			if group != nil {
				units = append(units, unit{op: op, group: group})
			}
		default:
			clauses, err := p.clauses(collectionID, tok, op)
			if err != nil {
				return nil, err
			}
			units = append(units, clauses...)
		}
		op = Intersection
	}
	if depth > 0 {
		return nil, fmt.Errorf("missing ')': %w", apperrors.ErrInvalidInput)
	}
	return build(units), nil
}

// clauses embeds a word or phrase. Every word becomes its own clause; the
// first carries op and the rest are ANDed. A word searched across several
// fields matches in any of them.
func (p *Parser) clauses(collectionID uint64, tok token, op Combinator) ([]unit, error) {
	fields := p.fields
	if tok.field != "" {
		fields = []string{tok.field}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no field for %q and no default fields: %w", tok.text, apperrors.ErrInvalidInput)
	}

	vectors := p.model.CreateEmbedding(tok.text, true)
	units := make([]unit, 0, len(vectors))
	for i, v := range vectors {
		u := unit{op: Intersection, fields: len(fields)}
		if i == 0 {
			u.op = op
		}
		for j, field := range fields {
			c := Intersection
			if j > 0 {
				c = Union
			}
			u.terms = append(u.terms, &Term{
				CollectionID: collectionID,
				KeyID:        -1,
				Key:          field,
				Vector:       v,
				Combinator:   c,
			})
		}
		units = append(units, u)
	}
	return units, nil
}

// inline prepares a clause's terms for a level that already holds terms.
func (u unit) inline() []*Term {
	if u.op == Subtraction {
		for _, t := range u.terms {
			t.Combinator = Subtraction
		}
		return u.terms
	}
	u.terms[0].Combinator = u.op
	return u.terms
}

func build(units []unit) *Query {
	if len(units) == 0 {
		return nil
	}
	var head *Query
	chained := false
	for i, u := range units {
		if i == 0 {
			if u.group != nil {
				head = u.group
				chained = head.And != nil || head.Or != nil || head.Not != nil
			} else {
				head = &Query{Terms: u.inline()}
			}
			head.Combinator = Intersection
			continue
		}
		if u.group == nil && u.fields == 1 && !chained {
			head.Terms = append(head.Terms, u.inline()...)
			continue
		}
		child := u.group
		if child == nil {
			child = &Query{Terms: u.terms}
		}
		child.Combinator = u.op
		head.attach(child, u.op)
		chained = true
	}
	return head
}

// lex splits a query into words, phrases and parentheses. A field prefix
// binds to the word or phrase directly after the colon.
func lex(raw string) ([]token, error) {
	var tokens []token
	runes := []rune(raw)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokOpen})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokClose})
			i++
		case r == '"':
			text, next, err := readPhrase(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokPhrase, text: text})
			i = next
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != '(' && runes[i] != ')' && runes[i] != '"' && runes[i] != ':' {
				i++
			}
			word := string(runes[start:i])
			if i < len(runes) && runes[i] == ':' {
				i++
				if i < len(runes) && runes[i] == '"' {
					text, next, err := readPhrase(runes, i)
					if err != nil {
						return nil, err
					}
					tokens = append(tokens, token{kind: tokPhrase, field: word, text: text})
					i = next
					continue
				}
				valueStart := i
				for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != '(' && runes[i] != ')' {
					i++
				}
				if i == valueStart {
					return nil, fmt.Errorf("field %q has no value: %w", word, apperrors.ErrInvalidInput)
				}
				tokens = append(tokens, token{kind: tokWord, field: word, text: string(runes[valueStart:i])})
				continue
			}
			tokens = append(tokens, token{kind: tokWord, text: word})
		}
	}
	return tokens, nil
}

func readPhrase(runes []rune, open int) (string, int, error) {
	for i := open + 1; i < len(runes); i++ {
		if runes[i] == '"' {
			return string(runes[open+1 : i]), i + 1, nil
		}
	}
	return "", 0, fmt.Errorf("unterminated phrase: %w", apperrors.ErrInvalidInput)
}
