package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/visibility"
)

// Evaluator is the default, dependency-free rule engine used for refinements
// and conditional visibility.
//
// Supported syntax:
//   - truthiness checks: `guestName`, `!guestName`
//   - equality: `attendingWithGuest == "yes"`, `age != 0`, `x == null`
//   - ordering on numbers: `age > 17`, `yearsOfExperience <= 40`
//   - composition with `&&`, `||` and parentheses
//
// Identifiers resolve through visibility.Lookup. Parsed rules are cached, so a
// single Evaluator can be shared between goroutines.
type Evaluator struct {
	cache sync.Map // rule -> node
}

// New returns an Evaluator with an empty rule cache.
func New() *Evaluator { return &Evaluator{} }

var _ visibility.Evaluator = (*Evaluator)(nil)

// Eval parses (once) and evaluates rule against ctx. An empty rule holds.
func (e *Evaluator) Eval(_ string, rule string, ctx visibility.Context) (bool, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return true, nil
	}
	n, err := e.compile(trimmed)
	if err != nil {
		return false, err
	}
	return n.eval(ctx)
}

// Check parses rule without evaluating it.
func (e *Evaluator) Check(rule string) error {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil
	}
	_, err := e.compile(trimmed)
	return err
}

func (e *Evaluator) compile(rule string) (node, error) {
	if cached, ok := e.cache.Load(rule); ok {
		return cached.(node), nil
	}
	toks, err := lex(rule)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("visibility/expr: unexpected token %q", p.peek().text)
	}
	e.cache.Store(rule, n)
	return n, nil
}

type kind int

const (
	kIdent kind = iota
	kString
	kNumber
	kBool
	kNull
	kOp
	kNot
	kAnd
	kOr
	kLParen
	kRParen
)

type tok struct {
	kind kind
	text string
}

func lex(input string) ([]tok, error) {
	var out []tok
	for i := 0; i < len(input); {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			out = append(out, tok{kLParen, "("})
			i++
		case ch == ')':
			out = append(out, tok{kRParen, ")"})
			i++
		case ch == '&' || ch == '|':
			if i+1 >= len(input) || input[i+1] != ch {
				return nil, fmt.Errorf("visibility/expr: unexpected %q; use %q", string(ch), string([]byte{ch, ch}))
			}
			if ch == '&' {
				out = append(out, tok{kAnd, "&&"})
			} else {
				out = append(out, tok{kOr, "||"})
			}
			i += 2
		case ch == '=' || ch == '!' || ch == '<' || ch == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				out = append(out, tok{kOp, input[i : i+2]})
				i += 2
				continue
			}
			switch ch {
			case '!':
				out = append(out, tok{kNot, "!"})
			case '=':
				return nil, errors.New("visibility/expr: unexpected '='; use '=='")
			default:
				out = append(out, tok{kOp, string(ch)})
			}
			i++
		case ch == '"' || ch == '\'':
			end := i + 1
			for end < len(input) && input[end] != ch {
				if input[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(input) {
				return nil, errors.New("visibility/expr: unterminated string literal")
			}
			raw := input[i+1 : end]
			if ch == '\'' {
				raw = strings.ReplaceAll(raw, `\'`, `'`)
				raw = strings.ReplaceAll(raw, `"`, `\"`)
			}
			value, err := strconv.Unquote(`"` + raw + `"`)
			if err != nil {
				return nil, fmt.Errorf("visibility/expr: invalid string literal: %w", err)
			}
			out = append(out, tok{kString, value})
			i = end + 1
		default:
			start := i
			for i < len(input) && !strings.ContainsRune(" \t\n\r()!=<>&|\"'", rune(input[i])) {
				i++
			}
			word := input[start:i]
			switch strings.ToLower(word) {
			case "true", "false":
				out = append(out, tok{kBool, strings.ToLower(word)})
			case "null", "nil":
				out = append(out, tok{kNull, "null"})
			default:
				if _, err := strconv.ParseFloat(word, 64); err == nil {
					out = append(out, tok{kNumber, word})
				} else {
					out = append(out, tok{kIdent, word})
				}
			}
		}
	}
	return out, nil
}

type parser struct {
	toks []tok
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() tok {
	if p.done() {
		return tok{}
	}
	return p.toks[p.pos]
}

func (p *parser) accept(k kind) (tok, bool) {
	if p.done() || p.toks[p.pos].kind != k {
		return tok{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(kOr); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(kAnd); !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.accept(kNot); ok {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	if _, ok := p.accept(kLParen); ok {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.accept(kRParen); !ok {
			return nil, errors.New("visibility/expr: missing closing ')'")
		}
		return inner, nil
	}

	ident, ok := p.accept(kIdent)
	if !ok {
		if p.done() {
			return nil, errors.New("visibility/expr: empty expression")
		}
		return nil, fmt.Errorf("visibility/expr: expected identifier, got %q", p.peek().text)
	}
	op, ok := p.accept(kOp)
	if !ok {
		return truthyNode{ident.text}, nil
	}
	if p.done() {
		return nil, errors.New("visibility/expr: missing literal")
	}
	lit := p.toks[p.pos]
	p.pos++
	switch lit.kind {
	case kString, kNumber, kBool, kNull:
	case kIdent:
		// bare words compare as strings
		lit.kind = kString
	default:
		return nil, fmt.Errorf("visibility/expr: expected literal, got %q", lit.text)
	}
	if isOrdering(op.text) && lit.kind != kNumber {
		return nil, fmt.Errorf("visibility/expr: operator %q requires a number literal", op.text)
	}
	return compareNode{ident: ident.text, op: op.text, lit: lit}, nil
}

func isOrdering(op string) bool {
	return op == "<" || op == ">" || op == "<=" || op == ">="
}

type node interface {
	eval(ctx visibility.Context) (bool, error)
}

type orNode struct{ left, right node }

func (n orNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(ctx)
}

type andNode struct{ left, right node }

func (n andNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(ctx)
}

type notNode struct{ inner node }

func (n notNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.inner.eval(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type truthyNode struct{ ident string }

func (n truthyNode) eval(ctx visibility.Context) (bool, error) {
	value, ok := visibility.Lookup(ctx, n.ident)
	if !ok {
		return false, nil
	}
	return truthy(value), nil
}

type compareNode struct {
	ident string
	op    string
	lit   tok
}

func (n compareNode) eval(ctx visibility.Context) (bool, error) {
	value, _ := visibility.Lookup(ctx, n.ident)

	var equal bool
	switch n.lit.kind {
	case kNull:
		equal = value == nil
	case kBool:
		got, _ := coerceBool(value)
		equal = got == (n.lit.text == "true")
	case kNumber:
		want, _ := strconv.ParseFloat(n.lit.text, 64)
		got, ok := coerceNumber(value)
		if !ok {
			if isOrdering(n.op) {
				return false, nil
			}
			got = 0
		}
		switch n.op {
		case "<":
			return got < want, nil
		case ">":
			return got > want, nil
		case "<=":
			return got <= want, nil
		case ">=":
			return got >= want, nil
		}
		equal = got == want
	default:
		equal = coerceString(value) == n.lit.text
	}

	if n.op == "!=" {
		return !equal, nil
	}
	return equal, nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		if f, ok := coerceNumber(v); ok {
			return f != 0
		}
		return true
	}
}

func coerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed, true
		}
		return strings.TrimSpace(v) != "", true
	default:
		return truthy(value), true
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}
