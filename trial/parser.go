package trial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liamcoop/trialmatch/rules"
)

// ErrSyntax is wrapped by every parse error that is not an unknown rule
var ErrSyntax = errors.New("syntax error")

// ParseError reports where an inclusion rule could not be parsed
type ParseError struct {
	Expression string
	Offset     int
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q at offset %d: %v", e.Expression, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads an inclusion rule in configuration syntax. Composite rules
// take nested rules in parentheses, leaf rules take literals in brackets:
//
//	OR(AND(IS_MALE, IS_AT_LEAST_X_YEARS_OLD[18]), NOT(HAS_ANY_COMPLICATION))
//
// Literals are split on top-level commas and trimmed. Commas nested inside
// (), [], {} or quotes stay part of the literal. Parse only checks syntax
// and rule names; arity and literal types are checked when the function is
// built.
func Parse(expression string) (rules.EligibilityFunction, error) {
	p := &parser{input: expression}
	fn, err := p.function()
	if err != nil {
		return rules.EligibilityFunction{}, err
	}
	p.skipSpace()
	if !p.done() {
		return rules.EligibilityFunction{}, p.syntaxError("unexpected %q after rule", p.input[p.pos:])
	}
	return fn, nil
}

// MustParse is Parse for expressions known to be valid. It panics on error.
func MustParse(expression string) rules.EligibilityFunction {
	fn, err := Parse(expression)
	if err != nil {
		panic(err)
	}
	return fn
}

type parser struct {
	input string
	pos   int
}

func (p *parser) done() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.done() && isSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *parser) syntaxError(format string, args ...any) error {
	return &ParseError{
		Expression: p.input,
		Offset:     p.pos,
		Err:        fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...)),
	}
}

func (p *parser) function() (rules.EligibilityFunction, error) {
	p.skipSpace()
	start := p.pos
	for !p.done() && isRuleChar(p.input[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		if p.done() {
			return rules.EligibilityFunction{}, p.syntaxError("expected rule name, got end of input")
		}
		return rules.EligibilityFunction{}, p.syntaxError("expected rule name, got %q", p.peek())
	}
	rule, err := rules.ParseRule(p.input[start:p.pos])
	if err != nil {
		return rules.EligibilityFunction{}, &ParseError{Expression: p.input, Offset: start, Err: err}
	}

	p.skipSpace()
	if rules.IsComposite(rule) {
		if p.peek() != '(' {
			return rules.EligibilityFunction{}, p.syntaxError("composite rule %s must be followed by '('", rule)
		}
		p.pos++
		children, err := p.children()
		if err != nil {
			return rules.EligibilityFunction{}, err
		}
		return rules.Composite(rule, children...), nil
	}

	switch p.peek() {
	case '[':
		p.pos++
		literals, err := p.literals()
		if err != nil {
			return rules.EligibilityFunction{}, err
		}
		return rules.Leaf(rule, literals...), nil
	case '(':
		return rules.EligibilityFunction{}, p.syntaxError("rule %s takes literal parameters in brackets", rule)
	}
	return rules.Leaf(rule), nil
}

func (p *parser) children() ([]rules.EligibilityFunction, error) {
	var children []rules.EligibilityFunction
	for {
		child, err := p.function()
		if err != nil {
			return nil, err
		}
		children = append(children, child)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return children, nil
		default:
			if p.done() {
				return nil, p.syntaxError("missing ')'")
			}
			return nil, p.syntaxError("expected ',' or ')', got %q", p.peek())
		}
	}
}

// literals reads up to the matching ']' and splits on top-level commas
func (p *parser) literals() ([]string, error) {
	var (
		values  []string
		current strings.Builder
		depth   int
		quote   byte
	)
	for !p.done() {
		c := p.input[p.pos]
		p.pos++

		switch {
		case quote != 0:
			current.WriteByte(c)
			if c == '\\' && !p.done() {
				current.WriteByte(p.input[p.pos])
				p.pos++
			} else if c == quote {
				quote = 0
			}
			continue
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case (c == ')' || c == ']' || c == '}') && depth > 0:
			depth--
		case c == ']':
			values = append(values, strings.TrimSpace(current.String()))
			if len(values) == 1 && values[0] == "" {
				return nil, nil
			}
			return values, nil
		case c == ',' && depth == 0:
			values = append(values, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteByte(c)
	}
	return nil, p.syntaxError("missing ']'")
}

func isRuleChar(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
