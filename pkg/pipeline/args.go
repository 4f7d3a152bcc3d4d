package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var kwargRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*|)$`)

// ParseArgs parses the literal-argument text of a step descriptor into
// positional and keyword argument values. Only literals are accepted:
// strings, integers, floats, booleans, nil, lists, and string-keyed maps,
// nested to any depth. Identifiers, arithmetic and calls are rejected.
func ParseArgs(text string) ([]any, map[string]any, error) {
	args := []any{}
	kwargs := map[string]any{}

	text = strings.TrimSpace(text)
	if text == "" {
		return args, kwargs, nil
	}

	parts, err := splitTopLevel(text)
	if err != nil {
		return nil, nil, err
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, nil, &ArgumentParseError{Text: text, Reason: "empty argument"}
		}
		if m := kwargRe.FindStringSubmatch(part); m != nil {
			val, err := parseLiteral(text, m[2])
			if err != nil {
				return nil, nil, err
			}
			kwargs[m[1]] = val
			continue
		}
		if len(kwargs) > 0 {
			return nil, nil, &ArgumentParseError{
				Text: text, Offending: part,
				Reason: "positional argument after keyword argument",
			}
		}
		val, err := parseLiteral(text, part)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, val)
	}
	return args, kwargs, nil
}

// splitTopLevel splits the argument text on commas that are not inside
// quotes, brackets, braces or parentheses. A single trailing comma is
// tolerated.
func splitTopLevel(text string) ([]string, error) {
	var parts []string
	var sb strings.Builder
	depth := 0
	var quote byte

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			sb.WriteByte(c)
			if c == '\\' && i+1 < len(text) {
				i++
				sb.WriteByte(text[i])
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			sb.WriteByte(c)
		case '(', '[', '{':
			depth++
			sb.WriteByte(c)
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, &ArgumentParseError{Text: text, Reason: "unbalanced brackets"}
			}
			sb.WriteByte(c)
		case ',':
			if depth == 0 {
				parts = append(parts, sb.String())
				sb.Reset()
			} else {
				sb.WriteByte(c)
			}
		default:
			sb.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, &ArgumentParseError{Text: text, Reason: "unterminated string"}
	}
	if depth != 0 {
		return nil, &ArgumentParseError{Text: text, Reason: "unbalanced brackets"}
	}
	last := sb.String()
	if strings.TrimSpace(last) != "" || len(parts) == 0 {
		parts = append(parts, last)
	}
	return parts, nil
}

// parseLiteral parses a single argument value with the expr parser and folds
// the AST, accepting only literal nodes.
func parseLiteral(full, text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ArgumentParseError{Text: full, Reason: "empty value"}
	}
	if err := checkMapKeysQuoted(full, text); err != nil {
		return nil, err
	}
	tree, err := parser.Parse(text)
	if err != nil {
		return nil, &ArgumentParseError{Text: full, Offending: text, Reason: err.Error()}
	}
	return foldLiteral(full, tree.Node)
}

// checkMapKeysQuoted rejects bare identifiers in map-key position, at any
// nesting depth. The expr grammar sugars {key: 1} into a string key, so the
// fold alone cannot tell it apart from {"key": 1}; the source text can.
func checkMapKeysQuoted(full, text string) error {
	type frame struct {
		brace     bool
		expectKey bool
	}
	var stack []frame
	var quote byte

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		top := len(stack) - 1
		switch c {
		case ' ', '\t':
		case '\'', '"':
			quote = c
			if top >= 0 && stack[top].brace {
				stack[top].expectKey = false
			}
		case '{':
			stack = append(stack, frame{brace: true, expectKey: true})
		case '[', '(':
			stack = append(stack, frame{})
		case '}', ']', ')':
			if top >= 0 {
				stack = stack[:top]
			}
		case ',':
			if top >= 0 && stack[top].brace {
				stack[top].expectKey = true
			}
		case ':':
			if top >= 0 && stack[top].brace {
				stack[top].expectKey = false
			}
		default:
			if top >= 0 && stack[top].brace && stack[top].expectKey {
				end := i
				for end < len(text) && !strings.ContainsRune(" \t:,}", rune(text[end])) {
					end++
				}
				return &ArgumentParseError{
					Text: full, Offending: text[i:end],
					Reason: "map keys must be quoted strings",
				}
			}
		}
	}
	return nil
}

// foldLiteral converts a literal AST node into its native Go value.
func foldLiteral(full string, node ast.Node) (any, error) {
	switch n := node.(type) {
	case *ast.NilNode:
		return nil, nil
	case *ast.BoolNode:
		return n.Value, nil
	case *ast.IntegerNode:
		return n.Value, nil
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.StringNode:
		return n.Value, nil
	case *ast.UnaryNode:
		return foldNegation(full, n)
	case *ast.ArrayNode:
		out := make([]any, 0, len(n.Nodes))
		for _, elem := range n.Nodes {
			v, err := foldLiteral(full, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *ast.MapNode:
		out := make(map[string]any, len(n.Pairs))
		for _, p := range n.Pairs {
			pair, ok := p.(*ast.PairNode)
			if !ok {
				return nil, &ArgumentParseError{Text: full, Offending: p.String(), Reason: "map entry is not a key/value pair"}
			}
			key, ok := pair.Key.(*ast.StringNode)
			if !ok {
				return nil, &ArgumentParseError{Text: full, Offending: pair.Key.String(), Reason: "map keys must be strings"}
			}
			v, err := foldLiteral(full, pair.Value)
			if err != nil {
				return nil, err
			}
			out[key.Value] = v
		}
		return out, nil
	}
	return nil, &ArgumentParseError{Text: full, Offending: node.String()}
}

// foldNegation handles negative numeric literals, the one unary form the
// literal grammar admits.
func foldNegation(full string, n *ast.UnaryNode) (any, error) {
	if n.Operator != "-" {
		return nil, &ArgumentParseError{Text: full, Offending: n.String()}
	}
	inner, err := foldLiteral(full, n.Node)
	if err != nil {
		return nil, err
	}
	switch v := inner.(type) {
	case int:
		return -v, nil
	case float64:
		return -v, nil
	}
	return nil, &ArgumentParseError{Text: full, Offending: n.String(), Reason: fmt.Sprintf("cannot negate %T", inner)}
}
