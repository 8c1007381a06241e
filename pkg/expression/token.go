package expression

import (
	"fmt"
	"strings"
)

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenAnd
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
)

func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "IDENT"
	case TokenAnd:
		return "&&"
	case TokenOr:
		return "||"
	case TokenNot:
		return "!"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	default:
		return "UNKNOWN"
	}
}

type Token struct {
	Type     TokenType
	Value    string
	Position int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d", t.Type, t.Value, t.Position)
}

// word operators, compared case-insensitively
var words = map[string]TokenType{
	"AND": TokenAnd,
	"OR":  TokenOr,
	"NOT": TokenNot,
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || c == '.' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// Tokenize splits an expression into tokens. Word operators are turned into
// their symbolic token types.
func Tokenize(text string) ([]Token, error) {
	var tokens []Token
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, Token{TokenLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, Token{TokenRParen, ")", i})
			i++
		case c == '!':
			tokens = append(tokens, Token{TokenNot, "!", i})
			i++
		case strings.HasPrefix(text[i:], "&&"):
			tokens = append(tokens, Token{TokenAnd, "&&", i})
			i += 2
		case strings.HasPrefix(text[i:], "||"):
			tokens = append(tokens, Token{TokenOr, "||", i})
			i += 2
		case isIdentChar(c):
			start := i
			for i < len(text) && isIdentChar(text[i]) {
				i++
			}
			value := text[start:i]
			if tt, ok := words[strings.ToUpper(value)]; ok {
				tokens = append(tokens, Token{tt, tt.String(), start})
				continue
			}
			tokens = append(tokens, Token{TokenIdent, value, start})
		default:
			return nil, &SyntaxError{Expression: text, Position: i, Reason: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(tokens, Token{TokenEOF, "", len(text)}), nil
}

// Normalize rewrites word operators (AND, or, Not...) to their symbolic form.
func Normalize(text string) (string, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, t := range tokens {
		if t.Type == TokenEOF {
			break
		}
		if i > 0 && t.Type != TokenRParen && tokens[i-1].Type != TokenLParen && tokens[i-1].Type != TokenNot {
			b.WriteByte(' ')
		}
		b.WriteString(t.Value)
	}
	return b.String(), nil
}
