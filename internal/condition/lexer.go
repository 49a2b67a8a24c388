package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokBool
	tokOp     // = == != > >= < <=
	tokAnd    // AND
	tokOr     // OR
	tokNot    // NOT
	tokIn     // IN
	tokLParen // (
	tokRParen // )
	tokComma  // ,
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func lex(expr string) ([]token, error) {
	var out []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			out = append(out, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			out = append(out, token{kind: tokRParen, text: ")"})
			i++
		case r == ',':
			out = append(out, token{kind: tokComma, text: ","})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			out = append(out, token{kind: tokString, text: string(runes[i+1 : j])})
			i = j + 1
		case r == '=' || r == '!' || r == '>' || r == '<':
			op := string(r)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			if op == "!" {
				return nil, fmt.Errorf("bare '!' at offset %d", i)
			}
			out = append(out, token{kind: tokOp, text: op})
			i++
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", text)
			}
			out = append(out, token{kind: tokNumber, text: text, num: n})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			word := string(runes[i:j])
			out = append(out, keywordToken(word))
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}
	return out, nil
}

// Keywords are case-sensitive; anything else is a variable reference.
func keywordToken(word string) token {
	switch word {
	case "AND":
		return token{kind: tokAnd, text: word}
	case "OR":
		return token{kind: tokOr, text: word}
	case "NOT":
		return token{kind: tokNot, text: word}
	case "IN":
		return token{kind: tokIn, text: word}
	}
	switch strings.ToLower(word) {
	case "true":
		return token{kind: tokBool, text: word}
	case "false":
		return token{kind: tokBool, text: word}
	}
	return token{kind: tokIdent, text: word}
}
