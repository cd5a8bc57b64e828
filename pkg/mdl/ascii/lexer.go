// Package ascii reads and writes the line-oriented text form of KotOR
// models.
package ascii

import (
	"fmt"

	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

const (
	tokWord = iota
	tokNewline
)

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`#[^\n]*`), skip)
	lexer.Add([]byte(`\n`), getToken(tokNewline))
	lexer.Add([]byte(`( |\t|\r)+`), skip)
	lexer.Add([]byte(`[^ \t\r\n#]+`), getToken(tokWord))
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

// line is one non-empty input line split into words.
type line struct {
	no     int
	fields []string
}

// tokenize splits text into lines of whitespace-separated words, dropping
// comments and blank lines.
func tokenize(text []byte) ([]line, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, fmt.Errorf("creating scanner: %w", err)
	}

	var lines []line
	var cur line
	for tk, err, eos := scanner.Next(); !eos; tk, err, eos = scanner.Next() {
		if err != nil {
			return nil, &SyntaxError{Line: cur.no, Msg: err.Error()}
		}
		tok := tk.(*lexmachine.Token)

		switch tok.Type {
		case tokWord:
			if len(cur.fields) == 0 {
				cur.no = tok.StartLine
			}
			cur.fields = append(cur.fields, tok.Value.(string))
		case tokNewline:
			if len(cur.fields) > 0 {
				lines = append(lines, cur)
			}
			cur = line{}
		}
	}
	if len(cur.fields) > 0 {
		lines = append(lines, cur)
	}
	return lines, nil
}
