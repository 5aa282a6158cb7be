package scanner_test

import (
	"testing"

	"github.com/mna/notlox/lang/scanner"
	"github.com/mna/notlox/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	s := scanner.New(src)
	var toks []token.Token
	for {
		tok, err := s.Scan()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func TestScanPunctuationAndKeywords(t *testing.T) {
	toks := scanAll(t, "let x = 1 + 2; print x; // trailing comment\n")
	types := make([]token.Type, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	require.Equal(t, []token.Type{
		token.LET, token.IDENT, token.EQ, token.NUMBER, token.PLUS, token.NUMBER,
		token.SEMICOLON, token.PRINT, token.IDENT, token.SEMICOLON, token.EOF,
	}, types)
}

func TestScanLineTracking(t *testing.T) {
	toks := scanAll(t, "let a = 1;\nlet b = 2;\n")
	var bLine int
	for _, tok := range toks {
		if tok.Type == token.IDENT && tok.Lexeme == "b" {
			bLine = tok.Line
		}
	}
	require.Equal(t, 2, bLine)
}

func TestScanCompoundOperatorsAndRange(t *testing.T) {
	toks := scanAll(t, "a += 1; b -= 2; c *= 3; d /= 4; 0..5; #{}; && ||")
	var types []token.Type
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	require.Contains(t, types, token.PLUSEQ)
	require.Contains(t, types, token.MINUSEQ)
	require.Contains(t, types, token.STAREQ)
	require.Contains(t, types, token.SLASHEQ)
	require.Contains(t, types, token.DOTDOT)
	require.Contains(t, types, token.HASHBRACE)
	require.Contains(t, types, token.AMPAMP)
	require.Contains(t, types, token.PIPEPIPE)
}

func TestScanStringAndCharLiterals(t *testing.T) {
	toks := scanAll(t, `"hello\nworld" 'a' '\n'`)
	require.Equal(t, token.STRING, toks[0].Type)
	require.Equal(t, `"hello\nworld"`, toks[0].Lexeme)
	require.Equal(t, token.CHAR, toks[1].Type)
	require.Equal(t, `'a'`, toks[1].Lexeme)
	require.Equal(t, token.CHAR, toks[2].Type)
	require.Equal(t, `'\n'`, toks[2].Lexeme)
}

func TestScanUnterminatedStringIsError(t *testing.T) {
	s := scanner.New(`"unterminated`)
	_, err := s.Scan()
	require.Error(t, err)
}

func TestScanUnknownCharacterIsError(t *testing.T) {
	s := scanner.New("@")
	_, err := s.Scan()
	require.Error(t, err)
}

func TestScanNumberWithFraction(t *testing.T) {
	toks := scanAll(t, "3.14 42 0")
	require.Equal(t, "3.14", toks[0].Lexeme)
	require.Equal(t, "42", toks[1].Lexeme)
	require.Equal(t, "0", toks[2].Lexeme)
}
