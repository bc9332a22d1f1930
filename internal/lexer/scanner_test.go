package lexer

import "testing"

func scan(t *testing.T, source string) []Token {
	t.Helper()
	s := NewScanner(source, "<test>")
	tokens := s.ScanTokens()
	if len(s.Errors) > 0 {
		t.Fatalf("unexpected scan errors for %q: %v", source, s.Errors)
	}
	return tokens
}

func types(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func assertTypes(t *testing.T, tokens []Token, want ...TokenType) {
	t.Helper()
	got := types(tokens)
	if len(got) != len(want) {
		t.Fatalf("token count mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	tokens := scan(t, "class function var const this super true false null")
	assertTypes(t, tokens,
		TokenClass, TokenFunction, TokenVar, TokenConst,
		TokenThis, TokenSuper, TokenTrue, TokenFalse, TokenNull,
		TokenEOF,
	)

	tokens = scan(t, "classify func_tion varargs")
	assertTypes(t, tokens, TokenIdent, TokenIdent, TokenIdent, TokenEOF)
}

func TestNumberLiterals(t *testing.T) {
	tests := []struct {
		source string
		want   float64
	}{
		{"42", 42},
		{"3.14", 3.14},
		{"0.5", 0.5},
		{"1e3", 1000},
		{"1.5e-2", 0.015},
		{"2e+2", 200},
	}
	for _, tt := range tests {
		tokens := scan(t, tt.source)
		assertTypes(t, tokens, TokenNumber, TokenEOF)
		got, ok := tokens[0].Literal.(float64)
		if !ok {
			t.Fatalf("%s: literal is not float64: %v", tt.source, tokens[0].Literal)
		}
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestOperators(t *testing.T) {
	tokens := scan(t, "+ - * ** / // % == != <= >= << >> && || ?? => .. ... :: ?")
	assertTypes(t, tokens,
		TokenPlus, TokenMinus, TokenStar, TokenStarStar, TokenSlash, TokenSlashSlash, TokenPercent,
		TokenDoubleEqual, TokenNotEqual, TokenLE, TokenGE, TokenShl, TokenShr,
		TokenAnd, TokenOr, TokenQuestionQuestion, TokenArrow, TokenDotDot, TokenDotDotDot,
		TokenDoubleColon, TokenQuestion,
		TokenEOF,
	)
}

func TestPlainString(t *testing.T) {
	tokens := scan(t, `"hello world"`)
	assertTypes(t, tokens, TokenString, TokenEOF)
	if tokens[0].Literal.(string) != "hello world" {
		t.Errorf("got %q", tokens[0].Literal)
	}
}

func TestStringEscapes(t *testing.T) {
	tokens := scan(t, `"a\nb\tc\"d"`)
	assertTypes(t, tokens, TokenString, TokenEOF)
	want := "a\nb\tc\"d"
	if tokens[0].Literal.(string) != want {
		t.Errorf("got %q, want %q", tokens[0].Literal, want)
	}
}

func TestSimpleInterpolation(t *testing.T) {
	tokens := scan(t, `"value: \(x)"`)
	assertTypes(t, tokens, TokenInterpolation, TokenIdent, TokenInterpolationEnd, TokenString, TokenEOF)
	if tokens[0].Literal.(string) != "value: " {
		t.Errorf("got %q", tokens[0].Literal)
	}
	// nothing follows the interpolation before the closing quote.
	if tokens[3].Literal.(string) != "" {
		t.Errorf("got trailing chunk %q", tokens[3].Literal)
	}
}

func TestInterpolationWithCall(t *testing.T) {
	tokens := scan(t, `"sum: \(add(1, 2))"`)
	assertTypes(t, tokens,
		TokenInterpolation, TokenIdent, TokenLParen, TokenNumber, TokenComma, TokenNumber, TokenRParen,
		TokenInterpolationEnd, TokenString, TokenEOF,
	)
}

func TestNestedInterpolation(t *testing.T) {
	tokens := scan(t, `"a: \("b: \(1)")"`)
	// outer interpolation chunk, then the nested string's own complete
	// token sequence (interpolation chunk, expr, end, trailing empty
	// string chunk), then the outer interpolation's end and trailing
	// empty string chunk.
	want := []TokenType{
		TokenInterpolation, TokenInterpolation, TokenNumber, TokenInterpolationEnd, TokenString,
		TokenInterpolationEnd, TokenString, TokenEOF,
	}
	assertTypes(t, tokens, want...)
}

func TestUnterminatedStringIsError(t *testing.T) {
	s := NewScanner(`"hello`, "<test>")
	s.ScanTokens()
	if len(s.Errors) == 0 {
		t.Fatal("expected an unterminated string error")
	}
}

func TestInterpolationDepthLimitIsError(t *testing.T) {
	// five levels deep, one past maxInterpolationDepth.
	source := `"\("\("\("\("\(1)")")")")"`
	s := NewScanner(source, "<test>")
	s.ScanTokens()
	if len(s.Errors) == 0 {
		t.Fatal("expected an interpolation-depth error")
	}
}

func TestUnexpectedCharacterIsError(t *testing.T) {
	s := NewScanner("var x = @", "<test>")
	s.ScanTokens()
	if len(s.Errors) == 0 {
		t.Fatal("expected an unexpected-character error")
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	tokens := scan(t, "var x = 1 // trailing comment\nvar y = 2")
	assertTypes(t, tokens,
		TokenVar, TokenIdent, TokenEqual, TokenNumber, TokenNewLine,
		TokenVar, TokenIdent, TokenEqual, TokenNumber, TokenEOF,
	)

	tokens = scan(t, "var /* block\nspanning lines */ x = 1")
	assertTypes(t, tokens, TokenVar, TokenIdent, TokenEqual, TokenNumber, TokenEOF)
}

func TestNewlinesAreSignificantTokens(t *testing.T) {
	tokens := scan(t, "var x = 1\nvar y = 2")
	assertTypes(t, tokens,
		TokenVar, TokenIdent, TokenEqual, TokenNumber, TokenNewLine,
		TokenVar, TokenIdent, TokenEqual, TokenNumber, TokenEOF,
	)
}

func TestShebangIsSkipped(t *testing.T) {
	tokens := scan(t, "#!/usr/bin/env ash\nvar x = 1")
	assertTypes(t, tokens, TokenVar, TokenIdent, TokenEqual, TokenNumber, TokenEOF)
}

func TestDotRangeVsMemberAccess(t *testing.T) {
	tokens := scan(t, "a.b")
	assertTypes(t, tokens, TokenIdent, TokenDot, TokenIdent, TokenEOF)

	tokens = scan(t, "a..b")
	assertTypes(t, tokens, TokenIdent, TokenDotDot, TokenIdent, TokenEOF)

	tokens = scan(t, "a...b")
	assertTypes(t, tokens, TokenIdent, TokenDotDotDot, TokenIdent, TokenEOF)
}
