package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextTokenBasicTokens(t *testing.T) {
	input := `{ } ( ) [ ] , . ; + - * / %`

	expected := []TokenType{
		TokenLBrace, TokenRBrace, TokenLParen, TokenRParen,
		TokenLBracket, TokenRBracket, TokenComma, TokenDot, TokenSemi,
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenEOF,
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		assert.Equalf(t, want, tok.Type, "token %d", i)
	}
}

func TestNextTokenTwoCharOperators(t *testing.T) {
	input := `== != <= >= << >> ++ --`
	expected := []TokenType{
		TokenEqEq, TokenNotEq, TokenLessEq, TokenGreaterEq,
		TokenShl, TokenShr, TokenPlusPlus, TokenMinusMinus, TokenEOF,
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		assert.Equalf(t, want, tok.Type, "token %d", i)
	}
}

func TestNextTokenKeywords(t *testing.T) {
	input := `如果 否则 当 为 真 假 空 函数 返回 类 继承 超 这 变量 且 或 非`
	expected := []TokenType{
		TokenIf, TokenElse, TokenWhile, TokenFor, TokenTrue, TokenFalse,
		TokenNil, TokenFn, TokenReturn, TokenClass, TokenExtends,
		TokenSuper, TokenThis, TokenVar, TokenAnd, TokenOr, TokenNot,
		TokenEOF,
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		assert.Equalf(t, want, tok.Type, "token %d", i)
	}
}

func TestNextTokenIdentifier(t *testing.T) {
	l := New(`变量 计数器 = 0;`)
	assert.Equal(t, TokenVar, l.NextToken().Type)
	tok := l.NextToken()
	assert.Equal(t, TokenIdentifier, tok.Type)
	assert.Equal(t, "计数器", tok.Literal)
}

func TestNextTokenNumber(t *testing.T) {
	l := New(`3.14159 42`)
	tok := l.NextToken()
	assert.Equal(t, TokenNumber, tok.Type)
	assert.Equal(t, "3.14159", tok.Literal)
	tok = l.NextToken()
	assert.Equal(t, TokenNumber, tok.Type)
	assert.Equal(t, "42", tok.Literal)
}

func TestNextTokenString(t *testing.T) {
	l := New(`"你好，世界"`)
	tok := l.NextToken()
	assert.Equal(t, TokenString, tok.Type)
	assert.Equal(t, "你好，世界", tok.Literal)
}

func TestNextTokenUnterminatedString(t *testing.T) {
	l := New(`"没有结尾`)
	tok := l.NextToken()
	assert.Equal(t, TokenIllegal, tok.Type)
}

func TestNextTokenSkipsLineComments(t *testing.T) {
	l := New("变量 甲 = 1; // 这是一个注释\n变量 乙 = 2;")
	tokens := l.Tokenize()
	var count int
	for _, tok := range tokens {
		if tok.Type == TokenIllegal {
			t.Fatalf("unexpected illegal token: %+v", tok)
		}
		count++
	}
	// 变量 甲 = 1 ; 变量 乙 = 2 ; EOF — the comment contributes no tokens.
	assert.Equal(t, 11, count)
}

func TestNextTokenLineTracking(t *testing.T) {
	l := New("1\n2\n3")
	var lines []int
	for {
		tok := l.NextToken()
		if tok.Type == TokenEOF {
			break
		}
		lines = append(lines, tok.Line)
	}
	assert.Equal(t, []int{1, 2, 3}, lines)
}
