package jack_test

import (
	"testing"

	"n2t.dev/toolchain/pkg/jack"
)

func TestTokenizer(t *testing.T) {
	test := func(source string, expected []jack.Token) {
		tokenizer, err := jack.NewTokenizer([]byte(source))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got := []jack.Token{}
		for {
			tok, ok := tokenizer.Advance()
			if !ok {
				break
			}
			got = append(got, tok)
		}

		if len(got) != len(expected) {
			t.Fatalf("expected %d tokens, got %d: %+v", len(expected), len(got), got)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("token %d: expected %+v, got %+v", i, expected[i], got[i])
			}
		}
	}

	t.Run("Keywords, identifiers and symbols", func(t *testing.T) {
		test("class Main { }", []jack.Token{
			{Type: jack.KeywordTok, Value: "class"},
			{Type: jack.IdentifierTok, Value: "Main"},
			{Type: jack.SymbolTok, Value: "{"},
			{Type: jack.SymbolTok, Value: "}"},
		})
	})

	t.Run("Integer and string constants", func(t *testing.T) {
		test(`let x = 42; let s = "hello world";`, []jack.Token{
			{Type: jack.KeywordTok, Value: "let"},
			{Type: jack.IdentifierTok, Value: "x"},
			{Type: jack.SymbolTok, Value: "="},
			{Type: jack.IntConstTok, Value: "42"},
			{Type: jack.SymbolTok, Value: ";"},
			{Type: jack.KeywordTok, Value: "let"},
			{Type: jack.IdentifierTok, Value: "s"},
			{Type: jack.SymbolTok, Value: "="},
			{Type: jack.StringConstTok, Value: "hello world"},
			{Type: jack.SymbolTok, Value: ";"},
		})
	})

	t.Run("Line and block comments are stripped", func(t *testing.T) {
		test(`
			// this is a comment
			var int x; /* inline */ var int y;
			/** API doc comment
			 * spanning multiple lines
			 */
			var int z;
		`, []jack.Token{
			{Type: jack.KeywordTok, Value: "var"},
			{Type: jack.KeywordTok, Value: "int"},
			{Type: jack.IdentifierTok, Value: "x"},
			{Type: jack.SymbolTok, Value: ";"},
			{Type: jack.KeywordTok, Value: "var"},
			{Type: jack.KeywordTok, Value: "int"},
			{Type: jack.IdentifierTok, Value: "y"},
			{Type: jack.SymbolTok, Value: ";"},
			{Type: jack.KeywordTok, Value: "var"},
			{Type: jack.KeywordTok, Value: "int"},
			{Type: jack.IdentifierTok, Value: "z"},
			{Type: jack.SymbolTok, Value: ";"},
		})
	})

	t.Run("Unary and binary operator symbols", func(t *testing.T) {
		test("x = -y + ~z;", []jack.Token{
			{Type: jack.IdentifierTok, Value: "x"},
			{Type: jack.SymbolTok, Value: "="},
			{Type: jack.SymbolTok, Value: "-"},
			{Type: jack.IdentifierTok, Value: "y"},
			{Type: jack.SymbolTok, Value: "+"},
			{Type: jack.SymbolTok, Value: "~"},
			{Type: jack.IdentifierTok, Value: "z"},
			{Type: jack.SymbolTok, Value: ";"},
		})
	})

	t.Run("Unterminated string literal errors", func(t *testing.T) {
		if _, err := jack.NewTokenizer([]byte(`"unterminated`)); err == nil {
			t.Errorf("expected an error, got nil")
		}
	})

	t.Run("Unterminated block comment errors", func(t *testing.T) {
		if _, err := jack.NewTokenizer([]byte(`/* unterminated`)); err == nil {
			t.Errorf("expected an error, got nil")
		}
	})

	t.Run("Unexpected character errors", func(t *testing.T) {
		if _, err := jack.NewTokenizer([]byte(`@`)); err == nil {
			t.Errorf("expected an error, got nil")
		}
	})
}
