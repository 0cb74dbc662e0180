package sprite

import (
	"context"
	"io"
	"strings"
	"testing"
)

const fibSource = `func fib(n)
  if n < 2 return n end
  return fib(n - 1) + fib(n - 2)
end
fib(15)`

func BenchmarkParserFibonacci(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(fibSource); err != nil {
			b.Fatalf("parse failed: %v", err)
		}
	}
}

func BenchmarkEvaluatorFibonacci(b *testing.B) {
	program, err := Parse(fibSource)
	if err != nil {
		b.Fatalf("parse failed: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in, err := New(WithOutput(io.Discard))
		if err != nil {
			b.Fatalf("new interpreter: %v", err)
		}
		if _, err := in.Eval(context.Background(), program); err != nil {
			b.Fatalf("eval failed: %v", err)
		}
	}
}

func BenchmarkEvaluatorWhileLoop(b *testing.B) {
	program, err := Parse("i = 0\nsum = 0\nwhile i < 1000\n  sum = sum + i * 2 % 7\n  i = i + 1\nend\nsum")
	if err != nil {
		b.Fatalf("parse failed: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in, _ := New(WithOutput(io.Discard))
		if _, err := in.Eval(context.Background(), program); err != nil {
			b.Fatalf("eval failed: %v", err)
		}
	}
}

var fuzzSeeds = []string{
	"1 + 2 * 3",
	"x = (1 + 2) * 3 # comment",
	"func add(a, b) a + b\nadd(1, 2)",
	fibSource,
	"if n > 4 \"gt\" elif n < 4 \"lt\" else \"eq\" end",
	"while i < 3\n  i = i + 1\nend",
	"!0 && -1.5 || \"s\\\"q\"",
	"1.2.3",
	"func (",
}

func FuzzLexerNoPanic(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, src string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked for %q: %v", src, r)
			}
		}()
		_, _ = Tokenize(src)
	})
}

func FuzzParserNoPanic(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, src string) {
		if strings.TrimSpace(src) == "" {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("parser panicked for %q: %v", src, r)
			}
		}()
		program, err := Parse(src)
		if err != nil {
			return
		}
		if _, err := Parse(program.String()); err != nil {
			t.Fatalf("rendered program %q does not parse: %v", program.String(), err)
		}
	})
}
