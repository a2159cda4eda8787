package jack_test

import (
	"strings"
	"testing"

	"n2t.dev/toolchain/pkg/jack"
)

func parseOne(t *testing.T, source string) jack.Class {
	t.Helper()
	parser := jack.NewParser(strings.NewReader(source))
	class, err := parser.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	return class
}

func TestTypeCheckValidPrograms(t *testing.T) {
	test := func(name, source string) {
		t.Run(name, func(t *testing.T) {
			class := parseOne(t, source)
			checker := jack.NewTypeChecker(jack.Program{class.Name: class})
			if ok, err := checker.Check(); err != nil || !ok {
				t.Fatalf("expected program to type-check, got ok=%v err=%v", ok, err)
			}
		})
	}

	test("Arithmetic and comparisons", `
		class Main {
			function int compute() {
				var int a, b;
				var boolean flag;
				let a = 2;
				let b = 3;
				let flag = (a + b) < 10;
				if (flag) {
					return a * b;
				}
				return 0;
			}
		}
	`)

	test("Fields, methods and 'this'", `
		class Point {
			field int x, y;

			constructor Point new(int ax, int ay) {
				let x = ax;
				let y = ay;
				return this;
			}

			method int getX() {
				return x;
			}
		}
	`)

	test("Array access", `
		class Main {
			function void fill(Array a, int size) {
				var int i;
				let i = 0;
				while (i < size) {
					let a[i] = i;
					let i = i + 1;
				}
				return;
			}
		}
	`)
}

func TestTypeCheckInvalidPrograms(t *testing.T) {
	test := func(name, source string) {
		t.Run(name, func(t *testing.T) {
			class := parseOne(t, source)
			checker := jack.NewTypeChecker(jack.Program{class.Name: class})
			if ok, err := checker.Check(); err == nil || ok {
				t.Fatalf("expected program to fail type-checking, got ok=%v err=%v", ok, err)
			}
		})
	}

	test("Assigning a bool to an int variable", `
		class Main {
			function void run() {
				var int a;
				let a = true;
				return;
			}
		}
	`)

	test("Using a non-bool condition", `
		class Main {
			function void run() {
				var int a;
				if (a) {
					return;
				}
				return;
			}
		}
	`)

	test("Returning a value from a void subroutine", `
		class Main {
			function void run() {
				return 1;
			}
		}
	`)

	test("Calling an undeclared subroutine", `
		class Main {
			function void run() {
				do doesNotExist();
				return;
			}
		}
	`)

	test("Wrong argument count", `
		class Main {
			function int add(int a, int b) {
				return a + b;
			}

			function void run() {
				do Main.add(1);
				return;
			}
		}
	`)
}
