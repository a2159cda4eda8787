package jack_test

import (
	"strings"
	"testing"

	"n2t.dev/toolchain/pkg/jack"
)

func TestParseClass(t *testing.T) {
	t.Run("Fields and a simple function", func(t *testing.T) {
		source := `
			class Point {
				field int x, y;
				static int count;

				constructor Point new(int ax, int ay) {
					let x = ax;
					let y = ay;
					return this;
				}

				method int getX() {
					return x;
				}
			}
		`
		parser := jack.NewParser(strings.NewReader(source))
		class, err := parser.Parse()
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		if class.Name != "Point" {
			t.Errorf("expected class name 'Point', got %q", class.Name)
		}
		if class.Fields.Len() != 3 {
			t.Fatalf("expected 3 fields, got %d", class.Fields.Len())
		}
		if x, ok := class.Fields.Get("x"); !ok || x.Type != jack.Field || x.DataType != jack.Int {
			t.Errorf("expected field 'x' to be a Field/Int, got %+v (found=%v)", x, ok)
		}
		if count, ok := class.Fields.Get("count"); !ok || count.Type != jack.Static {
			t.Errorf("expected field 'count' to be Static, got %+v (found=%v)", count, ok)
		}

		if class.Subroutines.Len() != 2 {
			t.Fatalf("expected 2 subroutines, got %d", class.Subroutines.Len())
		}
		ctor, ok := class.Subroutines.Get("new")
		if !ok {
			t.Fatalf("expected to find subroutine 'new'")
		}
		if ctor.Type != jack.Constructor {
			t.Errorf("expected 'new' to be a Constructor, got %s", ctor.Type)
		}
		if ctor.Arguments.Len() != 2 {
			t.Fatalf("expected 2 arguments, got %d", ctor.Arguments.Len())
		}
		if len(ctor.Statements) != 3 {
			t.Fatalf("expected 3 statements (2 'let' plus 1 'return'), got %d", len(ctor.Statements))
		}
	})

	t.Run("Control flow and expressions", func(t *testing.T) {
		source := `
			class Main {
				function void main() {
					var int i;
					let i = 0;
					while (i < 10) {
						if (i = 5) {
							do Output.printInt(i);
						} else {
							let i = i + 1;
						}
					}
					return;
				}
			}
		`
		parser := jack.NewParser(strings.NewReader(source))
		class, err := parser.Parse()
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		main, ok := class.Subroutines.Get("main")
		if !ok {
			t.Fatalf("expected to find subroutine 'main'")
		}

		// VarStmt, LetStmt, WhileStmt, ReturnStmt
		if len(main.Statements) != 4 {
			t.Fatalf("expected 4 top-level statements, got %d: %+v", len(main.Statements), main.Statements)
		}

		whileStmt, ok := main.Statements[2].(jack.WhileStmt)
		if !ok {
			t.Fatalf("expected 3rd statement to be a WhileStmt, got %T", main.Statements[2])
		}
		if len(whileStmt.Block) != 1 {
			t.Fatalf("expected 1 statement inside while block, got %d", len(whileStmt.Block))
		}

		ifStmt, ok := whileStmt.Block[0].(jack.IfStmt)
		if !ok {
			t.Fatalf("expected nested statement to be an IfStmt, got %T", whileStmt.Block[0])
		}
		if len(ifStmt.ThenBlock) != 1 || len(ifStmt.ElseBlock) != 1 {
			t.Fatalf("expected 1 statement in both then/else blocks, got %d/%d", len(ifStmt.ThenBlock), len(ifStmt.ElseBlock))
		}
	})

	t.Run("Expressions have no operator precedence", func(t *testing.T) {
		// 2 + 3 * 4 must parse as (2 + 3) * 4, strictly left to right
		source := `
			class Main {
				function int compute() {
					return 2 + 3 * 4;
				}
			}
		`
		parser := jack.NewParser(strings.NewReader(source))
		class, err := parser.Parse()
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		compute, ok := class.Subroutines.Get("compute")
		if !ok {
			t.Fatalf("expected to find subroutine 'compute'")
		}
		ret, ok := compute.Statements[0].(jack.ReturnStmt)
		if !ok {
			t.Fatalf("expected a ReturnStmt, got %T", compute.Statements[0])
		}

		outer, ok := ret.Expr.(jack.BinaryExpr)
		if !ok || outer.Type != jack.Multiply {
			t.Fatalf("expected outer expression to be a Multiply BinaryExpr, got %+v", ret.Expr)
		}
		inner, ok := outer.Lhs.(jack.BinaryExpr)
		if !ok || inner.Type != jack.Plus {
			t.Fatalf("expected LHS to be a Plus BinaryExpr, got %+v", outer.Lhs)
		}
	})

	t.Run("Subroutine call disambiguation", func(t *testing.T) {
		source := `
			class Main {
				function void run() {
					do draw();
					do Output.println();
				}
			}
		`
		parser := jack.NewParser(strings.NewReader(source))
		class, err := parser.Parse()
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		run, ok := class.Subroutines.Get("run")
		if !ok {
			t.Fatalf("expected to find subroutine 'run'")
		}

		first := run.Statements[0].(jack.DoStmt).FuncCall
		if first.IsExtCall || first.FuncName != "draw" {
			t.Errorf("expected an in-class call to 'draw', got %+v", first)
		}

		second := run.Statements[1].(jack.DoStmt).FuncCall
		if !second.IsExtCall || second.Var != "Output" || second.FuncName != "println" {
			t.Errorf("expected an external call to 'Output.println', got %+v", second)
		}
	})

	t.Run("Malformed input produces an error", func(t *testing.T) {
		parser := jack.NewParser(strings.NewReader(`class { }`))
		if _, err := parser.Parse(); err == nil {
			t.Errorf("expected an error, got nil")
		}
	})
}
