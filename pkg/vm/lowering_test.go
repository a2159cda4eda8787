package vm_test

import (
	"testing"

	"n2t.dev/toolchain/pkg/asm"
	"n2t.dev/toolchain/pkg/vm"
)

func TestLowerMemoryOp(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{"Main": {}})

	test := func(op vm.MemoryOp, fail bool) {
		program, err := lowerer.HandleMemoryOp(op)
		if err != nil && !fail {
			t.Fatalf("unexpected error lowering %+v: %s", op, err)
		}
		if err == nil && fail {
			t.Fatalf("expected error lowering %+v, got none", op)
		}
		if !fail && len(program) == 0 {
			t.Fatalf("expected non-empty lowered program for %+v", op)
		}
	}

	t.Run("Valid segments", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 17}, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 2}, false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Argument, Offset: 0}, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.This, Offset: 3}, false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 1}, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 7}, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}, false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1}, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: 4}, false)
	})

	t.Run("Invalid data", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 8}, true)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 2}, true)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Constant, Offset: 0}, true)
	})
}

func TestLowerStaticMangling(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{"Foo": {vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: 3}}})

	program, err := lowerer.Lower(false)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	found := false
	for _, inst := range program {
		if a, ok := inst.(asm.AInstruction); ok && a.Location == "Foo.3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a reference to mangled static label 'Foo.3', got %+v", program)
	}
}

func TestLowerArithmeticOp(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{"Main": {}})

	test := func(op vm.ArithmeticOp) {
		program, err := lowerer.HandleArithmeticOp(op)
		if err != nil {
			t.Fatalf("unexpected error lowering %+v: %s", op, err)
		}
		if len(program) == 0 {
			t.Fatalf("expected non-empty lowered program for %+v", op)
		}
	}

	t.Run("Unary and binary ops", func(t *testing.T) {
		test(vm.ArithmeticOp{Operation: vm.Add})
		test(vm.ArithmeticOp{Operation: vm.Sub})
		test(vm.ArithmeticOp{Operation: vm.Neg})
		test(vm.ArithmeticOp{Operation: vm.And})
		test(vm.ArithmeticOp{Operation: vm.Or})
		test(vm.ArithmeticOp{Operation: vm.Not})
	})

	t.Run("Comparisons produce unique labels per call site", func(t *testing.T) {
		first, err := lowerer.HandleArithmeticOp(vm.ArithmeticOp{Operation: vm.Eq})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		second, err := lowerer.HandleArithmeticOp(vm.ArithmeticOp{Operation: vm.Eq})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		labelOf := func(program asm.Program) string {
			for _, inst := range program {
				if l, ok := inst.(asm.LabelDecl); ok {
					return l.Name
				}
			}
			return ""
		}

		if labelOf(first) == "" || labelOf(first) == labelOf(second) {
			t.Fatalf("expected two distinct comparison labels, got %q and %q", labelOf(first), labelOf(second))
		}
	})
}

func TestLowerLabelAndGotoScoping(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{"Main": {}})

	if _, err := lowerer.HandleFuncDecl(vm.FuncDecl{Name: "Main.loop", NLocal: 0}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	label, err := lowerer.HandleLabelDecl(vm.LabelDecl{Name: "LOOP_START"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	decl, ok := label[0].(asm.LabelDecl)
	if !ok || decl.Name != "Main.loop$LOOP_START" {
		t.Fatalf("expected scoped label 'Main.loop$LOOP_START', got %+v", label)
	}

	jump, err := lowerer.HandleGotoOp(vm.GotoOp{Jump: vm.Unconditional, Label: "LOOP_START"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	target, ok := jump[0].(asm.AInstruction)
	if !ok || target.Location != "Main.loop$LOOP_START" {
		t.Fatalf("expected jump target 'Main.loop$LOOP_START', got %+v", jump)
	}

	t.Run("Invalid data", func(t *testing.T) {
		if _, err := lowerer.HandleLabelDecl(vm.LabelDecl{Name: ""}); err == nil {
			t.Fatalf("expected error for empty label")
		}
		if _, err := lowerer.HandleGotoOp(vm.GotoOp{Jump: vm.Unconditional, Label: ""}); err == nil {
			t.Fatalf("expected error for empty jump target")
		}
	})
}

func TestLowerFuncDecl(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{"Main": {}})

	program, err := lowerer.HandleFuncDecl(vm.FuncDecl{Name: "Main.sum", NLocal: 3})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	decl, ok := program[0].(asm.LabelDecl)
	if !ok || decl.Name != "Main.sum" {
		t.Fatalf("expected function entry label 'Main.sum', got %+v", program[0])
	}

	// Preamble pushes NLocal zero constants onto the stack: 5 instructions per local.
	if len(program)-1 != 3*5 {
		t.Fatalf("expected 15 instructions to zero-initialize 3 locals, got %d", len(program)-1)
	}

	if _, err := lowerer.HandleFuncDecl(vm.FuncDecl{Name: ""}); err == nil {
		t.Fatalf("expected error for empty function name")
	}
}

func TestLowerFuncCallOp(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{"Main": {}})

	program, err := lowerer.HandleFuncCallOp(vm.FuncCallOp{Name: "Main.sum", NArgs: 2})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	callsTarget := false
	returnLabels := 0
	for _, inst := range program {
		if a, ok := inst.(asm.AInstruction); ok && a.Location == "Main.sum" {
			callsTarget = true
		}
		if _, ok := inst.(asm.LabelDecl); ok {
			returnLabels++
		}
	}
	if !callsTarget {
		t.Fatalf("expected a jump to 'Main.sum', got %+v", program)
	}
	if returnLabels != 1 {
		t.Fatalf("expected exactly 1 return-address label, got %d", returnLabels)
	}

	if _, err := lowerer.HandleFuncCallOp(vm.FuncCallOp{Name: ""}); err == nil {
		t.Fatalf("expected error for empty function call name")
	}
}

func TestLowerReturnOp(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{"Main": {}})

	program, err := lowerer.HandleReturnOp(vm.ReturnOp{})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(program) == 0 {
		t.Fatalf("expected non-empty lowered program for a return statement")
	}
}

func TestLowerFullProgram(t *testing.T) {
	program := vm.Program{
		"Sys": vm.Module{
			vm.FuncDecl{Name: "Sys.init", NLocal: 0},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
			vm.FuncCallOp{Name: "Sys.add2", NArgs: 1},
			vm.ReturnOp{},

			vm.FuncDecl{Name: "Sys.add2", NLocal: 1},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
			vm.ArithmeticOp{Operation: vm.Add},
			vm.ArithmeticOp{Operation: vm.Eq},
			vm.ReturnOp{},
		},
	}

	lowerer := vm.NewLowerer(program)

	t.Run("Without bootstrap", func(t *testing.T) {
		compiled, err := lowerer.Lower(false)
		if err != nil {
			t.Fatalf("unexpected error lowering program: %s", err)
		}
		if len(compiled) == 0 {
			t.Fatalf("expected a non-empty compiled program")
		}
	})

	t.Run("With bootstrap", func(t *testing.T) {
		bootstrapped := vm.NewLowerer(program)
		compiled, err := bootstrapped.Lower(true)
		if err != nil {
			t.Fatalf("unexpected error lowering program: %s", err)
		}

		first, ok := compiled[0].(asm.AInstruction)
		if !ok || first.Location != "256" {
			t.Fatalf("expected bootstrap to start with '@256', got %+v", compiled[0])
		}

		callsInit := false
		for _, inst := range compiled {
			if a, ok := inst.(asm.AInstruction); ok && a.Location == "Sys.init" {
				callsInit = true
			}
		}
		if !callsInit {
			t.Fatalf("expected bootstrap to call 'Sys.init'")
		}
	})

	t.Run("Empty program", func(t *testing.T) {
		empty := vm.NewLowerer(vm.Program{})
		if _, err := empty.Lower(false); err == nil {
			t.Fatalf("expected error lowering an empty program")
		}
	})
}
