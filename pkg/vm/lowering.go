package vm

import (
	"fmt"

	"n2t.dev/toolchain/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' (one or more parsed modules) and produces a single,
// monolithic 'asm.Program' counterpart implementing the full Hack calling convention.
//
// Like 'asm.Lowerer' it walks each operation in turn (DFS over a flat instruction list rather
// than a tree, since the VM language has no nesting) and emits one or more 'asm.Statement' per
// VM operation. Three pieces of state have to survive across operations and are kept on the
// Lowerer itself rather than threaded through every Handle* call:
//   - 'module':   the name of the '.vm' file currently being lowered, used to mangle 'static' segment
//     accesses into 'Module.index' labels so two classes can't collide on the same static slot.
//   - 'function': the fully qualified name of the function currently being lowered, used to scope
//     user-declared labels into 'Function$label' so two functions can reuse the same label text.
//   - 'counter':  a monotonic counter shared by comparisons and function calls, used to mint the
//     globally unique internal labels ('COMPARE_TRUE_n', 'RETURN_ADDRESS_n', ...) that have no
//     surface syntax and therefore can't collide with anything the user could have written.
type Lowerer struct {
	program  Program
	module   string
	function string
	counter  uint64
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be not nil nor empty.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process across every module in the program (in Go's randomized map
// iteration order - harmless since modules don't reference each other's internal labels, only
// function names, which are qualified and therefore order-independent). When 'bootstrap' is
// true the returned program is prefixed with the standard Sys.init bootstrap sequence.
func (l *Lowerer) Lower(bootstrap bool) (asm.Program, error) {
	if len(l.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	compiled := asm.Program{}
	if bootstrap {
		boot, err := l.lowerBootstrap()
		if err != nil {
			return nil, fmt.Errorf("unable to lower bootstrap sequence: %w", err)
		}
		compiled = append(compiled, boot...)
	}

	for name, module := range l.program {
		l.module, l.function = name, ""

		for _, op := range module {
			lowered, err := l.HandleOperation(op)
			if err != nil {
				return nil, fmt.Errorf("module '%s': %w", name, err)
			}
			compiled = append(compiled, lowered...)
		}
	}

	return compiled, nil
}

// Emits 'SP=256' followed by a 'call Sys.init 0', exactly once, ahead of every module.
func (l *Lowerer) lowerBootstrap() (asm.Program, error) {
	setup := asm.Program{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	l.module, l.function = "Bootstrap", ""
	call, err := l.HandleFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	if err != nil {
		return nil, err
	}

	return append(setup, call...), nil
}

// Dispatches a single 'vm.Operation' to its specialized Handle* method based on its runtime type.
func (l *Lowerer) HandleOperation(op Operation) (asm.Program, error) {
	switch top := op.(type) {
	case MemoryOp:
		return l.HandleMemoryOp(top)
	case ArithmeticOp:
		return l.HandleArithmeticOp(top)
	case LabelDecl:
		return l.HandleLabelDecl(top)
	case GotoOp:
		return l.HandleGotoOp(top)
	case FuncDecl:
		return l.HandleFuncDecl(top)
	case FuncCallOp:
		return l.HandleFuncCallOp(top)
	case ReturnOp:
		return l.HandleReturnOp(top)
	default:
		return nil, fmt.Errorf("unrecognized operation '%T'", op)
	}
}

// ----------------------------------------------------------------------------
// Memory operations

// Specialized function to lower a 'vm.MemoryOp' to its 'asm.Statement' sequence.
//
// Segments fall into three addressing shapes:
//   - 'constant':                 push-only, the operand IS the value (no memory access)
//   - 'local/argument/this/that': pointer segments, base address held in LCL/ARG/THIS/THAT
//   - 'temp/pointer/static':      fixed-base segments, address known at compile time
func (l *Lowerer) HandleMemoryOp(op MemoryOp) (asm.Program, error) {
	switch op.Segment {
	case Pointer:
		if op.Offset > 1 {
			return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
		}
	case Temp:
		if op.Offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
		}
	}

	switch op.Operation {
	case Push:
		return l.lowerPush(op.Segment, op.Offset)
	case Pop:
		return l.lowerPop(op.Segment, op.Offset)
	default:
		return nil, fmt.Errorf("unrecognized OperationType '%s'", op.Operation)
	}
}

// pointerBase maps the four pointer-style segments to the register holding their base address.
var pointerBase = map[SegmentType]string{
	Local: "LCL", Argument: "ARG", This: "THIS", That: "THAT",
}

func (l *Lowerer) lowerPush(segment SegmentType, offset uint16) (asm.Program, error) {
	pushD := asm.Program{ // Common tail: pushes whatever is currently in D onto the stack.
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}

	switch {
	case segment == Constant:
		return append(asm.Program{
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}, pushD...), nil

	case segment == Temp:
		return append(asm.Program{
			asm.AInstruction{Location: fmt.Sprint(5 + offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD...), nil

	case segment == Pointer:
		reg := "THIS"
		if offset == 1 {
			reg = "THAT"
		}
		return append(asm.Program{
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD...), nil

	case segment == Static:
		return append(asm.Program{
			asm.AInstruction{Location: l.staticLabel(offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD...), nil

	default:
		base, found := pointerBase[segment]
		if !found {
			return nil, fmt.Errorf("unrecognized segment '%s'", segment)
		}
		return append(asm.Program{
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD...), nil
	}
}

func (l *Lowerer) lowerPop(segment SegmentType, offset uint16) (asm.Program, error) {
	popD := asm.Program{ // Common head: pops the stack top into D.
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}

	switch {
	case segment == Constant:
		return nil, fmt.Errorf("cannot pop into the read-only 'constant' segment")

	case segment == Temp:
		return append(popD, asm.Program{
			asm.AInstruction{Location: fmt.Sprint(5 + offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}...), nil

	case segment == Pointer:
		reg := "THIS"
		if offset == 1 {
			reg = "THAT"
		}
		return append(popD, asm.Program{
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}...), nil

	case segment == Static:
		return append(popD, asm.Program{
			asm.AInstruction{Location: l.staticLabel(offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}...), nil

	default:
		base, found := pointerBase[segment]
		if !found {
			return nil, fmt.Errorf("unrecognized segment '%s'", segment)
		}
		// The target address depends on a runtime value (LCL/ARG/THIS/THAT + offset), so it's
		// computed and stashed in R13 before the popped value (which also lives in D) is stored.
		return asm.Program{
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}, nil
	}
}

// staticLabel mangles a static segment access into a label unique to the current module,
// so that class A's 'static 0' and class B's 'static 0' never collide in assembly.
func (l *Lowerer) staticLabel(offset uint16) string {
	return fmt.Sprintf("%s.%d", l.module, offset)
}

// ----------------------------------------------------------------------------
// Arithmetic operations

// Specialized function to lower a 'vm.ArithmeticOp' to its 'asm.Statement' sequence.
func (l *Lowerer) HandleArithmeticOp(op ArithmeticOp) (asm.Program, error) {
	switch op.Operation {
	case Neg, Not:
		return l.lowerUnary(op.Operation)
	case Add, Sub, And, Or:
		return l.lowerBinary(op.Operation)
	case Eq, Gt, Lt:
		return l.lowerComparison(op.Operation)
	default:
		return nil, fmt.Errorf("unrecognized ArithOpType '%s'", op.Operation)
	}
}

func (l *Lowerer) lowerUnary(op ArithOpType) (asm.Program, error) {
	comp := map[ArithOpType]string{Neg: "-M", Not: "!M"}[op]
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}, nil
}

func (l *Lowerer) lowerBinary(op ArithOpType) (asm.Program, error) {
	comp := map[ArithOpType]string{Add: "M+D", Sub: "M-D", And: "M&D", Or: "M|D"}[op]
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}, nil
}

// lowerComparison lowers 'eq'/'gt'/'lt' into a compute-then-branch sequence. Each call allocates
// a fresh pair of internal labels off the shared counter so nested/sequential comparisons (which
// share no scope of their own in the VM language) never collide in the emitted assembly.
func (l *Lowerer) lowerComparison(op ArithOpType) (asm.Program, error) {
	jump := map[ArithOpType]string{Eq: "JEQ", Gt: "JGT", Lt: "JLT"}[op]

	trueLabel := fmt.Sprintf("COMPARE_TRUE_%d", l.counter)
	endLabel := fmt.Sprintf("COMPARE_END_%d", l.counter)
	l.counter++

	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "D", Comp: "M-D"},
		asm.AInstruction{Location: trueLabel},
		asm.CInstruction{Comp: "D", Jump: jump},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: endLabel},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: trueLabel},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "-1"},
		asm.LabelDecl{Name: endLabel},
	}, nil
}

// ----------------------------------------------------------------------------
// Program flow operations

// scopedLabel mangles a user-declared VM label with the enclosing function's name so that
// 'label LOOP' in two different functions produces two distinct assembly labels.
func (l *Lowerer) scopedLabel(name string) string {
	if l.function == "" {
		return fmt.Sprintf("%s$%s", l.module, name)
	}
	return fmt.Sprintf("%s$%s", l.function, name)
}

// Specialized function to lower a 'vm.LabelDecl' to its 'asm.Statement' counterpart.
func (l *Lowerer) HandleLabelDecl(op LabelDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower empty label declaration")
	}
	return asm.Program{asm.LabelDecl{Name: l.scopedLabel(op.Name)}}, nil
}

// Specialized function to lower a 'vm.GotoOp' to its 'asm.Statement' sequence.
func (l *Lowerer) HandleGotoOp(op GotoOp) (asm.Program, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to lower jump with empty target label")
	}

	target := l.scopedLabel(op.Label)

	if op.Jump == Unconditional {
		return asm.Program{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}

	if op.Jump == Conditional {
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "D", Jump: "JNE"},
		}, nil
	}

	return nil, fmt.Errorf("unrecognized JumpType '%s'", op.Jump)
}

// ----------------------------------------------------------------------------
// Subroutine operations

// Specialized function to lower a 'vm.FuncDecl' to its 'asm.Statement' sequence.
//
// Declares the function's entry label and zero-initializes its 'NLocal' local variables,
// per the nand2tetris calling convention (locals always start out at zero, never garbage).
func (l *Lowerer) HandleFuncDecl(op FuncDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower function declaration with empty name")
	}

	l.function = op.Name
	program := asm.Program{asm.LabelDecl{Name: op.Name}}

	for i := uint16(0); i < op.NLocal; i++ {
		program = append(program,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M+1"},
		)
	}

	return program, nil
}

// Specialized function to lower a 'vm.FuncCallOp' to its 'asm.Statement' sequence.
//
// Implements the full nand2tetris calling convention: pushes a fresh return address and the
// caller's LCL/ARG/THIS/THAT onto the stack, repositions ARG/LCL for the callee, then jumps.
func (l *Lowerer) HandleFuncCallOp(op FuncCallOp) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower function call with empty name")
	}

	returnLabel := fmt.Sprintf("RETURN_ADDRESS_%d", l.counter)
	l.counter++

	pushD := func(comp string) asm.Program {
		return asm.Program{
			asm.CInstruction{Dest: "D", Comp: comp},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M+1"},
		}
	}

	program := asm.Program{asm.AInstruction{Location: returnLabel}}
	program = append(program, pushD("A")...) // push return-address
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		program = append(program, asm.AInstruction{Location: reg})
		program = append(program, pushD("M")...)
	}

	program = append(program,
		// ARG = SP - NArgs - 5 (repositions ARG to the first of the pushed arguments)
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(op.NArgs + 5)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = SP (the callee's locals start right where the caller's stack currently ends)
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto callee
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		// (return address)
		asm.LabelDecl{Name: returnLabel},
	)

	return program, nil
}

// Specialized function to lower a 'vm.ReturnOp' to its 'asm.Statement' sequence.
//
// Unwinds the callee's frame using R13 (FRAME, a copy of LCL) and R14 (RET, the saved return
// address), in that order, so that overwriting ARG[0] with the return value (which may alias
// the caller's own ARG/LCL bookkeeping slots) can never clobber RET before it's been consumed.
func (l *Lowerer) HandleReturnOp(ReturnOp) (asm.Program, error) {
	return asm.Program{
		// R13 (FRAME) = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// R14 (RET) = *(FRAME - 5)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// *ARG = pop()
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// THAT = *(FRAME - 1)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THAT"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// THIS = *(FRAME - 2)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THIS"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// ARG = *(FRAME - 3)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = *(FRAME - 4)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto RET
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	}, nil
}
