package jack

import "fmt"

// The TypeChecker walks a 'jack.Program' validating that every expression and statement
// respects the static typing rules of the language, without emitting any VM code. It shares
// the same scope tracking as the Lowerer (class scope, then subroutine scope) since resolving
// a variable's type requires the very same visibility rules used during code generation.
type TypeChecker struct {
	program Program
	scopes  ScopeTable
}

func NewTypeChecker(program Program) TypeChecker {
	return TypeChecker{program: program, scopes: ScopeTable{}}
}

func (tc *TypeChecker) Check() (bool, error) {
	if tc.program == nil || len(tc.program) == 0 {
		return false, fmt.Errorf("the given 'program' is empty or nil")
	}

	for name, class := range tc.program {
		if _, err := tc.HandleClass(class); err != nil {
			return false, fmt.Errorf("error type-checking class '%s': %w", name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Class' and nested fields.
func (tc *TypeChecker) HandleClass(class Class) (bool, error) {
	tc.scopes.PushClassScope(class.Name) // Keep track of the current scope being processed
	defer tc.scopes.PopClassScope()      // Reset the function name after processing

	for _, entry := range class.Fields.Entries() {
		field := entry.Value
		if _, err := tc.HandleVarStmt(VarStmt{Vars: []Variable{field}}); err != nil {
			return false, fmt.Errorf("error handling field '%s' in class '%s': %w", field.Name, class.Name, err)
		}
	}

	for _, entry := range class.Subroutines.Entries() {
		subroutine := entry.Value
		if _, err := tc.HandleSubroutine(subroutine); err != nil {
			return false, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, class.Name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Subroutine' and nested fields.
func (tc *TypeChecker) HandleSubroutine(subroutine Subroutine) (bool, error) {
	tc.scopes.PushSubRoutineScope(subroutine.Name) // Keep track of the current subroutine function being processed
	defer tc.scopes.PopSubroutineScope()           // Reset the function name after processing

	if subroutine.Type == Method {
		tc.scopes.RegisterVariable(Variable{Name: "__obj", Type: Parameter, DataType: Object})
	}

	// We add to the current scope also all of the arguments of the subroutine
	for _, entry := range subroutine.Arguments.Entries() {
		tc.scopes.RegisterVariable(entry.Value)
	}

	for _, stmt := range subroutine.Statements {
		if _, err := tc.HandleStatement(stmt, subroutine.Return); err != nil {
			return false, fmt.Errorf("error handling nested statement %T: %w", stmt, err)
		}
	}

	return true, nil
}

// Generalized function to type-check multiple statements types. 'wants' is the enclosing
// subroutine's declared return type, used to validate 'return' statements.
func (tc *TypeChecker) HandleStatement(stmt Statement, wants DataType) (bool, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		_, err := tc.HandleExpression(tStmt.FuncCall)
		return err == nil, err

	case VarStmt:
		return tc.HandleVarStmt(tStmt)

	case LetStmt:
		return tc.HandleLetStmt(tStmt)

	case IfStmt:
		return tc.HandleIfStmt(tStmt, wants)

	case WhileStmt:
		return tc.HandleWhileStmt(tStmt, wants)

	case ReturnStmt:
		return tc.HandleReturnStmt(tStmt, wants)

	default:
		return false, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

// VarStmt merely extends the current scope, there's nothing to type-check beyond the
// declaration itself being well-formed (handled upstream by the parser).
func (tc *TypeChecker) HandleVarStmt(statement VarStmt) (bool, error) {
	for _, variable := range statement.Vars {
		tc.scopes.RegisterVariable(variable)
	}
	return true, nil
}

// LetStmt requires the RHS expression's type to be assignable to the LHS variable (or array
// cell)'s declared type. Object types are assignable to one another loosely (as Jack itself
// does not enforce class hierarchies) as long as both sides are objects, or the RHS is null.
func (tc *TypeChecker) HandleLetStmt(statement LetStmt) (bool, error) {
	rhs, err := tc.HandleExpression(statement.Rhs)
	if err != nil {
		return false, fmt.Errorf("error handling RHS expression: %w", err)
	}

	switch lhs := statement.Lhs.(type) {
	case VarExpr:
		_, variable, err := tc.scopes.ResolveVariable(lhs.Var)
		if err != nil {
			return false, fmt.Errorf("error resolving variable '%s': %w", lhs.Var, err)
		}
		if !assignable(variable.DataType, rhs) {
			return false, fmt.Errorf("cannot assign value of type '%s' to variable '%s' of type '%s'", rhs, lhs.Var, variable.DataType)
		}
		return true, nil

	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(lhs.Var); err != nil {
			return false, fmt.Errorf("error resolving array variable '%s': %w", lhs.Var, err)
		}

		index, err := tc.HandleExpression(lhs.Index)
		if err != nil {
			return false, fmt.Errorf("error handling array index expression: %w", err)
		}
		if index != Int {
			return false, fmt.Errorf("array index must be of type 'int', got '%s'", index)
		}

		return true, nil

	default:
		return false, fmt.Errorf("LHS expression must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
	}
}

func (tc *TypeChecker) HandleIfStmt(statement IfStmt, wants DataType) (bool, error) {
	cond, err := tc.HandleExpression(statement.Condition)
	if err != nil {
		return false, fmt.Errorf("error handling if condition expression: %w", err)
	}
	if cond != Bool {
		return false, fmt.Errorf("if condition must be of type 'bool', got '%s'", cond)
	}

	for _, stmt := range statement.ThenBlock {
		if _, err := tc.HandleStatement(stmt, wants); err != nil {
			return false, fmt.Errorf("error handling statement in 'then' block: %w", err)
		}
	}
	for _, stmt := range statement.ElseBlock {
		if _, err := tc.HandleStatement(stmt, wants); err != nil {
			return false, fmt.Errorf("error handling statement in 'else' block: %w", err)
		}
	}

	return true, nil
}

func (tc *TypeChecker) HandleWhileStmt(statement WhileStmt, wants DataType) (bool, error) {
	cond, err := tc.HandleExpression(statement.Condition)
	if err != nil {
		return false, fmt.Errorf("error handling while condition expression: %w", err)
	}
	if cond != Bool {
		return false, fmt.Errorf("while condition must be of type 'bool', got '%s'", cond)
	}

	for _, stmt := range statement.Block {
		if _, err := tc.HandleStatement(stmt, wants); err != nil {
			return false, fmt.Errorf("error handling statement in while block: %w", err)
		}
	}

	return true, nil
}

func (tc *TypeChecker) HandleReturnStmt(statement ReturnStmt, wants DataType) (bool, error) {
	if statement.Expr == nil {
		if wants != Void {
			return false, fmt.Errorf("missing return value, subroutine declares return type '%s'", wants)
		}
		return true, nil
	}

	got, err := tc.HandleExpression(statement.Expr)
	if err != nil {
		return false, fmt.Errorf("error handling return expression: %w", err)
	}
	if wants == Void {
		return false, fmt.Errorf("subroutine is declared 'void' but returns a value of type '%s'", got)
	}
	if !assignable(wants, got) {
		return false, fmt.Errorf("return value of type '%s' does not match declared return type '%s'", got, wants)
	}

	return true, nil
}

// Generalized function to type-check multiple expression types, returning the expression's
// inferred 'DataType'.
func (tc *TypeChecker) HandleExpression(expr Expression) (DataType, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		return tc.HandleVarExpr(tExpr)
	case LiteralExpr:
		return tExpr.Type, nil
	case ArrayExpr:
		return tc.HandleArrayExpr(tExpr)
	case UnaryExpr:
		return tc.HandleUnaryExpr(tExpr)
	case BinaryExpr:
		return tc.HandleBinaryExpr(tExpr)
	case FuncCallExpr:
		return tc.HandleFuncCallExpr(tExpr)
	default:
		return "", fmt.Errorf("unrecognized expression: %T", expr)
	}
}

func (tc *TypeChecker) HandleVarExpr(expression VarExpr) (DataType, error) {
	if expression.Var == "this" {
		return Object, nil
	}

	_, variable, err := tc.scopes.ResolveVariable(expression.Var)
	if err != nil {
		return "", fmt.Errorf("error resolving variable '%s': %w", expression.Var, err)
	}
	return variable.DataType, nil
}

func (tc *TypeChecker) HandleArrayExpr(expression ArrayExpr) (DataType, error) {
	if _, _, err := tc.scopes.ResolveVariable(expression.Var); err != nil {
		return "", fmt.Errorf("error resolving array variable '%s': %w", expression.Var, err)
	}

	index, err := tc.HandleExpression(expression.Index)
	if err != nil {
		return "", fmt.Errorf("error handling index expression: %w", err)
	}
	if index != Int {
		return "", fmt.Errorf("array index must be of type 'int', got '%s'", index)
	}

	// Jack arrays are untyped (every cell is a generic word), so an indexed access
	// can only be narrowed back down by the context it is eventually used in.
	return Int, nil
}

func (tc *TypeChecker) HandleUnaryExpr(expression UnaryExpr) (DataType, error) {
	rhs, err := tc.HandleExpression(expression.Rhs)
	if err != nil {
		return "", fmt.Errorf("error handling nested expression: %w", err)
	}

	switch expression.Type {
	case Minus:
		if rhs != Int {
			return "", fmt.Errorf("unary '-' requires an 'int' operand, got '%s'", rhs)
		}
		return Int, nil
	case BoolNot:
		if rhs != Bool {
			return "", fmt.Errorf("unary '~' requires a 'bool' operand, got '%s'", rhs)
		}
		return Bool, nil
	default:
		return "", fmt.Errorf("unrecognized unary expression type: %s", expression.Type)
	}
}

func (tc *TypeChecker) HandleBinaryExpr(expression BinaryExpr) (DataType, error) {
	lhs, err := tc.HandleExpression(expression.Lhs)
	if err != nil {
		return "", fmt.Errorf("error handling nested LHS expression: %w", err)
	}
	rhs, err := tc.HandleExpression(expression.Rhs)
	if err != nil {
		return "", fmt.Errorf("error handling nested RHS expression: %w", err)
	}

	switch expression.Type {
	case Plus, Minus, Divide, Multiply:
		if lhs != Int || rhs != Int {
			return "", fmt.Errorf("operator '%s' requires two 'int' operands, got '%s' and '%s'", expression.Type, lhs, rhs)
		}
		return Int, nil

	case BoolOr, BoolAnd:
		if lhs != Bool || rhs != Bool {
			return "", fmt.Errorf("operator '%s' requires two 'bool' operands, got '%s' and '%s'", expression.Type, lhs, rhs)
		}
		return Bool, nil

	case Equal:
		if !assignable(lhs, rhs) && !assignable(rhs, lhs) {
			return "", fmt.Errorf("cannot compare incompatible types '%s' and '%s'", lhs, rhs)
		}
		return Bool, nil

	case LessThan, GreatThan:
		if lhs != Int || rhs != Int {
			return "", fmt.Errorf("operator '%s' requires two 'int' operands, got '%s' and '%s'", expression.Type, lhs, rhs)
		}
		return Bool, nil

	default:
		return "", fmt.Errorf("unrecognized binary expression type: %s", expression.Type)
	}
}

func (tc *TypeChecker) HandleFuncCallExpr(expression FuncCallExpr) (DataType, error) {
	for _, arg := range expression.Arguments {
		if _, err := tc.HandleExpression(arg); err != nil {
			return "", fmt.Errorf("error handling argument expression: %w", err)
		}
	}

	routine, err := tc.resolveSubroutine(expression)
	if err != nil {
		return "", err
	}
	if len(expression.Arguments) != routine.Arguments.Len() {
		return "", fmt.Errorf("subroutine '%s' expects %d arguments, got %d", expression.FuncName, routine.Arguments.Len(), len(expression.Arguments))
	}

	return routine.Return, nil
}

// resolveSubroutine looks up the Subroutine definition a FuncCallExpr refers to, whether it is
// a plain in-class call, a call through an object instance variable, or a fully-qualified call
// to another class' function/constructor.
func (tc *TypeChecker) resolveSubroutine(expression FuncCallExpr) (Subroutine, error) {
	if !expression.IsExtCall {
		className := tc.scopes.ClassName()
		class, exists := tc.program[className]
		if !exists {
			return Subroutine{}, fmt.Errorf("class definition not found for '%s'", className)
		}
		routine, exists := class.Subroutines.Get(expression.FuncName)
		if !exists {
			return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, className)
		}
		return routine, nil
	}

	if _, variable, err := tc.scopes.ResolveVariable(expression.Var); err == nil {
		class, exists := tc.program[variable.ClassName]
		if !exists {
			return Subroutine{}, fmt.Errorf("class definition not found for '%s'", variable.ClassName)
		}
		routine, exists := class.Subroutines.Get(expression.FuncName)
		if !exists {
			return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, variable.ClassName)
		}
		return routine, nil
	}

	class, exists := tc.program[expression.Var]
	if !exists {
		return Subroutine{}, fmt.Errorf("unrecognized function call target: %s", expression.Var)
	}
	routine, exists := class.Subroutines.Get(expression.FuncName)
	if !exists {
		return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, class.Name)
	}
	return routine, nil
}

// assignable reports whether a value of type 'from' can be stored into a location declared
// with type 'to'. Every primitive requires an exact match; any object reference (including
// 'null', which the parser types as Object, and the 'Null' DataType) can flow into any other
// object-typed location, matching Jack's deliberately loose object typing.
func assignable(to, from DataType) bool {
	if to == from {
		return true
	}
	if to == Object && from == Null {
		return true
	}
	return false
}
