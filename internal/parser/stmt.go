// internal/parser/stmt.go
package parser

// Stmt represents a top-level statement.
type Stmt interface {
	Accept(visitor StmtVisitor) interface{}
	Line() int
}

type stmtBase struct{ line int }

func (s stmtBase) Line() int { return s.line }

// VarStmt represents a variable declaration: var x = expr (or const x = expr).
type VarStmt struct {
	stmtBase
	Name     string
	Expr     Expr
	IsConst  bool
}

func (l *VarStmt) Accept(v StmtVisitor) interface{} { return v.VisitVarStmt(l) }

// AssignmentStmt represents a variable assignment: x = expr.
type AssignmentStmt struct {
	stmtBase
	Name  string
	Value Expr
}

func (a *AssignmentStmt) Accept(v StmtVisitor) interface{} { return v.VisitAssignmentStmt(a) }

// ExpressionStmt wraps a raw expression as a statement.
type ExpressionStmt struct {
	stmtBase
	Expr Expr
}

func (e *ExpressionStmt) Accept(v StmtVisitor) interface{} { return v.VisitExpressionStmt(e) }

// FunctionStmt represents a function or method declaration.
type FunctionStmt struct {
	stmtBase
	Name     string
	Params   []Param
	Body     []Stmt
	IsStatic bool
	IsGetter bool
	IsSetter bool
}

func (f *FunctionStmt) Accept(v StmtVisitor) interface{} { return v.VisitFunctionStmt(f) }

// ReturnStmt represents a return statement.
type ReturnStmt struct {
	stmtBase
	Value Expr
}

func (r *ReturnStmt) Accept(v StmtVisitor) interface{} { return v.VisitReturnStmt(r) }

// IfStmt represents an if statement.
type IfStmt struct {
	stmtBase
	Condition Expr
	Then      []Stmt
	Else      []Stmt
}

func (i *IfStmt) Accept(v StmtVisitor) interface{} { return v.VisitIfStmt(i) }

// WhileStmt represents a while loop.
type WhileStmt struct {
	stmtBase
	Condition Expr
	Body      []Stmt
}

func (w *WhileStmt) Accept(v StmtVisitor) interface{} { return v.VisitWhileStmt(w) }

// ForStmt represents a C-style for loop.
type ForStmt struct {
	stmtBase
	Init      Stmt
	Condition Expr
	Update    Expr
	Body      []Stmt
}

func (f *ForStmt) Accept(v StmtVisitor) interface{} { return v.VisitForStmt(f) }

// ForInStmt represents `for x in seq { ... }`; the loop header is written
// without parentheses and without `var`.
type ForInStmt struct {
	stmtBase
	Variable   string
	Collection Expr
	Body       []Stmt
}

func (f *ForInStmt) Accept(v StmtVisitor) interface{} { return v.VisitForInStmt(f) }

// BreakStmt represents a break statement.
type BreakStmt struct{ stmtBase }

func (b *BreakStmt) Accept(v StmtVisitor) interface{} { return v.VisitBreakStmt(b) }

// ContinueStmt represents a continue statement.
type ContinueStmt struct{ stmtBase }

func (c *ContinueStmt) Accept(v StmtVisitor) interface{} { return v.VisitContinueStmt(c) }

// ImportStmt represents `import "path"` or `require "path"`, binding the
// resulting module value to Alias (defaulting to the path's base name).
type ImportStmt struct {
	stmtBase
	Path  string
	Alias string
}

func (i *ImportStmt) Accept(v StmtVisitor) interface{} { return v.VisitImportStmt(i) }

// ExportStmt marks a module-private declaration as part of the module's
// public surface (exposed via OP_GET_FIELD on the ObjModule).
type ExportStmt struct {
	stmtBase
	Name string
	Stmt Stmt
}

func (e *ExportStmt) Accept(v StmtVisitor) interface{} { return v.VisitExportStmt(e) }

// ClassStmt represents a class declaration.
type ClassStmt struct {
	stmtBase
	Name         string
	Superclass   string
	Methods      []*FunctionStmt
	StaticFields []*VarStmt
	Fields       []string // declared instance fields with no initializer
}

func (c *ClassStmt) Accept(v StmtVisitor) interface{} { return v.VisitClassStmt(c) }

// TryStmt represents a try/catch/finally block.
type TryStmt struct {
	stmtBase
	TryBlock     []Stmt
	CatchVar     string
	CatchBlock   []Stmt
	FinallyBlock []Stmt
}

func (t *TryStmt) Accept(v StmtVisitor) interface{} { return v.VisitTryStmt(t) }

// ThrowStmt represents a throw statement.
type ThrowStmt struct {
	stmtBase
	Value Expr
}

func (t *ThrowStmt) Accept(v StmtVisitor) interface{} { return v.VisitThrowStmt(t) }

// StmtVisitor handles all statement types.
type StmtVisitor interface {
	VisitVarStmt(stmt *VarStmt) interface{}
	VisitAssignmentStmt(stmt *AssignmentStmt) interface{}
	VisitExpressionStmt(stmt *ExpressionStmt) interface{}
	VisitFunctionStmt(stmt *FunctionStmt) interface{}
	VisitReturnStmt(stmt *ReturnStmt) interface{}
	VisitIfStmt(stmt *IfStmt) interface{}
	VisitWhileStmt(stmt *WhileStmt) interface{}
	VisitForStmt(stmt *ForStmt) interface{}
	VisitForInStmt(stmt *ForInStmt) interface{}
	VisitBreakStmt(stmt *BreakStmt) interface{}
	VisitContinueStmt(stmt *ContinueStmt) interface{}
	VisitImportStmt(stmt *ImportStmt) interface{}
	VisitExportStmt(stmt *ExportStmt) interface{}
	VisitClassStmt(stmt *ClassStmt) interface{}
	VisitTryStmt(stmt *TryStmt) interface{}
	VisitThrowStmt(stmt *ThrowStmt) interface{}
}
