// internal/parser/parser.go
package parser

import (
	"fmt"
	"strings"

	"ash/internal/errors"
	"ash/internal/lexer"
)

// Precedence levels for the binary operator climb. Unary, call/index/dot,
// and primary sit implicitly above precRange: they're handled by
// dedicated parse functions invoked as the base of the climb rather than
// through this table, so they always bind tighter than any entry here.
const (
	precNone = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precCompound
	precTerm
	precFactor
	precIs
	precNullCoalesce
	precRange
)

var binaryPrec = map[lexer.TokenType]int{
	lexer.TokenOr:                precOr,
	lexer.TokenAnd:               precAnd,
	lexer.TokenDoubleEqual:       precEquality,
	lexer.TokenNotEqual:          precEquality,
	lexer.TokenLT:                precComparison,
	lexer.TokenGT:                precComparison,
	lexer.TokenLE:                precComparison,
	lexer.TokenGE:                precComparison,
	lexer.TokenAmp:               precCompound,
	lexer.TokenPipe:              precCompound,
	lexer.TokenCaret:             precCompound,
	lexer.TokenShl:               precCompound,
	lexer.TokenShr:               precCompound,
	lexer.TokenPlus:              precTerm,
	lexer.TokenMinus:             precTerm,
	lexer.TokenStar:              precFactor,
	lexer.TokenSlash:             precFactor,
	lexer.TokenSlashSlash:        precFactor,
	lexer.TokenPercent:           precFactor,
	lexer.TokenStarStar:          precFactor,
	lexer.TokenIs:                precIs,
	lexer.TokenQuestionQuestion:  precNullCoalesce,
	lexer.TokenDotDot:            precRange,
	lexer.TokenDotDotDot:         precRange,
}

// syncTokens are where synchronize() stops consuming after a parse error,
// matching spec.md's panic-mode recovery keyword set.
var syncTokens = map[lexer.TokenType]bool{
	lexer.TokenClass: true, lexer.TokenFunction: true, lexer.TokenVar: true,
	lexer.TokenConst: true, lexer.TokenFor: true, lexer.TokenIf: true,
	lexer.TokenWhile: true, lexer.TokenReturn: true, lexer.TokenStatic: true,
}

type Parser struct {
	tokens      []lexer.Token
	current     int
	Errors      []error
	file        string
	sourceLines []string
	panicMode   bool
}

// NewParser drops NEWLINE tokens up front: this language's blocks are
// brace-delimited, so line breaks carry no grammatical weight once the
// scanner has recorded them for diagnostics.
func NewParser(tokens []lexer.Token, source, file string) *Parser {
	filtered := make([]lexer.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Type != lexer.TokenNewLine {
			filtered = append(filtered, t)
		}
	}
	return &Parser{tokens: filtered, file: file, sourceLines: strings.Split(source, "\n")}
}

// Parse runs to completion even after errors: each failure triggers
// panic-mode recovery (synchronize) so later, independent errors in the
// same file are still reported in one pass.
func (p *Parser) Parse() []Stmt {
	var stmts []Stmt
	for !p.isAtEnd() {
		if stmt := p.declarationRecovering(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func (p *Parser) declarationRecovering() (stmt Stmt) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				panic(r)
			}
			p.Errors = append(p.Errors, err)
			p.synchronize()
			stmt = nil
		}
	}()
	stmt = p.declaration()
	for p.match(lexer.TokenSemicolon) {
	}
	return stmt
}

func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if syncTokens[p.peek().Type] {
			return
		}
		p.advance()
	}
}

func (p *Parser) declaration() Stmt {
	switch {
	case p.match(lexer.TokenClass):
		return p.classDeclaration()
	case p.match(lexer.TokenFunction):
		return p.functionDeclaration(false, false, false)
	case p.match(lexer.TokenVar):
		return p.varDeclaration(false)
	case p.match(lexer.TokenConst):
		return p.varDeclaration(true)
	case p.match(lexer.TokenImport):
		return p.importStatement()
	case p.match(lexer.TokenRequire):
		return p.requireStatement()
	case p.match(lexer.TokenExport):
		return p.exportStatement()
	}
	return p.statement()
}

func (p *Parser) statement() Stmt {
	line := p.peek().Line
	switch {
	case p.match(lexer.TokenIf):
		return p.ifStatement()
	case p.match(lexer.TokenWhile):
		return p.whileStatement()
	case p.match(lexer.TokenFor):
		return p.forStatement()
	case p.match(lexer.TokenReturn):
		var value Expr
		if !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
			value = p.expression()
		}
		return &ReturnStmt{stmtBase{line}, value}
	case p.match(lexer.TokenBreak):
		return &BreakStmt{stmtBase{line}}
	case p.match(lexer.TokenContinue):
		return &ContinueStmt{stmtBase{line}}
	case p.match(lexer.TokenTry):
		return p.tryStatement()
	case p.match(lexer.TokenThrow):
		return &ThrowStmt{stmtBase{line}, p.expression()}
	case p.match(lexer.TokenLBrace):
		p.current--
		block := p.blockStatements()
		return &ExpressionStmt{stmtBase{line}, &BlockExpr{exprBase{line}, block}}
	}

	if p.check(lexer.TokenIdent) {
		saved := p.current
		name := p.advance().Lexeme
		if p.match(lexer.TokenEqual) {
			return &AssignmentStmt{stmtBase{line}, name, p.expression()}
		}
		p.current = saved
	}

	expr := p.expression()
	return &ExpressionStmt{stmtBase{line}, expr}
}

func (p *Parser) varDeclaration(isConst bool) Stmt {
	line := p.previous().Line
	nameTok := p.consume(lexer.TokenIdent, "expect variable name")
	var expr Expr
	if p.match(lexer.TokenEqual) {
		expr = p.expression()
	} else if isConst {
		p.errorAt(p.peek(), "const declaration requires an initializer")
	}
	return &VarStmt{stmtBase{line}, nameTok.Lexeme, expr, isConst}
}

func (p *Parser) ifStatement() Stmt {
	line := p.previous().Line
	condition := p.expression()
	p.consume(lexer.TokenLBrace, "expect '{' before if body")
	thenBranch := p.blockStatements()

	var elseBranch []Stmt
	if p.match(lexer.TokenElse) {
		if p.match(lexer.TokenIf) {
			elseBranch = []Stmt{p.ifStatement()}
		} else {
			p.consume(lexer.TokenLBrace, "expect '{' before else body")
			elseBranch = p.blockStatements()
		}
	}
	return &IfStmt{stmtBase{line}, condition, thenBranch, elseBranch}
}

func (p *Parser) whileStatement() Stmt {
	line := p.previous().Line
	condition := p.expression()
	p.consume(lexer.TokenLBrace, "expect '{' before while body")
	body := p.blockStatements()
	return &WhileStmt{stmtBase{line}, condition, body}
}

func (p *Parser) forStatement() Stmt {
	line := p.previous().Line
	if p.checkNext(lexer.TokenIn) {
		variable := p.consume(lexer.TokenIdent, "expect loop variable name").Lexeme
		p.consume(lexer.TokenIn, "expect 'in'")
		collection := p.expression()
		p.consume(lexer.TokenLBrace, "expect '{' before for body")
		body := p.blockStatements()
		return &ForInStmt{stmtBase{line}, variable, collection, body}
	}

	p.consume(lexer.TokenLParen, "expect '(' after 'for'")
	var init Stmt
	if !p.check(lexer.TokenSemicolon) {
		if p.match(lexer.TokenVar) {
			init = p.varDeclaration(false)
		} else {
			init = &ExpressionStmt{stmtBase{line}, p.expression()}
		}
	}
	p.consume(lexer.TokenSemicolon, "expect ';' after for-loop initializer")

	var condition Expr
	if !p.check(lexer.TokenSemicolon) {
		condition = p.expression()
	}
	p.consume(lexer.TokenSemicolon, "expect ';' after for-loop condition")

	var update Expr
	if !p.check(lexer.TokenRParen) {
		update = p.expression()
	}
	p.consume(lexer.TokenRParen, "expect ')' after for-loop clauses")

	p.consume(lexer.TokenLBrace, "expect '{' before for body")
	body := p.blockStatements()
	return &ForStmt{stmtBase{line}, init, condition, update, body}
}

func (p *Parser) tryStatement() Stmt {
	line := p.previous().Line
	p.consume(lexer.TokenLBrace, "expect '{' after 'try'")
	tryBlock := p.blockStatements()

	var catchVar string
	var catchBlock []Stmt
	if p.match(lexer.TokenCatch) {
		if p.match(lexer.TokenLParen) {
			catchVar = p.consume(lexer.TokenIdent, "expect catch variable name").Lexeme
			p.consume(lexer.TokenRParen, "expect ')' after catch variable")
		}
		p.consume(lexer.TokenLBrace, "expect '{' after 'catch'")
		catchBlock = p.blockStatements()
	}

	var finallyBlock []Stmt
	if p.match(lexer.TokenFinally) {
		p.consume(lexer.TokenLBrace, "expect '{' after 'finally'")
		finallyBlock = p.blockStatements()
	}
	return &TryStmt{stmtBase{line}, tryBlock, catchVar, catchBlock, finallyBlock}
}

func (p *Parser) importStatement() Stmt {
	line := p.previous().Line
	var path, alias string
	if p.check(lexer.TokenString) {
		path = p.advance().Lexeme
	} else {
		path = p.consume(lexer.TokenIdent, "expect module name").Lexeme
	}
	if p.match(lexer.TokenIdent) && p.previous().Lexeme == "as" {
		alias = p.consume(lexer.TokenIdent, "expect alias name").Lexeme
	}
	if alias == "" {
		alias = baseName(path)
	}
	return &ImportStmt{stmtBase{line}, path, alias}
}

// requireStatement treats `require "path"` as sugar for an import whose
// value is bound under the module's own base name.
func (p *Parser) requireStatement() Stmt {
	line := p.previous().Line
	path := p.consume(lexer.TokenString, "expect module path string").Lexeme
	return &ImportStmt{stmtBase{line}, path, baseName(path)}
}

func baseName(path string) string {
	path = strings.TrimSuffix(path, ".ash")
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		path = path[idx+1:]
	}
	return path
}

func (p *Parser) exportStatement() Stmt {
	line := p.previous().Line
	inner := p.declaration()
	name := ""
	switch s := inner.(type) {
	case *VarStmt:
		name = s.Name
	case *FunctionStmt:
		name = s.Name
	case *ClassStmt:
		name = s.Name
	}
	return &ExportStmt{stmtBase{line}, name, inner}
}

func (p *Parser) classDeclaration() Stmt {
	line := p.previous().Line
	name := p.consume(lexer.TokenIdent, "expect class name").Lexeme
	var super string
	if p.match(lexer.TokenColon) {
		super = p.consume(lexer.TokenIdent, "expect superclass name").Lexeme
	}
	p.consume(lexer.TokenLBrace, "expect '{' before class body")

	cls := &ClassStmt{stmtBase: stmtBase{line}, Name: name, Superclass: super}
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		isStatic := p.match(lexer.TokenStatic)
		isGetter := p.match(lexer.TokenGet)
		isSetter := false
		if !isGetter {
			isSetter = p.match(lexer.TokenSet)
		}

		if isStatic && p.check(lexer.TokenIdent) && p.checkNext(lexer.TokenEqual) {
			nameTok := p.advance()
			p.consume(lexer.TokenEqual, "expect '=' in static field")
			expr := p.expression()
			cls.StaticFields = append(cls.StaticFields, &VarStmt{stmtBase{line}, nameTok.Lexeme, expr, false})
			continue
		}

		fn := p.functionDeclaration(isStatic, isGetter, isSetter).(*FunctionStmt)
		cls.Methods = append(cls.Methods, fn)
	}
	p.consume(lexer.TokenRBrace, "expect '}' after class body")
	return cls
}

func (p *Parser) functionDeclaration(isStatic, isGetter, isSetter bool) Stmt {
	line := p.peek().Line
	nameTok := p.consume(lexer.TokenIdent, "expect function name")

	var params []Param
	if isGetter {
		// getters take no parameter list
	} else {
		p.consume(lexer.TokenLParen, "expect '(' after function name")
		params = p.paramList()
		p.consume(lexer.TokenRParen, "expect ')' after parameters")
	}

	p.consume(lexer.TokenLBrace, "expect '{' before function body")
	body := p.blockStatements()
	return &FunctionStmt{stmtBase{line}, nameTok.Lexeme, params, body, isStatic, isGetter, isSetter}
}

func (p *Parser) paramList() []Param {
	var params []Param
	if p.check(lexer.TokenRParen) {
		return params
	}
	for {
		name := p.consume(lexer.TokenIdent, "expect parameter name").Lexeme
		var def Expr
		if p.match(lexer.TokenEqual) {
			def = p.expression()
		}
		params = append(params, Param{Name: name, Default: def})
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	return params
}

func (p *Parser) blockStatements() []Stmt {
	var stmts []Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		if stmt := p.declarationRecovering(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.consume(lexer.TokenRBrace, "expect '}' after block")
	return stmts
}

// --- Expression parsing ---

func (p *Parser) expression() Expr {
	return p.assignment()
}

// assignment parses an or-and-below expression, then checks whether the
// result is a valid assignment target followed by `=` or a compound
// assignment operator.
func (p *Parser) assignment() Expr {
	expr := p.parseBinary(precOr)

	if op, isCompound := compoundOps[p.peek().Type]; p.check(lexer.TokenEqual) || isCompound {
		line := p.peek().Line
		opTok := p.advance()
		value := p.assignment()
		switch target := expr.(type) {
		case *Variable:
			if opTok.Type == lexer.TokenEqual {
				return &Assign{exprBase{line}, target.Name, value}
			}
			return &CompoundAssign{exprBase{line}, target.Name, op, value}
		case *PropertyExpr:
			if opTok.Type == lexer.TokenEqual {
				return &SetPropertyExpr{exprBase{line}, target.Object, target.Property, value}
			}
			return &SetPropertyExpr{exprBase{line}, target.Object, target.Property,
				&Binary{exprBase{line}, target, op, value}}
		case *IndexExpr:
			if opTok.Type == lexer.TokenEqual {
				return &SetIndexExpr{exprBase{line}, target.Object, target.Index, value}
			}
			return &SetIndexExpr{exprBase{line}, target.Object, target.Index,
				&Binary{exprBase{line}, target, op, value}}
		default:
			p.errorAt(opTok, "invalid assignment target")
		}
	}
	return expr
}

var compoundOps = map[lexer.TokenType]string{
	lexer.TokenPlusEqual:  "+",
	lexer.TokenMinusEqual: "-",
	lexer.TokenStarEqual:  "*",
	lexer.TokenSlashEqual: "/",
}

func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	for {
		tok := p.peek()
		prec, ok := binaryPrec[tok.Type]
		if !ok || prec < minPrec {
			break
		}
		p.advance()

		switch tok.Type {
		case lexer.TokenAnd, lexer.TokenOr:
			right := p.parseBinary(prec + 1)
			left = &LogicalExpr{exprBase{tok.Line}, left, tok.Lexeme, right}
		case lexer.TokenQuestionQuestion:
			right := p.parseBinary(prec + 1)
			left = &NullCoalesceExpr{exprBase{tok.Line}, left, right}
		case lexer.TokenIs:
			class := p.parseBinary(prec + 1)
			left = &IsExpr{exprBase{tok.Line}, left, class}
		case lexer.TokenDotDot, lexer.TokenDotDotDot:
			right := p.parseBinary(prec + 1)
			left = &RangeExpr{exprBase{tok.Line}, left, right, tok.Type == lexer.TokenDotDotDot}
		default:
			right := p.parseBinary(prec + 1)
			left = &Binary{exprBase{tok.Line}, left, tok.Lexeme, right}
		}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.check(lexer.TokenNot) || p.check(lexer.TokenMinus) || p.check(lexer.TokenTilde) {
		tok := p.advance()
		operand := p.parseUnary()
		return &UnaryExpr{exprBase{tok.Line}, tok.Lexeme, operand}
	}
	return p.parseCall()
}

func (p *Parser) parseCall() Expr {
	expr := p.primary()
	for {
		line := p.peek().Line
		switch {
		case p.match(lexer.TokenLParen):
			expr = p.finishCall(expr, line)
		case p.match(lexer.TokenLBracket):
			index := p.expression()
			p.consume(lexer.TokenRBracket, "expect ']' after index")
			expr = &IndexExpr{exprBase{line}, expr, index}
		case p.match(lexer.TokenDot):
			name := p.consume(lexer.TokenIdent, "expect property name after '.'").Lexeme
			if p.check(lexer.TokenLParen) {
				p.advance()
				args := p.argumentList()
				expr = &MethodCallExpr{exprBase{line}, expr, name, args}
			} else {
				expr = &PropertyExpr{exprBase{line}, expr, name}
			}
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee Expr, line int) Expr {
	args := p.argumentList()
	return &CallExpr{exprBase{line}, callee, args}
}

func (p *Parser) argumentList() []Expr {
	var args []Expr
	if !p.check(lexer.TokenRParen) {
		for {
			args = append(args, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "expect ')' after arguments")
	return args
}

func (p *Parser) primary() Expr {
	tok := p.advance()
	line := tok.Line
	switch tok.Type {
	case lexer.TokenString:
		return &Literal{exprBase{line}, tok.Literal}
	case lexer.TokenInterpolation:
		return p.interpolation(tok)
	case lexer.TokenNumber:
		v, _ := tok.Literal.(float64)
		return &Literal{exprBase{line}, v}
	case lexer.TokenIdent:
		return &Variable{exprBase{line}, tok.Lexeme}
	case lexer.TokenThis:
		return &ThisExpr{exprBase{line}}
	case lexer.TokenSuper:
		p.consume(lexer.TokenDot, "expect '.' after 'super'")
		method := p.consume(lexer.TokenIdent, "expect superclass method name").Lexeme
		return &SuperExpr{exprBase{line}, method}
	case lexer.TokenNew:
		class := p.parseCall()
		if call, ok := class.(*CallExpr); ok {
			return &NewExpr{exprBase{line}, call.Callee, call.Args}
		}
		return &NewExpr{exprBase{line}, class, nil}
	case lexer.TokenNull:
		return &Literal{exprBase{line}, nil}
	case lexer.TokenTrue:
		return &Literal{exprBase{line}, true}
	case lexer.TokenFalse:
		return &Literal{exprBase{line}, false}
	case lexer.TokenLBracket:
		return p.parseArrayLiteral(line)
	case lexer.TokenLBrace:
		if p.isMapLiteral() {
			return p.parseMapLiteral(line)
		}
		p.current--
		return p.parseBlockExpr()
	case lexer.TokenLParen:
		if lambda, ok := p.tryParseLambda(line); ok {
			return lambda
		}
		expr := p.expression()
		p.consume(lexer.TokenRParen, "expect ')' after expression")
		return expr
	case lexer.TokenFunction:
		return p.parseLambdaLiteral(line)
	case lexer.TokenIf:
		cond := p.expression()
		thenBranch := p.parseBlockExpr()
		var elseBranch Expr
		if p.match(lexer.TokenElse) {
			if p.check(lexer.TokenIf) {
				p.advance()
				elseBranch = p.primary()
			} else {
				elseBranch = p.parseBlockExpr()
			}
		}
		return &IfExpr{exprBase{line}, cond, thenBranch, elseBranch}
	default:
		p.errorAt(tok, fmt.Sprintf("unexpected token '%s' in expression", tok.Lexeme))
		return &Literal{exprBase{line}, nil}
	}
}

// interpolation stitches TOKEN_INTERPOLATION chunks and the bracketed
// expressions between them into one node; the emitter lowers it to an
// Array.join call, matching spec.md §4.2's treatment of `\(expr)`.
func (p *Parser) interpolation(first lexer.Token) Expr {
	var parts []Expr
	parts = append(parts, &Literal{exprBase{first.Line}, first.Literal})
	for {
		expr := p.expression()
		parts = append(parts, expr)
		p.consume(lexer.TokenInterpolationEnd, "expect ')' to close string interpolation")
		if p.check(lexer.TokenString) {
			str := p.advance()
			parts = append(parts, &Literal{exprBase{str.Line}, str.Literal})
			break
		}
		if p.check(lexer.TokenInterpolation) {
			chunk := p.advance()
			parts = append(parts, &Literal{exprBase{chunk.Line}, chunk.Literal})
			continue
		}
		break
	}
	return &InterpolationExpr{exprBase{first.Line}, parts}
}

func (p *Parser) parseArrayLiteral(line int) Expr {
	var elements []Expr
	for !p.check(lexer.TokenRBracket) && !p.isAtEnd() {
		elements = append(elements, p.expression())
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.consume(lexer.TokenRBracket, "expect ']' after array elements")
	return &ArrayExpr{exprBase{line}, elements}
}

func (p *Parser) parseMapLiteral(line int) Expr {
	var keys, values []Expr
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		keys = append(keys, p.expression())
		p.consume(lexer.TokenColon, "expect ':' after map key")
		values = append(values, p.expression())
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.consume(lexer.TokenRBrace, "expect '}' after map elements")
	return &MapExpr{exprBase{line}, keys, values}
}

func (p *Parser) isMapLiteral() bool {
	saved := p.current
	defer func() { p.current = saved }()
	if p.check(lexer.TokenRBrace) {
		return true
	}
	if !p.match(lexer.TokenString) && !p.match(lexer.TokenIdent) && !p.match(lexer.TokenNumber) {
		return false
	}
	return p.check(lexer.TokenColon)
}

// tryParseLambda implements spec.md §4.3's lookahead-with-rewind: after
// '(', a `)`, `identifier ,`, or `identifier ) =>` commits to a lambda;
// anything else rewinds and the '(' is reparsed as grouping.
func (p *Parser) tryParseLambda(line int) (Expr, bool) {
	saved := p.current
	isLambda := p.check(lexer.TokenRParen) ||
		(p.check(lexer.TokenIdent) && (p.checkNext(lexer.TokenComma) || p.checkNextNext(lexer.TokenArrow) || p.checkNextNext(lexer.TokenLBrace)))
	if !isLambda {
		return nil, false
	}
	params := p.paramList()
	if !p.match(lexer.TokenRParen) || !(p.check(lexer.TokenArrow) || p.check(lexer.TokenLBrace)) {
		p.current = saved
		return nil, false
	}
	return p.finishLambda(line, params), true
}

func (p *Parser) parseLambdaLiteral(line int) Expr {
	p.consume(lexer.TokenLParen, "expect '(' after 'function'")
	params := p.paramList()
	p.consume(lexer.TokenRParen, "expect ')' after lambda parameters")
	return p.finishLambda(line, params)
}

func (p *Parser) finishLambda(line int, params []Param) Expr {
	if p.match(lexer.TokenArrow) {
		return &LambdaExpr{exprBase{line}, params, nil, p.expression()}
	}
	p.consume(lexer.TokenLBrace, "expect '{' or '=>' to start lambda body")
	body := p.blockStatements()
	return &LambdaExpr{exprBase{line}, params, body, nil}
}

func (p *Parser) parseBlockExpr() Expr {
	line := p.peek().Line
	p.consume(lexer.TokenLBrace, "expect '{' to start block")
	stmts := p.blockStatements()
	return &BlockExpr{exprBase{line}, stmts}
}

// --- token-stream utilities ---

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.errorAt(p.peek(), fmt.Sprintf("%s (got '%s')", msg, p.peek().Lexeme))
	return p.peek()
}

func (p *Parser) errorAt(tok lexer.Token, msg string) {
	err := errors.NewSyntaxError(msg, tok.File, tok.Line, tok.Column)
	if tok.Line > 0 && tok.Line <= len(p.sourceLines) {
		err = err.WithSource(p.sourceLines[tok.Line-1])
	}
	panic(err)
}

func (p *Parser) check(t lexer.TokenType) bool {
	return !p.isAtEnd() && p.peek().Type == t
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

func (p *Parser) checkNextNext(t lexer.TokenType) bool {
	if p.current+2 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+2].Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.tokens[p.current-1]
}

func (p *Parser) previous() lexer.Token { return p.tokens[p.current-1] }

func (p *Parser) peek() lexer.Token { return p.tokens[p.current] }

func (p *Parser) isAtEnd() bool { return p.peek().Type == lexer.TokenEOF }
