// Package compiler implements wen's single-pass Pratt parser: it consumes
// source text and emits bytecode directly into a heap.Chunk, with no
// intermediate AST. Locals, upvalues, and class/this/super scoping are
// all resolved as parsing proceeds.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/wenlang/wen/pkg/heap"
	"github.com/wenlang/wen/pkg/lexer"
	"github.com/wenlang/wen/pkg/opcode"
)

// FunctionType distinguishes the kind of function body currently being
// compiled, which governs how "this"/"super" resolve and what an implicit
// trailing RETURN pushes.
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeMethod
	TypeInitializer
	TypeScript
)

type local struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueDesc struct {
	index   int
	isLocal bool
}

type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// funcState tracks per-function compilation state: its in-progress
// function object, locals array, upvalue descriptors, and scope depth.
// funcStates nest one per enclosing function, forming the "compiler's
// in-progress function chain" that the garbage collector walks as a root
// if a collection fires mid-compile.
type funcState struct {
	enclosing *funcState
	function  *heap.ObjFunction
	fnType    FunctionType

	locals     []local
	scopeDepth int
	upvalues   []upvalueDesc
}

// Compiler drives a single top-level compile: it owns the lexer, the
// current/previous token, and the nested funcState/classState chains.
type Compiler struct {
	h   *heap.Heap
	lex *lexer.Lexer

	previous lexer.Token
	current  lexer.Token

	hadError  bool
	panicMode bool
	errs      []error

	fs *funcState
	cs *classState
}

// MarkRoots implements heap.Root: every enclosing function object still
// under construction, and its constant pool so far, must survive a
// collection that fires mid-compile.
func (c *Compiler) MarkRoots(mark func(heap.Value)) {
	for fs := c.fs; fs != nil; fs = fs.enclosing {
		if fs.function != nil {
			mark(fs.function.Value())
		}
	}
}

// Compile compiles source into a top-level script function (whose Chunk,
// when run, executes the file's top-level statements) or returns an error
// describing the syntax problems found. §4.6's "no function" sentinel on
// syntax error is expressed idiomatically as (nil, error).
func Compile(h *heap.Heap, source string) (*heap.ObjFunction, error) {
	c := &Compiler{h: h, lex: lexer.New(source)}
	c.fs = &funcState{fnType: TypeScript, function: h.NewFunction()}
	c.fs.locals = append(c.fs.locals, local{name: "", depth: 0})

	h.AddRoot(c)
	defer h.RemoveRoot(c)

	c.advance()
	for !c.match(lexer.TokenEOF) {
		c.declaration()
	}
	fn := c.endFunction()

	if c.hadError {
		return nil, errors.Wrap(joinErrors(c.errs), "编译失败")
	}
	return fn, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return errors.New("语法错误")
	}
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return errors.New(msg)
}

// --- token stream -------------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Type != lexer.TokenIllegal {
			break
		}
		c.errorAtCurrent(c.current.Literal)
	}
}

func (c *Compiler) check(t lexer.TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, msg string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) {
	c.errorAt(c.current, msg)
}

func (c *Compiler) error(msg string) {
	c.errorAt(c.previous, msg)
}

func (c *Compiler) errorAt(tok lexer.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	where := ""
	switch tok.Type {
	case lexer.TokenEOF:
		where = "在结尾"
	case lexer.TokenIllegal:
		where = ""
	default:
		where = fmt.Sprintf("在 '%s' 附近", tok.Literal)
	}
	c.errs = append(c.errs, fmt.Errorf("[第 %d 行] 错误%s：%s", tok.Line, where, msg))
}

// synchronize discards tokens after a parse error until it reaches a
// plausible statement boundary, so one mistake doesn't cascade into a
// screenful of spurious diagnostics.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != lexer.TokenEOF {
		if c.previous.Type == lexer.TokenSemi {
			return
		}
		switch c.current.Type {
		case lexer.TokenClass, lexer.TokenFn, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenReturn:
			return
		}
		c.advance()
	}
}

// --- emission helpers -----------------------------------------------------

func (c *Compiler) chunk() *heap.Chunk { return c.fs.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.previous.Line)
}

func (c *Compiler) emitOp(op opcode.OpCode) {
	c.chunk().WriteOp(op, c.previous.Line)
}

func (c *Compiler) emitOps(op1, op2 opcode.OpCode) {
	c.emitOp(op1)
	c.emitOp(op2)
}

func (c *Compiler) emitOpByte(op opcode.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *Compiler) emitConstant(v heap.Value) {
	idx := c.makeConstant(v)
	c.emitOpByte(opcode.Constant, idx)
}

func (c *Compiler) makeConstant(v heap.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > opcode.MaxConstants-1 {
		c.error("一个函数中的常量过多。")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(c.h.InternString(name).Value())
}

func (c *Compiler) emitJump(op opcode.OpCode) int {
	return c.chunk().WriteJump(op, c.previous.Line)
}

func (c *Compiler) patchJump(offset int) {
	c.chunk().PatchJump(offset)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.chunk().EmitLoop(loopStart, c.previous.Line)
}

func (c *Compiler) emitReturn() {
	if c.fs.fnType == TypeInitializer {
		c.emitOpByte(opcode.GetLocal, 0)
	} else {
		c.emitOp(opcode.Nil)
	}
	c.emitOp(opcode.Return)
}

func (c *Compiler) endFunction() *heap.ObjFunction {
	c.emitReturn()
	fn := c.fs.function
	c.fs = c.fs.enclosing
	return fn
}

// --- scope & locals -------------------------------------------------------

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fs.scopeDepth--
	for len(c.fs.locals) > 0 && c.fs.locals[len(c.fs.locals)-1].depth > c.fs.scopeDepth {
		last := c.fs.locals[len(c.fs.locals)-1]
		if last.isCaptured {
			c.emitOp(opcode.CloseUpvalue)
		} else {
			c.emitOp(opcode.Pop)
		}
		c.fs.locals = c.fs.locals[:len(c.fs.locals)-1]
	}
}

func (c *Compiler) addLocal(name string) {
	if len(c.fs.locals) >= opcode.MaxConstants {
		c.error("函数中局部变量过多。")
		return
	}
	c.fs.locals = append(c.fs.locals, local{name: name, depth: -1})
}

func (c *Compiler) declareVariable(name string) {
	if c.fs.scopeDepth == 0 {
		return
	}
	for i := len(c.fs.locals) - 1; i >= 0; i-- {
		l := c.fs.locals[i]
		if l.depth != -1 && l.depth < c.fs.scopeDepth {
			break
		}
		if l.name == name {
			c.error("此作用域中已经存在一个同名变量。")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) parseVariable(errMsg string) byte {
	c.consume(lexer.TokenIdentifier, errMsg)
	name := c.previous.Literal
	c.declareVariable(name)
	if c.fs.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func (c *Compiler) markInitialized() {
	if c.fs.scopeDepth == 0 {
		return
	}
	c.fs.locals[len(c.fs.locals)-1].depth = c.fs.scopeDepth
}

func (c *Compiler) defineVariable(global byte) {
	if c.fs.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(opcode.DefineGlobal, global)
}

func resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i
		}
	}
	return -1
}

func addUpvalue(fs *funcState, index int, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= opcode.MaxConstants {
		return -1
	}
	fs.upvalues = append(fs.upvalues, upvalueDesc{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}

func resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if idx := resolveLocal(fs.enclosing, name); idx != -1 {
		fs.enclosing.locals[idx].isCaptured = true
		return addUpvalue(fs, idx, true)
	}
	if up := resolveUpvalue(fs.enclosing, name); up != -1 {
		return addUpvalue(fs, up, false)
	}
	return -1
}

// --- declarations -----------------------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.TokenClass):
		c.classDeclaration()
	case c.match(lexer.TokenFn):
		c.funDeclaration()
	case c.match(lexer.TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) funDeclaration() {
	c.consume(lexer.TokenIdentifier, "需要函数名。")
	name := c.previous.Literal
	c.declareVariable(name)
	if c.fs.scopeDepth > 0 {
		c.markInitialized()
	}
	global := c.identifierConstant(name)
	c.function(TypeFunction, name)
	c.defineVariable(global)
}

func (c *Compiler) function(fnType FunctionType, name string) {
	fn := c.h.NewFunction()
	fn.Name = c.h.InternString(name)
	fs := &funcState{enclosing: c.fs, function: fn, fnType: fnType}
	fs.locals = append(fs.locals, local{name: thisSlotName(fnType), depth: 0})
	c.fs = fs

	c.beginScope()
	c.consume(lexer.TokenLParen, "需要 '('。")
	if !c.check(lexer.TokenRParen) {
		for {
			c.fs.function.Arity++
			if c.fs.function.Arity > 255 {
				c.errorAtCurrent("参数过多。")
			}
			constant := c.parseVariable("需要参数名。")
			c.defineVariable(constant)
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRParen, "需要 ')'。")
	c.consume(lexer.TokenLBrace, "需要函数体 '{'。")
	c.block()

	upvalues := c.fs.upvalues
	outFn := c.endFunction()
	outFn.UpvalueCount = len(upvalues)

	c.emitOpByte(opcode.Closure, c.makeConstant(outFn.Value()))
	for _, uv := range upvalues {
		var isLocalByte byte
		if uv.isLocal {
			isLocalByte = 1
		}
		c.emitByte(isLocalByte)
		c.emitByte(byte(uv.index))
	}
}

func thisSlotName(fnType FunctionType) string {
	if fnType == TypeMethod || fnType == TypeInitializer {
		return "这"
	}
	return ""
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.TokenIdentifier, "需要类名。")
	name := c.previous.Literal
	nameConstant := c.identifierConstant(name)
	c.declareVariable(name)

	c.emitOpByte(opcode.Class, nameConstant)
	c.defineVariable(nameConstant)

	cs := &classState{enclosing: c.cs}
	c.cs = cs

	if c.match(lexer.TokenExtends) {
		c.consume(lexer.TokenIdentifier, "需要父类名。")
		superName := c.previous.Literal
		if superName == name {
			c.error("一个类不能继承自己。")
		}
		c.variable(false, superName)

		c.beginScope()
		c.addLocal("超")
		c.defineVariable(0)

		c.namedVariable(name, false)
		c.emitOp(opcode.Inherit)
		cs.hasSuperclass = true
	}

	c.namedVariable(name, false)
	c.consume(lexer.TokenLBrace, "需要 '{'。")
	for !c.check(lexer.TokenRBrace) && !c.check(lexer.TokenEOF) {
		c.method()
	}
	c.consume(lexer.TokenRBrace, "需要 '}'。")
	c.emitOp(opcode.Pop)

	if cs.hasSuperclass {
		c.endScope()
	}
	c.cs = cs.enclosing
}

func (c *Compiler) method() {
	c.consume(lexer.TokenIdentifier, "需要方法名。")
	name := c.previous.Literal
	constant := c.identifierConstant(name)

	fnType := TypeMethod
	if name == "初始化" {
		fnType = TypeInitializer
	}
	c.function(fnType, name)
	c.emitOpByte(opcode.Method, constant)
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("需要变量名。")
	if c.match(lexer.TokenAssign) {
		c.expression()
	} else {
		c.emitOp(opcode.Nil)
	}
	c.consume(lexer.TokenSemi, "变量声明后需要 ';'。")
	c.defineVariable(global)
}

// --- statements -------------------------------------------------------

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenFor):
		c.forStatement()
	case c.match(lexer.TokenReturn):
		c.returnStatement()
	case c.match(lexer.TokenLBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.TokenRBrace) && !c.check(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenRBrace, "代码块后需要 '}'。")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.TokenSemi, "表达式后需要 ';'。")
	c.emitOp(opcode.Pop)
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.TokenLParen, "'如果' 后需要 '('。")
	c.expression()
	c.consume(lexer.TokenRParen, "条件后需要 ')'。")

	thenJump := c.emitJump(opcode.JumpIfFalse)
	c.emitOp(opcode.Pop)
	c.statement()

	elseJump := c.emitJump(opcode.Jump)
	c.patchJump(thenJump)
	c.emitOp(opcode.Pop)

	if c.match(lexer.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(lexer.TokenLParen, "'当' 后需要 '('。")
	c.expression()
	c.consume(lexer.TokenRParen, "条件后需要 ')'。")

	exitJump := c.emitJump(opcode.JumpIfFalse)
	c.emitOp(opcode.Pop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(opcode.Pop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.TokenLParen, "'为' 后需要 '('。")

	switch {
	case c.match(lexer.TokenSemi):
		// no initializer
	case c.match(lexer.TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(lexer.TokenSemi) {
		c.expression()
		c.consume(lexer.TokenSemi, "循环条件后需要 ';'。")
		exitJump = c.emitJump(opcode.JumpIfFalse)
		c.emitOp(opcode.Pop)
	}

	if !c.match(lexer.TokenRParen) {
		bodyJump := c.emitJump(opcode.Jump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(opcode.Pop)
		c.consume(lexer.TokenRParen, "为子句后需要 ')'。")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(opcode.Pop)
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.fs.fnType == TypeScript {
		c.error("不能在顶层代码中返回值。")
	}
	if c.match(lexer.TokenSemi) {
		c.emitReturn()
		return
	}
	if c.fs.fnType == TypeInitializer {
		c.error("不能从初始化方法中返回值。")
	}
	c.expression()
	c.consume(lexer.TokenSemi, "返回值后需要 ';'。")
	c.emitOp(opcode.Return)
}

// --- expressions (Pratt parser) ---------------------------------------

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precComparison
	precShift
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLParen:     {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		lexer.TokenDot:        {infix: (*Compiler).dot, precedence: precCall},
		lexer.TokenLBracket:   {prefix: (*Compiler).listLiteral, infix: (*Compiler).subscript, precedence: precCall},
		lexer.TokenMinus:      {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenPlus:       {infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenSlash:      {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenStar:       {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenPercent:    {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenAmp:        {infix: (*Compiler).binary, precedence: precBitAnd},
		lexer.TokenPipe:       {infix: (*Compiler).binary, precedence: precBitOr},
		lexer.TokenCaret:      {infix: (*Compiler).binary, precedence: precBitXor},
		lexer.TokenTilde:      {prefix: (*Compiler).unary},
		lexer.TokenShl:        {infix: (*Compiler).binary, precedence: precShift},
		lexer.TokenShr:        {infix: (*Compiler).binary, precedence: precShift},
		lexer.TokenNot:        {prefix: (*Compiler).unary},
		lexer.TokenNotEq:      {infix: (*Compiler).binary, precedence: precEquality},
		lexer.TokenEqEq:       {infix: (*Compiler).binary, precedence: precEquality},
		lexer.TokenGreater:    {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenGreaterEq:  {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenLess:       {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenLessEq:     {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenIdentifier: {prefix: (*Compiler).identifierExpr},
		lexer.TokenString:     {prefix: (*Compiler).stringLiteral},
		lexer.TokenNumber:     {prefix: (*Compiler).number},
		lexer.TokenAnd:        {infix: (*Compiler).and, precedence: precAnd},
		lexer.TokenOr:         {infix: (*Compiler).or, precedence: precOr},
		lexer.TokenFalse:      {prefix: (*Compiler).literal},
		lexer.TokenTrue:       {prefix: (*Compiler).literal},
		lexer.TokenNil:        {prefix: (*Compiler).literal},
		lexer.TokenThis:       {prefix: (*Compiler).this},
		lexer.TokenSuper:      {prefix: (*Compiler).super},
		lexer.TokenFn:         {prefix: (*Compiler).lambda},
		lexer.TokenPlusPlus:   {prefix: (*Compiler).prefixIncDec},
		lexer.TokenMinusMinus: {prefix: (*Compiler).prefixIncDec},
	}
}

func (c *Compiler) getRule(t lexer.TokenType) parseRule {
	return rules[t]
}

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := c.getRule(c.previous.Type)
	if rule.prefix == nil {
		c.error("需要一个表达式。")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= c.getRule(c.current.Type).precedence {
		c.advance()
		infix := c.getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokenAssign) {
		c.error("无效的赋值目标。")
	}
}

func (c *Compiler) number(canAssign bool) {
	v, err := strconv.ParseFloat(c.previous.Literal, 64)
	if err != nil {
		c.error("无效的数字。")
		return
	}
	c.emitConstant(heap.Number(v))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	s := c.h.InternString(c.previous.Literal)
	c.emitConstant(s.Value())
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case lexer.TokenFalse:
		c.emitOp(opcode.False)
	case lexer.TokenTrue:
		c.emitOp(opcode.True)
	case lexer.TokenNil:
		c.emitOp(opcode.Nil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.TokenRParen, "需要 ')'。")
}

func (c *Compiler) unary(canAssign bool) {
	opTok := c.previous.Type
	c.parsePrecedence(precUnary)
	switch opTok {
	case lexer.TokenMinus:
		c.emitOp(opcode.Negate)
	case lexer.TokenNot:
		c.emitOp(opcode.Not)
	case lexer.TokenTilde:
		c.emitOp(opcode.BitwiseNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opTok := c.previous.Type
	rule := c.getRule(opTok)
	c.parsePrecedence(rule.precedence + 1)

	switch opTok {
	case lexer.TokenPlus:
		c.emitOp(opcode.Add)
	case lexer.TokenMinus:
		c.emitOp(opcode.Subtract)
	case lexer.TokenStar:
		c.emitOp(opcode.Multiply)
	case lexer.TokenSlash:
		c.emitOp(opcode.Divide)
	case lexer.TokenPercent:
		c.emitOp(opcode.Modulo)
	case lexer.TokenAmp:
		c.emitOp(opcode.BitwiseAnd)
	case lexer.TokenPipe:
		c.emitOp(opcode.BitwiseOr)
	case lexer.TokenCaret:
		c.emitOp(opcode.BitwiseXor)
	case lexer.TokenShl:
		c.emitOp(opcode.ShiftLeft)
	case lexer.TokenShr:
		c.emitOp(opcode.ShiftRight)
	case lexer.TokenEqEq:
		c.emitOp(opcode.Equal)
	case lexer.TokenNotEq:
		c.emitOps(opcode.Equal, opcode.Not)
	case lexer.TokenGreater:
		c.emitOp(opcode.Greater)
	case lexer.TokenGreaterEq:
		c.emitOps(opcode.Less, opcode.Not)
	case lexer.TokenLess:
		c.emitOp(opcode.Less)
	case lexer.TokenLessEq:
		c.emitOps(opcode.Greater, opcode.Not)
	}
}

func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(opcode.JumpIfFalse)
	c.emitOp(opcode.Pop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(opcode.JumpIfFalse)
	endJump := c.emitJump(opcode.Jump)

	c.patchJump(elseJump)
	c.emitOp(opcode.Pop)

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(opcode.Call, argCount)
}

func (c *Compiler) argumentList() byte {
	var count int
	if !c.check(lexer.TokenRParen) {
		for {
			c.expression()
			if count == 255 {
				c.error("参数过多。")
			}
			count++
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRParen, "参数后需要 ')'。")
	return byte(count)
}

func (c *Compiler) listLiteral(canAssign bool) {
	var count int
	if !c.check(lexer.TokenRBracket) {
		for {
			c.expression()
			count++
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRBracket, "列表字面量后需要 ']'。")
	c.emitOpByte(opcode.BuildList, byte(count))
}

func (c *Compiler) subscript(canAssign bool) {
	c.expression()
	c.consume(lexer.TokenRBracket, "索引后需要 ']'。")
	if canAssign && c.match(lexer.TokenAssign) {
		c.expression()
		c.emitOp(opcode.StoreSubscr)
	} else {
		c.emitOp(opcode.IndexSubscr)
	}
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.TokenIdentifier, "'.' 后需要属性名。")
	name := c.identifierConstant(c.previous.Literal)

	switch {
	case canAssign && c.match(lexer.TokenAssign):
		c.expression()
		c.emitOpByte(opcode.SetProperty, name)
	case c.match(lexer.TokenLParen):
		argCount := c.argumentList()
		c.emitOpByte(opcode.Invoke, name)
		c.emitByte(argCount)
	default:
		c.emitOpByte(opcode.GetProperty, name)
	}
}

func (c *Compiler) identifierExpr(canAssign bool) {
	c.variable(canAssign, c.previous.Literal)
}

func (c *Compiler) variable(canAssign bool, name string) {
	c.namedVariable(name, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp opcode.OpCode
	arg := resolveLocal(c.fs, name)
	if arg != -1 {
		getOp, setOp = opcode.GetLocal, opcode.SetLocal
	} else if arg = resolveUpvalue(c.fs, name); arg != -1 {
		getOp, setOp = opcode.GetUpvalue, opcode.SetUpvalue
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = opcode.GetGlobal, opcode.SetGlobal
	}

	if canAssign && c.match(lexer.TokenAssign) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *Compiler) this(canAssign bool) {
	if c.cs == nil {
		c.error("不能在类之外使用 '这'。")
		return
	}
	c.variable(false, "这")
}

func (c *Compiler) super(canAssign bool) {
	if c.cs == nil {
		c.error("不能在类之外使用 '超'。")
	} else if !c.cs.hasSuperclass {
		c.error("在没有父类的类中不能使用 '超'。")
	}
	c.consume(lexer.TokenDot, "'超' 后需要 '.'。")
	c.consume(lexer.TokenIdentifier, "需要父类方法名。")
	name := c.identifierConstant(c.previous.Literal)

	c.namedVariable("这", false)
	if c.match(lexer.TokenLParen) {
		argCount := c.argumentList()
		c.namedVariable("超", false)
		c.emitOpByte(opcode.SuperInvoke, name)
		c.emitByte(argCount)
	} else {
		c.namedVariable("超", false)
		c.emitOpByte(opcode.GetSuper, name)
	}
}

func (c *Compiler) lambda(canAssign bool) {
	c.function(TypeFunction, "")
}

// prefixIncDec compiles ++x/--x over the three assignable shapes: a bare
// name, a property, and a subscript. The property and subscript forms
// need a surviving copy of the receiver (object, or target+index) to
// write back through after reading the old value — that's what Dup and
// DoubleDup exist for; a bare name's Set opcode needs no such copy since
// it addresses the slot directly.
func (c *Compiler) prefixIncDec(canAssign bool) {
	opTok := c.previous.Type
	c.consume(lexer.TokenIdentifier, "'++'/'--' 后需要一个变量、属性或下标。")
	name := c.previous.Literal

	switch {
	case c.check(lexer.TokenDot):
		c.advance()
		c.consume(lexer.TokenIdentifier, "'.' 后需要属性名。")
		propName := c.identifierConstant(c.previous.Literal)
		c.namedVariable(name, false)
		c.emitOp(opcode.Dup)
		c.emitOpByte(opcode.GetProperty, propName)
		c.emitIncDec(opTok)
		c.emitOpByte(opcode.SetProperty, propName)
	case c.check(lexer.TokenLBracket):
		c.advance()
		c.namedVariable(name, false)
		c.expression()
		c.consume(lexer.TokenRBracket, "索引后需要 ']'。")
		c.emitOp(opcode.DoubleDup)
		c.emitOp(opcode.IndexSubscr)
		c.emitIncDec(opTok)
		c.emitOp(opcode.StoreSubscr)
	default:
		c.incDecNamed(name, opTok)
	}
}

func (c *Compiler) incDecNamed(name string, opTok lexer.TokenType) {
	var getOp, setOp opcode.OpCode
	arg := resolveLocal(c.fs, name)
	if arg != -1 {
		getOp, setOp = opcode.GetLocal, opcode.SetLocal
	} else if up := resolveUpvalue(c.fs, name); up != -1 {
		arg, getOp, setOp = up, opcode.GetUpvalue, opcode.SetUpvalue
	} else {
		arg, getOp, setOp = int(c.identifierConstant(name)), opcode.GetGlobal, opcode.SetGlobal
	}
	c.emitOpByte(getOp, byte(arg))
	c.emitIncDec(opTok)
	c.emitOpByte(setOp, byte(arg))
}

func (c *Compiler) emitIncDec(opTok lexer.TokenType) {
	if opTok == lexer.TokenPlusPlus {
		c.emitOp(opcode.Increment)
	} else {
		c.emitOp(opcode.Decrement)
	}
}
