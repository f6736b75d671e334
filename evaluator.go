package formula

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Workbook is the storage collaborator the evaluator reads from. cell
// contents are expected to be resident in memory.
type Workbook interface {
	// ReadCell returns the stored content of a cell; a zero RawCell is empty
	ReadCell(addr CellAddress) RawCell
	// SheetID resolves a worksheet name (case-insensitive)
	SheetID(name string) (uint32, bool)
	// SheetName returns the name of a worksheet
	SheetName(id uint32) (string, bool)
	// ResolveName returns the address of a defined name
	ResolveName(name string) (RangeAddress, bool)
}

// Evaluator computes cell values for one workbook-evaluation session. it
// owns the evaluation cache and the dependency graph used to invalidate it.
// an Evaluator is not safe for concurrent use; callers serialize access.
type Evaluator struct {
	workbook  Workbook
	functions *Registry
	cache     *EvaluationCache
	graph     *DependencyGraph
	stack     *evaluationStack
	stability StabilityClassifier
	clock     Clock
	rng       RandomGenerator
	logger    *slog.Logger
	maxDepth  int

	// first failure that is not a spreadsheet error (ErrUnimplemented)
	// raised during the running evaluation
	failure error
}

// NewEvaluator creates an evaluator over wb.
func NewEvaluator(wb Workbook, opts ...Option) *Evaluator {
	options := EvalOptions{MaxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Functions == nil {
		options.Functions = NewBuiltinRegistry()
	}
	if options.Clock == nil {
		options.Clock = &WallClock{}
	}
	if options.Random == nil {
		options.Random = &DefaultRandomGenerator{}
	}
	if options.MaxDepth <= 0 {
		options.MaxDepth = DefaultMaxDepth
	}

	return &Evaluator{
		workbook:  wb,
		functions: options.Functions,
		cache:     NewEvaluationCache(),
		graph:     NewDependencyGraph(),
		stack:     newEvaluationStack(),
		stability: options.Stability,
		clock:     options.Clock,
		rng:       options.Random,
		logger:    options.Logger,
		maxDepth:  options.MaxDepth,
	}
}

// Functions returns the function registry in use
func (e *Evaluator) Functions() *Registry {
	return e.functions
}

// Graph returns the dependency graph for diagnostic purposes
func (e *Evaluator) Graph() *DependencyGraph {
	return e.graph
}

// Cache returns the evaluation cache for diagnostic purposes
func (e *Evaluator) Cache() *EvaluationCache {
	return e.cache
}

// Evaluate returns the value of a cell, computing it when the cache holds
// no valid entry. spreadsheet errors are returned as values; a non-nil
// error means evaluation could not complete (for instance an unimplemented
// function, wrapped as *UnimplementedError with the failing cell).
func (e *Evaluator) Evaluate(addr CellAddress) (Value, error) {
	e.failure = nil
	e.stack.reset()

	v := e.evaluateCell(addr)
	if err := e.takeFailure(); err != nil {
		return nil, err
	}
	return v, nil
}

// EvaluateCells evaluates a batch of cells. volatile cells and their
// dependents are invalidated first so that each batch sees fresh values.
// ctx is checked between cells; on cancellation the values computed so far
// are returned with ctx's error.
func (e *Evaluator) EvaluateCells(ctx context.Context, addrs []CellAddress) (map[CellAddress]Value, error) {
	e.InvalidateVolatile()

	results := make(map[CellAddress]Value, len(addrs))
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		v, err := e.Evaluate(addr)
		if err != nil {
			return results, err
		}
		results[addr] = v
	}
	return results, nil
}

// EvaluateFormula evaluates f as if it were stored in the cell at. the
// result is neither cached nor recorded as a dependency, and a reference or
// array result is returned as is.
func (e *Evaluator) EvaluateFormula(f Formula, at CellAddress) (Value, error) {
	e.failure = nil
	e.stack.reset()

	ec := &OperationContext{evaluator: e, cell: at}
	result, err := e.run(ec, f)
	if err != nil {
		return nil, e.wrapFailure(err, at)
	}
	if err := e.takeFailure(); err != nil {
		return nil, err
	}
	return result, nil
}

// NotifyUpdate tells the evaluator that the content of addr changed. the
// cell and every cell depending on it are invalidated; nothing is
// recomputed until it is read again.
func (e *Evaluator) NotifyUpdate(addr CellAddress) {
	e.cache.Invalidate(addr)
	affected := e.graph.Dependents(addr)
	for _, dep := range affected {
		e.cache.Invalidate(dep)
	}
	e.logger.Debug("cell updated",
		slog.String("cell", e.cellName(addr)),
		slog.Int("invalidated", len(affected)+1))
}

// NotifyDelete tells the evaluator that addr was cleared
func (e *Evaluator) NotifyDelete(addr CellAddress) {
	for _, dep := range e.graph.Dependents(addr) {
		e.cache.Invalidate(dep)
	}
	e.graph.Forget(addr)
	e.cache.Remove(addr)
	e.logger.Debug("cell deleted", slog.String("cell", e.cellName(addr)))
}

// ClearAllCachedValues invalidates every cached value, e.g. after a bulk
// edit that may have changed which cells are final.
func (e *Evaluator) ClearAllCachedValues() {
	count := e.cache.InvalidateAll()
	e.logger.Debug("cache cleared", slog.Int("invalidated", count))
}

// InvalidateVolatile invalidates cells that called volatile functions and
// the cells depending on them
func (e *Evaluator) InvalidateVolatile() {
	for _, addr := range e.graph.VolatileCells() {
		e.cache.Invalidate(addr)
		for _, dep := range e.graph.Dependents(addr) {
			e.cache.Invalidate(dep)
		}
	}
}

// CacheState reports the cache lifecycle state of addr
func (e *Evaluator) CacheState(addr CellAddress) CacheState {
	return e.cache.State(addr)
}

// IsCellFinal consults the stability classifier
func (e *Evaluator) IsCellFinal(addr CellAddress) bool {
	return e.stability != nil && e.stability.IsCellFinal(addr.WorksheetID, addr.Row, addr.Column)
}

func (e *Evaluator) isRangeFinal(r RangeAddress) bool {
	if e.stability == nil {
		return false
	}
	if sheets, ok := e.stability.(SheetStability); ok {
		return sheets.IsSheetFinal(r.WorksheetID)
	}
	for row := r.StartRow; row <= r.EndRow; row++ {
		for col := r.StartColumn; col <= r.EndColumn; col++ {
			if !e.stability.IsCellFinal(r.WorksheetID, row, col) {
				return false
			}
		}
	}
	return true
}

// evaluateCell returns the value of addr for use inside a running
// evaluation
func (e *Evaluator) evaluateCell(addr CellAddress) Value {
	if v, ok := e.cache.Get(addr); ok {
		return v
	}

	if e.stack.contains(addr) {
		e.logger.Warn("circular reference",
			slog.String("cell", e.cellName(addr)),
			slog.Int("length", len(e.stack.cycle(addr))))
		return NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("circular reference at %s", e.cellName(addr)))
	}
	if e.stack.depth() >= e.maxDepth {
		e.logger.Warn("formula nesting too deep",
			slog.String("cell", e.cellName(addr)),
			slog.Int("depth", e.stack.depth()))
		return NewSpreadsheetError(ErrorCodeRef, "formula nesting too deep")
	}

	raw := e.workbook.ReadCell(addr)
	if !raw.IsFormula() {
		// the cell may have held a formula before
		e.graph.Forget(addr)
		v := raw.Value
		if v == nil {
			v = Blank
		}
		e.cache.Set(addr, v)
		return v
	}

	e.stack.push(addr)
	defer e.stack.pop()

	// precedents are recorded afresh while the formula runs
	e.graph.Forget(addr)

	ec := &OperationContext{evaluator: e, cell: addr, record: true}
	result, err := e.run(ec, raw.Formula)
	if err != nil {
		if e.failure == nil {
			e.failure = e.wrapFailure(err, addr)
		}
		return ErrValue
	}

	v := ec.Dereference(result)
	if _, blank := v.(BlankValue); blank {
		v = Number(0)
	}
	if e.failure == nil {
		e.cache.Set(addr, v)
	}
	e.logger.Debug("evaluated cell",
		slog.String("cell", e.cellName(addr)),
		slog.String("kind", v.Kind().String()))
	return v
}

// run executes a formula on an operand stack
func (e *Evaluator) run(ec *OperationContext, f Formula) (Value, error) {
	stack := make([]Value, 0, 8)
	pop := func() Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for _, tok := range f {
		switch tok.Kind {
		case TokenNumber:
			stack = append(stack, Number(tok.Number))
		case TokenText:
			stack = append(stack, Text(tok.Text))
		case TokenBoolean:
			stack = append(stack, Boolean(tok.Bool))
		case TokenError:
			stack = append(stack, ErrorFor(tok.Error))
		case TokenMissing:
			stack = append(stack, Blank)
		case TokenRefError:
			stack = append(stack, ErrRef)
		case TokenArray:
			stack = append(stack, NewArray(tok.Array))
		case TokenRef, TokenArea, TokenName:
			stack = append(stack, ec.resolveReference(tok))

		case TokenUnary, TokenPostfix:
			if len(stack) < 1 {
				return nil, e.malformed(f)
			}
			fn, ok := UnaryOperator(tok.Op)
			if !ok {
				return nil, NewUnimplementedError("operator " + tok.Op.String())
			}
			operand := pop()
			if needsBroadcast(operand) {
				stack = append(stack, BroadcastUnary(operand, fn))
			} else {
				stack = append(stack, applyUnary(ec.Dereference(operand), fn))
			}

		case TokenBinary:
			if len(stack) < 2 {
				return nil, e.malformed(f)
			}
			right := pop()
			left := pop()
			v, err := ec.binary(tok.Op, left, right)
			if err != nil {
				return nil, err
			}
			stack = append(stack, v)

		case TokenFunction:
			if len(stack) < tok.Argc {
				return nil, e.malformed(f)
			}
			args := make([]Value, tok.Argc)
			copy(args, stack[len(stack)-tok.Argc:])
			stack = stack[:len(stack)-tok.Argc]
			v, err := e.functions.Call(ec, tok.Text, args)
			if err != nil {
				return nil, err
			}
			stack = append(stack, v)

		default:
			return nil, NewApplicationError(Internal, fmt.Sprintf("unknown token kind %d", tok.Kind))
		}
	}

	if len(stack) != 1 {
		return nil, e.malformed(f)
	}
	return stack[0], nil
}

func (e *Evaluator) malformed(f Formula) error {
	return NewApplicationError(Internal, fmt.Sprintf("malformed formula %q", f.String()))
}

// wrapFailure attaches the failing cell to a non-spreadsheet failure
func (e *Evaluator) wrapFailure(err error, addr CellAddress) error {
	var unimplemented *UnimplementedError
	if errors.As(err, &unimplemented) {
		if unimplemented.Cell == "" {
			unimplemented.Cell = e.cellName(addr)
		}
		e.logger.Warn("unimplemented",
			slog.String("cell", unimplemented.Cell),
			slog.String("function", unimplemented.Function))
		return unimplemented
	}
	return fmt.Errorf("error evaluating cell %s: %w", e.cellName(addr), err)
}

func (e *Evaluator) takeFailure() error {
	err := e.failure
	e.failure = nil
	return err
}

// cellName renders addr with its sheet name, e.g. "Sheet1!B3"
func (e *Evaluator) cellName(addr CellAddress) string {
	if name, ok := e.workbook.SheetName(addr.WorksheetID); ok {
		return name + "!" + addr.A1()
	}
	return addr.String()
}
