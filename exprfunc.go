package formula

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprFunction is a custom function whose body is an expr program. the
// arguments are bound as arg1..argN and as the list args; numbers arrive as
// float64, text as string and booleans as bool.
type ExprFunction struct {
	name    string
	source  string
	program *vm.Program
	vmPool  sync.Pool
}

var exprCompilerOptions = []expr.Option{
	expr.Env(map[string]any{}),
	expr.AllowUndefinedVariables(),
}

// NewExprFunction compiles source and wraps it in a definition that can be
// registered like any built-in function
func NewExprFunction(name, source string, minArgs, maxArgs int) (FunctionDef, error) {
	program, err := expr.Compile(source, exprCompilerOptions...)
	if err != nil {
		return FunctionDef{}, NewApplicationError(InvalidArgument, fmt.Sprintf("function %s: %v", name, err))
	}

	fn := &ExprFunction{
		name:    functionKey(name),
		source:  source,
		program: program,
		vmPool: sync.Pool{
			New: func() any {
				return new(vm.VM)
			},
		},
	}
	return FunctionDef{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Args:    []ArgKind{ArgAny},
		Impl:    fn,
	}, nil
}

// Source returns the expression the function was compiled from
func (f *ExprFunction) Source() string {
	return f.source
}

func (f *ExprFunction) Evaluate(ec *OperationContext, args []Value) (Value, error) {
	env := make(map[string]any, len(args)+1)
	list := make([]any, len(args))
	for i, arg := range args {
		list[i] = toNative(arg)
		env["arg"+strconv.Itoa(i+1)] = list[i]
	}
	env["args"] = list

	v := f.vmPool.Get().(*vm.VM)
	out, err := v.Run(f.program, env)
	f.vmPool.Put(v)
	if err != nil {
		ec.Logger().Debug("custom function failed",
			"function", f.name,
			"error", err)
		return NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("%s: %v", f.name, err)), nil
	}
	return fromNative(out), nil
}

func toNative(v Value) any {
	switch x := v.(type) {
	case Number:
		return float64(x)
	case Text:
		return string(x)
	case Boolean:
		return bool(x)
	}
	return nil
}

func fromNative(out any) Value {
	switch x := out.(type) {
	case nil:
		return Blank
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ErrNum
		}
		return Number(x)
	case float32:
		return fromNative(float64(x))
	case int:
		return Number(x)
	case int64:
		return Number(x)
	case int32:
		return Number(x)
	case uint:
		return Number(x)
	case uint64:
		return Number(x)
	case string:
		return Text(x)
	case bool:
		return Boolean(x)
	}
	return NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("unsupported result type %T", out))
}
