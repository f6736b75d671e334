package formula

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Function is the calling convention shared by built-in and custom
// functions. args arrive already coerced according to the definition's
// ArgKinds. the returned error is reserved for failures that are not
// spreadsheet errors, such as ErrUnimplemented.
type Function interface {
	Evaluate(ec *OperationContext, args []Value) (Value, error)
}

// FunctionFunc adapts an ordinary function to the Function interface
type FunctionFunc func(ec *OperationContext, args []Value) (Value, error)

func (f FunctionFunc) Evaluate(ec *OperationContext, args []Value) (Value, error) {
	return f(ec, args)
}

// ArgKind declares how an argument is coerced before the function runs
type ArgKind uint8

const (
	ArgAny       ArgKind = iota // dereferenced scalar, not coerced
	ArgNumber                   // Number or error
	ArgText                     // Text or error
	ArgBoolean                  // Boolean or error
	ArgNumbers                  // raw value, flattened by the function
	ArgReference                // raw value, references kept intact
)

func (k ArgKind) scalar() bool {
	return k <= ArgBoolean
}

// FunctionDef describes a registered function
type FunctionDef struct {
	Name    string
	MinArgs int
	MaxArgs int       // -1 for variadic
	Args    []ArgKind // per position; the last kind repeats for extra arguments
	// Volatile functions are re-evaluated at the start of every batch
	Volatile bool
	// PassErrors hands error arguments to Impl instead of returning the
	// left-most one (IF, IFERROR, IS* functions)
	PassErrors bool
	Impl       Function
}

func (def *FunctionDef) argKind(i int) ArgKind {
	if len(def.Args) == 0 {
		return ArgAny
	}
	if i < len(def.Args) {
		return def.Args[i]
	}
	return def.Args[len(def.Args)-1]
}

func (def *FunctionDef) validate() {
	switch {
	case def.Name == "":
		panic("formula: function without a name")
	case def.Impl == nil:
		panic(fmt.Sprintf("formula: function %s has no implementation", def.Name))
	case def.MinArgs < 0:
		panic(fmt.Sprintf("formula: function %s has negative MinArgs", def.Name))
	case def.MaxArgs != -1 && def.MaxArgs < def.MinArgs:
		panic(fmt.Sprintf("formula: function %s has MaxArgs %d < MinArgs %d", def.Name, def.MaxArgs, def.MinArgs))
	case def.MaxArgs != -1 && len(def.Args) > def.MaxArgs:
		panic(fmt.Sprintf("formula: function %s declares %d argument kinds for at most %d arguments", def.Name, len(def.Args), def.MaxArgs))
	}
}

// Registry holds functions by upper-cased name. it is safe for concurrent
// use; registrations are usually done once at startup.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]*FunctionDef
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{functions: make(map[string]*FunctionDef)}
}

// NewBuiltinRegistry creates a registry holding the built-in library
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtinFunctions() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

func functionKey(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.TrimPrefix(name, "_XLFN.")
}

// Register adds a function. a malformed definition panics; a duplicate
// name returns an AlreadyExists AppError.
func (r *Registry) Register(def FunctionDef) error {
	def.validate()
	key := functionKey(def.Name)
	def.Name = key

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[key]; exists {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("function %s already registered", key))
	}
	r.functions[key] = &def
	return nil
}

// Replace registers def, overwriting any function with the same name
func (r *Registry) Replace(def FunctionDef) {
	def.validate()
	key := functionKey(def.Name)
	def.Name = key

	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[key] = &def
}

// Lookup finds a function by name, ignoring case and the _xlfn. prefix
func (r *Registry) Lookup(name string) (*FunctionDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, exists := r.functions[functionKey(name)]
	return def, exists
}

// Names returns the sorted names of all registered functions
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Call dispatches a function call: lookup, arity check, argument
// coercion, left-most error short-circuit, then the implementation.
func (r *Registry) Call(ec *OperationContext, name string, args []Value) (Value, error) {
	def, exists := r.Lookup(name)
	if !exists {
		return NewSpreadsheetError(ErrorCodeName, fmt.Sprintf("unknown function: %s", name)), nil
	}
	if len(args) < def.MinArgs || (def.MaxArgs >= 0 && len(args) > def.MaxArgs) {
		return NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("%s: wrong number of arguments (%d)", def.Name, len(args))), nil
	}
	if def.Volatile {
		ec.MarkVolatile()
	}

	coerced := make([]Value, len(args))
	for i, arg := range args {
		coerced[i] = coerceArg(ec, def.argKind(i), arg)
	}

	if !def.PassErrors {
		// a scalar error ends the call with the left-most error value, which
		// may sit in an earlier reference or list argument
		var first *SpreadsheetError
		for i, arg := range coerced {
			err, ok := arg.(*SpreadsheetError)
			if !ok {
				continue
			}
			if first == nil {
				first = err
			}
			if def.argKind(i).scalar() {
				return first, nil
			}
		}
	}

	result, err := def.Impl.Evaluate(ec, coerced)
	if err != nil {
		var unimplemented *UnimplementedError
		if errors.As(err, &unimplemented) && unimplemented.Function == "" {
			unimplemented.Function = def.Name
		}
		return nil, err
	}
	if result == nil {
		return Blank, nil
	}
	return result, nil
}

func coerceArg(ec *OperationContext, kind ArgKind, arg Value) Value {
	switch kind {
	case ArgNumbers, ArgReference:
		return arg
	}

	v := ec.Dereference(arg)
	switch kind {
	case ArgNumber:
		num, err := ToNumber(v)
		if err != nil {
			return err
		}
		return Number(num)
	case ArgText:
		text, err := ToText(v)
		if err != nil {
			return err
		}
		return Text(text)
	case ArgBoolean:
		b, err := ToBoolean(v)
		if err != nil {
			return err
		}
		return Boolean(b)
	}
	return v
}

// unimplemented returns a Function that always fails with
// ErrUnimplemented
func unimplemented(name string) Function {
	return FunctionFunc(func(*OperationContext, []Value) (Value, error) {
		return nil, NewUnimplementedError(name)
	})
}
