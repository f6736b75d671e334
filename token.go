package formula

import (
	"strconv"
	"strings"
)

// TokenKind identifies a formula token (the parsed unit of a formula,
// in reverse polish order)
type TokenKind uint8

const (
	TokenNumber   TokenKind = iota // numeric literal
	TokenText                      // string literal
	TokenBoolean                   // TRUE/FALSE literal
	TokenError                     // error literal, e.g. #N/A
	TokenMissing                   // omitted function argument
	TokenRef                       // single-cell reference
	TokenArea                      // area reference
	TokenName                      // named range
	TokenArray                     // array literal {1,2;3,4}
	TokenRefError                  // reference to a deleted cell or sheet
	TokenUnary                     // prefix operator
	TokenPostfix                   // postfix operator (percent)
	TokenBinary                    // infix operator
	TokenFunction                  // function call with Argc operands
)

// Operator enumerates unary, postfix and binary operators
type Operator uint8

const (
	OpAdd Operator = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpPower
	OpConcat
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpRange     // A1:B2 between two references
	OpIntersect // space between two references
	OpUnion     // comma between references inside parentheses
	OpNegate
	OpPlus
	OpPercent
)

var operatorSymbols = map[Operator]string{
	OpAdd:          "+",
	OpSubtract:     "-",
	OpMultiply:     "*",
	OpDivide:       "/",
	OpPower:        "^",
	OpConcat:       "&",
	OpEqual:        "=",
	OpNotEqual:     "<>",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpRange:        ":",
	OpIntersect:    " ",
	OpUnion:        ",",
	OpNegate:       "-",
	OpPlus:         "+",
	OpPercent:      "%",
}

func (op Operator) String() string {
	return operatorSymbols[op]
}

// Token is a single operand or operator of a compiled formula.
// coordinates are absolute and zero-based; Sheet 0 refers to the sheet
// of the evaluating cell.
type Token struct {
	Kind TokenKind

	Number float64
	Text   string // text literal, name, function name, or sheet name for rendering
	Bool   bool
	Error  ErrorCode

	Sheet  uint32
	Row    uint32
	Col    uint32
	Row2   uint32
	Col2   uint32
	RowAbs bool // rendering only
	ColAbs bool // rendering only

	Op   Operator
	Argc int

	Array [][]Value
}

// Formula is a compiled formula in reverse polish order
type Formula []Token

// Volatile reports whether the formula calls a volatile function
func (f Formula) Volatile(functions *Registry) bool {
	for _, tok := range f {
		if tok.Kind != TokenFunction {
			continue
		}
		if def, ok := functions.Lookup(tok.Text); ok && def.Volatile {
			return true
		}
	}
	return false
}

// String renders the formula back to infix text (without the leading =)
func (f Formula) String() string {
	var stack []string
	pop := func() string {
		if len(stack) == 0 {
			return ""
		}
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return s
	}

	for _, tok := range f {
		switch tok.Kind {
		case TokenUnary:
			stack = append(stack, tok.Op.String()+pop())
		case TokenPostfix:
			stack = append(stack, pop()+tok.Op.String())
		case TokenBinary:
			right := pop()
			left := pop()
			if tok.Op == OpRange || tok.Op == OpIntersect {
				stack = append(stack, left+tok.Op.String()+right)
			} else {
				stack = append(stack, "("+left+tok.Op.String()+right+")")
			}
		case TokenFunction:
			args := make([]string, tok.Argc)
			for i := tok.Argc - 1; i >= 0; i-- {
				args[i] = pop()
			}
			stack = append(stack, tok.Text+"("+strings.Join(args, ",")+")")
		default:
			stack = append(stack, tok.operandString())
		}
	}
	return strings.Join(stack, " ")
}

func (tok Token) operandString() string {
	switch tok.Kind {
	case TokenNumber:
		return formatNumber(tok.Number)
	case TokenText:
		return `"` + strings.ReplaceAll(tok.Text, `"`, `""`) + `"`
	case TokenBoolean:
		return Boolean(tok.Bool).String()
	case TokenError:
		return tok.Error.String()
	case TokenMissing:
		return ""
	case TokenRefError:
		return "#REF!"
	case TokenName:
		return tok.Text
	case TokenRef:
		return tok.sheetPrefix() + tok.cellString(tok.Row, tok.Col)
	case TokenArea:
		return tok.sheetPrefix() + tok.cellString(tok.Row, tok.Col) + ":" + tok.cellString(tok.Row2, tok.Col2)
	case TokenArray:
		rows := make([]string, len(tok.Array))
		for i, row := range tok.Array {
			cols := make([]string, len(row))
			for j, v := range row {
				if t, ok := v.(Text); ok {
					cols[j] = `"` + strings.ReplaceAll(string(t), `"`, `""`) + `"`
				} else {
					cols[j] = valueString(v)
				}
			}
			rows[i] = strings.Join(cols, ",")
		}
		return "{" + strings.Join(rows, ";") + "}"
	}
	return "?"
}

func (tok Token) sheetPrefix() string {
	if tok.Text == "" {
		return ""
	}
	if strings.ContainsAny(tok.Text, " '!-") {
		return "'" + strings.ReplaceAll(tok.Text, "'", "''") + "'!"
	}
	return tok.Text + "!"
}

func (tok Token) cellString(row, col uint32) string {
	var b strings.Builder
	if tok.ColAbs {
		b.WriteByte('$')
	}
	b.WriteString(ColumnName(col))
	if tok.RowAbs {
		b.WriteByte('$')
	}
	b.WriteString(strconv.FormatUint(uint64(row)+1, 10))
	return b.String()
}

// valueString renders a scalar for display
func valueString(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *SpreadsheetError:
		return x.ErrorCode.String()
	case interface{ String() string }:
		return x.String()
	}
	return "?"
}
