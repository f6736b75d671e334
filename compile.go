package formula

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/efp"
)

// ErrInvalidFormula is wrapped by every Compile failure
var ErrInvalidFormula = errors.New("invalid formula")

// SheetResolver maps the sheet names used in references to worksheet ids
type SheetResolver interface {
	SheetID(name string) (uint32, bool)
}

// Compile parses formula text (with or without the leading '=') into a
// Formula in reverse polish order. references to unknown sheets compile to
// #REF!; names that are not references compile to named-range lookups.
func Compile(text string, sheets SheetResolver) (Formula, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "=")
	if text == "" {
		return nil, fmt.Errorf("%w: empty formula", ErrInvalidFormula)
	}

	ps := efp.ExcelParser()
	tokens := ps.Parse(text)
	// the tokenizer reports the '=' it prepends as a comparison
	if len(tokens) > 0 && tokens[0].TType == efp.TokenTypeOperatorInfix && tokens[0].TValue == "=" {
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormula, text)
	}

	c := &compiler{tokens: tokens, sheets: sheets}
	if err := c.parseComparison(); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFormula, text, err)
	}
	if c.pos < len(c.tokens) {
		return nil, fmt.Errorf("%w: %q: unexpected %q", ErrInvalidFormula, text, c.tokens[c.pos].TValue)
	}
	return c.out, nil
}

// compiler is a recursive-descent pass over efp tokens. each level handles
// one precedence tier and appends its operators after its operands.
type compiler struct {
	tokens []efp.Token
	pos    int
	sheets SheetResolver
	out    Formula
}

func (c *compiler) peek() (efp.Token, bool) {
	if c.pos >= len(c.tokens) {
		return efp.Token{}, false
	}
	return c.tokens[c.pos], true
}

func (c *compiler) next() (efp.Token, error) {
	tok, ok := c.peek()
	if !ok {
		return efp.Token{}, errors.New("unexpected end of formula")
	}
	c.pos++
	return tok, nil
}

func (c *compiler) emit(tok Token) {
	c.out = append(c.out, tok)
}

var comparisonOps = map[string]Operator{
	"=":  OpEqual,
	"<>": OpNotEqual,
	"<":  OpLess,
	"<=": OpLessEqual,
	">":  OpGreater,
	">=": OpGreaterEqual,
}

// binaryLevel parses left-associative operators of one tier
func (c *compiler) binaryLevel(ops map[string]Operator, operand func() error) error {
	if err := operand(); err != nil {
		return err
	}
	for {
		tok, ok := c.peek()
		if !ok || tok.TType != efp.TokenTypeOperatorInfix {
			return nil
		}
		op, found := ops[tok.TValue]
		if !found {
			return nil
		}
		c.pos++
		if err := operand(); err != nil {
			return err
		}
		c.emit(Token{Kind: TokenBinary, Op: op})
	}
}

// parseComparison handles comparison operators (lowest precedence)
func (c *compiler) parseComparison() error {
	return c.binaryLevel(comparisonOps, c.parseConcatenation)
}

func (c *compiler) parseConcatenation() error {
	return c.binaryLevel(map[string]Operator{"&": OpConcat}, c.parseAddition)
}

func (c *compiler) parseAddition() error {
	return c.binaryLevel(map[string]Operator{"+": OpAdd, "-": OpSubtract}, c.parseMultiplication)
}

func (c *compiler) parseMultiplication() error {
	return c.binaryLevel(map[string]Operator{"*": OpMultiply, "/": OpDivide}, c.parsePower)
}

// parsePower is left-associative: 2^3^2 is 64
func (c *compiler) parsePower() error {
	return c.binaryLevel(map[string]Operator{"^": OpPower}, c.parsePercent)
}

func (c *compiler) parsePercent() error {
	if err := c.parseUnary(); err != nil {
		return err
	}
	for {
		tok, ok := c.peek()
		if !ok || tok.TType != efp.TokenTypeOperatorPostfix {
			return nil
		}
		c.pos++
		c.emit(Token{Kind: TokenPostfix, Op: OpPercent})
	}
}

// parseUnary binds tighter than ^, so -2^2 is 4
func (c *compiler) parseUnary() error {
	tok, ok := c.peek()
	if ok && tok.TType == efp.TokenTypeOperatorPrefix {
		c.pos++
		if err := c.parseUnary(); err != nil {
			return err
		}
		c.emit(Token{Kind: TokenUnary, Op: OpNegate})
		return nil
	}
	return c.parseIntersection()
}

func (c *compiler) parseIntersection() error {
	if err := c.parsePrimary(); err != nil {
		return err
	}
	for {
		tok, ok := c.peek()
		if !ok || tok.TType != efp.TokenTypeOperatorInfix || tok.TSubType != efp.TokenSubTypeIntersection {
			return nil
		}
		c.pos++
		if err := c.parsePrimary(); err != nil {
			return err
		}
		c.emit(Token{Kind: TokenBinary, Op: OpIntersect})
	}
}

func (c *compiler) parsePrimary() error {
	tok, err := c.next()
	if err != nil {
		return err
	}

	switch tok.TType {
	case efp.TokenTypeOperand:
		return c.operand(tok)
	case efp.TokenTypeSubexpression:
		if tok.TSubType != efp.TokenSubTypeStart {
			return errors.New("unbalanced parenthesis")
		}
		return c.subexpression()
	case efp.TokenTypeFunction:
		if tok.TSubType != efp.TokenSubTypeStart {
			return errors.New("unbalanced parenthesis")
		}
		if tok.TValue == "ARRAY" {
			return c.array()
		}
		return c.function(tok.TValue)
	}
	return fmt.Errorf("unexpected %q", tok.TValue)
}

// subexpression parses "( expr [, expr]... )"; commas here are the union
// operator
func (c *compiler) subexpression() error {
	if err := c.parseComparison(); err != nil {
		return err
	}
	for {
		tok, err := c.next()
		if err != nil {
			return err
		}
		switch {
		case tok.TType == efp.TokenTypeSubexpression && tok.TSubType == efp.TokenSubTypeStop:
			return nil
		case tok.TType == efp.TokenTypeOperatorInfix && tok.TSubType == efp.TokenSubTypeUnion:
			if err := c.parseComparison(); err != nil {
				return err
			}
			c.emit(Token{Kind: TokenBinary, Op: OpUnion})
		default:
			return fmt.Errorf("unexpected %q", tok.TValue)
		}
	}
}

func isFunctionStop(tok efp.Token) bool {
	return tok.TType == efp.TokenTypeFunction && tok.TSubType == efp.TokenSubTypeStop
}

// function parses the arguments of a call. an empty argument compiles to
// a missing-argument token.
func (c *compiler) function(name string) error {
	name = strings.ToUpper(name)
	if tok, ok := c.peek(); ok && isFunctionStop(tok) {
		c.pos++
		c.emit(Token{Kind: TokenFunction, Text: name})
		return nil
	}

	argc := 0
	for {
		tok, ok := c.peek()
		if !ok {
			return fmt.Errorf("missing ')' after %s arguments", name)
		}
		if tok.TType == efp.TokenTypeArgument || isFunctionStop(tok) {
			c.emit(Token{Kind: TokenMissing})
		} else if err := c.parseComparison(); err != nil {
			return err
		}
		argc++

		tok, err := c.next()
		if err != nil {
			return fmt.Errorf("missing ')' after %s arguments", name)
		}
		switch {
		case isFunctionStop(tok):
			c.emit(Token{Kind: TokenFunction, Text: name, Argc: argc})
			return nil
		case tok.TType == efp.TokenTypeArgument:
		default:
			return fmt.Errorf("unexpected %q in %s arguments", tok.TValue, name)
		}
	}
}

// array parses a constant array. the tokenizer delivers {1,2;3,4} as
// ARRAY(ARRAYROW(1,2),ARRAYROW(3,4)).
func (c *compiler) array() error {
	var grid [][]Value
	for {
		tok, err := c.next()
		if err != nil {
			return err
		}
		if isFunctionStop(tok) {
			break
		}
		if tok.TType == efp.TokenTypeArgument {
			continue
		}
		if tok.TType != efp.TokenTypeFunction || tok.TValue != "ARRAYROW" {
			return fmt.Errorf("unexpected %q in array", tok.TValue)
		}
		row, err := c.arrayRow()
		if err != nil {
			return err
		}
		if len(grid) > 0 && len(row) != len(grid[0]) {
			return errors.New("array rows differ in length")
		}
		grid = append(grid, row)
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		return errors.New("empty array")
	}
	c.emit(Token{Kind: TokenArray, Array: grid})
	return nil
}

func (c *compiler) arrayRow() ([]Value, error) {
	var row []Value
	negate := false
	for {
		tok, err := c.next()
		if err != nil {
			return nil, err
		}
		switch {
		case isFunctionStop(tok):
			return row, nil
		case tok.TType == efp.TokenTypeArgument:
		case tok.TType == efp.TokenTypeOperatorPrefix:
			negate = !negate
		case tok.TType == efp.TokenTypeOperand:
			v, err := constant(tok)
			if err != nil {
				return nil, err
			}
			if negate {
				n, ok := v.(Number)
				if !ok {
					return nil, fmt.Errorf("cannot negate %q in array", tok.TValue)
				}
				v, negate = -n, false
			}
			row = append(row, v)
		default:
			return nil, fmt.Errorf("unexpected %q in array", tok.TValue)
		}
	}
}

// constant converts a literal operand
func constant(tok efp.Token) (Value, error) {
	switch tok.TSubType {
	case efp.TokenSubTypeNumber:
		n, err := strconv.ParseFloat(tok.TValue, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", tok.TValue)
		}
		return Number(n), nil
	case efp.TokenSubTypeText:
		return Text(tok.TValue), nil
	case efp.TokenSubTypeLogical:
		return Boolean(tok.TValue == "TRUE"), nil
	case efp.TokenSubTypeError:
		code, ok := ParseErrorCode(tok.TValue)
		if !ok {
			return nil, fmt.Errorf("unsupported error literal %s", tok.TValue)
		}
		return ErrorFor(code), nil
	}
	return nil, fmt.Errorf("%q is not a constant", tok.TValue)
}

func (c *compiler) operand(tok efp.Token) error {
	if tok.TSubType != efp.TokenSubTypeRange {
		v, err := constant(tok)
		if err != nil {
			return err
		}
		switch x := v.(type) {
		case Number:
			c.emit(Token{Kind: TokenNumber, Number: float64(x)})
		case Text:
			c.emit(Token{Kind: TokenText, Text: string(x)})
		case Boolean:
			c.emit(Token{Kind: TokenBoolean, Bool: bool(x)})
		case *SpreadsheetError:
			c.emit(Token{Kind: TokenError, Error: x.ErrorCode})
		}
		return nil
	}

	switch strings.ToUpper(tok.TValue) {
	case "TRUE":
		c.emit(Token{Kind: TokenBoolean, Bool: true})
		return nil
	case "FALSE":
		c.emit(Token{Kind: TokenBoolean, Bool: false})
		return nil
	}

	ref, err := c.reference(tok.TValue)
	if err != nil {
		return err
	}
	c.emit(ref)
	return nil
}

// reference compiles "A1", "$A$1:B2", "Sheet1!A1", "A:A", "1:3" or a
// defined name
func (c *compiler) reference(text string) (Token, error) {
	sheetName, rest := SplitSheetPrefix(text)
	var sheet uint32
	if sheetName != "" {
		id, ok := c.lookupSheet(sheetName)
		if !ok {
			return Token{Kind: TokenRefError, Text: sheetName}, nil
		}
		sheet = id
	}

	if strings.EqualFold(rest, "#REF!") {
		return Token{Kind: TokenRefError, Text: sheetName}, nil
	}

	start, end, isRange := strings.Cut(rest, ":")
	if !isRange {
		row, col, rowAbs, colAbs, ok := parseCellToken(rest)
		if ok {
			return Token{Kind: TokenRef, Sheet: sheet, Text: sheetName, Row: row, Col: col, RowAbs: rowAbs, ColAbs: colAbs}, nil
		}
		if sheetName == "" && isName(rest) {
			return Token{Kind: TokenName, Text: rest}, nil
		}
		return Token{}, fmt.Errorf("invalid reference %q", text)
	}

	row, col, rowAbs, colAbs, ok1 := parseCellToken(start)
	row2, col2, _, _, ok2 := parseCellToken(end)
	if !ok1 || !ok2 {
		// whole columns (A:C) or whole rows (1:3)
		var ok bool
		row, col, row2, col2, ok = parseLineRange(start, end)
		if !ok {
			return Token{}, fmt.Errorf("invalid range %q", text)
		}
	}
	bounds := NewRangeAddress(sheet, row, col, row2, col2)
	return Token{
		Kind:   TokenArea,
		Sheet:  sheet,
		Text:   sheetName,
		Row:    bounds.StartRow,
		Col:    bounds.StartColumn,
		Row2:   bounds.EndRow,
		Col2:   bounds.EndColumn,
		RowAbs: rowAbs,
		ColAbs: colAbs,
	}, nil
}

func (c *compiler) lookupSheet(name string) (uint32, bool) {
	if c.sheets == nil {
		return 0, false
	}
	return c.sheets.SheetID(name)
}

// parseCellToken parses an A1 reference, reporting the $ markers
func parseCellToken(s string) (row, col uint32, rowAbs, colAbs bool, ok bool) {
	if s == "" {
		return 0, 0, false, false, false
	}
	colAbs = s[0] == '$'
	letters := strings.TrimLeft(s, "$")
	i := strings.IndexFunc(letters, func(r rune) bool { return !isASCIILetter(r) })
	if i <= 0 {
		return 0, 0, false, false, false
	}
	rowAbs = letters[i] == '$'
	col, row, err := ParseCellAddress(letters)
	if err != nil || col >= maxColumns || row >= maxRows {
		return 0, 0, false, false, false
	}
	return row, col, rowAbs, colAbs, true
}

// parseLineRange parses whole-column and whole-row ranges
func parseLineRange(start, end string) (row, col, row2, col2 uint32, ok bool) {
	start, end = strings.ReplaceAll(start, "$", ""), strings.ReplaceAll(end, "$", "")
	if c1, ok1 := columnIndex(start); ok1 {
		c2, ok2 := columnIndex(end)
		return 0, c1, maxRows - 1, c2, ok2
	}
	r1, err1 := strconv.ParseUint(start, 10, 32)
	r2, err2 := strconv.ParseUint(end, 10, 32)
	if err1 != nil || err2 != nil || r1 < 1 || r2 < 1 || r1 > maxRows || r2 > maxRows {
		return 0, 0, 0, 0, false
	}
	return uint32(r1 - 1), 0, uint32(r2 - 1), maxColumns - 1, true
}

func columnIndex(s string) (uint32, bool) {
	if s == "" || len(s) > 3 {
		return 0, false
	}
	var col uint32
	for _, r := range strings.ToUpper(s) {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
		col = col*26 + uint32(r-'A') + 1
	}
	if col > maxColumns {
		return 0, false
	}
	return col - 1, true
}

func isASCIILetter(r rune) bool {
	return r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z'
}

// isName accepts identifiers made of letters, digits, '_' and '.',
// starting with a letter or '_'
func isName(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case i > 0 && (unicode.IsDigit(r) || r == '.'):
		default:
			return false
		}
	}
	return s != ""
}
