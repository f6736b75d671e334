package formula

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxTextLength = 32767

func textFunctions() []FunctionDef {
	return []FunctionDef{
		{
			Name:    "CONCATENATE",
			MinArgs: 1,
			MaxArgs: -1,
			Args:    []ArgKind{ArgText},
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				var sb strings.Builder
				for _, arg := range args {
					sb.WriteString(string(arg.(Text)))
				}
				return checkLength(sb.String()), nil
			}),
		},
		text1("LEN", func(s string) Value { return Number(utf8.RuneCountInString(s)) }),
		text1("UPPER", func(s string) Value { return Text(cases.Upper(language.Und).String(s)) }),
		text1("LOWER", func(s string) Value { return Text(cases.Lower(language.Und).String(s)) }),
		text1("PROPER", func(s string) Value { return Text(proper(s)) }),
		text1("TRIM", func(s string) Value { return Text(strings.Join(strings.Fields(s), " ")) }),
		{
			Name:    "LEFT",
			MinArgs: 1,
			MaxArgs: 2,
			Args:    []ArgKind{ArgText, ArgNumber},
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				runes := []rune(string(args[0].(Text)))
				n, err := charCount(optNumber(args, 1, 1))
				if err != nil {
					return err, nil
				}
				return Text(runes[:min(n, len(runes))]), nil
			}),
		},
		{
			Name:    "RIGHT",
			MinArgs: 1,
			MaxArgs: 2,
			Args:    []ArgKind{ArgText, ArgNumber},
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				runes := []rune(string(args[0].(Text)))
				n, err := charCount(optNumber(args, 1, 1))
				if err != nil {
					return err, nil
				}
				return Text(runes[len(runes)-min(n, len(runes)):]), nil
			}),
		},
		fixed("MID", []ArgKind{ArgText, ArgNumber, ArgNumber}, func(_ *OperationContext, args []Value) (Value, error) {
			runes := []rune(string(args[0].(Text)))
			start := math.Trunc(num(args[1]))
			if start < 1 {
				return ErrValue, nil
			}
			n, err := charCount(num(args[2]))
			if err != nil {
				return err, nil
			}
			if start > float64(len(runes)) {
				return Text(""), nil
			}
			from := int(start) - 1
			return Text(runes[from:min(from+n, len(runes))]), nil
		}),
		fixed("EXACT", []ArgKind{ArgText, ArgText}, func(_ *OperationContext, args []Value) (Value, error) {
			return Boolean(args[0].(Text) == args[1].(Text)), nil
		}),
		fixed("REPT", []ArgKind{ArgText, ArgNumber}, func(_ *OperationContext, args []Value) (Value, error) {
			s := string(args[0].(Text))
			times := math.Trunc(num(args[1]))
			if times < 0 {
				return ErrValue, nil
			}
			if times*float64(utf8.RuneCountInString(s)) > maxTextLength {
				return ErrValue, nil
			}
			return Text(strings.Repeat(s, int(times))), nil
		}),
		fixed("VALUE", []ArgKind{ArgAny}, func(_ *OperationContext, args []Value) (Value, error) {
			switch x := args[0].(type) {
			case Number:
				return x, nil
			case BlankValue:
				return Number(0), nil
			case Text:
				return parseValue(string(x)), nil
			}
			return ErrValue, nil
		}),
	}
}

// text1 builds a function of one text argument
func text1(name string, fn func(s string) Value) FunctionDef {
	return fixed(name, []ArgKind{ArgText}, func(_ *OperationContext, args []Value) (Value, error) {
		return fn(string(args[0].(Text))), nil
	})
}

// charCount validates a character count argument
func charCount(n float64) (int, *SpreadsheetError) {
	n = math.Trunc(n)
	if n < 0 {
		return 0, ErrValue
	}
	return int(min(n, maxTextLength)), nil
}

func checkLength(s string) Value {
	if utf8.RuneCountInString(s) > maxTextLength {
		return ErrValue
	}
	return Text(s)
}

// proper upper-cases the first letter of every word and lower-cases the
// rest. any non-letter starts a new word.
func proper(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	wordStart := true
	for _, r := range s {
		if unicode.IsLetter(r) {
			if wordStart {
				sb.WriteRune(unicode.ToUpper(r))
			} else {
				sb.WriteRune(unicode.ToLower(r))
			}
			wordStart = false
			continue
		}
		sb.WriteRune(r)
		wordStart = true
	}
	return sb.String()
}

// parseValue converts text to a number, accepting a trailing percent sign.
// booleans written as text are not numbers here.
func parseValue(s string) Value {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	if percent {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	switch strings.ToUpper(s) {
	case "TRUE", "FALSE":
		return ErrValue
	}
	n, ok := parseNumericText(s)
	if !ok {
		return ErrValue
	}
	if percent {
		n /= 100
	}
	return Number(n)
}
