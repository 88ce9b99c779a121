package variables

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errIncomparable = errors.New("operands are not comparable")

// compare applies a binary comparison operator. Numeric operands compare
// numerically; two strings compare lexicographically. Ordering a string
// against a number is an error, which Evaluate turns into false. A string
// that happens to hold digits is NOT promoted to a number.
func compare(left any, op string, right any) (bool, error) {
	lnum, lok := asNumber(left)
	rnum, rok := asNumber(right)

	switch op {
	case "==", "!=":
		equal := false

		switch {
		case lok && rok:
			equal = lnum == rnum
		default:
			equal = fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right) && sameKind(left, right)
		}

		if op == "!=" {
			return !equal, nil
		}

		return equal, nil

	case "<", "<=", ">", ">=":
		if lok && rok {
			return orderNumbers(lnum, op, rnum), nil
		}

		lstr, lIsStr := left.(string)
		rstr, rIsStr := right.(string)

		if lIsStr && rIsStr {
			return orderStrings(lstr, op, rstr), nil
		}

		return false, errIncomparable

	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

// asNumber accepts only genuinely numeric values. Numeric strings stay
// strings.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

// sameKind guards equality across types: "17" never equals 17.
func sameKind(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	_, lIsStr := left.(string)
	_, rIsStr := right.(string)
	_, lIsBool := left.(bool)
	_, rIsBool := right.(bool)

	return lIsStr == rIsStr && lIsBool == rIsBool
}

func orderNumbers(left float64, op string, right float64) bool {
	switch op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	default:
		return left >= right
	}
}

func orderStrings(left, op, right string) bool {
	switch op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	default:
		return left >= right
	}
}

func encodeValue(value any) (string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value), err
	}

	return string(encoded), nil
}
