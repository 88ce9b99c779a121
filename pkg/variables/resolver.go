package variables

import (
	"regexp"
	"strconv"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Resolve replaces every {{dotted.path}} occurrence in template with the
// stringified value found in the bag. A path that cannot be resolved leaves
// the original token untouched; Resolve never fails, so one bad reference
// does not abort step execution.
func Resolve(template string, bag *Bag) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]

		value, ok := bag.Get(path)
		if !ok {
			return token
		}

		return Stringify(value)
	})
}

// Stringify renders a variable value the way it appears in interpolated
// text. Integral floats print without a trailing fraction so JSON-decoded
// numbers read naturally.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, _ := encodeValue(v)

		return encoded
	}
}

// comparison operators in scan order; two-character operators first so
// "<=" is not mis-split as "<".
var operators = []string{"==", "!=", "<=", ">=", "<", ">"}

// Evaluate evaluates a single binary comparison "LHS OP RHS" against the
// bag, after interpolating {{...}} tokens. A string with no operator is
// coerced by the truthiness rule. Evaluation fails closed: any internal
// error yields false, so a condition step always deterministically picks a
// branch.
func Evaluate(condition string, bag *Bag) bool {
	resolved := strings.TrimSpace(Resolve(condition, bag))
	if resolved == "" {
		return false
	}

	for _, op := range operators {
		idx := strings.Index(resolved, op)
		if idx < 0 {
			continue
		}

		left := resolveOperand(strings.TrimSpace(resolved[:idx]), bag)
		right := resolveOperand(strings.TrimSpace(resolved[idx+len(op):]), bag)

		result, err := compare(left, op, right)
		if err != nil {
			return false
		}

		return result
	}

	return Truthy(resolved)
}

// Truthy implements the boolean coercion rule for operator-less conditions:
// empty string, "false", "none", "null" and "0" are false (case
// insensitive), everything else is true.
func Truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "none", "null", "0":
		return false
	default:
		return true
	}
}

// resolveOperand resolves an operand against the bag by exact path match,
// else parses it as a literal.
func resolveOperand(operand string, bag *Bag) any {
	if value, ok := bag.Get(operand); ok {
		return value
	}

	return parseLiteral(operand)
}

func parseLiteral(raw string) any {
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return raw[1 : len(raw)-1]
		}
	}

	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	case "none", "null":
		return nil
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}

	return raw
}
