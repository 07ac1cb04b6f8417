// Package arith implements the arithmetic operations exposed by calcd.
package arith

import (
	"math"
	"strings"

	"github.com/tracklet-io/tracklet/internal/apperr"
)

// Operation names accepted by Compute.
const (
	OpSum  = "sum"
	OpDiff = "diff"
	OpMult = "mult"
	OpDiv  = "div"
	OpPwr  = "pwr"
	OpRoot = "root"
)

var validOps = []string{OpSum, OpDiff, OpMult, OpDiv, OpPwr, OpRoot}

// Compute applies the named operation to two operands. Persistence is
// the caller's concern; this function only calculates.
func Compute(a, b float64, op string) (float64, error) {
	const opName = "arith.Compute"

	switch op {
	case OpSum:
		return a + b, nil
	case OpDiff:
		return a - b, nil
	case OpMult:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, apperr.Validation(opName, "division by zero is not allowed")
		}
		return a / b, nil
	case OpPwr:
		return math.Pow(a, b), nil
	case OpRoot:
		return root(a, b)
	default:
		return 0, apperr.Validationf(opName,
			"unknown operation %q, valid operations: %s", op, strings.Join(validOps, ", "))
	}
}

// root computes the b-th root of a. Negative bases are only real-valued
// for odd integer degrees, so non-integer and even degrees are rejected
// outright rather than returning NaN.
func root(a, b float64) (float64, error) {
	const opName = "arith.Compute"

	if b == 0 {
		return 0, apperr.Validation(opName, "zeroth root is undefined")
	}
	if a < 0 {
		if b != math.Trunc(b) {
			return 0, apperr.Validation(opName,
				"root of a negative base requires an integer degree")
		}
		if int64(b)%2 == 0 {
			return 0, apperr.Validation(opName,
				"even root of a negative base is not real-valued")
		}
		return -math.Pow(-a, 1/b), nil
	}
	return math.Pow(a, 1/b), nil
}
