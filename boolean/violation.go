package boolean

import "fmt"

// ContractViolation is the panic value raised when the graph or an
// Evaluator is used in a way that can only result from a bug in the caller:
// mixing expressions from different generations, or assigning two different
// values to the same variable within one evaluation.
//
// It is never returned as an error.
type ContractViolation struct {
	Op     string
	Detail string
}

func (c *ContractViolation) Error() string {
	return "boolean: " + c.Op + ": " + c.Detail
}

func violate(op string, format string, args ...any) {
	panic(&ContractViolation{Op: op, Detail: fmt.Sprintf(format, args...)})
}
