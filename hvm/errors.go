package hvm

import "errors"

var (
	ErrTooManyNames   = errors.New("hvm: exceeded maximum number of interned names")
	ErrArityMismatch  = errors.New("hvm: constructor/function used with the wrong arity")
	ErrUndefinedFunc  = errors.New("hvm: call to an undeclared function")
	ErrMalformedRule  = errors.New("hvm: rule left-hand side is not a valid pattern")
	ErrDivByZero      = errors.New("hvm: division or modulo by zero")
	ErrManaExceeded   = errors.New("hvm: statement exceeded its mana budget")
	ErrBitsExceeded   = errors.New("hvm: statement exceeded its bit-cost budget")
	ErrStuckTerm      = errors.New("hvm: term is stuck and cannot be reduced further")
)
