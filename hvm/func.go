package hvm

// RuleVar records where a pattern variable in a rule's left-hand side is
// found on the call term, so a match can bind it without re-walking the
// pattern.
type RuleVar struct {
	Name    uint64 // raw chain name of the variable (Term.Name)
	Param   uint32 // which call argument it came from
	HasField bool
	Field   uint32 // which field of that argument's constructor, if any
	Erase   bool   // unused in the body, so its value is collected on match
}

// Rule is one left-hand-side/right-hand-side pair compiled from a `fun`
// declaration's equations.
type Rule struct {
	Cond []Ptr     // per-argument matching condition (NUM/CTR tag+ext, or zero for a free var)
	Vars []RuleVar
	Eras [][2]uint32 // (argument index, arity) pairs to free once matched
	Body *Term
}

// Func is a compiled function: its arity, which argument positions must be
// evaluated to WHNF before any rule can match (Redux), and its rules in
// declaration order.
type Func struct {
	Arity uint32
	Redux []uint32
	Rules []Rule
}

// BuildFunc compiles a `fun` declaration's (pattern, body) equations into a
// dispatch table. It rejects nested patterns and mismatched arity rather
// than silently accepting a malformed declaration. Constructor names in
// match conditions are resolved through in so a compiled rule's Cond
// entries compare equal to the dense ids CreateTerm writes into call terms.
func BuildFunc(in *Interner, lines [][2]*Term) (*Func, error) {
	if len(lines) == 0 {
		return nil, ErrMalformedRule
	}
	head := lines[0][0]
	if head.Kind != TFun {
		return nil, ErrMalformedRule
	}
	arity := uint32(len(head.Args))
	strict := make([]bool, arity)
	rules := make([]Rule, 0, len(lines))

	for _, line := range lines {
		lhs, rhs := line[0], line[1]
		if lhs.Kind != TFun || uint32(len(lhs.Args)) != arity {
			return nil, ErrArityMismatch
		}
		var cond []Ptr
		var vars []RuleVar
		var eras [][2]uint32
		for i, arg := range lhs.Args {
			switch arg.Kind {
			case TCtr:
				strict[i] = true
				id, err := in.Intern(arg.FunID)
				if err != nil {
					return nil, err
				}
				cond = append(cond, MkCtr(id, 0))
				eras = append(eras, [2]uint32{uint32(i), uint32(len(arg.Args))})
				for j, field := range arg.Args {
					if field.Kind != TVar {
						return nil, ErrMalformedRule // nested patterns not allowed
					}
					vars = append(vars, RuleVar{
						Name: field.Name, Param: uint32(i),
						HasField: true, Field: uint32(j), Erase: field.Name == VarNone,
					})
				}
			case TNum:
				strict[i] = true
				cond = append(cond, MkNum(arg.Num))
			case TVar:
				vars = append(vars, RuleVar{Name: arg.Name, Param: uint32(i), Erase: arg.Name == VarNone})
				cond = append(cond, Ptr{})
			default:
				return nil, ErrMalformedRule
			}
		}
		rules = append(rules, Rule{Cond: cond, Vars: vars, Eras: eras, Body: rhs})
	}

	var redux []uint32
	for i, s := range strict {
		if s {
			redux = append(redux, uint32(i))
		}
	}
	return &Func{Arity: arity, Redux: redux, Rules: rules}, nil
}
