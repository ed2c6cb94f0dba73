package hvm

import "math/big"

// stackItem pairs a pending location with a flag marking whether it still
// needs its own WHNF pass before the parent rewrite can resume: the same
// information the teacher runtime's reduction stack packs into bit 31.
type stackItem struct {
	loc  uint32
	init bool
}

// Reduce puts the term at host into weak head normal form, charging budget
// for every rewrite performed. It mutates the heap in place and returns the
// pointer now stored at host.
func (rt *Runtime) Reduce(host uint32, budget *Budget) (Ptr, error) {
	var stack []stackItem
	init := true
	loc := host

	for {
		term := rt.Read(loc)

		if init {
			switch term.Tag {
			case TagAPP:
				stack = append(stack, stackItem{loc, false})
				loc = term.Pos + 0
				continue
			case TagDP0, TagDP1:
				stack = append(stack, stackItem{loc, false})
				loc = term.Pos + 2
				continue
			case TagOP2:
				stack = append(stack, stackItem{loc, false})
				stack = append(stack, stackItem{term.Pos + 1, true})
				loc = term.Pos + 0
				continue
			case TagFUN:
				fn := rt.GetFunc(term.Ext)
				if fn != nil && rt.GetArity(term.Ext) == fn.Arity {
					if len(fn.Redux) == 0 {
						init = false
						continue
					}
					stack = append(stack, stackItem{loc, false})
					for i, r := range fn.Redux {
						if i < len(fn.Redux)-1 {
							stack = append(stack, stackItem{term.Pos + r, true})
						} else {
							loc = term.Pos + r
						}
					}
					continue
				}
			}
		} else {
			switch term.Tag {
			case TagAPP:
				if done, err := rt.reduceApp(loc, term, budget); err != nil {
					return Ptr{}, err
				} else if done {
					init = true
					continue
				}
			case TagDP0, TagDP1:
				if done, err := rt.reduceDup(loc, term, budget); err != nil {
					return Ptr{}, err
				} else if done {
					init = true
					continue
				}
			case TagOP2:
				if done, err := rt.reduceOp2(loc, term, budget); err != nil {
					return Ptr{}, err
				} else if done {
					init = true
					continue
				}
			case TagFUN:
				fn := rt.GetFunc(term.Ext)
				if fn != nil {
					done, err := rt.callFunction(loc, term, fn, budget)
					if err != nil {
						return Ptr{}, err
					}
					if done {
						init = true
						continue
					}
				}
			}
		}

		if len(stack) == 0 {
			break
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		init, loc = top.init, top.loc
	}

	return rt.Read(host), nil
}

func (rt *Runtime) reduceApp(loc uint32, term Ptr, budget *Budget) (bool, error) {
	arg0 := rt.Arg(term, 0)
	switch arg0.Tag {
	case TagLAM:
		if err := budget.SpendMana(CostBeta); err != nil {
			return false, err
		}
		rt.subst(rt.Read(arg0.Pos+0), rt.Arg(term, 1))
		rt.link(loc, rt.Arg(arg0, 1))
		rt.Free(term.Pos, 2)
		rt.Free(arg0.Pos, 2)
		return true, nil

	case TagSUP:
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		app0 := term.Pos
		app1 := arg0.Pos
		let0, err := rt.ChargeAlloc(3, budget)
		if err != nil {
			return false, err
		}
		par0, err := rt.ChargeAlloc(2, budget)
		if err != nil {
			return false, err
		}
		rt.link(let0+2, rt.Arg(term, 1))
		rt.link(app0+1, MkDp0(arg0.Ext, let0))
		rt.link(app0+0, rt.Arg(arg0, 0))
		rt.link(app1+0, rt.Arg(arg0, 1))
		rt.link(app1+1, MkDp1(arg0.Ext, let0))
		rt.link(par0+0, MkApp(app0))
		rt.link(par0+1, MkApp(app1))
		rt.link(loc, MkSup(arg0.Ext, par0))
		return false, nil
	}
	return false, nil
}

func (rt *Runtime) reduceDup(loc uint32, term Ptr, budget *Budget) (bool, error) {
	arg0 := rt.Arg(term, 2)
	switch arg0.Tag {
	case TagLAM:
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		let0 := term.Pos
		par0 := arg0.Pos
		lam0, err := rt.ChargeAlloc(2, budget)
		if err != nil {
			return false, err
		}
		lam1, err := rt.ChargeAlloc(2, budget)
		if err != nil {
			return false, err
		}
		rt.link(let0+2, rt.Arg(arg0, 1))
		rt.link(par0+1, MkVar(lam1))
		arg0Arg0 := rt.Read(arg0.Pos + 0)
		rt.link(par0+0, MkVar(lam0))
		rt.subst(arg0Arg0, MkSup(term.Ext, par0))
		termArg0 := rt.Read(term.Pos + 0)
		rt.link(lam0+1, MkDp0(term.Ext, let0))
		rt.subst(termArg0, MkLam(lam0))
		termArg1 := rt.Read(term.Pos + 1)
		rt.link(lam1+1, MkDp1(term.Ext, let0))
		rt.subst(termArg1, MkLam(lam1))
		dst := lam0
		if term.Tag == TagDP1 {
			dst = lam1
		}
		rt.link(loc, MkLam(dst))
		return true, nil

	case TagSUP:
		if term.Ext == arg0.Ext {
			if err := budget.SpendMana(CostDup); err != nil {
				return false, err
			}
			rt.subst(rt.Read(term.Pos+0), rt.Arg(arg0, 0))
			rt.subst(rt.Read(term.Pos+1), rt.Arg(arg0, 1))
			pick := uint32(0)
			if term.Tag == TagDP1 {
				pick = 1
			}
			rt.link(loc, rt.Arg(arg0, pick))
			rt.Free(term.Pos, 3)
			rt.Free(arg0.Pos, 2)
			return true, nil
		}
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		par0, err := rt.ChargeAlloc(2, budget)
		if err != nil {
			return false, err
		}
		let0 := term.Pos
		par1 := arg0.Pos
		let1, err := rt.ChargeAlloc(3, budget)
		if err != nil {
			return false, err
		}
		rt.link(let0+2, rt.Arg(arg0, 0))
		rt.link(let1+2, rt.Arg(arg0, 1))
		termArg0 := rt.Read(term.Pos + 0)
		termArg1 := rt.Read(term.Pos + 1)
		rt.link(par1+0, MkDp1(term.Ext, let0))
		rt.link(par1+1, MkDp1(term.Ext, let1))
		rt.link(par0+0, MkDp0(term.Ext, let0))
		rt.link(par0+1, MkDp0(term.Ext, let1))
		rt.subst(termArg0, MkSup(arg0.Ext, par0))
		rt.subst(termArg1, MkSup(arg0.Ext, par1))
		dst := par0
		if term.Tag == TagDP1 {
			dst = par1
		}
		rt.link(loc, MkSup(arg0.Ext, dst))
		return false, nil

	case TagNUM:
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		rt.subst(rt.Read(term.Pos+0), arg0)
		rt.subst(rt.Read(term.Pos+1), arg0)
		rt.Free(term.Pos, 3)
		rt.link(loc, arg0)
		return false, nil

	case TagCTR:
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		fn := arg0.Ext
		arity := rt.GetArity(fn)
		if arity == 0 {
			rt.subst(rt.Read(term.Pos+0), MkCtr(fn, 0))
			rt.subst(rt.Read(term.Pos+1), MkCtr(fn, 0))
			rt.Free(term.Pos, 3)
			rt.link(loc, MkCtr(fn, 0))
			return false, nil
		}
		ctr0 := arg0.Pos
		ctr1, err := rt.ChargeAlloc(arity, budget)
		if err != nil {
			return false, err
		}
		for i := uint32(0); i < arity-1; i++ {
			leti, err := rt.ChargeAlloc(3, budget)
			if err != nil {
				return false, err
			}
			argi := rt.Arg(arg0, i)
			rt.link(ctr0+i, MkDp0(term.Ext, leti))
			rt.link(ctr1+i, MkDp1(term.Ext, leti))
			rt.link(leti+2, argi)
		}
		leti := term.Pos
		rt.link(leti+2, rt.Arg(arg0, arity-1))
		termArg0 := rt.Read(term.Pos + 0)
		rt.link(ctr0+arity-1, MkDp0(term.Ext, leti))
		rt.subst(termArg0, MkCtr(fn, ctr0))
		termArg1 := rt.Read(term.Pos + 1)
		rt.link(ctr1+arity-1, MkDp1(term.Ext, leti))
		rt.subst(termArg1, MkCtr(fn, ctr1))
		dst := ctr0
		if term.Tag == TagDP1 {
			dst = ctr1
		}
		rt.link(loc, MkCtr(fn, dst))
		return false, nil

	case TagERA:
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		rt.subst(rt.Read(term.Pos+0), MkEra())
		rt.subst(rt.Read(term.Pos+1), MkEra())
		rt.link(loc, MkEra())
		rt.Free(term.Pos, 3)
		return true, nil
	}
	return false, nil
}

func (rt *Runtime) reduceOp2(loc uint32, term Ptr, budget *Budget) (bool, error) {
	arg0 := rt.Arg(term, 0)
	arg1 := rt.Arg(term, 1)

	if arg0.Tag == TagNUM && arg1.Tag == TagNUM {
		if err := budget.SpendMana(CostPrimitive); err != nil {
			return false, err
		}
		c, err := applyOp(Op(term.Ext), arg0.NumVal(), arg1.NumVal())
		if err != nil {
			return false, err
		}
		rt.Free(term.Pos, 2)
		rt.link(loc, MkNum(c))
		return false, nil
	}

	if arg0.Tag == TagSUP {
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		op20 := term.Pos
		op21 := arg0.Pos
		let0, err := rt.ChargeAlloc(3, budget)
		if err != nil {
			return false, err
		}
		par0, err := rt.ChargeAlloc(2, budget)
		if err != nil {
			return false, err
		}
		rt.link(let0+2, arg1)
		rt.link(op20+1, MkDp0(arg0.Ext, let0))
		rt.link(op20+0, rt.Arg(arg0, 0))
		rt.link(op21+0, rt.Arg(arg0, 1))
		rt.link(op21+1, MkDp1(arg0.Ext, let0))
		rt.link(par0+0, MkOp2(Op(term.Ext), op20))
		rt.link(par0+1, MkOp2(Op(term.Ext), op21))
		rt.link(loc, MkSup(arg0.Ext, par0))
		return false, nil
	}

	if arg1.Tag == TagSUP {
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		op20 := term.Pos
		op21 := arg1.Pos
		let0, err := rt.ChargeAlloc(3, budget)
		if err != nil {
			return false, err
		}
		par0, err := rt.ChargeAlloc(2, budget)
		if err != nil {
			return false, err
		}
		rt.link(let0+2, arg0)
		rt.link(op20+0, MkDp0(arg1.Ext, let0))
		rt.link(op20+1, rt.Arg(arg1, 0))
		rt.link(op21+1, rt.Arg(arg1, 1))
		rt.link(op21+0, MkDp1(arg1.Ext, let0))
		rt.link(par0+0, MkOp2(Op(term.Ext), op20))
		rt.link(par0+1, MkOp2(Op(term.Ext), op21))
		rt.link(loc, MkSup(arg1.Ext, par0))
		return false, nil
	}

	return false, nil
}

func applyOp(op Op, a, b *big.Int) (*big.Int, error) {
	switch op {
	case OpAdd:
		return maskNum(new(big.Int).Add(a, b)), nil
	case OpSub:
		return maskNum(new(big.Int).Sub(a, b)), nil
	case OpMul:
		return maskNum(new(big.Int).Mul(a, b)), nil
	case OpDiv:
		if b.Sign() == 0 {
			return nil, ErrDivByZero
		}
		return maskNum(new(big.Int).Div(a, b)), nil
	case OpMod:
		if b.Sign() == 0 {
			return nil, ErrDivByZero
		}
		return maskNum(new(big.Int).Mod(a, b)), nil
	case OpAnd:
		return maskNum(new(big.Int).And(a, b)), nil
	case OpOr:
		return maskNum(new(big.Int).Or(a, b)), nil
	case OpXor:
		return maskNum(new(big.Int).Xor(a, b)), nil
	case OpShl:
		return maskNum(new(big.Int).Lsh(a, uint(b.Uint64()))), nil
	case OpShr:
		return maskNum(new(big.Int).Rsh(a, uint(b.Uint64()))), nil
	case OpLtn:
		return boolNum(a.Cmp(b) < 0), nil
	case OpLte:
		return boolNum(a.Cmp(b) <= 0), nil
	case OpEql:
		return boolNum(a.Cmp(b) == 0), nil
	case OpGte:
		return boolNum(a.Cmp(b) >= 0), nil
	case OpGtn:
		return boolNum(a.Cmp(b) > 0), nil
	case OpNeq:
		return boolNum(a.Cmp(b) != 0), nil
	default:
		return big.NewInt(0), nil
	}
}

func boolNum(v bool) *big.Int {
	if v {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

// callFunction attempts the cal-par commutation first (a strict argument
// that's still a superposition), then matches term's arguments against
// fn's rules in order and rewrites to the first one that matches.
func (rt *Runtime) callFunction(loc uint32, term Ptr, fn *Func, budget *Budget) (bool, error) {
	for _, idx := range fn.Redux {
		argn := rt.Arg(term, idx)
		if argn.Tag != TagSUP {
			continue
		}
		if err := budget.SpendMana(CostDup); err != nil {
			return false, err
		}
		arity := rt.GetArity(term.Ext)
		fun0 := term.Pos
		fun1, err := rt.ChargeAlloc(arity, budget)
		if err != nil {
			return false, err
		}
		par0 := argn.Pos
		for i := uint32(0); i < arity; i++ {
			if i != idx {
				leti, err := rt.ChargeAlloc(3, budget)
				if err != nil {
					return false, err
				}
				argi := rt.Arg(term, i)
				rt.link(fun0+i, MkDp0(argn.Ext, leti))
				rt.link(fun1+i, MkDp1(argn.Ext, leti))
				rt.link(leti+2, argi)
			} else {
				rt.link(fun0+i, rt.Arg(argn, 0))
				rt.link(fun1+i, rt.Arg(argn, 1))
			}
		}
		rt.link(par0+0, MkFun(term.Ext, fun0))
		rt.link(par0+1, MkFun(term.Ext, fun1))
		rt.link(loc, MkSup(argn.Ext, par0))
		return true, nil
	}

	for _, rule := range fn.Rules {
		if !rt.ruleMatches(term, rule) {
			continue
		}
		if err := budget.SpendMana(CostCall); err != nil {
			return false, err
		}
		b := newBinder()
		for _, v := range rule.Vars {
			val := rt.Arg(term, v.Param)
			if v.HasField {
				val = rt.Arg(val, v.Field)
			}
			if v.Erase {
				rt.collect(val)
				continue
			}
			b.values[v.Name] = val
		}
		if _, err := rt.createTerm(b, rule.Body, loc); err != nil {
			return false, err
		}
		for _, era := range rule.Eras {
			argi := rt.Arg(term, era[0])
			rt.Free(argi.Pos, era[1])
		}
		rt.Free(term.Pos, fn.Arity)
		return true, nil
	}
	return false, nil
}

func (rt *Runtime) ruleMatches(term Ptr, rule Rule) bool {
	for i, cond := range rule.Cond {
		switch cond.Tag {
		case TagNUM:
			arg := rt.Arg(term, uint32(i))
			if arg.Tag != TagNUM || arg.NumVal().Cmp(cond.NumVal()) != 0 {
				return false
			}
		case TagCTR:
			arg := rt.Arg(term, uint32(i))
			if arg.Tag != TagCTR || arg.Ext != cond.Ext {
				return false
			}
		}
	}
	return true
}
