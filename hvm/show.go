package hvm

import "fmt"

// Show renders the term rooted at loc as a human-readable s-expression,
// for diagnostics and test failure output. It does not reduce anything.
func (rt *Runtime) Show(loc uint32) string {
	return rt.showLnk(rt.Read(loc))
}

// ShowPtr renders a pointer value directly, for callers (like the chain
// package's state inspector) that hold a Ptr without a heap slot backing it.
func (rt *Runtime) ShowPtr(p Ptr) string { return rt.showLnk(p) }

func (rt *Runtime) showLnk(p Ptr) string {
	switch p.Tag {
	case TagDP0, TagDP1:
		return fmt.Sprintf("a%d", p.Pos)
	case TagVAR:
		return fmt.Sprintf("x%d", p.Pos)
	case TagARG:
		return "<arg>"
	case TagERA:
		return "*"
	case TagLAM:
		return fmt.Sprintf("(λ x%d %s)", p.Pos, rt.showLnk(rt.Arg(p, 1)))
	case TagAPP:
		return fmt.Sprintf("(%s %s)", rt.showLnk(rt.Arg(p, 0)), rt.showLnk(rt.Arg(p, 1)))
	case TagSUP:
		return fmt.Sprintf("{%s %s}#%d", rt.showLnk(rt.Arg(p, 0)), rt.showLnk(rt.Arg(p, 1)), p.Ext)
	case TagOP2:
		return fmt.Sprintf("(%s %s %s)", p.Tag.String(), rt.showLnk(rt.Arg(p, 0)), rt.showLnk(rt.Arg(p, 1)))
	case TagNUM:
		return p.NumVal().String()
	case TagCTR, TagFUN:
		arity := rt.GetArity(p.Ext)
		out := fmt.Sprintf("(%d", rt.NameOf(p.Ext))
		for i := uint32(0); i < arity; i++ {
			out += " " + rt.showLnk(rt.Arg(p, i))
		}
		return out + ")"
	default:
		return "?"
	}
}
