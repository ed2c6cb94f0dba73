package hvm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/big"
)

// ErrTruncatedTerm is returned by DecodeTerm when the input ends in the
// middle of a node.
var ErrTruncatedTerm = errors.New("hvm: truncated term encoding")

// numByteLen is the fixed width of an encoded TNum value: numBits rounded
// up to a whole byte.
const numByteLen = (numBits + 7) / 8

// EncodeTerm appends t's canonical binary encoding to buf. This is the wire
// format a term tree uses wherever it has to cross a boundary a generic
// struct-reflection codec can't walk on its own — a recursive AST with an
// arbitrary-precision Num field isn't primitive/array/struct shaped the way
// that kind of codec expects.
func EncodeTerm(buf *bytes.Buffer, t *Term) {
	buf.WriteByte(byte(t.Kind))
	switch t.Kind {
	case TVar:
		writeUvarint(buf, t.Name)
	case TDup:
		writeUvarint(buf, t.Nam0)
		writeUvarint(buf, t.Nam1)
		EncodeTerm(buf, t.Expr)
		EncodeTerm(buf, t.Body)
	case TLam:
		writeUvarint(buf, t.Name)
		EncodeTerm(buf, t.Body)
	case TApp:
		EncodeTerm(buf, t.Func)
		EncodeTerm(buf, t.Argm)
	case TCtr, TFun:
		writeUvarint(buf, t.FunID)
		writeUvarint(buf, uint64(len(t.Args)))
		for _, a := range t.Args {
			EncodeTerm(buf, a)
		}
	case TNum:
		var b [numByteLen]byte
		t.Num.FillBytes(b[:])
		buf.Write(b[:])
	case TOp2:
		buf.WriteByte(byte(t.Oper))
		EncodeTerm(buf, t.Val0)
		EncodeTerm(buf, t.Val1)
	}
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// DecodeTerm reads one term tree from r, the inverse of EncodeTerm.
func DecodeTerm(r *bytes.Reader) (*Term, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncatedTerm
	}
	kind := TermKind(kindByte)
	switch kind {
	case TVar:
		name, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedTerm
		}
		return &Term{Kind: TVar, Name: name}, nil
	case TDup:
		nam0, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedTerm
		}
		nam1, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedTerm
		}
		expr, err := DecodeTerm(r)
		if err != nil {
			return nil, err
		}
		body, err := DecodeTerm(r)
		if err != nil {
			return nil, err
		}
		return &Term{Kind: TDup, Nam0: nam0, Nam1: nam1, Expr: expr, Body: body}, nil
	case TLam:
		name, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedTerm
		}
		body, err := DecodeTerm(r)
		if err != nil {
			return nil, err
		}
		return &Term{Kind: TLam, Name: name, Body: body}, nil
	case TApp:
		fn, err := DecodeTerm(r)
		if err != nil {
			return nil, err
		}
		arg, err := DecodeTerm(r)
		if err != nil {
			return nil, err
		}
		return &Term{Kind: TApp, Func: fn, Argm: arg}, nil
	case TCtr, TFun:
		funID, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedTerm
		}
		count, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedTerm
		}
		args := make([]*Term, count)
		for i := range args {
			a, err := DecodeTerm(r)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return &Term{Kind: kind, FunID: funID, Args: args}, nil
	case TNum:
		var b [numByteLen]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, ErrTruncatedTerm
		}
		return &Term{Kind: TNum, Num: new(big.Int).SetBytes(b[:])}, nil
	case TOp2:
		opByte, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncatedTerm
		}
		val0, err := DecodeTerm(r)
		if err != nil {
			return nil, err
		}
		val1, err := DecodeTerm(r)
		if err != nil {
			return nil, err
		}
		return &Term{Kind: TOp2, Oper: Op(opByte), Val0: val0, Val1: val1}, nil
	default:
		return nil, ErrTruncatedTerm
	}
}
