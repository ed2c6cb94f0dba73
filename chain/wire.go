package chain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/HigherOrderCO/Kindelia/hvm"
	"github.com/HigherOrderCO/Kindelia/kdlcrypto"
)

// ErrTruncatedStatement is returned by DecodeStatement when the input ends
// in the middle of a field.
var ErrTruncatedStatement = errors.New("chain: truncated statement encoding")

// EncodeStatement produces the canonical bytes a Statement persists as.
// Statement bodies embed hvm.Term trees, which carry an arbitrary-precision
// Num field a generic struct-reflection codec (the one engine/codec.go
// otherwise uses for Block) has no primitive/array/struct shape for; this
// is the statement's own opaque wire payload instead, the same way the
// teacher's Block carries its payload as raw bytes rather than a reflected
// struct.
func EncodeStatement(s *Statement) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(s.kind()))
	buf.Write(s.Hash[:])

	switch {
	case s.Ctr != nil:
		writeUvarint(buf, s.Ctr.Name.Uint64())
		writeUvarint(buf, uint64(len(s.Ctr.Fields)))
		for _, f := range s.Ctr.Fields {
			writeBytes(buf, []byte(f))
		}
	case s.Fun != nil:
		writeUvarint(buf, s.Fun.Name.Uint64())
		writeUvarint(buf, uint64(len(s.Fun.Rules)))
		for _, rule := range s.Fun.Rules {
			hvm.EncodeTerm(buf, rule.LHS)
			hvm.EncodeTerm(buf, rule.RHS)
		}
		if s.Fun.Init != nil {
			buf.WriteByte(1)
			hvm.EncodeTerm(buf, s.Fun.Init)
		} else {
			buf.WriteByte(0)
		}
		if s.Fun.Stateful {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case s.Run != nil:
		if s.Run.Sig != nil {
			buf.WriteByte(1)
			buf.Write(s.Run.Sig[:])
		} else {
			buf.WriteByte(0)
		}
		hvm.EncodeTerm(buf, s.Run.Body)
	default: // s.Reg
		writeUvarint(buf, s.Reg.Namespace.Uint64())
		buf.Write(s.Reg.Sig[:])
	}
	return buf.Bytes()
}

// DecodeStatement reconstructs a Statement from the bytes EncodeStatement
// produced.
func DecodeStatement(raw []byte) (*Statement, error) {
	r := bytes.NewReader(raw)

	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncatedStatement
	}

	var hash kdlcrypto.Hash
	if _, err := io.ReadFull(r, hash[:]); err != nil {
		return nil, ErrTruncatedStatement
	}
	stmt := &Statement{Hash: hash}

	switch StatementKind(kindByte) {
	case KindCtr:
		name, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedStatement
		}
		count, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedStatement
		}
		fields := make([]string, count)
		for i := range fields {
			b, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			fields[i] = string(b)
		}
		stmt.Ctr = &CtrStatement{Name: Name(name), Fields: fields}

	case KindFun:
		name, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedStatement
		}
		count, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedStatement
		}
		rules := make([]FunRule, count)
		for i := range rules {
			lhs, err := hvm.DecodeTerm(r)
			if err != nil {
				return nil, err
			}
			rhs, err := hvm.DecodeTerm(r)
			if err != nil {
				return nil, err
			}
			rules[i] = FunRule{LHS: lhs, RHS: rhs}
		}
		hasInit, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncatedStatement
		}
		var init *hvm.Term
		if hasInit == 1 {
			init, err = hvm.DecodeTerm(r)
			if err != nil {
				return nil, err
			}
		}
		statefulByte, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncatedStatement
		}
		stmt.Fun = &FunStatement{
			Name: Name(name), Rules: rules, Init: init, Stateful: statefulByte == 1,
		}

	case KindRun:
		hasSig, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncatedStatement
		}
		var sig *kdlcrypto.Signature
		if hasSig == 1 {
			sig = new(kdlcrypto.Signature)
			if _, err := io.ReadFull(r, sig[:]); err != nil {
				return nil, ErrTruncatedStatement
			}
		}
		body, err := hvm.DecodeTerm(r)
		if err != nil {
			return nil, err
		}
		stmt.Run = &RunStatement{Body: body, Sig: sig}

	case KindReg:
		namespace, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, ErrTruncatedStatement
		}
		var sig kdlcrypto.Signature
		if _, err := io.ReadFull(r, sig[:]); err != nil {
			return nil, ErrTruncatedStatement
		}
		stmt.Reg = &RegStatement{Namespace: Name(namespace), Sig: sig}

	default:
		return nil, ErrTruncatedStatement
	}

	return stmt, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, ErrTruncatedStatement
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, ErrTruncatedStatement
	}
	return b, nil
}
