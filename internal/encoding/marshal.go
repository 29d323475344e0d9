package encoding

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/yumeiwang/amqp-engine/internal/buffer"
)

// Symbol is an AMQP symbol (ASCII string used for well-known names).
type Symbol string

// Marshaler is implemented by types that encode themselves onto the wire.
type Marshaler interface {
	Marshal(wr *buffer.Buffer) error
}

// Unmarshaler is implemented by types that decode themselves from the wire.
type Unmarshaler interface {
	Unmarshal(r *buffer.Buffer) error
}

// Marshal writes the AMQP encoding of v to wr, trimmed to the primitive
// set the performatives and termini in this engine need.
func Marshal(wr *buffer.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		return wr.WriteByte(byte(TypeCodeNull))
	case bool:
		if t {
			return wr.WriteByte(byte(TypeCodeBoolTrue))
		}
		return wr.WriteByte(byte(TypeCodeBoolFalse))
	case *bool:
		if t == nil {
			return wr.WriteByte(byte(TypeCodeNull))
		}
		return Marshal(wr, *t)
	case uint8:
		wr.WriteByte(byte(TypeCodeUbyte))
		return wr.WriteByte(t)
	case uint16:
		wr.WriteByte(byte(TypeCodeUshort))
		wr.WriteUint16(t)
		return nil
	case *uint16:
		if t == nil {
			return wr.WriteByte(byte(TypeCodeNull))
		}
		wr.WriteByte(byte(TypeCodeUshort))
		wr.WriteUint16(*t)
		return nil
	case uint32:
		return writeUint32(wr, t)
	case *uint32:
		if t == nil {
			return wr.WriteByte(byte(TypeCodeNull))
		}
		return writeUint32(wr, *t)
	case uint64:
		return writeUint64(wr, t)
	case *uint64:
		if t == nil {
			return wr.WriteByte(byte(TypeCodeNull))
		}
		return writeUint64(wr, *t)
	case int32:
		return writeInt32(wr, t)
	case *int32:
		if t == nil {
			return wr.WriteByte(byte(TypeCodeNull))
		}
		return writeInt32(wr, *t)
	case int64:
		return writeInt64(wr, t)
	case Durability:
		return writeUint32(wr, uint32(t))
	case SenderSettleMode:
		wr.WriteByte(byte(TypeCodeUbyte))
		return wr.WriteByte(byte(t))
	case *SenderSettleMode:
		if t == nil {
			return wr.WriteByte(byte(TypeCodeNull))
		}
		wr.WriteByte(byte(TypeCodeUbyte))
		return wr.WriteByte(byte(*t))
	case ReceiverSettleMode:
		wr.WriteByte(byte(TypeCodeUbyte))
		return wr.WriteByte(byte(t))
	case *ReceiverSettleMode:
		if t == nil {
			return wr.WriteByte(byte(TypeCodeNull))
		}
		wr.WriteByte(byte(TypeCodeUbyte))
		return wr.WriteByte(byte(*t))
	case ExpiryPolicy:
		return writeSymbol(wr, Symbol(t))
	case DistributionMode:
		if t == "" {
			return wr.WriteByte(byte(TypeCodeNull))
		}
		return writeSymbol(wr, Symbol(t))
	case Role:
		return Marshal(wr, bool(t))
	case []byte:
		return writeBinary(wr, t)
	case string:
		return writeString(wr, t)
	case Symbol:
		return writeSymbol(wr, t)
	case []Symbol:
		return writeSymbolArray(wr, t)
	case time.Duration: // milliseconds fields
		return writeUint32(wr, uint32(t/time.Millisecond))
	case time.Time:
		return writeTimestamp(wr, t)
	case map[Symbol]interface{}:
		return writeMap(wr, t)
	case []interface{}:
		return writeList(wr, t)
	case Marshaler:
		return t.Marshal(wr)
	default:
		return errors.Errorf("encoding: marshal not implemented for %T", v)
	}
}

func writeUint32(wr *buffer.Buffer, n uint32) error {
	if n == 0 {
		return wr.WriteByte(byte(TypeCodeUint0))
	}
	if n < 256 {
		wr.WriteByte(byte(TypeCodeSmallUint))
		return wr.WriteByte(byte(n))
	}
	wr.WriteByte(byte(TypeCodeUint))
	wr.WriteUint32(n)
	return nil
}

func writeUint64(wr *buffer.Buffer, n uint64) error {
	if n == 0 {
		return wr.WriteByte(byte(TypeCodeULong0))
	}
	if n < 256 {
		wr.WriteByte(byte(TypeCodeSmallULong))
		return wr.WriteByte(byte(n))
	}
	wr.WriteByte(byte(TypeCodeULong))
	wr.WriteUint64(n)
	return nil
}

func writeInt32(wr *buffer.Buffer, n int32) error {
	if n <= 127 && n >= -128 {
		wr.WriteByte(byte(TypeCodeSmallint))
		return wr.WriteByte(byte(n))
	}
	wr.WriteByte(byte(TypeCodeInt))
	wr.WriteUint32(uint32(n))
	return nil
}

func writeInt64(wr *buffer.Buffer, n int64) error {
	if n <= 127 && n >= -128 {
		wr.WriteByte(byte(TypeCodeSmalllong))
		return wr.WriteByte(byte(n))
	}
	wr.WriteByte(byte(TypeCodeLong))
	wr.WriteUint64(uint64(n))
	return nil
}

func writeBinary(wr *buffer.Buffer, b []byte) error {
	if len(b) < 256 {
		wr.WriteByte(byte(TypeCodeVbin8))
		wr.WriteByte(byte(len(b)))
		_, err := wr.Write(b)
		return err
	}
	wr.WriteByte(byte(TypeCodeVbin32))
	wr.WriteUint32(uint32(len(b)))
	_, err := wr.Write(b)
	return err
}

func writeString(wr *buffer.Buffer, s string) error {
	if len(s) < 256 {
		wr.WriteByte(byte(TypeCodeStr8))
		wr.WriteByte(byte(len(s)))
		_, err := wr.Write([]byte(s))
		return err
	}
	wr.WriteByte(byte(TypeCodeStr32))
	wr.WriteUint32(uint32(len(s)))
	_, err := wr.Write([]byte(s))
	return err
}

func writeSymbol(wr *buffer.Buffer, s Symbol) error {
	if len(s) < 256 {
		wr.WriteByte(byte(TypeCodeSym8))
		wr.WriteByte(byte(len(s)))
		_, err := wr.Write([]byte(s))
		return err
	}
	wr.WriteByte(byte(TypeCodeSym32))
	wr.WriteUint32(uint32(len(s)))
	_, err := wr.Write([]byte(s))
	return err
}

func writeSymbolArray(wr *buffer.Buffer, syms []Symbol) error {
	anys := make([]interface{}, len(syms))
	for i, s := range syms {
		anys[i] = s
	}
	return writeList(wr, anys)
}

func writeTimestamp(wr *buffer.Buffer, t time.Time) error {
	wr.WriteByte(byte(TypeCodeTimestamp))
	wr.WriteUint64(uint64(t.UnixMilli()))
	return nil
}

func writeMap(wr *buffer.Buffer, m map[Symbol]interface{}) error {
	inner := &buffer.Buffer{}
	count := 0
	for k, v := range m {
		if err := Marshal(inner, k); err != nil {
			return err
		}
		if err := Marshal(inner, v); err != nil {
			return err
		}
		count += 2
	}
	return writeCompound(wr, TypeCodeMap8, TypeCodeMap32, count, inner.Bytes())
}

func writeList(wr *buffer.Buffer, items []interface{}) error {
	if len(items) == 0 {
		return wr.WriteByte(byte(TypeCodeList0))
	}
	inner := &buffer.Buffer{}
	for _, it := range items {
		if err := Marshal(inner, it); err != nil {
			return err
		}
	}
	return writeCompound(wr, TypeCodeList8, TypeCodeList32, len(items), inner.Bytes())
}

// writeCompound writes the size+count+body envelope shared by list/map,
// choosing the 8- or 32-bit width based on body size.
func writeCompound(wr *buffer.Buffer, code8, code32 TypeCode, count int, body []byte) error {
	if len(body)+1 < 256 && count < 256 {
		wr.WriteByte(byte(code8))
		wr.WriteByte(byte(len(body) + 1)) // size includes the count byte
		wr.WriteByte(byte(count))
		_, err := wr.Write(body)
		return err
	}
	wr.WriteByte(byte(code32))
	wr.WriteUint32(uint32(len(body) + 4))
	wr.WriteUint32(uint32(count))
	_, err := wr.Write(body)
	return err
}

// Unmarshal reads one AMQP-encoded value from r.
func Unmarshal(r *buffer.Buffer) (interface{}, error) {
	code, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return unmarshalByCode(r, TypeCode(code))
}

func unmarshalByCode(r *buffer.Buffer, code TypeCode) (interface{}, error) {
	switch code {
	case TypeCodeNull:
		return nil, nil
	case TypeCodeBoolTrue:
		return true, nil
	case TypeCodeBoolFalse:
		return false, nil
	case TypeCodeUshort:
		b, ok := r.Next(2)
		if !ok {
			return nil, errors.New("encoding: truncated ushort")
		}
		return uint16(b[0])<<8 | uint16(b[1]), nil
	case TypeCodeUint0:
		return uint32(0), nil
	case TypeCodeSmallUint:
		b, err := r.ReadByte()
		return uint32(b), err
	case TypeCodeUint:
		b, ok := r.Next(4)
		if !ok {
			return nil, errors.New("encoding: truncated uint")
		}
		return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
	case TypeCodeULong0:
		return uint64(0), nil
	case TypeCodeSmallULong:
		b, err := r.ReadByte()
		return uint64(b), err
	case TypeCodeULong:
		b, ok := r.Next(8)
		if !ok {
			return nil, errors.New("encoding: truncated ulong")
		}
		var n uint64
		for _, c := range b {
			n = n<<8 | uint64(c)
		}
		return n, nil
	case TypeCodeSmallint:
		b, err := r.ReadByte()
		return int32(int8(b)), err
	case TypeCodeInt:
		b, ok := r.Next(4)
		if !ok {
			return nil, errors.New("encoding: truncated int")
		}
		return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), nil
	case TypeCodeSmalllong:
		b, err := r.ReadByte()
		return int64(int8(b)), err
	case TypeCodeLong:
		b, ok := r.Next(8)
		if !ok {
			return nil, errors.New("encoding: truncated long")
		}
		var n uint64
		for _, c := range b {
			n = n<<8 | uint64(c)
		}
		return int64(n), nil
	case TypeCodeTimestamp:
		b, ok := r.Next(8)
		if !ok {
			return nil, errors.New("encoding: truncated timestamp")
		}
		var n uint64
		for _, c := range b {
			n = n<<8 | uint64(c)
		}
		return time.UnixMilli(int64(n)).UTC(), nil
	case TypeCodeVbin8:
		n, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		b, ok := r.Next(int(n))
		if !ok {
			return nil, errors.New("encoding: truncated vbin8")
		}
		return append([]byte(nil), b...), nil
	case TypeCodeVbin32:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		b, ok := r.Next(int(n))
		if !ok {
			return nil, errors.New("encoding: truncated vbin32")
		}
		return append([]byte(nil), b...), nil
	case TypeCodeStr8:
		n, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		b, ok := r.Next(int(n))
		if !ok {
			return nil, errors.New("encoding: truncated str8")
		}
		return string(b), nil
	case TypeCodeStr32:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		b, ok := r.Next(int(n))
		if !ok {
			return nil, errors.New("encoding: truncated str32")
		}
		return string(b), nil
	case TypeCodeSym8:
		n, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		b, ok := r.Next(int(n))
		if !ok {
			return nil, errors.New("encoding: truncated sym8")
		}
		return Symbol(b), nil
	case TypeCodeSym32:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		b, ok := r.Next(int(n))
		if !ok {
			return nil, errors.New("encoding: truncated sym32")
		}
		return Symbol(b), nil
	case TypeCodeList0:
		return []interface{}{}, nil
	case TypeCodeList8, TypeCodeList32:
		return unmarshalList(r, code)
	case TypeCodeMap8, TypeCodeMap32:
		return unmarshalMap(r, code)
	case TypeCodeDescribed:
		return unmarshalDescribed(r)
	default:
		return nil, errors.Errorf("encoding: unmarshal not implemented for code %#x", code)
	}
}

func readUint32(r *buffer.Buffer) (uint32, error) {
	b, ok := r.Next(4)
	if !ok {
		return 0, errors.New("encoding: truncated length")
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func unmarshalList(r *buffer.Buffer, code TypeCode) ([]interface{}, error) {
	var size, count uint32
	if code == TypeCodeList8 {
		szb, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		cb, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, count = uint32(szb), uint32(cb)
	} else {
		sz, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		cnt, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		size, count = sz, cnt
	}
	_ = size
	items := make([]interface{}, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := Unmarshal(r)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func unmarshalMap(r *buffer.Buffer, code TypeCode) (map[Symbol]interface{}, error) {
	var count uint32
	if code == TypeCodeMap8 {
		if _, err := r.ReadByte(); err != nil { // size
			return nil, err
		}
		cb, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		count = uint32(cb)
	} else {
		if _, err := readUint32(r); err != nil { // size
			return nil, err
		}
		cnt, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		count = cnt
	}
	m := make(map[Symbol]interface{}, count/2)
	for i := uint32(0); i < count; i += 2 {
		k, err := Unmarshal(r)
		if err != nil {
			return nil, err
		}
		v, err := Unmarshal(r)
		if err != nil {
			return nil, err
		}
		ks, _ := k.(Symbol)
		if ks == "" {
			if s, ok := k.(string); ok {
				ks = Symbol(s)
			}
		}
		m[ks] = v
	}
	return m, nil
}

// DescribedType is a generic (descriptor, value) pair used for outcomes,
// error conditions, and termini whose specific Go type this package does
// not model field-by-field.
type DescribedType struct {
	Descriptor Descriptor
	Value      interface{}
}

func (d *DescribedType) Marshal(wr *buffer.Buffer) error {
	wr.WriteByte(byte(TypeCodeDescribed))
	if err := writeUint64(wr, uint64(d.Descriptor)); err != nil {
		return err
	}
	return Marshal(wr, d.Value)
}

func unmarshalDescribed(r *buffer.Buffer) (*DescribedType, error) {
	dv, err := Unmarshal(r)
	if err != nil {
		return nil, err
	}
	var desc Descriptor
	switch t := dv.(type) {
	case uint64:
		desc = Descriptor(t)
	case uint32:
		desc = Descriptor(t)
	default:
		return nil, fmt.Errorf("encoding: unsupported descriptor type %T", dv)
	}
	val, err := Unmarshal(r)
	if err != nil {
		return nil, err
	}
	return &DescribedType{Descriptor: desc, Value: val}, nil
}
