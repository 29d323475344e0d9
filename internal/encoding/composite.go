package encoding

import (
	"time"

	"github.com/pkg/errors"
	"github.com/yumeiwang/amqp-engine/internal/buffer"
)

// MarshalField and UnmarshalField implement the small pattern-matching
// helper the original engine's dispatcher used to scan/fill performative
// argument tuples (spec §9: "the existing pattern DSL is treated as an
// external collaborator; any equivalent suffices").
type MarshalField struct {
	Value interface{}
	Omit  bool
}

// MarshalComposite writes a described-list composite: the descriptor
// followed by a list whose trailing omitted fields are dropped entirely
// (AMQP allows a short list when trailing fields take their default).
func MarshalComposite(wr *buffer.Buffer, descriptor Descriptor, fields []MarshalField) error {
	wr.WriteByte(byte(TypeCodeDescribed))
	if err := writeUint64(wr, uint64(descriptor)); err != nil {
		return err
	}

	last := len(fields)
	for last > 0 && fields[last-1].Omit {
		last--
	}

	items := make([]interface{}, last)
	for i := 0; i < last; i++ {
		if fields[i].Omit {
			items[i] = nil
		} else {
			items[i] = fields[i].Value
		}
	}
	return writeList(wr, items)
}

// UnmarshalField pairs a destination pointer with an optional default
// applied when the wire value is absent or null.
type UnmarshalField struct {
	Field      interface{} // pointer to destination
	HandleNull func() error
}

// UnmarshalComposite reads a described-list composite matching
// descriptor, assigning each positional item into fields in order. A
// short list (trailing fields absent) or a null item invokes
// HandleNull, matching AMQP's default-value convention.
func UnmarshalComposite(r *buffer.Buffer, descriptor Descriptor, fields ...UnmarshalField) error {
	items, err := ReadComposite(r, descriptor)
	if err != nil {
		return err
	}
	return AssignFields(items, fields...)
}

// ReadComposite validates that the next value on r is a described-list
// composite with the given descriptor and returns its positional items,
// for performatives (ATTACH) that need custom per-field handling (nested
// Source/Target composites) beyond what AssignFields covers.
func ReadComposite(r *buffer.Buffer, descriptor Descriptor) ([]interface{}, error) {
	code, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if TypeCode(code) != TypeCodeDescribed {
		return nil, errors.Errorf("encoding: expected described type, got %#x", code)
	}
	descVal, err := Unmarshal(r)
	if err != nil {
		return nil, err
	}
	desc, err := toDescriptor(descVal)
	if err != nil {
		return nil, err
	}
	if desc != descriptor {
		return nil, errors.Errorf("encoding: expected descriptor %#x, got %#x", descriptor, desc)
	}
	listCode, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return readListItems(r, TypeCode(listCode))
}

// AssignFields applies items positionally into fields.
func AssignFields(items []interface{}, fields ...UnmarshalField) error {
	for i, f := range fields {
		var v interface{}
		if i < len(items) {
			v = items[i]
		}
		if f.Field == nil {
			continue // field intentionally unmodeled; value discarded
		}
		if v == nil {
			if f.HandleNull != nil {
				if err := f.HandleNull(); err != nil {
					return err
				}
			}
			continue
		}
		if err := assign(f.Field, v); err != nil {
			return errors.Wrapf(err, "encoding: field %d", i)
		}
	}
	return nil
}

func toDescriptor(v interface{}) (Descriptor, error) {
	switch t := v.(type) {
	case uint64:
		return Descriptor(t), nil
	case uint32:
		return Descriptor(t), nil
	default:
		return 0, errors.Errorf("encoding: unsupported descriptor type %T", v)
	}
}

func readListItems(r *buffer.Buffer, code TypeCode) ([]interface{}, error) {
	if code == TypeCodeList0 {
		return nil, nil
	}
	return unmarshalList(r, code)
}

// assign copies v into the pointer dst, performing a narrow set of
// numeric/symbolic conversions matching what unmarshal produces.
func assign(dst interface{}, v interface{}) error {
	switch d := dst.(type) {
	case *string:
		switch t := v.(type) {
		case string:
			*d = t
		case Symbol:
			*d = string(t)
		default:
			return errors.Errorf("encoding: cannot assign %T to *string", v)
		}
	case *Symbol:
		switch t := v.(type) {
		case Symbol:
			*d = t
		case string:
			*d = Symbol(t)
		default:
			return errors.Errorf("encoding: cannot assign %T to *Symbol", v)
		}
	case **string:
		s, ok := v.(string)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to **string", v)
		}
		*d = &s
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *bool", v)
		}
		*d = b
	case **bool:
		b, ok := v.(bool)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to **bool", v)
		}
		*d = &b
	case *uint16:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		*d = uint16(n)
	case **uint16:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		u := uint16(n)
		*d = &u
	case *uint32:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		*d = uint32(n)
	case **uint32:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		u := uint32(n)
		*d = &u
	case *uint64:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		*d = n
	case **uint64:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		*d = &n
	case *int32:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		*d = int32(n)
	case **int32:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		u := int32(n)
		*d = &u
	case *[]byte:
		b, ok := v.([]byte)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *[]byte", v)
		}
		*d = b
	case *time.Duration: // milliseconds field
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		*d = time.Duration(n) * time.Millisecond
	case *time.Time:
		t, ok := v.(time.Time)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *time.Time", v)
		}
		*d = t
	case *map[Symbol]interface{}:
		m, ok := v.(map[Symbol]interface{})
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *map[Symbol]interface{}", v)
		}
		*d = m
	case *[]Symbol:
		list, ok := v.([]interface{})
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *[]Symbol", v)
		}
		out := make([]Symbol, len(list))
		for i, it := range list {
			switch t := it.(type) {
			case Symbol:
				out[i] = t
			case string:
				out[i] = Symbol(t)
			}
		}
		*d = out
	case *[]interface{}:
		list, ok := v.([]interface{})
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *[]interface{}", v)
		}
		*d = list
	case *Role:
		b, ok := v.(bool)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *Role", v)
		}
		*d = Role(b)
	case *SenderSettleMode:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		*d = SenderSettleMode(n)
	case **SenderSettleMode:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		m := SenderSettleMode(n)
		*d = &m
	case *ReceiverSettleMode:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		*d = ReceiverSettleMode(n)
	case **ReceiverSettleMode:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		m := ReceiverSettleMode(n)
		*d = &m
	case *Durability:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		*d = Durability(n)
	case *ExpiryPolicy:
		switch t := v.(type) {
		case Symbol:
			*d = ExpiryPolicy(t)
		case string:
			*d = ExpiryPolicy(t)
		default:
			return errors.Errorf("encoding: cannot assign %T to *ExpiryPolicy", v)
		}
	case *DistributionMode:
		switch t := v.(type) {
		case Symbol:
			*d = DistributionMode(t)
		case string:
			*d = DistributionMode(t)
		default:
			return errors.Errorf("encoding: cannot assign %T to *DistributionMode", v)
		}
	case *Error:
		dt, ok := v.(*DescribedType)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *Error", v)
		}
		if dt.Descriptor != DescriptorError {
			return errors.Errorf("encoding: expected error descriptor, got %#x", dt.Descriptor)
		}
		items, _ := dt.Value.([]interface{})
		return AssignFields(items,
			UnmarshalField{Field: &d.Condition},
			UnmarshalField{Field: &d.Description},
			UnmarshalField{Field: &d.Info},
		)
	case **Error:
		e := &Error{}
		if err := assign(e, v); err != nil {
			return err
		}
		*d = e
	case *DescribedType:
		dt, ok := v.(*DescribedType)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to *DescribedType", v)
		}
		*d = *dt
	case **DescribedType:
		dt, ok := v.(*DescribedType)
		if !ok {
			return errors.Errorf("encoding: cannot assign %T to **DescribedType", v)
		}
		*d = dt
	default:
		return errors.Errorf("encoding: assign not implemented for %T", dst)
	}
	return nil
}

func toUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	default:
		return 0, errors.Errorf("encoding: cannot convert %T to uint64", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	default:
		return 0, errors.Errorf("encoding: cannot convert %T to int64", v)
	}
}
