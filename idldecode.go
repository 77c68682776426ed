package txdecode

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/ModChain/base58"
)

// IdlArgValue is one decoded instruction argument. Value holds a
// JSON-compatible tree: bool, int64/uint64, float64, string (also used for
// 128-bit integers, public keys and hex-encoded byte blobs), nil for absent
// options, []any and map[string]any.
type IdlArgValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// IdlAccountValue pairs a runtime account reference with the name the IDL
// gives that position. Runtime accounts beyond the IDL's named list keep an
// empty name.
type IdlAccountValue struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// DecodedIdlInstruction is the result of decoding one instruction's data
// against an IDL.
type DecodedIdlInstruction struct {
	Name     string            `json:"name"`
	Args     []IdlArgValue     `json:"args"`
	Accounts []IdlAccountValue `json:"accounts"`
}

// DecodeInstruction decodes instruction data against the IDL: the
// instruction is located by discriminator prefix, its arguments are walked
// as Borsh-encoded little-endian values, and the runtime account references
// are zipped with the IDL's account names. The data must be consumed
// exactly; trailing bytes after the last argument are an error.
func (idl *Idl) DecodeInstruction(data []byte, refs []AddressRef) (*DecodedIdlInstruction, error) {
	inst := idl.findInstruction(data)
	if inst == nil {
		return nil, ErrDiscriminatorNotFound
	}
	if len(refs) < len(inst.Accounts) {
		return nil, &TooFewAccountsError{Instruction: inst.Name, Expected: len(inst.Accounts), Actual: len(refs)}
	}

	c := newCursor(data)
	c.take(len(inst.Discriminator), "discriminator")

	out := &DecodedIdlInstruction{Name: inst.Name, Args: []IdlArgValue{}, Accounts: []IdlAccountValue{}}
	for i := range inst.Args {
		arg := &inst.Args[i]
		v, err := idl.decodeValue(c, &arg.Type, arg.Name)
		if err != nil {
			return nil, err
		}
		out.Args = append(out.Args, IdlArgValue{Name: arg.Name, Value: v})
	}
	if !c.empty() {
		return nil, &ExtraneousBytesError{Section: "arguments"}
	}

	for i, ref := range refs {
		name := ""
		if i < len(inst.Accounts) {
			name = inst.Accounts[i].Name
		}
		out.Accounts = append(out.Accounts, IdlAccountValue{Name: name, Address: ref.String()})
	}
	return out, nil
}

// findInstruction returns the instruction whose discriminator is the longest
// prefix of data, or nil. Load-time validation guarantees at most one
// instruction can match, but the longest-prefix rule is kept explicit.
func (idl *Idl) findInstruction(data []byte) *IdlInstruction {
	var best *IdlInstruction
	for i := range idl.Instructions {
		inst := &idl.Instructions[i]
		disc := []byte(inst.Discriminator)
		if len(data) < len(disc) || !bytes.Equal(data[:len(disc)], disc) {
			continue
		}
		if best == nil || len(disc) > len(best.Discriminator) {
			best = inst
		}
	}
	return best
}

// decodeValue decodes a single value of type t at the cursor. path names the
// value's position for error attribution, e.g. "amounts[2].key".
func (idl *Idl) decodeValue(c *cursor, t *IdlType, path string) (any, error) {
	switch t.Kind {
	case IdlKindBool:
		b, err := c.takeByte(path)
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case IdlKindI8:
		b, err := c.takeByte(path)
		if err != nil {
			return nil, err
		}
		return int64(int8(b)), nil
	case IdlKindI16:
		raw, err := c.take(2, path)
		if err != nil {
			return nil, err
		}
		return int64(int16(binary.LittleEndian.Uint16(raw))), nil
	case IdlKindI32:
		raw, err := c.take(4, path)
		if err != nil {
			return nil, err
		}
		return int64(int32(binary.LittleEndian.Uint32(raw))), nil
	case IdlKindI64:
		raw, err := c.take(8, path)
		if err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(raw)), nil
	case IdlKindI128:
		raw, err := c.take(16, path)
		if err != nil {
			return nil, err
		}
		return decode128(raw, true), nil
	case IdlKindU8:
		b, err := c.takeByte(path)
		if err != nil {
			return nil, err
		}
		return uint64(b), nil
	case IdlKindU16:
		raw, err := c.take(2, path)
		if err != nil {
			return nil, err
		}
		return uint64(binary.LittleEndian.Uint16(raw)), nil
	case IdlKindU32:
		raw, err := c.take(4, path)
		if err != nil {
			return nil, err
		}
		return uint64(binary.LittleEndian.Uint32(raw)), nil
	case IdlKindU64:
		raw, err := c.take(8, path)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(raw), nil
	case IdlKindU128:
		raw, err := c.take(16, path)
		if err != nil {
			return nil, err
		}
		return decode128(raw, false), nil
	case IdlKindF32:
		raw, err := c.take(4, path)
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
	case IdlKindF64:
		raw, err := c.take(8, path)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	case IdlKindPublicKey:
		raw, err := c.take(32, path)
		if err != nil {
			return nil, err
		}
		return base58.Bitcoin.Encode(raw), nil
	case IdlKindString:
		raw, err := idl.decodeLenPrefixed(c, path)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(raw) {
			return nil, &InvalidUtf8Error{Path: path}
		}
		return string(raw), nil
	case IdlKindBytes:
		raw, err := idl.decodeLenPrefixed(c, path)
		if err != nil {
			return nil, err
		}
		return hex.EncodeToString(raw), nil
	case IdlKindArray:
		return idl.decodeSeq(c, t.Elem, t.Len, path)
	case IdlKindVec, IdlKindHashSet, IdlKindBTreeSet:
		length, err := idl.decodeU32Len(c, path)
		if err != nil {
			return nil, err
		}
		return idl.decodeSeq(c, t.Elem, length, path)
	case IdlKindOption:
		flag, err := c.takeByte(path)
		if err != nil {
			return nil, err
		}
		if flag == 0 {
			return nil, nil
		}
		return idl.decodeValue(c, t.Elem, path)
	case IdlKindCOption:
		raw, err := c.take(4, path)
		if err != nil {
			return nil, err
		}
		if binary.LittleEndian.Uint32(raw) == 0 {
			return nil, nil
		}
		return idl.decodeValue(c, t.Elem, path)
	case IdlKindTuple:
		out := make([]any, 0, len(t.Tuple))
		for i := range t.Tuple {
			v, err := idl.decodeValue(c, &t.Tuple[i], fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case IdlKindHashMap, IdlKindBTreeMap:
		length, err := idl.decodeU32Len(c, path)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, min(length, 1024))
		for i := 0; i < length; i++ {
			k, err := idl.decodeValue(c, t.Key, fmt.Sprintf("%s[%d].key", path, i))
			if err != nil {
				return nil, err
			}
			v, err := idl.decodeValue(c, t.Elem, fmt.Sprintf("%s[%d].value", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, map[string]any{"key": k, "value": v})
		}
		return out, nil
	case IdlKindDefined:
		return idl.decodeDefined(c, t.Defined, path)
	}
	return nil, fmt.Errorf("%s: unsupported IDL type", path)
}

// decodeDefined decodes a value of a named type resolved through the IDL's
// type index. Load-time validation guarantees resolution and acyclicity.
func (idl *Idl) decodeDefined(c *cursor, name, path string) (any, error) {
	def := idl.resolveType(name)
	if def == nil {
		return nil, &IdlError{Reason: fmt.Sprintf("type %q not found in IDL", name)}
	}
	switch def.Kind {
	case IdlDefStruct:
		out := make(map[string]any, len(def.Fields))
		for i := range def.Fields {
			f := &def.Fields[i]
			v, err := idl.decodeValue(c, &f.Type, path+"."+f.Name)
			if err != nil {
				return nil, err
			}
			out[f.Name] = v
		}
		return out, nil
	case IdlDefEnum:
		idx, err := c.takeByte(path)
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(def.Variants) {
			return nil, fmt.Errorf("%s: enum %s has no variant %d", path, name, idx)
		}
		variant := &def.Variants[idx]
		vpath := path + "." + variant.Name
		switch {
		case len(variant.TupleFields) > 0:
			out := make([]any, 0, len(variant.TupleFields))
			for i := range variant.TupleFields {
				v, err := idl.decodeValue(c, &variant.TupleFields[i], fmt.Sprintf("%s[%d]", vpath, i))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return map[string]any{variant.Name: out}, nil
		case len(variant.NamedFields) > 0:
			out := make(map[string]any, len(variant.NamedFields))
			for i := range variant.NamedFields {
				f := &variant.NamedFields[i]
				v, err := idl.decodeValue(c, &f.Type, vpath+"."+f.Name)
				if err != nil {
					return nil, err
				}
				out[f.Name] = v
			}
			return map[string]any{variant.Name: out}, nil
		default:
			return map[string]any{variant.Name: nil}, nil
		}
	case IdlDefAlias:
		return idl.decodeValue(c, def.Alias, path)
	}
	return nil, &IdlError{Reason: fmt.Sprintf("type %q has no body", name)}
}

func (idl *Idl) decodeSeq(c *cursor, elem *IdlType, n int, path string) ([]any, error) {
	// cap the initial allocation: n comes from the wire and underflow is
	// detected element by element
	out := make([]any, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		v, err := idl.decodeValue(c, elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (idl *Idl) decodeU32Len(c *cursor, path string) (int, error) {
	raw, err := c.take(4, path+" length")
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(raw)), nil
}

func (idl *Idl) decodeLenPrefixed(c *cursor, path string) ([]byte, error) {
	length, err := idl.decodeU32Len(c, path)
	if err != nil {
		return nil, err
	}
	return c.take(length, path)
}

// decode128 renders a 16-byte little-endian integer as a decimal string,
// two's complement when signed.
func decode128(raw []byte, signed bool) string {
	be := make([]byte, 16)
	for i := range raw {
		be[15-i] = raw[i]
	}
	v := new(big.Int).SetBytes(be)
	if signed && raw[15]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v.String()
}
