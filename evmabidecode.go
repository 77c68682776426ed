package txdecode

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/BottleFmt/gobottle"
	"golang.org/x/crypto/sha3"
)

// EVM ABI decoding: parse a Solidity ABI JSON document, index its functions
// by 4-byte selector, and decode calldata against the matching function's
// inputs.

// AbiParam is one input or output parameter of an ABI function.
type AbiParam struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Components []AbiParam `json:"components,omitempty"`
}

// AbiFunction is one function entry of a Solidity ABI.
type AbiFunction struct {
	Name            string     `json:"name"`
	Inputs          []AbiParam `json:"inputs"`
	Outputs         []AbiParam `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
}

// canonicalType renders a parameter's canonical type name, expanding tuples
// into their parenthesized component list as the selector hash requires.
func canonicalType(p *AbiParam) string {
	if !strings.HasPrefix(p.Type, "tuple") {
		return p.Type
	}
	parts := make([]string, 0, len(p.Components))
	for i := range p.Components {
		parts = append(parts, canonicalType(&p.Components[i]))
	}
	// whatever follows "tuple" is the array suffix, e.g. "[]" or "[2][]"
	return "(" + strings.Join(parts, ",") + ")" + p.Type[len("tuple"):]
}

// Signature returns the canonical signature, e.g. "transfer(address,uint256)".
func (f *AbiFunction) Signature() string {
	parts := make([]string, 0, len(f.Inputs))
	for i := range f.Inputs {
		parts = append(parts, canonicalType(&f.Inputs[i]))
	}
	return f.Name + "(" + strings.Join(parts, ",") + ")"
}

// Selector returns the first 4 bytes of keccak256 of the canonical
// signature.
func (f *AbiFunction) Selector() [4]byte {
	sum := gobottle.Hash([]byte(f.Signature()), sha3.NewLegacyKeccak256)
	var sel [4]byte
	copy(sel[:], sum[:4])
	return sel
}

// EvmAbi is a parsed contract ABI with its functions indexed by selector.
type EvmAbi struct {
	Functions []*AbiFunction

	bySelector map[[4]byte]*AbiFunction
}

// ParseEvmAbi parses a standard Solidity ABI JSON document, keeping the
// function entries and indexing them by computed selector. Two functions
// hashing to the same selector fail with SelectorCollisionError.
func ParseEvmAbi(jsonText []byte) (*EvmAbi, error) {
	var entries []struct {
		Type string `json:"type"`
		AbiFunction
	}
	if err := json.Unmarshal(jsonText, &entries); err != nil {
		return nil, fmt.Errorf("invalid ABI JSON: %w", err)
	}
	abi := &EvmAbi{bySelector: make(map[[4]byte]*AbiFunction)}
	for i := range entries {
		if entries[i].Type != "function" {
			continue
		}
		fn := entries[i].AbiFunction
		sel := fn.Selector()
		if _, dup := abi.bySelector[sel]; dup {
			return nil, &SelectorCollisionError{Selector: sel}
		}
		abi.bySelector[sel] = &fn
		abi.Functions = append(abi.Functions, &fn)
	}
	return abi, nil
}

// FunctionBySelector returns the function with the given selector, or nil.
func (abi *EvmAbi) FunctionBySelector(sel [4]byte) *AbiFunction {
	return abi.bySelector[sel]
}

// AbiValue is a decoded parameter value. Concrete types tag the wire class
// the value was decoded as.
type AbiValue interface {
	String() string
	abiValue()
}

// AbiAddress is a decoded address parameter, EIP-55 checksummed.
type AbiAddress string

func (v AbiAddress) String() string { return string(v) }
func (v AbiAddress) abiValue()      {}

// AbiUint is a decoded integer parameter; negative for intN parameters with
// the sign bit set.
type AbiUint struct {
	Value *big.Int
}

func (v AbiUint) String() string { return v.Value.String() }
func (v AbiUint) abiValue()      {}

// AbiBool is a decoded bool parameter.
type AbiBool bool

func (v AbiBool) String() string {
	if v {
		return "true"
	}
	return "false"
}
func (v AbiBool) abiValue() {}

// AbiBytes32 is a decoded bytes32 parameter.
type AbiBytes32 [32]byte

func (v AbiBytes32) String() string { return "0x" + hex.EncodeToString(v[:]) }
func (v AbiBytes32) abiValue()      {}

// AbiString is a decoded string parameter that held valid UTF-8.
type AbiString string

func (v AbiString) String() string { return string(v) }
func (v AbiString) abiValue()      {}

// AbiBytes is a decoded bytes parameter, or a string parameter whose
// payload was not valid UTF-8.
type AbiBytes []byte

func (v AbiBytes) String() string { return "0x" + hex.EncodeToString(v) }
func (v AbiBytes) abiValue()      {}

// AbiArray is a decoded dynamic array parameter. Only the element count is
// decoded; elements are not expanded.
type AbiArray struct {
	Length   int
	ElemType string
}

func (v AbiArray) String() string { return fmt.Sprintf("%s array of %d elements", v.ElemType, v.Length) }
func (v AbiArray) abiValue()      {}

// AbiUnsupported marks a parameter whose type name the decoder does not
// recognize. It is a value, not an error; the rest of the calldata still
// decodes.
type AbiUnsupported string

func (v AbiUnsupported) String() string { return "unsupported type " + string(v) }
func (v AbiUnsupported) abiValue()      {}

// DecodedParam is one decoded calldata parameter.
type DecodedParam struct {
	Name  string
	Type  string
	Value AbiValue
}

// EvmCallInfo is the decoded form of one EVM call: the matched function and
// its decoded input parameters.
type EvmCallInfo struct {
	Function *AbiFunction
	Params   []DecodedParam
}

// DecodeCallData decodes calldata (4-byte selector + ABI-encoded arguments)
// against the ABI. Static parameters are read from their 32-byte head word;
// dynamic parameters follow their head offset into the post-selector region
// and must not be truncated.
func (abi *EvmAbi) DecodeCallData(data []byte) (*EvmCallInfo, error) {
	if len(data) < 4 {
		return nil, &InsufficientBytesError{Section: "function selector"}
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	fn := abi.FunctionBySelector(sel)
	if fn == nil {
		return nil, fmt.Errorf("no function in ABI for selector 0x%s", hex.EncodeToString(sel[:]))
	}

	args := data[4:]
	info := &EvmCallInfo{Function: fn}
	for i := range fn.Inputs {
		param := &fn.Inputs[i]
		head := i * 32
		if len(args) < head+32 {
			return nil, &InsufficientBytesError{Section: "parameter " + paramLabel(param, i)}
		}
		word := args[head : head+32]

		var value AbiValue
		var err error
		if isDynamicAbiType(param.Type) {
			value, err = decodeDynamicAbiParam(param, i, args, word)
		} else {
			value = decodeStaticAbiParam(param, word)
		}
		if err != nil {
			return nil, err
		}
		info.Params = append(info.Params, DecodedParam{Name: param.Name, Type: param.Type, Value: value})
	}
	return info, nil
}

func paramLabel(p *AbiParam, index int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("#%d", index)
}

// isDynamicAbiType reports whether the type is head/tail encoded: string,
// bytes, and an unsized "[]" array dimension make a parameter dynamic;
// fixed-size "[N]" arrays are treated as static.
func isDynamicAbiType(t string) bool {
	return t == "string" || t == "bytes" || strings.Contains(t, "[]")
}

// decodeStaticAbiParam interprets a head word directly. Unrecognized type
// names decode to AbiUnsupported rather than failing.
func decodeStaticAbiParam(p *AbiParam, word []byte) AbiValue {
	t := p.Type
	if strings.Contains(t, "[") {
		// fixed-size arrays are not expanded
		return AbiUnsupported(t)
	}
	switch {
	case t == "address":
		// rightmost 20 bytes of the word; the leading 12 are not validated
		return AbiAddress(eip55(word[12:32]))
	case t == "bool":
		return AbiBool(new(big.Int).SetBytes(word).Sign() != 0)
	case t == "bytes32":
		var v AbiBytes32
		copy(v[:], word)
		return v
	case strings.HasPrefix(t, "uint"):
		return AbiUint{Value: new(big.Int).SetBytes(word)}
	case strings.HasPrefix(t, "int"):
		v := new(big.Int).SetBytes(word)
		if word[0]&0x80 != 0 {
			v.Sub(v, big2pow256)
		}
		return AbiUint{Value: v}
	case strings.HasPrefix(t, "bytes"):
		var n int
		if _, err := fmt.Sscanf(t, "bytes%d", &n); err == nil && n > 0 && n <= 32 {
			return AbiBytes(word[:n])
		}
	}
	return AbiUnsupported(t)
}

// decodeDynamicAbiParam follows a head offset into the post-selector region
// and decodes length + payload. Arrays only report their element count.
func decodeDynamicAbiParam(p *AbiParam, index int, args, word []byte) (AbiValue, error) {
	label := paramLabel(p, index)
	offset := new(big.Int).SetBytes(word)
	if !offset.IsInt64() || offset.Int64() > int64(len(args)) {
		return nil, &InsufficientBytesError{Section: "parameter " + label + " offset"}
	}
	tail := args[offset.Int64():]
	if len(tail) < 32 {
		return nil, &InsufficientBytesError{Section: "parameter " + label + " length"}
	}
	length := new(big.Int).SetBytes(tail[:32])
	if !length.IsInt64() || length.Int64() < 0 {
		return nil, &InsufficientBytesError{Section: "parameter " + label + " payload"}
	}
	n := int(length.Int64())

	switch {
	case p.Type == "string", p.Type == "bytes":
		if n > len(tail)-32 {
			return nil, &InsufficientBytesError{Section: "parameter " + label + " payload"}
		}
		payload := tail[32 : 32+n]
		if p.Type == "string" {
			if utf8.Valid(payload) {
				return AbiString(payload), nil
			}
			// degrade to hex bytes when the payload is not valid UTF-8
			return AbiBytes(payload), nil
		}
		return AbiBytes(payload), nil
	case strings.Contains(p.Type, "[]"):
		if n > (len(tail)-32)/32 {
			return nil, &InsufficientBytesError{Section: "parameter " + label + " payload"}
		}
		return AbiArray{Length: n, ElemType: strings.TrimSuffix(p.Type, "[]")}, nil
	}
	return AbiUnsupported(p.Type), nil
}
