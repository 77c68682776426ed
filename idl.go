package txdecode

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/iancoleman/strcase"
)

// idlDiscriminatorLen is the length of a default anchor discriminator.
const idlDiscriminatorLen = 8

// IdlTypeKind enumerates the closed set of types an IDL may use.
type IdlTypeKind int

const (
	IdlKindBool IdlTypeKind = iota
	IdlKindI8
	IdlKindI16
	IdlKindI32
	IdlKindI64
	IdlKindI128
	IdlKindU8
	IdlKindU16
	IdlKindU32
	IdlKindU64
	IdlKindU128
	IdlKindF32
	IdlKindF64
	IdlKindString
	IdlKindBytes
	IdlKindPublicKey
	IdlKindArray
	IdlKindVec
	IdlKindOption
	IdlKindCOption
	IdlKindTuple
	IdlKindHashMap
	IdlKindBTreeMap
	IdlKindHashSet
	IdlKindBTreeSet
	IdlKindDefined
)

var idlPrimitiveNames = map[string]IdlTypeKind{
	"bool":      IdlKindBool,
	"i8":        IdlKindI8,
	"i16":       IdlKindI16,
	"i32":       IdlKindI32,
	"i64":       IdlKindI64,
	"i128":      IdlKindI128,
	"u8":        IdlKindU8,
	"u16":       IdlKindU16,
	"u32":       IdlKindU32,
	"u64":       IdlKindU64,
	"u128":      IdlKindU128,
	"f32":       IdlKindF32,
	"f64":       IdlKindF64,
	"string":    IdlKindString,
	"bytes":     IdlKindBytes,
	"publicKey": IdlKindPublicKey,
	"pubkey":    IdlKindPublicKey,
}

var idlKindNames = map[IdlTypeKind]string{
	IdlKindBool: "bool", IdlKindI8: "i8", IdlKindI16: "i16", IdlKindI32: "i32",
	IdlKindI64: "i64", IdlKindI128: "i128", IdlKindU8: "u8", IdlKindU16: "u16",
	IdlKindU32: "u32", IdlKindU64: "u64", IdlKindU128: "u128", IdlKindF32: "f32",
	IdlKindF64: "f64", IdlKindString: "string", IdlKindBytes: "bytes",
	IdlKindPublicKey: "publicKey", IdlKindArray: "array", IdlKindVec: "vec",
	IdlKindOption: "option", IdlKindCOption: "coption", IdlKindTuple: "tuple",
	IdlKindHashMap: "hashMap", IdlKindBTreeMap: "bTreeMap",
	IdlKindHashSet: "hashSet", IdlKindBTreeSet: "bTreeSet", IdlKindDefined: "defined",
}

// IdlType is one node of an IDL type tree. Composite kinds use Elem (array,
// vec, option, coption, set element and map value), Key (map key), Tuple or
// Len; Defined stores only the referenced name, resolved through the IDL's
// type index when decoding.
type IdlType struct {
	Kind    IdlTypeKind
	Elem    *IdlType
	Key     *IdlType
	Tuple   []IdlType
	Len     int
	Defined string
}

// String returns the name of the node's kind, mostly for error text.
func (t *IdlType) String() string {
	if t.Kind == IdlKindDefined {
		return "defined:" + t.Defined
	}
	return idlKindNames[t.Kind]
}

// UnmarshalJSON accepts the two encodings IDLs use for types: a bare string
// for primitives and a single-key object for composites, e.g. {"vec": "u8"},
// {"array": ["u16", 4]}, {"defined": "Position"} or {"defined": {"name":
// "Position"}}.
func (t *IdlType) UnmarshalJSON(data []byte) error {
	var prim string
	if err := json.Unmarshal(data, &prim); err == nil {
		kind, ok := idlPrimitiveNames[prim]
		if !ok {
			return &IdlError{Reason: fmt.Sprintf("unknown type name %q", prim)}
		}
		t.Kind = kind
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return &IdlError{Reason: "type must be a string or an object"}
	}
	for key, raw := range obj {
		switch key {
		case "vec", "option", "coption", "hashSet", "bTreeSet":
			t.Elem = new(IdlType)
			if err := json.Unmarshal(raw, t.Elem); err != nil {
				return err
			}
			switch key {
			case "vec":
				t.Kind = IdlKindVec
			case "option":
				t.Kind = IdlKindOption
			case "coption":
				t.Kind = IdlKindCOption
			case "hashSet":
				t.Kind = IdlKindHashSet
			case "bTreeSet":
				t.Kind = IdlKindBTreeSet
			}
			return nil
		case "array":
			var pair []json.RawMessage
			if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
				return &IdlError{Reason: "array type must be a [type, length] pair"}
			}
			t.Kind = IdlKindArray
			t.Elem = new(IdlType)
			if err := json.Unmarshal(pair[0], t.Elem); err != nil {
				return err
			}
			if err := json.Unmarshal(pair[1], &t.Len); err != nil || t.Len < 0 {
				return &IdlError{Reason: "array length must be a non-negative integer"}
			}
			return nil
		case "hashMap", "bTreeMap":
			var pair []json.RawMessage
			if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
				return &IdlError{Reason: "map type must be a [key, value] pair"}
			}
			if key == "hashMap" {
				t.Kind = IdlKindHashMap
			} else {
				t.Kind = IdlKindBTreeMap
			}
			t.Key = new(IdlType)
			t.Elem = new(IdlType)
			if err := json.Unmarshal(pair[0], t.Key); err != nil {
				return err
			}
			if err := json.Unmarshal(pair[1], t.Elem); err != nil {
				return err
			}
			return nil
		case "tuple":
			t.Kind = IdlKindTuple
			return json.Unmarshal(raw, &t.Tuple)
		case "defined":
			t.Kind = IdlKindDefined
			if err := json.Unmarshal(raw, &t.Defined); err == nil {
				return nil
			}
			var named struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw, &named); err != nil || named.Name == "" {
				return &IdlError{Reason: "defined type must be a name or a {name: ...} object"}
			}
			t.Defined = named.Name
			return nil
		}
	}
	return &IdlError{Reason: "unrecognized type object"}
}

// IdlField is a named, typed slot in instruction args, struct fields or
// named enum variant fields.
type IdlField struct {
	Name string  `json:"name"`
	Type IdlType `json:"type"`
}

// IdlAccountMeta describes one account an instruction expects. Both the
// legacy (isMut/isSigner/isOptional) and current (writable/signer/optional)
// JSON spellings are accepted; missing keys default to false.
type IdlAccountMeta struct {
	Name     string
	Mut      bool
	Signer   bool
	Optional bool
}

func (a *IdlAccountMeta) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string `json:"name"`
		IsMut    *bool  `json:"isMut"`
		Writable *bool  `json:"writable"`
		IsSigner *bool  `json:"isSigner"`
		Signer   *bool  `json:"signer"`
		IsOpt    *bool  `json:"isOptional"`
		Optional *bool  `json:"optional"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pick := func(a, b *bool) bool {
		if a != nil {
			return *a
		}
		if b != nil {
			return *b
		}
		return false
	}
	a.Name = raw.Name
	a.Mut = pick(raw.IsMut, raw.Writable)
	a.Signer = pick(raw.IsSigner, raw.Signer)
	a.Optional = pick(raw.IsOpt, raw.Optional)
	return nil
}

// IdlEnumVariant is an enum variant: scalar when both TupleFields and
// NamedFields are nil, tuple when
// TupleFields is set, struct when NamedFields is set.
type IdlEnumVariant struct {
	Name        string
	TupleFields []IdlType
	NamedFields []IdlField
}

func (v *IdlEnumVariant) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string            `json:"name"`
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Name = raw.Name
	if len(raw.Fields) == 0 {
		return nil
	}
	// Named fields are objects carrying both name and type; a tuple field is
	// just a type (string or single-key type object).
	var probe struct {
		Name *string         `json:"name"`
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(raw.Fields[0], &probe); err == nil && probe.Name != nil && probe.Type != nil {
		for _, f := range raw.Fields {
			var field IdlField
			if err := json.Unmarshal(f, &field); err != nil {
				return err
			}
			v.NamedFields = append(v.NamedFields, field)
		}
		return nil
	}
	for _, f := range raw.Fields {
		var ty IdlType
		if err := json.Unmarshal(f, &ty); err != nil {
			return err
		}
		v.TupleFields = append(v.TupleFields, ty)
	}
	return nil
}

// IdlTypeDefKind selects the body of a defined type.
type IdlTypeDefKind int

const (
	IdlDefStruct IdlTypeDefKind = iota
	IdlDefEnum
	IdlDefAlias
)

// IdlTypeDef is a user-defined type: a struct, an enum or an alias.
type IdlTypeDef struct {
	Name     string
	Kind     IdlTypeDefKind
	Fields   []IdlField
	Variants []IdlEnumVariant
	Alias    *IdlType
}

func (d *IdlTypeDef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string `json:"name"`
		Type struct {
			Kind     string           `json:"kind"`
			Fields   []IdlField       `json:"fields"`
			Variants []IdlEnumVariant `json:"variants"`
			Value    *IdlType         `json:"value"`
		} `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Name = raw.Name
	switch raw.Type.Kind {
	case "struct":
		d.Kind = IdlDefStruct
		d.Fields = raw.Type.Fields
	case "enum":
		d.Kind = IdlDefEnum
		d.Variants = raw.Type.Variants
	case "alias":
		d.Kind = IdlDefAlias
		if raw.Type.Value == nil {
			return &IdlError{Reason: fmt.Sprintf("alias type %q has no value", raw.Name)}
		}
		d.Alias = raw.Type.Value
	default:
		return &IdlError{Reason: fmt.Sprintf("type %q has unknown kind %q", raw.Name, raw.Type.Kind)}
	}
	return nil
}

// idlByteList decodes a JSON array of byte values, the shape IDLs use for
// explicit discriminators.
type idlByteList []byte

func (b *idlByteList) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return &IdlError{Reason: "discriminator bytes must be in 0..255"}
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// IdlInstruction describes one instruction handled by the program.
type IdlInstruction struct {
	Name          string           `json:"name"`
	Discriminator idlByteList      `json:"discriminator"`
	Accounts      []IdlAccountMeta `json:"accounts"`
	Args          []IdlField       `json:"args"`
}

// Idl is a loaded, immutable Anchor-style interface definition for one
// program.
type Idl struct {
	ProgramID    string
	Name         string
	Instructions []IdlInstruction
	Types        []IdlTypeDef

	typeIndex map[string]*IdlTypeDef
}

// DefaultAnchorDiscriminator computes the discriminator anchor derives for
// an instruction without an explicit one: the first 8 bytes of
// sha256("global:" + snake_case(name)).
func DefaultAnchorDiscriminator(name string) ([]byte, error) {
	if name == "" {
		return nil, &IdlError{Reason: "cannot compute a default discriminator for an unnamed instruction"}
	}
	sum := sha256.Sum256([]byte("global:" + strcase.ToSnake(name)))
	return sum[:idlDiscriminatorLen], nil
}

// ParseIdl loads an IDL from its JSON text. The caller supplies the program
// id and display name the IDL applies to. The returned value is fully
// validated: instruction discriminators are filled in and pairwise distinct,
// type names are unique, every defined-type reference resolves, and the
// defined-type reference graph is acyclic.
func ParseIdl(jsonText []byte, programID, name string) (*Idl, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(jsonText, &top); err != nil {
		return nil, &IdlError{Reason: "invalid JSON"}
	}

	rawInstructions, ok := top["instructions"]
	if !ok {
		return nil, &IdlMissingKeyError{Key: "instructions"}
	}
	if !jsonIsArray(rawInstructions) {
		return nil, &IdlArrayExpectedError{Key: "instructions"}
	}
	idl := &Idl{ProgramID: programID, Name: name}
	if err := json.Unmarshal(rawInstructions, &idl.Instructions); err != nil {
		return nil, &IdlError{Reason: fmt.Sprintf("failed to parse instructions array: %s", err)}
	}

	if rawTypes, ok := top["types"]; ok {
		if !jsonIsArray(rawTypes) {
			return nil, &IdlArrayExpectedError{Key: "types"}
		}
		if err := json.Unmarshal(rawTypes, &idl.Types); err != nil {
			return nil, &IdlError{Reason: fmt.Sprintf("failed to parse types array: %s", err)}
		}
	}

	for i := range idl.Instructions {
		if len(idl.Instructions[i].Discriminator) == 0 {
			disc, err := DefaultAnchorDiscriminator(idl.Instructions[i].Name)
			if err != nil {
				return nil, err
			}
			idl.Instructions[i].Discriminator = disc
		}
	}
	if err := idl.checkDiscriminators(); err != nil {
		return nil, err
	}
	if err := idl.buildTypeIndex(); err != nil {
		return nil, err
	}
	if err := idl.checkTypeCycles(); err != nil {
		return nil, err
	}
	return idl, nil
}

func jsonIsArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// checkDiscriminators rejects two instructions whose discriminators are
// equal over their shared prefix length; such a pair could never be told
// apart by prefix matching.
func (idl *Idl) checkDiscriminators() error {
	for i := range idl.Instructions {
		for j := i + 1; j < len(idl.Instructions); j++ {
			a := idl.Instructions[i].Discriminator
			b := idl.Instructions[j].Discriminator
			n := min(len(a), len(b))
			if bytes.Equal(a[:n], b[:n]) {
				return &IdlError{Reason: fmt.Sprintf("instructions %q and %q have colliding discriminators",
					idl.Instructions[i].Name, idl.Instructions[j].Name)}
			}
		}
	}
	return nil
}

func (idl *Idl) buildTypeIndex() error {
	idl.typeIndex = make(map[string]*IdlTypeDef, len(idl.Types))
	for i := range idl.Types {
		name := idl.Types[i].Name
		if _, dup := idl.typeIndex[name]; dup {
			return &IdlDuplicateTypeError{Name: name}
		}
		idl.typeIndex[name] = &idl.Types[i]
	}
	return nil
}

// resolveType returns the definition of a named type, or nil.
func (idl *Idl) resolveType(name string) *IdlTypeDef {
	return idl.typeIndex[name]
}

// checkTypeCycles runs a DFS over the defined-type reference graph. The
// traversal is strict: it descends through every composite, including
// Option/Vec/Array, so a type that mentions itself at any depth is rejected.
// Unknown references are rejected here too, so decoding never meets one.
func (idl *Idl) checkTypeCycles() error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(idl.Types))

	var visitDef func(name string) error
	var visitType func(t *IdlType) error

	visitType = func(t *IdlType) error {
		switch t.Kind {
		case IdlKindArray, IdlKindVec, IdlKindOption, IdlKindCOption, IdlKindHashSet, IdlKindBTreeSet:
			return visitType(t.Elem)
		case IdlKindHashMap, IdlKindBTreeMap:
			if err := visitType(t.Key); err != nil {
				return err
			}
			return visitType(t.Elem)
		case IdlKindTuple:
			for i := range t.Tuple {
				if err := visitType(&t.Tuple[i]); err != nil {
					return err
				}
			}
			return nil
		case IdlKindDefined:
			return visitDef(t.Defined)
		}
		return nil
	}

	visitDef = func(name string) error {
		switch state[name] {
		case onPath:
			return &IdlTypeCycleError{Name: name}
		case done:
			return nil
		}
		def := idl.resolveType(name)
		if def == nil {
			return &IdlError{Reason: fmt.Sprintf("type %q not found in IDL", name)}
		}
		state[name] = onPath
		switch def.Kind {
		case IdlDefStruct:
			for i := range def.Fields {
				if err := visitType(&def.Fields[i].Type); err != nil {
					return err
				}
			}
		case IdlDefEnum:
			for i := range def.Variants {
				v := &def.Variants[i]
				for j := range v.TupleFields {
					if err := visitType(&v.TupleFields[j]); err != nil {
						return err
					}
				}
				for j := range v.NamedFields {
					if err := visitType(&v.NamedFields[j].Type); err != nil {
						return err
					}
				}
			}
		case IdlDefAlias:
			if err := visitType(def.Alias); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for i := range idl.Types {
		if err := visitDef(idl.Types[i].Name); err != nil {
			return err
		}
	}
	// Instruction args may reference defined types too; they cannot create a
	// cycle on their own but must resolve.
	for i := range idl.Instructions {
		for j := range idl.Instructions[i].Args {
			if err := visitType(&idl.Instructions[i].Args[j].Type); err != nil {
				return err
			}
		}
	}
	return nil
}

// IdlRegistry maps program ids to loaded IDLs. A nil registry is valid and
// empty.
type IdlRegistry struct {
	byProgram map[string]*Idl
}

// NewIdlRegistry returns an empty registry.
func NewIdlRegistry() *IdlRegistry {
	return &IdlRegistry{byProgram: make(map[string]*Idl)}
}

// Register adds an IDL under its program id, replacing any previous entry.
func (r *IdlRegistry) Register(idl *Idl) {
	r.byProgram[idl.ProgramID] = idl
}

// Lookup returns the IDL registered for a program id, or nil.
func (r *IdlRegistry) Lookup(programID string) *Idl {
	if r == nil {
		return nil
	}
	return r.byProgram[programID]
}
