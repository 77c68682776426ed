package txdecode

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Encoding selects the text framing of a transaction input.
type Encoding int

const (
	EncodingHex Encoding = iota
	EncodingBase64
)

// DecodeInput converts a textual transaction payload into bytes.
func DecodeInput(input string, enc Encoding) ([]byte, error) {
	if input == "" {
		return nil, ErrInputEmpty
	}
	switch enc {
	case EncodingBase64:
		buf, err := base64.StdEncoding.DecodeString(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidBase64, err)
		}
		return buf, nil
	default:
		if len(input)%2 != 0 {
			return nil, ErrOddHexLength
		}
		buf, err := hex.DecodeString(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidHex, err)
		}
		return buf, nil
	}
}

// SolanaInstruction is the decoded form of a single instruction. Accounts
// holds only the statically resolved participants and AddressTableLookups
// only the symbolic ones, each preserving its relative order from the
// instruction's original account index sequence.
type SolanaInstruction struct {
	ProgramKey          string                     `json:"program_key"`
	Accounts            []SolanaAccount            `json:"accounts"`
	InstructionDataHex  string                     `json:"instruction_data_hex"`
	AddressTableLookups []SingleAddressTableLookup `json:"address_table_lookups"`
	Decoded             *DecodedIdlInstruction     `json:"decoded,omitempty"`
}

// AddressTableLookupInfo is the rendered form of one address-table-lookup
// entry of a v0 message.
type AddressTableLookupInfo struct {
	AddressTableKey string `json:"address_table_key"`
	WritableIndexes []int  `json:"writable_indexes"`
	ReadonlyIndexes []int  `json:"readonly_indexes"`
}

// SolanaMetadata is the human-auditable description of a parsed Solana
// transaction or message, suitable for policy evaluation and signing-UI
// previews.
type SolanaMetadata struct {
	Signatures          []string                 `json:"signatures"`
	AccountKeys         []string                 `json:"account_keys"`
	ProgramKeys         []string                 `json:"program_keys"`
	Header              SolanaMessageHeader      `json:"header"`
	Instructions        []SolanaInstruction      `json:"instructions"`
	Transfers           []SolTransfer            `json:"transfers"`
	SplTransfers        []SplTransfer            `json:"spl_transfers"`
	RecentBlockhash     string                   `json:"recent_blockhash"`
	AddressTableLookups []AddressTableLookupInfo `json:"address_table_lookups"`
}

// ParseSolana decodes a Solana payload into its metadata record. When full
// is true the input must carry the signatures envelope; otherwise it must be
// a bare message body. The mode flag is authoritative, there is no probing:
// a failure in either mode only hints at the other one.
func ParseSolana(raw []byte, full bool) (*SolanaMetadata, error) {
	return ParseSolanaWithIdls(raw, full, nil)
}

// ParseSolanaWithIdls is ParseSolana with an optional IDL registry; when an
// instruction's program id matches a registered IDL, its data is decoded
// against that IDL and attached to the instruction record.
func ParseSolanaWithIdls(raw []byte, full bool, reg *IdlRegistry) (*SolanaMetadata, error) {
	if len(raw) == 0 {
		return nil, ErrInputEmpty
	}
	var tx *SolanaTx
	if full {
		parsed, err := ParseSolanaTx(raw)
		if err != nil {
			return nil, fmt.Errorf("error parsing full transaction, if this is just a message parse using the --message flag: %w", err)
		}
		tx = parsed
	} else {
		msg, err := ParseSolanaMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("error parsing message, if this is a full transaction with signatures or signature placeholders parse using the --transaction flag: %w", err)
		}
		tx = &SolanaTx{Message: *msg}
	}
	return tx.Metadata(reg)
}

// Metadata assembles the full metadata record for a parsed transaction.
func (tx *SolanaTx) Metadata(reg *IdlRegistry) (*SolanaMetadata, error) {
	msg := &tx.Message
	meta := &SolanaMetadata{
		Signatures:          make([]string, 0, len(tx.Signatures)),
		AccountKeys:         make([]string, 0, len(msg.AccountKeys)),
		ProgramKeys:         []string{},
		Header:              msg.Header,
		Transfers:           []SolTransfer{},
		SplTransfers:        []SplTransfer{},
		RecentBlockhash:     msg.RecentBlockhash.String(),
		AddressTableLookups: []AddressTableLookupInfo{},
	}
	for _, sig := range tx.Signatures {
		meta.Signatures = append(meta.Signatures, hex.EncodeToString(sig))
	}
	for i, k := range msg.AccountKeys {
		meta.AccountKeys = append(meta.AccountKeys, k.String())
		if msg.isInvoked(i) {
			meta.ProgramKeys = append(meta.ProgramKeys, k.String())
		}
	}
	for _, l := range msg.AddressTableLookups {
		info := AddressTableLookupInfo{
			AddressTableKey: l.AccountKey.String(),
			WritableIndexes: []int{},
			ReadonlyIndexes: []int{},
		}
		for _, idx := range l.WritableIndexes {
			info.WritableIndexes = append(info.WritableIndexes, int(idx))
		}
		for _, idx := range l.ReadonlyIndexes {
			info.ReadonlyIndexes = append(info.ReadonlyIndexes, int(idx))
		}
		meta.AddressTableLookups = append(meta.AddressTableLookups, info)
	}

	meta.Instructions = make([]SolanaInstruction, 0, len(msg.Instructions))
	for i, ix := range msg.Instructions {
		inst, err := msg.decodeInstruction(i, &ix, reg, meta)
		if err != nil {
			return nil, err
		}
		meta.Instructions = append(meta.Instructions, *inst)
	}
	return meta, nil
}

// decodeInstruction resolves one compiled instruction's account references,
// runs the native-program interpreter over the interleaved reference list,
// and attaches an IDL decode when the program id has one registered.
// Extracted transfers are appended to meta.
func (msg *SolanaMessage) decodeInstruction(index int, ix *SolanaCompiledInstruction, reg *IdlRegistry, meta *SolanaMetadata) (*SolanaInstruction, error) {
	refs := make([]AddressRef, 0, len(ix.AccountIndices))
	inst := &SolanaInstruction{
		Accounts:            []SolanaAccount{},
		InstructionDataHex:  hex.EncodeToString(ix.Data),
		AddressTableLookups: []SingleAddressTableLookup{},
	}
	for _, ai := range ix.AccountIndices {
		ref, err := msg.resolveAccountIndex(int(ai), index)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
		switch r := ref.(type) {
		case StaticAddressRef:
			inst.Accounts = append(inst.Accounts, r.Account)
		case LookupAddressRef:
			inst.AddressTableLookups = append(inst.AddressTableLookups, r.Lookup)
		}
	}

	programRef, err := msg.resolveAccountIndex(int(ix.ProgramIDIndex), index)
	if err != nil {
		return nil, err
	}
	inst.ProgramKey = programRef.String()

	switch inst.ProgramKey {
	case SolanaSystemProgram.String():
		transfer, err := interpretSystemInstruction(ix.Data, refs)
		if err != nil {
			return nil, err
		}
		if transfer != nil {
			meta.Transfers = append(meta.Transfers, *transfer)
		}
	case SolanaTokenProgram.String(), SolanaToken2022Program.String():
		data, err := parseSplInstructionData(ix.Data)
		if err != nil {
			return nil, err
		}
		transfer, err := interpretSplInstruction(data, refs)
		if err != nil {
			return nil, err
		}
		if transfer != nil {
			meta.SplTransfers = append(meta.SplTransfers, *transfer)
		}
	}

	if idl := reg.Lookup(inst.ProgramKey); idl != nil {
		decoded, err := idl.DecodeInstruction(ix.Data, refs)
		if err != nil {
			return nil, err
		}
		inst.Decoded = decoded
	}
	return inst, nil
}
