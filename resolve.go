package txdecode

// SolanaAccount is a fully resolved static account as it appears in the
// decoded output: base58 address plus the permissions derived from the
// message header.
type SolanaAccount struct {
	AccountKey string `json:"account_key"`
	Signer     bool   `json:"signer"`
	Writable   bool   `json:"writable"`
}

// SingleAddressTableLookup is a symbolic reference to one slot of an
// on-chain address lookup table. The address itself is not known here.
type SingleAddressTableLookup struct {
	AddressTableKey string `json:"address_table_key"`
	Index           int    `json:"index"`
	Writable        bool   `json:"writable"`
}

// AddressRef is either a fully resolved static account or a symbolic
// address-table-lookup reference. Its string form is the base58 address for
// the static variant and the literal ADDRESS_TABLE_LOOKUP otherwise, which
// keeps transfer records flat strings even when a participant is only known
// by table reference.
type AddressRef interface {
	String() string
	addressRef()
}

// StaticAddressRef wraps a resolved static account.
type StaticAddressRef struct {
	Account SolanaAccount
}

func (r StaticAddressRef) String() string { return r.Account.AccountKey }
func (r StaticAddressRef) addressRef()    {}

// LookupAddressRef wraps an address-table-lookup reference.
type LookupAddressRef struct {
	Lookup SingleAddressTableLookup
}

func (r LookupAddressRef) String() string { return "ADDRESS_TABLE_LOOKUP" }
func (r LookupAddressRef) addressRef()    {}

// isSigner reports whether static account i must sign the transaction.
func (msg *SolanaMessage) isSigner(i int) bool {
	return i < int(msg.Header.NumRequiredSignatures)
}

// isWritable reports whether static account i may be written. Signed
// accounts come first with the readonly-signed block at their tail, then
// unsigned accounts with the readonly-unsigned block at theirs.
func (msg *SolanaMessage) isWritable(i int) bool {
	required := int(msg.Header.NumRequiredSignatures)
	if i < required {
		return i < required-int(msg.Header.NumReadonlySignedAccounts)
	}
	return i < len(msg.AccountKeys)-int(msg.Header.NumReadonlyUnsignedAccounts)
}

// isInvoked reports whether static account i is referenced as the program id
// of at least one instruction.
func (msg *SolanaMessage) isInvoked(i int) bool {
	for _, ix := range msg.Instructions {
		if int(ix.ProgramIDIndex) == i {
			return true
		}
	}
	return false
}

// resolveAccountIndex maps an instruction account index onto the message's
// combined address space: static keys first, then the writable slices of
// every lookup in lookup order, then the readonly slices in the same order.
// instruction is only used for error attribution.
func (msg *SolanaMessage) resolveAccountIndex(index int, instruction int) (AddressRef, error) {
	if index < len(msg.AccountKeys) {
		return StaticAddressRef{Account: SolanaAccount{
			AccountKey: msg.AccountKeys[index].String(),
			Signer:     msg.isSigner(index),
			Writable:   msg.isWritable(index),
		}}, nil
	}
	if msg.Version != SolanaMessageV0 {
		return nil, &OutOfRangeAccountIndexError{Instruction: instruction, Slot: index}
	}

	j := index - len(msg.AccountKeys)
	parsed := 0
	for _, l := range msg.AddressTableLookups {
		if j < parsed+len(l.WritableIndexes) {
			return LookupAddressRef{Lookup: SingleAddressTableLookup{
				AddressTableKey: l.AccountKey.String(),
				Index:           int(l.WritableIndexes[j-parsed]),
				Writable:        true,
			}}, nil
		}
		parsed += len(l.WritableIndexes)
	}
	for _, l := range msg.AddressTableLookups {
		if j < parsed+len(l.ReadonlyIndexes) {
			return LookupAddressRef{Lookup: SingleAddressTableLookup{
				AddressTableKey: l.AccountKey.String(),
				Index:           int(l.ReadonlyIndexes[j-parsed]),
				Writable:        false,
			}}, nil
		}
		parsed += len(l.ReadonlyIndexes)
	}
	return nil, &OutOfRangeAccountIndexError{Instruction: instruction, Slot: index}
}
