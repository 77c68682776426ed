package txdecode

import (
	"slices"
)

// Wire sizes used by the Solana message format.
const (
	solSignatureLen  = 64
	solAccountKeyLen = 32
	solHeaderLen     = 3
)

// solVersionIndicator flags a v0 message body; any other first byte is
// parsed as a legacy message.
const solVersionIndicator = 0x80

// SolanaMessageVersion distinguishes the two message body layouts.
type SolanaMessageVersion int

const (
	SolanaMessageLegacy SolanaMessageVersion = iota
	SolanaMessageV0
)

// SolanaMessageHeader contains the counts needed to distinguish signer and
// readonly accounts in a transaction message.
type SolanaMessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// SolanaCompiledInstruction is an instruction with account references
// replaced by indices into the message's combined account address space.
type SolanaCompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndices []uint8
	Data           []byte
}

// SolanaAddressTableLookup points into an on-chain address lookup table.
// Only the table address and the byte indexes travel with the transaction;
// the addresses themselves live on-chain and cannot be resolved here.
type SolanaAddressTableLookup struct {
	AccountKey      SolanaKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// SolanaMessage is the message portion of a Solana transaction, either
// legacy or v0. AddressTableLookups is empty for legacy messages.
type SolanaMessage struct {
	Version             SolanaMessageVersion
	Header              SolanaMessageHeader
	AccountKeys         []SolanaKey
	RecentBlockhash     SolanaKey
	Instructions        []SolanaCompiledInstruction
	AddressTableLookups []SolanaAddressTableLookup
}

// SolanaTx is a Solana transaction: a compact array of 64-byte signatures
// followed by the message body. Signatures are treated as opaque; unsigned
// transactions commonly carry all-zero placeholders.
type SolanaTx struct {
	Signatures [][]byte
	Message    SolanaMessage
}

// ParseSolanaTx parses a full transaction: the signatures envelope followed
// by a legacy or v0 message body. The whole buffer must be consumed.
func ParseSolanaTx(buf []byte) (*SolanaTx, error) {
	c := newCursor(buf)
	sigs, err := parseSolanaSignatures(c)
	if err != nil {
		return nil, err
	}
	msg, err := parseSolanaMessageBody(c)
	if err != nil {
		return nil, err
	}
	return &SolanaTx{Signatures: sigs, Message: *msg}, nil
}

// ParseSolanaMessage parses a bare message body (no signatures envelope).
// The whole buffer must be consumed.
func ParseSolanaMessage(buf []byte) (*SolanaMessage, error) {
	c := newCursor(buf)
	return parseSolanaMessageBody(c)
}

func parseSolanaSignatures(c *cursor) ([][]byte, error) {
	count, err := c.takeByte("signature array header")
	if err != nil {
		return nil, err
	}
	sigs := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		sig, err := c.take(solSignatureLen, "signatures")
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, slices.Clone(sig))
	}
	return sigs, nil
}

// parseSolanaMessageBody reads the version indicator and dispatches to the
// legacy or v0 layout. Both layouts end with a strict end-of-buffer check.
func parseSolanaMessageBody(c *cursor) (*SolanaMessage, error) {
	first, err := c.peekByte("message version")
	if err != nil {
		return nil, err
	}
	msg := &SolanaMessage{Version: SolanaMessageLegacy}
	if first == solVersionIndicator {
		c.takeByte("message version")
		msg.Version = SolanaMessageV0
	}

	if err := parseSolanaHeader(c, msg); err != nil {
		return nil, err
	}
	if err := parseSolanaAccounts(c, msg); err != nil {
		return nil, err
	}
	if err := parseSolanaBlockhash(c, msg); err != nil {
		return nil, err
	}
	if err := parseSolanaInstructions(c, msg); err != nil {
		return nil, err
	}
	if msg.Version == SolanaMessageV0 {
		if err := parseSolanaAddressTableLookups(c, msg); err != nil {
			return nil, err
		}
	}
	if err := c.expectEnd("top-level"); err != nil {
		return nil, err
	}
	return msg, nil
}

func parseSolanaHeader(c *cursor, msg *SolanaMessage) error {
	hdr, err := c.take(solHeaderLen, "message header")
	if err != nil {
		return err
	}
	msg.Header = SolanaMessageHeader{
		NumRequiredSignatures:       hdr[0],
		NumReadonlySignedAccounts:   hdr[1],
		NumReadonlyUnsignedAccounts: hdr[2],
	}
	return nil
}

func parseSolanaAccounts(c *cursor, msg *SolanaMessage) error {
	count, err := c.takeByte("accounts array header")
	if err != nil {
		return err
	}
	msg.AccountKeys = make([]SolanaKey, 0, count)
	for i := 0; i < int(count); i++ {
		raw, err := c.take(solAccountKeyLen, "accounts")
		if err != nil {
			return err
		}
		var k SolanaKey
		copy(k[:], raw)
		msg.AccountKeys = append(msg.AccountKeys, k)
	}
	return nil
}

func parseSolanaBlockhash(c *cursor, msg *SolanaMessage) error {
	raw, err := c.take(solAccountKeyLen, "block hash")
	if err != nil {
		return err
	}
	copy(msg.RecentBlockhash[:], raw)
	return nil
}

func parseSolanaInstructions(c *cursor, msg *SolanaMessage) error {
	count, err := c.takeByte("instructions array header")
	if err != nil {
		return err
	}
	msg.Instructions = make([]SolanaCompiledInstruction, 0, count)
	for i := 0; i < int(count); i++ {
		ix, err := parseSolanaInstruction(c)
		if err != nil {
			return err
		}
		msg.Instructions = append(msg.Instructions, *ix)
	}
	return nil
}

func parseSolanaInstruction(c *cursor) (*SolanaCompiledInstruction, error) {
	programIdx, err := c.takeByte("instruction program index")
	if err != nil {
		return nil, err
	}
	accounts, err := parseCompactBytes(c, "instruction account indexes")
	if err != nil {
		return nil, err
	}
	data, err := parseCompactBytes(c, "instruction data")
	if err != nil {
		return nil, err
	}
	return &SolanaCompiledInstruction{
		ProgramIDIndex: programIdx,
		AccountIndices: accounts,
		Data:           data,
	}, nil
}

func parseSolanaAddressTableLookups(c *cursor, msg *SolanaMessage) error {
	count, err := c.takeByte("address table lookup header")
	if err != nil {
		return err
	}
	msg.AddressTableLookups = make([]SolanaAddressTableLookup, 0, count)
	for i := 0; i < int(count); i++ {
		l, err := parseSolanaAddressTableLookup(c)
		if err != nil {
			return err
		}
		msg.AddressTableLookups = append(msg.AddressTableLookups, *l)
	}
	return nil
}

func parseSolanaAddressTableLookup(c *cursor) (*SolanaAddressTableLookup, error) {
	raw, err := c.take(solAccountKeyLen, "address table lookup account key")
	if err != nil {
		return nil, err
	}
	l := &SolanaAddressTableLookup{}
	copy(l.AccountKey[:], raw)
	if l.WritableIndexes, err = parseCompactBytes(c, "address table lookup writable indexes"); err != nil {
		return nil, err
	}
	if l.ReadonlyIndexes, err = parseCompactBytes(c, "address table lookup read-only indexes"); err != nil {
		return nil, err
	}
	return l, nil
}

// parseCompactBytes reads a compact array of individual bytes: a compact-u16
// length followed by that many bytes.
func parseCompactBytes(c *cursor, section string) ([]uint8, error) {
	length, err := c.readCompactU16(section)
	if err != nil {
		return nil, err
	}
	raw, err := c.take(length, section)
	if err != nil {
		return nil, err
	}
	return slices.Clone(raw), nil
}
