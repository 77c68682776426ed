package txdecode

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// SolanaAccountMeta describes an account referenced by an instruction being
// built.
type SolanaAccountMeta struct {
	Pubkey     SolanaKey
	IsSigner   bool
	IsWritable bool
}

// SolanaInstructionSpec is a high-level instruction before account
// compilation.
type SolanaInstructionSpec struct {
	ProgramID SolanaKey
	Accounts  []SolanaAccountMeta
	Data      []byte
}

// SolanaTransferInstruction returns a System Program transfer instruction
// that moves lamports from one account to another.
func SolanaTransferInstruction(from, to SolanaKey, lamports uint64) SolanaInstructionSpec {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], sysInstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return SolanaInstructionSpec{
		ProgramID: SolanaSystemProgram,
		Accounts: []SolanaAccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsSigner: false, IsWritable: true},
		},
		Data: data,
	}
}

// SplTransferInstruction returns a Transfer instruction for the given token
// program (SPL Token or Token-2022).
func SplTransferInstruction(program, source, dest, owner SolanaKey, amount uint64) SolanaInstructionSpec {
	data := make([]byte, 9)
	data[0] = splTagTransfer
	binary.LittleEndian.PutUint64(data[1:9], amount)
	return SolanaInstructionSpec{
		ProgramID: program,
		Accounts: []SolanaAccountMeta{
			{Pubkey: source, IsWritable: true},
			{Pubkey: dest, IsWritable: true},
			{Pubkey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// SplTransferCheckedInstruction returns a TransferChecked instruction for
// the given token program.
func SplTransferCheckedInstruction(program, source, mint, dest, owner SolanaKey, amount uint64, decimals uint8) SolanaInstructionSpec {
	data := make([]byte, 10)
	data[0] = splTagTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals
	return SolanaInstructionSpec{
		ProgramID: program,
		Accounts: []SolanaAccountMeta{
			{Pubkey: source, IsWritable: true},
			{Pubkey: mint},
			{Pubkey: dest, IsWritable: true},
			{Pubkey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// SplTransferCheckedWithFeeInstruction returns a Token-2022
// TransferCheckedWithFee instruction.
func SplTransferCheckedWithFeeInstruction(source, mint, dest, owner SolanaKey, amount uint64, decimals uint8, fee uint64) SolanaInstructionSpec {
	data := make([]byte, 19)
	data[0] = splTagTransferFeeExtension
	data[1] = splSubTagTransferCheckedFee
	binary.LittleEndian.PutUint64(data[2:10], amount)
	data[10] = decimals
	binary.LittleEndian.PutUint64(data[11:19], fee)
	return SolanaInstructionSpec{
		ProgramID: SolanaToken2022Program,
		Accounts: []SolanaAccountMeta{
			{Pubkey: source, IsWritable: true},
			{Pubkey: mint},
			{Pubkey: dest, IsWritable: true},
			{Pubkey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// solanaAccountInfo tracks the merged permissions for a single account during compilation.
type solanaAccountInfo struct {
	key        SolanaKey
	isSigner   bool
	isWritable bool
}

// NewSolanaTx compiles a set of high-level instructions into a transaction.
// The fee payer is always placed first in the account list as a writable
// signer; signature slots are left as zero placeholders until Sign is
// called.
func NewSolanaTx(feePayer, recentBlockhash SolanaKey, instructions ...SolanaInstructionSpec) *SolanaTx {
	// Collect and deduplicate accounts, merging permissions.
	seen := make(map[SolanaKey]*solanaAccountInfo)

	// Fee payer is always signer + writable.
	seen[feePayer] = &solanaAccountInfo{key: feePayer, isSigner: true, isWritable: true}

	for _, ix := range instructions {
		for _, acc := range ix.Accounts {
			if info, ok := seen[acc.Pubkey]; ok {
				info.isSigner = info.isSigner || acc.IsSigner
				info.isWritable = info.isWritable || acc.IsWritable
			} else {
				seen[acc.Pubkey] = &solanaAccountInfo{
					key:        acc.Pubkey,
					isSigner:   acc.IsSigner,
					isWritable: acc.IsWritable,
				}
			}
		}
		// Program IDs are added as non-signer, readonly (unless already present with higher perms).
		if _, ok := seen[ix.ProgramID]; !ok {
			seen[ix.ProgramID] = &solanaAccountInfo{key: ix.ProgramID}
		}
	}

	// Sort accounts into 4 groups:
	// 1. signer + writable
	// 2. signer + readonly
	// 3. non-signer + writable
	// 4. non-signer + readonly
	// Within each group, maintain stable order (fee payer always first overall).
	var signerWritable, signerReadonly, nonsignerWritable, nonsignerReadonly []solanaAccountInfo
	for _, info := range seen {
		if info.key == feePayer {
			continue // handled separately
		}
		switch {
		case info.isSigner && info.isWritable:
			signerWritable = append(signerWritable, *info)
		case info.isSigner && !info.isWritable:
			signerReadonly = append(signerReadonly, *info)
		case !info.isSigner && info.isWritable:
			nonsignerWritable = append(nonsignerWritable, *info)
		default:
			nonsignerReadonly = append(nonsignerReadonly, *info)
		}
	}

	// Stable sort each group by key bytes for deterministic ordering.
	sortByKey := func(s []solanaAccountInfo) {
		sort.SliceStable(s, func(i, j int) bool {
			return slices.Compare(s[i].key[:], s[j].key[:]) < 0
		})
	}
	sortByKey(signerWritable)
	sortByKey(signerReadonly)
	sortByKey(nonsignerWritable)
	sortByKey(nonsignerReadonly)

	// Build the final account list.
	feePayerInfo := *seen[feePayer]
	allAccounts := make([]solanaAccountInfo, 0, len(seen))
	allAccounts = append(allAccounts, feePayerInfo)
	allAccounts = append(allAccounts, signerWritable...)
	allAccounts = append(allAccounts, signerReadonly...)
	allAccounts = append(allAccounts, nonsignerWritable...)
	allAccounts = append(allAccounts, nonsignerReadonly...)

	// Build index map.
	indexMap := make(map[SolanaKey]uint8, len(allAccounts))
	accountKeys := make([]SolanaKey, len(allAccounts))
	for i, acc := range allAccounts {
		indexMap[acc.key] = uint8(i)
		accountKeys[i] = acc.key
	}

	// Compute header counts.
	numSigners := 1 + len(signerWritable) + len(signerReadonly) // +1 for fee payer
	numReadonlySigned := len(signerReadonly)
	numReadonlyUnsigned := len(nonsignerReadonly)

	// Compile instructions.
	compiled := make([]SolanaCompiledInstruction, len(instructions))
	for i, ix := range instructions {
		indices := make([]uint8, len(ix.Accounts))
		for j, acc := range ix.Accounts {
			indices[j] = indexMap[acc.Pubkey]
		}
		compiled[i] = SolanaCompiledInstruction{
			ProgramIDIndex: indexMap[ix.ProgramID],
			AccountIndices: indices,
			Data:           ix.Data,
		}
	}

	msg := SolanaMessage{
		Version: SolanaMessageLegacy,
		Header: SolanaMessageHeader{
			NumRequiredSignatures:       uint8(numSigners),
			NumReadonlySignedAccounts:   uint8(numReadonlySigned),
			NumReadonlyUnsignedAccounts: uint8(numReadonlyUnsigned),
		},
		AccountKeys:     accountKeys,
		RecentBlockhash: recentBlockhash,
		Instructions:    compiled,
	}

	return &SolanaTx{
		Signatures: make([][]byte, numSigners),
		Message:    msg,
	}
}

// Sign signs the transaction message with the provided Ed25519 private keys.
// Keys are matched to signature slots by their public key.
func (tx *SolanaTx) Sign(keys ...ed25519.PrivateKey) error {
	msgBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}

	numSigners := int(tx.Message.Header.NumRequiredSignatures)
	for _, key := range keys {
		pub := key.Public().(ed25519.PublicKey)
		var pubKey SolanaKey
		copy(pubKey[:], pub)

		idx := -1
		for i := 0; i < numSigners; i++ {
			if tx.Message.AccountKeys[i] == pubKey {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("key %s is not a required signer", pubKey)
		}
		sig := ed25519.Sign(key, msgBytes)
		tx.Signatures[idx] = sig
	}
	return nil
}

// Hash returns the transaction ID, which is the first signature (64 bytes).
func (tx *SolanaTx) Hash() ([]byte, error) {
	if len(tx.Signatures) == 0 || len(tx.Signatures[0]) == 0 {
		return nil, errors.New("transaction has no signature")
	}
	return slices.Clone(tx.Signatures[0]), nil
}

// MarshalBinary serializes the transaction into the Solana wire format.
// Unsigned slots are emitted as 64 zero bytes, the placeholder convention
// for unsigned transactions.
func (tx *SolanaTx) MarshalBinary() ([]byte, error) {
	msgBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, err
	}

	if len(tx.Signatures) > 0xff {
		return nil, fmt.Errorf("too many signatures: %d", len(tx.Signatures))
	}
	buf := []byte{byte(len(tx.Signatures))}
	for _, sig := range tx.Signatures {
		if len(sig) == 0 {
			buf = append(buf, make([]byte, solSignatureLen)...)
		} else {
			if len(sig) != solSignatureLen {
				return nil, fmt.Errorf("invalid signature length: %d", len(sig))
			}
			buf = append(buf, sig...)
		}
	}
	buf = append(buf, msgBytes...)
	return buf, nil
}

// MarshalBinary serializes the message into the Solana wire format, with the
// 0x80 version indicator and the address-table-lookup section when the
// message is v0.
func (msg *SolanaMessage) MarshalBinary() ([]byte, error) {
	var buf []byte
	if msg.Version == SolanaMessageV0 {
		buf = append(buf, solVersionIndicator)
	}
	buf = append(buf,
		msg.Header.NumRequiredSignatures,
		msg.Header.NumReadonlySignedAccounts,
		msg.Header.NumReadonlyUnsignedAccounts,
	)

	if len(msg.AccountKeys) > 0xff {
		return nil, fmt.Errorf("too many account keys: %d", len(msg.AccountKeys))
	}
	buf = append(buf, byte(len(msg.AccountKeys)))
	for _, key := range msg.AccountKeys {
		buf = append(buf, key[:]...)
	}

	buf = append(buf, msg.RecentBlockhash[:]...)

	if len(msg.Instructions) > 0xff {
		return nil, fmt.Errorf("too many instructions: %d", len(msg.Instructions))
	}
	buf = append(buf, byte(len(msg.Instructions)))
	for _, ix := range msg.Instructions {
		buf = append(buf, ix.ProgramIDIndex)
		buf = append(buf, encodeCompactU16(len(ix.AccountIndices))...)
		buf = append(buf, ix.AccountIndices...)
		buf = append(buf, encodeCompactU16(len(ix.Data))...)
		buf = append(buf, ix.Data...)
	}

	if msg.Version == SolanaMessageV0 {
		if len(msg.AddressTableLookups) > 0xff {
			return nil, fmt.Errorf("too many address table lookups: %d", len(msg.AddressTableLookups))
		}
		buf = append(buf, byte(len(msg.AddressTableLookups)))
		for _, l := range msg.AddressTableLookups {
			buf = append(buf, l.AccountKey[:]...)
			buf = append(buf, encodeCompactU16(len(l.WritableIndexes))...)
			buf = append(buf, l.WritableIndexes...)
			buf = append(buf, encodeCompactU16(len(l.ReadonlyIndexes))...)
			buf = append(buf, l.ReadonlyIndexes...)
		}
	}

	return buf, nil
}

// encodeCompactU16 encodes an integer as Solana's compact-u16 format.
// Values 0-0x7f use 1 byte, 0x80-0x3fff use 2 bytes, 0x4000-0xffff use 3 bytes.
func encodeCompactU16(v int) []byte {
	if v < 0 || v > 0xffff {
		panic("compact-u16 value out of range")
	}
	if v < 0x80 {
		return []byte{byte(v)}
	}
	if v < 0x4000 {
		return []byte{byte(v&0x7f) | 0x80, byte(v >> 7)}
	}
	return []byte{byte(v&0x7f) | 0x80, byte((v>>7)&0x7f) | 0x80, byte(v >> 14)}
}
