package txdecode

import (
	"encoding/binary"
	"strconv"
)

// SolTransfer is a native SOL movement extracted from a System program
// transfer instruction. Amount is lamports, rendered as a decimal string.
type SolTransfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// SplTransfer is a token movement extracted from an SPL Token or Token-2022
// instruction. TokenMint, Decimals and Fee are empty when the instruction
// variant does not carry them. Signers lists multisig co-signers and is
// empty for single-owner transfers. Participants known only by address
// table lookup render as ADDRESS_TABLE_LOOKUP.
type SplTransfer struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Owner     string   `json:"owner"`
	Amount    string   `json:"amount"`
	Signers   []string `json:"signers"`
	TokenMint string   `json:"token_mint,omitempty"`
	Decimals  string   `json:"decimals,omitempty"`
	Fee       string   `json:"fee,omitempty"`
}

// System program instruction tags (4-byte little-endian enum prefix).
const sysInstructionTransfer = 2

// SPL Token / Token-2022 instruction tags.
const (
	splTagTransfer              = 3
	splTagTransferChecked       = 12
	splTagTransferFeeExtension  = 26
	splSubTagTransferCheckedFee = 1
)

// interpretSystemInstruction extracts a SOL transfer from a System program
// instruction, if it is one. Tags other than Transfer are ignored.
func interpretSystemInstruction(data []byte, refs []AddressRef) (*SolTransfer, error) {
	if len(data) < 4 {
		return nil, &InsufficientBytesError{Section: "system instruction tag"}
	}
	if binary.LittleEndian.Uint32(data[0:4]) != sysInstructionTransfer {
		return nil, nil
	}
	if len(data) < 12 {
		return nil, &InsufficientBytesError{Section: "system transfer lamports"}
	}
	if len(refs) != 2 {
		return nil, &InvalidAccountCountError{Operation: "system program transfer", Expected: 2, Actual: len(refs)}
	}
	lamports := binary.LittleEndian.Uint64(data[4:12])
	return &SolTransfer{
		From:   refs[0].String(),
		To:     refs[1].String(),
		Amount: strconv.FormatUint(lamports, 10),
	}, nil
}

// splInstructionData is the decoded payload of a token program instruction.
// kind mirrors the wire tag; unsupported tags keep kind zero.
type splInstructionData struct {
	kind     uint8
	amount   uint64
	decimals uint8
	fee      uint64
}

const (
	splKindUnsupported = iota
	splKindTransfer
	splKindTransferChecked
	splKindTransferCheckedWithFee
)

// parseSplInstructionData decodes the tagged payload of an SPL Token or
// Token-2022 instruction. Unknown tags (and unknown fee-extension sub-tags)
// are not an error; they decode to the unsupported kind so the surrounding
// transaction keeps parsing.
func parseSplInstructionData(data []byte) (*splInstructionData, error) {
	if len(data) == 0 {
		return nil, &InsufficientBytesError{Section: "spl instruction tag"}
	}
	tag, rest := data[0], data[1:]
	out := &splInstructionData{kind: splKindUnsupported}
	switch tag {
	case splTagTransfer:
		if len(rest) < 8 {
			return nil, &InsufficientBytesError{Section: "spl Transfer amount"}
		}
		out.kind = splKindTransfer
		out.amount = binary.LittleEndian.Uint64(rest[0:8])
	case splTagTransferChecked:
		if len(rest) < 8 {
			return nil, &InsufficientBytesError{Section: "spl TransferChecked amount"}
		}
		if len(rest) < 9 {
			return nil, &InsufficientBytesError{Section: "spl TransferChecked decimals"}
		}
		out.kind = splKindTransferChecked
		out.amount = binary.LittleEndian.Uint64(rest[0:8])
		out.decimals = rest[8]
	case splTagTransferFeeExtension:
		if len(rest) < 1 {
			return nil, &InsufficientBytesError{Section: "spl TransferCheckedWithFee instruction index"}
		}
		if rest[0] != splSubTagTransferCheckedFee {
			return out, nil
		}
		rest = rest[1:]
		if len(rest) < 8 {
			return nil, &InsufficientBytesError{Section: "spl TransferCheckedWithFee amount"}
		}
		if len(rest) < 9 {
			return nil, &InsufficientBytesError{Section: "spl TransferCheckedWithFee decimals"}
		}
		if len(rest) < 17 {
			return nil, &InsufficientBytesError{Section: "spl TransferCheckedWithFee fee"}
		}
		out.kind = splKindTransferCheckedWithFee
		out.amount = binary.LittleEndian.Uint64(rest[0:8])
		out.decimals = rest[8]
		out.fee = binary.LittleEndian.Uint64(rest[9:17])
	}
	return out, nil
}

// interpretSplInstruction turns a decoded token instruction payload into an
// SplTransfer, consuming the instruction's account references in their
// original interleaved order. Accounts past the variant's fixed positions
// are multisig co-signers. Returns nil for unsupported payloads.
func interpretSplInstruction(inst *splInstructionData, refs []AddressRef) (*SplTransfer, error) {
	switch inst.kind {
	case splKindTransfer:
		signers, err := splMultisigSigners(refs, 3)
		if err != nil {
			return nil, err
		}
		return &SplTransfer{
			From:    refs[0].String(),
			To:      refs[1].String(),
			Owner:   refs[2].String(),
			Amount:  strconv.FormatUint(inst.amount, 10),
			Signers: signers,
		}, nil
	case splKindTransferChecked:
		signers, err := splMultisigSigners(refs, 4)
		if err != nil {
			return nil, err
		}
		return &SplTransfer{
			From:      refs[0].String(),
			To:        refs[2].String(),
			Owner:     refs[3].String(),
			Amount:    strconv.FormatUint(inst.amount, 10),
			Signers:   signers,
			TokenMint: refs[1].String(),
			Decimals:  strconv.FormatUint(uint64(inst.decimals), 10),
		}, nil
	case splKindTransferCheckedWithFee:
		signers, err := splMultisigSigners(refs, 4)
		if err != nil {
			return nil, err
		}
		return &SplTransfer{
			From:      refs[0].String(),
			To:        refs[2].String(),
			Owner:     refs[3].String(),
			Amount:    strconv.FormatUint(inst.amount, 10),
			Signers:   signers,
			TokenMint: refs[1].String(),
			Decimals:  strconv.FormatUint(uint64(inst.decimals), 10),
			Fee:       strconv.FormatUint(inst.fee, 10),
		}, nil
	}
	return nil, nil
}

// splMultisigSigners returns the string form of every account past the
// variant's fixed positions. An empty result means a single-owner transfer.
func splMultisigSigners(refs []AddressRef, fixed int) ([]string, error) {
	if len(refs) < fixed {
		return nil, &InvalidAccountCountError{Operation: "spl token transfer", Expected: fixed, Actual: len(refs)}
	}
	signers := []string{}
	for _, r := range refs[fixed:] {
		signers = append(signers, r.String())
	}
	return signers, nil
}
