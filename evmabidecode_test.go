package txdecode_test

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/ModChain/txdecode"
)

// A minimal ERC-20 ABI covering the common transfer entry points.
const erc20AbiJson = `[
  {
    "type": "function",
    "name": "transfer",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "recipient", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "approve",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "spender", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "transferFrom",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "sender", "type": "address"},
      {"name": "recipient", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "event",
    "name": "Transfer",
    "inputs": []
  }
]`

func erc20Abi(t *testing.T) *txdecode.EvmAbi {
	t.Helper()
	abi, err := txdecode.ParseEvmAbi([]byte(erc20AbiJson))
	if err != nil {
		t.Fatalf("ParseEvmAbi failed: %s", err)
	}
	return abi
}

func TestAbiSelectors(t *testing.T) {
	abi := erc20Abi(t)
	if len(abi.Functions) != 3 {
		t.Fatalf("expected 3 functions, got %d", len(abi.Functions))
	}

	want := map[string]string{
		"transfer(address,uint256)":             "a9059cbb",
		"approve(address,uint256)":              "095ea7b3",
		"transferFrom(address,address,uint256)": "23b872dd",
	}
	for _, fn := range abi.Functions {
		sel := fn.Selector()
		if want[fn.Signature()] != hex.EncodeToString(sel[:]) {
			t.Errorf("function %s: unexpected selector %x", fn.Signature(), sel)
		}
		if abi.FunctionBySelector(sel) != fn {
			t.Errorf("selector index does not round-trip for %s", fn.Name)
		}
	}
}

func TestAbiTupleSignature(t *testing.T) {
	fn := &txdecode.AbiFunction{
		Name: "submit",
		Inputs: []txdecode.AbiParam{
			{Name: "order", Type: "tuple", Components: []txdecode.AbiParam{
				{Name: "maker", Type: "address"},
				{Name: "amounts", Type: "uint256[]"},
			}},
			{Name: "proofs", Type: "tuple[]", Components: []txdecode.AbiParam{
				{Name: "hash", Type: "bytes32"},
			}},
		},
	}
	want := "submit((address,uint256[]),(bytes32)[])"
	if fn.Signature() != want {
		t.Errorf("expected signature %s, got %s", want, fn.Signature())
	}
}

func TestAbiSelectorCollision(t *testing.T) {
	dup := `[
	  {"type": "function", "name": "transfer", "inputs": [{"name": "to", "type": "address"}, {"name": "amount", "type": "uint256"}]},
	  {"type": "function", "name": "transfer", "inputs": [{"name": "dst", "type": "address"}, {"name": "wad", "type": "uint256"}]}
	]`
	_, err := txdecode.ParseEvmAbi([]byte(dup))
	var serr *txdecode.SelectorCollisionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SelectorCollisionError, got %v", err)
	}
}

func TestDecodeTransferCallData(t *testing.T) {
	abi := erc20Abi(t)
	data := must(hex.DecodeString("a9059cbb0000000000000000000000008bc47be1e3abbaba182069c89d08a61fa6c2b2920000000000000000000000000000000000000000000000000000000253c51700"))
	call, err := abi.DecodeCallData(data)
	if err != nil {
		t.Fatalf("DecodeCallData failed: %s", err)
	}
	if call.Function.Name != "transfer" {
		t.Errorf("unexpected function %s", call.Function.Name)
	}
	if len(call.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(call.Params))
	}
	addr, ok := call.Params[0].Value.(txdecode.AbiAddress)
	if !ok || string(addr) != "0x8Bc47bE1e3ABBaBa182069C89d08a61FA6C2B292" {
		t.Errorf("unexpected recipient: %v", call.Params[0].Value)
	}
	amount, ok := call.Params[1].Value.(txdecode.AbiUint)
	if !ok || amount.Value.String() != "9995360000" {
		t.Errorf("unexpected amount: %v", call.Params[1].Value)
	}
}

func TestDecodeTransferFromCallData(t *testing.T) {
	abi := erc20Abi(t)
	data := must(hex.DecodeString("23b872dd000000000000000000000000b9991669f54a19d822c614769f6a863f807971cd000000000000000000000000ae2d4617c862309a3d75a0ffb358c7a5009c673f0000000000000000000000000000000000000000000000000000000005651e68"))
	call, err := abi.DecodeCallData(data)
	if err != nil {
		t.Fatalf("DecodeCallData failed: %s", err)
	}
	if call.Function.Name != "transferFrom" {
		t.Errorf("unexpected function %s", call.Function.Name)
	}
	sender := call.Params[0].Value.(txdecode.AbiAddress)
	recipient := call.Params[1].Value.(txdecode.AbiAddress)
	amount := call.Params[2].Value.(txdecode.AbiUint)
	if string(sender) != "0xB9991669F54a19d822C614769F6A863F807971cd" {
		t.Errorf("unexpected sender %s", sender)
	}
	if string(recipient) != "0xAe2D4617c862309A3d75A0fFB358c7a5009c673F" {
		t.Errorf("unexpected recipient %s", recipient)
	}
	if amount.Value.String() != "90513000" {
		t.Errorf("unexpected amount %s", amount.Value)
	}
}

func TestDecodeStringParam(t *testing.T) {
	voteAbi := `[
	  {"type": "function", "name": "castVoteWithReason", "inputs": [
	    {"name": "proposalId", "type": "uint256"},
	    {"name": "support", "type": "uint8"},
	    {"name": "reason", "type": "string"}
	  ]}
	]`
	abi, err := txdecode.ParseEvmAbi([]byte(voteAbi))
	if err != nil {
		t.Fatalf("ParseEvmAbi failed: %s", err)
	}

	// encode with the builder, decode with the ABI decoder
	data := must(txdecode.EvmCall("castVoteWithReason(uint256,uint8,string)", 123456789123456789, 1, "this is a test"))
	call, err := abi.DecodeCallData(data)
	if err != nil {
		t.Fatalf("DecodeCallData failed: %s", err)
	}
	reason, ok := call.Params[2].Value.(txdecode.AbiString)
	if !ok || string(reason) != "this is a test" {
		t.Errorf("unexpected reason: %v", call.Params[2].Value)
	}
	id := call.Params[0].Value.(txdecode.AbiUint)
	if id.Value.Uint64() != 123456789123456789 {
		t.Errorf("unexpected proposal id %s", id.Value)
	}
	support := call.Params[1].Value.(txdecode.AbiUint)
	if support.Value.Uint64() != 1 {
		t.Errorf("unexpected support %s", support.Value)
	}
}

func TestDecodeStringDegradesToBytes(t *testing.T) {
	strAbi := `[{"type": "function", "name": "note", "inputs": [{"name": "text", "type": "string"}]}]`
	abi := must(txdecode.ParseEvmAbi([]byte(strAbi)))

	data := must(txdecode.EvmCall("note(string)", string([]byte{0xff, 0xfe})))
	call, err := abi.DecodeCallData(data)
	if err != nil {
		t.Fatalf("DecodeCallData failed: %s", err)
	}
	b, ok := call.Params[0].Value.(txdecode.AbiBytes)
	if !ok || b.String() != "0xfffe" {
		t.Errorf("expected bytes fallback, got %v", call.Params[0].Value)
	}
}

func TestDecodeDynamicArrayLengthOnly(t *testing.T) {
	arrAbi := `[{"type": "function", "name": "batch", "inputs": [{"name": "ids", "type": "uint256[]"}]}]`
	abi := must(txdecode.ParseEvmAbi([]byte(arrAbi)))

	// head offset 0x20, then length 3 and three elements
	payload := "0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000003" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"0000000000000000000000000000000000000000000000000000000000000002" +
		"0000000000000000000000000000000000000000000000000000000000000003"
	fn := abi.Functions[0]
	sel := fn.Selector()
	data := append(sel[:], must(hex.DecodeString(payload))...)

	call, err := abi.DecodeCallData(data)
	if err != nil {
		t.Fatalf("DecodeCallData failed: %s", err)
	}
	arr, ok := call.Params[0].Value.(txdecode.AbiArray)
	if !ok || arr.Length != 3 || arr.ElemType != "uint256" {
		t.Errorf("unexpected array value: %v", call.Params[0].Value)
	}
}

func TestDecodeTruncatedCallData(t *testing.T) {
	abi := erc20Abi(t)

	// missing the amount word entirely
	data := must(hex.DecodeString("a9059cbb0000000000000000000000008bc47be1e3abbaba182069c89d08a61fa6c2b292"))
	_, err := abi.DecodeCallData(data)
	var ierr *txdecode.InsufficientBytesError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InsufficientBytesError, got %v", err)
	}

	// selector shorter than 4 bytes
	_, err = abi.DecodeCallData([]byte{0xa9, 0x05})
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InsufficientBytesError, got %v", err)
	}
}

func TestDecodeTruncatedDynamicPayload(t *testing.T) {
	strAbi := `[{"type": "function", "name": "note", "inputs": [{"name": "text", "type": "string"}]}]`
	abi := must(txdecode.ParseEvmAbi([]byte(strAbi)))

	data := must(txdecode.EvmCall("note(string)", "this is a test"))
	// cut the tail in half
	_, err := abi.DecodeCallData(data[:len(data)-24])
	var ierr *txdecode.InsufficientBytesError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InsufficientBytesError, got %v", err)
	}
}

func TestDecodeUnknownSelector(t *testing.T) {
	abi := erc20Abi(t)
	_, err := abi.DecodeCallData([]byte{0xde, 0xad, 0xbe, 0xef})
	if err == nil || !strings.Contains(err.Error(), "deadbeef") {
		t.Fatalf("expected unknown-selector error, got %v", err)
	}
}

func TestDecodeUnsupportedType(t *testing.T) {
	oddAbi := `[{"type": "function", "name": "odd", "inputs": [
	  {"name": "weird", "type": "fixed128x18"},
	  {"name": "amount", "type": "uint256"}
	]}]`
	abi := must(txdecode.ParseEvmAbi([]byte(oddAbi)))
	fn := abi.Functions[0]
	sel := fn.Selector()

	payload := make([]byte, 64)
	payload[63] = 42
	data := append(sel[:], payload...)
	call, err := abi.DecodeCallData(data)
	if err != nil {
		t.Fatalf("DecodeCallData failed: %s", err)
	}
	if _, ok := call.Params[0].Value.(txdecode.AbiUnsupported); !ok {
		t.Errorf("expected AbiUnsupported, got %v", call.Params[0].Value)
	}
	// the unsupported parameter must not abort the rest of the decode
	amount := call.Params[1].Value.(txdecode.AbiUint)
	if amount.Value.Uint64() != 42 {
		t.Errorf("unexpected amount %s", amount.Value)
	}
}

func TestDecodeBoolAndBytes32(t *testing.T) {
	flagAbi := `[{"type": "function", "name": "set", "inputs": [
	  {"name": "on", "type": "bool"},
	  {"name": "root", "type": "bytes32"}
	]}]`
	abi := must(txdecode.ParseEvmAbi([]byte(flagAbi)))
	fn := abi.Functions[0]
	sel := fn.Selector()

	payload := make([]byte, 64)
	payload[31] = 1
	payload[32] = 0xab
	data := append(sel[:], payload...)
	call, err := abi.DecodeCallData(data)
	if err != nil {
		t.Fatalf("DecodeCallData failed: %s", err)
	}
	if on, ok := call.Params[0].Value.(txdecode.AbiBool); !ok || !bool(on) {
		t.Errorf("unexpected bool value: %v", call.Params[0].Value)
	}
	root, ok := call.Params[1].Value.(txdecode.AbiBytes32)
	if !ok || root[0] != 0xab {
		t.Errorf("unexpected bytes32 value: %v", call.Params[1].Value)
	}
}
