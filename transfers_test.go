package txdecode_test

import (
	"reflect"
	"testing"

	"github.com/ModChain/txdecode"
)

// A full legacy transaction carrying a plain SPL Token Transfer (tag 3) plus
// an unrelated System program advance-nonce instruction.
const splTransferTx = "010000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000001000307533b5b0116e5bd434b30300c28f3814712637545ae345cc63d2f23709c75894d3bcae0fb76cc461d85bd05a078f887cf646fd27011e12edaaeb5091cdb976044a1460dfb457c122a8fe4d4c180b21a6078e67ea08c271acfd1b7ff3d88a2bbf4ca107ce11d55b05bdb209feaeeac8120fea5598cabbf91df2862fc36c5cf83a2000000000000000000000000000000000000000000000000000000000000000006a7d517192c568ee08a845f73d29788cf035c3145b21ab344d8062ea940000006ddf6e1d765a193d9cbe146ceeb79ac1cb485ed5f5b37913a8cf5857eff00a9eefd656548c17a30f2d97998a7ec413e2304464841f817bfc5c73c2c9a36bf6f020403020500040400000006030301000903a086010000000000"

// A legacy message carrying a Token-2022 TransferCheckedWithFee (tag 26,
// sub-tag 1).
const splToken22FeeMsg = "01000205864624d78f936e02c49acfd0320a66b8baec813f00df938ed2505b1242504fa9e3db1d9522e05705cf23ac1d3f5a1db2ef9f23ff78d7fcf699da1cf4902463263bcae0fb76cc461d85bd05a078f887cf646fd27011e12edaaeb5091cdb97604406ddf6e1ee758fde18425dbce46ccddab61afc4d83b90d27febdf928d8a18bfcbc07c56e60ad3d3f177382eac6548fba1fd32cfd90ca02b3e7cfa185fdce7398b97a42135e0503573230dfadebb740b6e206b513208e90a489f2b46684462bc801030401040200131a0100ca9a3b00000000097b00000000000000"

// A v0 message carrying a multisig Token Transfer (tag 3) with two
// co-signers.
const splMultisigMsg = "8003020106864624d78f936e02c49acfd0320a66b8baec813f00df938ed2505b1242504fa98b2e0a1e9310dc03bfc0432ac8c9f290d15cbc57b2ed367f43aeefc28c7a4d7a5078df268c218e5c9ebe650a7f90c8879bba318b35ce9046cb505b7ed5724a9de3db1d9522e05705cf23ac1d3f5a1db2ef9f23ff78d7fcf699da1cf4902463263bcae0fb76cc461d85bd05a078f887cf646fd27011e12edaaeb5091cdb97604406ddf6e1d765a193d9cbe146ceeb79ac1cb485ed5f5b37913a8cf5857eff00a9b97a42135e0503573230dfadebb740b6e206b513208e90a489f2b46684462bc80105050304000102090300ca9a3b0000000000"

// A v0 message carrying a multisig Token-2022 TransferChecked (tag 12).
const splCheckedMultisigMsg = "8003020207864624d78f936e02c49acfd0320a66b8baec813f00df938ed2505b1242504fa98b2e0a1e9310dc03bfc0432ac8c9f290d15cbc57b2ed367f43aeefc28c7a4d7a5078df268c218e5c9ebe650a7f90c8879bba318b35ce9046cb505b7ed5724a9de3db1d9522e05705cf23ac1d3f5a1db2ef9f23ff78d7fcf699da1cf4902463263bcae0fb76cc461d85bd05a078f887cf646fd27011e12edaaeb5091cdb97604406ddf6e1ee758fde18425dbce46ccddab61afc4d83b90d27febdf928d8a18bfcbc07c56e60ad3d3f177382eac6548fba1fd32cfd90ca02b3e7cfa185fdce7398b97a42135e0503573230dfadebb740b6e206b513208e90a489f2b46684462bc80105060306040001020a0c00ca9a3b000000000900"

// A v0 transaction whose two SPL transfers reference their token mint only
// through address table lookups.
const splLookupMintTx = "01000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000008001000b10b9334994c55889c1e129158c59a9b3b16fd9bfc9bedd105a8e1d7b7a8644110772f445b3a19ac048d2a928fe0774cf7b8b5efa7c6457cbccbc82ecf0eac93c792343cde9faec81dfd6963f83ea57e8075f2db9eb0c461d195737e143f9b16909c52568e818f6871d033a00dba9ae878df8ba008104e34fb0332d685f3eacdf6a5149b5337cf8079ab25763ae8e8f95a9b09d2325dcc2ee5f8e8640b7eacf470d283d0dd282354fef0ae3b0e227d37cd89ca266fb17ddf8f7cb7ccefbe4ebdc5506a7d51718c774c928566398691d5eb68b5eb8a39b4b6d5c73555b2100000000d1a3910dca452ccc0c6d513e570b0a5cee7edf44fa74e1410cd405fba63e96100306466fe5211732ffecadba72c39be7bc8ce5bbc5f7126b2c439b3a400000008c97258f4e2489f1bb3d1029148e0d830b5a1399daff1084048e7bd8dbe9f8591e8c4fab8994494c8f1e5c1287445b2917d60c43c79aa959162f5d6000598d32000000000000000000000000000000000000000000000000000000000000000006ddf6e1d765a193d9cbe146ceeb79ac1cb485ed5f5b37913a8cf5857eff00a92ccd355fe72bcf08d5ee763f52bb9603e025ef8e1d0340f28a576313251507310479d55bf231c06eee74c56ece681507fdb1b2dea3f48e5102b1cda256bc138fb43ffa27f5d7f64a74c09b1f295879de4b09ab36dfc9dd514b321aa7b38ce5e8ee501f6575c6376b0fc00c38a8f474ed66466d3cc3bf159e8d2be46427a83a9c0a08000903a8d002000000000008000502e7e1060005020607090022bb6ad79d0c1600090600010a130b0c01010c04021301000a0c9c0100000000000006090600030d130b0c01010c04021303000a0c4603000000000000060906000400140b0c01010e120c0002040e140e0f0e150010111204020c1624e517cb977ae3ad2a010000003d016400013e9c070000000000c6c53a0000000000e803000c030400000109015de6c0e5b44625227af5ec45b683057e191d6d7bf7ff43e3d25f31d5d5e81dac03b86fba04c013b970"

func TestSplTransfer(t *testing.T) {
	raw := must(txdecode.DecodeInput(splTransferTx, txdecode.EncodingHex))
	meta, err := txdecode.ParseSolana(raw, true)
	if err != nil {
		t.Fatalf("ParseSolana failed: %s", err)
	}

	if len(meta.SplTransfers) != 1 {
		t.Fatalf("expected 1 spl transfer, got %d", len(meta.SplTransfers))
	}
	tr := meta.SplTransfers[0]
	if tr.From != "EbmwLZmuugxuQb8ksm4TBXf2qPbSK8N4uxNmakvRaUyX" {
		t.Errorf("unexpected from: %s", tr.From)
	}
	if tr.To != "52QUutfwWMDDVNZSjovpmtD1ZmMe3Uf3n1ENE7JgBMkP" {
		t.Errorf("unexpected to: %s", tr.To)
	}
	if tr.Owner != "6buLKuZFhVNtAFkyRituTZNNVyjHSYLx4NyfD8cKr1uW" {
		t.Errorf("unexpected owner: %s", tr.Owner)
	}
	if tr.Amount != "100000" {
		t.Errorf("unexpected amount: %s", tr.Amount)
	}
	if len(tr.Signers) != 0 {
		t.Errorf("expected no signers, got %v", tr.Signers)
	}
	if tr.TokenMint != "" || tr.Decimals != "" || tr.Fee != "" {
		t.Errorf("expected empty mint/decimals/fee, got %+v", tr)
	}
	if meta.Instructions[1].ProgramKey != txdecode.SolanaTokenProgram.String() {
		t.Errorf("unexpected program for instruction 2: %s", meta.Instructions[1].ProgramKey)
	}
}

func TestSplTransferCheckedWithFee(t *testing.T) {
	raw := must(txdecode.DecodeInput(splToken22FeeMsg, txdecode.EncodingHex))
	meta, err := txdecode.ParseSolana(raw, false)
	if err != nil {
		t.Fatalf("ParseSolana failed: %s", err)
	}

	if len(meta.SplTransfers) != 1 {
		t.Fatalf("expected 1 spl transfer, got %d", len(meta.SplTransfers))
	}
	tr := meta.SplTransfers[0]
	want := txdecode.SplTransfer{
		From:      "GLTLPbA1XJctLCsaErmbzgouaLsLm2CLGzWyi8xangNq",
		To:        "52QUutfwWMDDVNZSjovpmtD1ZmMe3Uf3n1ENE7JgBMkP",
		Owner:     "A39fhEiRvz4YsSrrpqU8z3zF6n1t9S48CsDjL2ibDFrx",
		Amount:    "1000000000",
		Signers:   []string{},
		TokenMint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		Decimals:  "9",
		Fee:       "123",
	}
	if !reflect.DeepEqual(tr, want) {
		t.Errorf("unexpected spl transfer: %+v", tr)
	}
	if meta.Instructions[0].ProgramKey != txdecode.SolanaToken2022Program.String() {
		t.Errorf("unexpected program: %s", meta.Instructions[0].ProgramKey)
	}
}

func TestSplTransferMultisig(t *testing.T) {
	raw := must(txdecode.DecodeInput(splMultisigMsg, txdecode.EncodingHex))
	meta, err := txdecode.ParseSolana(raw, false)
	if err != nil {
		t.Fatalf("ParseSolana failed: %s", err)
	}

	if len(meta.SplTransfers) != 1 {
		t.Fatalf("expected 1 spl transfer, got %d", len(meta.SplTransfers))
	}
	tr := meta.SplTransfers[0]
	if tr.Amount != "1000000000" {
		t.Errorf("unexpected amount: %s", tr.Amount)
	}
	wantSigners := []string{
		"ANJPUpqXC1Qn8uhHVXLTsRKjving6kPfjCATJzg7EJjB",
		"6R8WtdoanEVNJfkeGfbQDMsCrqeHE1sGXjsReJsSbmxQ",
	}
	if !reflect.DeepEqual(tr.Signers, wantSigners) {
		t.Errorf("unexpected signers: %v", tr.Signers)
	}
	if tr.TokenMint != "" || tr.Decimals != "" || tr.Fee != "" {
		t.Errorf("expected empty mint/decimals/fee, got %+v", tr)
	}
}

func TestSplTransferCheckedMultisig(t *testing.T) {
	raw := must(txdecode.DecodeInput(splCheckedMultisigMsg, txdecode.EncodingHex))
	meta, err := txdecode.ParseSolana(raw, false)
	if err != nil {
		t.Fatalf("ParseSolana failed: %s", err)
	}

	if len(meta.SplTransfers) != 1 {
		t.Fatalf("expected 1 spl transfer, got %d", len(meta.SplTransfers))
	}
	tr := meta.SplTransfers[0]
	if tr.TokenMint != "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263" {
		t.Errorf("unexpected mint: %s", tr.TokenMint)
	}
	if tr.Decimals != "9" {
		t.Errorf("unexpected decimals: %s", tr.Decimals)
	}
	if tr.Fee != "" {
		t.Errorf("expected no fee, got %s", tr.Fee)
	}
	if len(tr.Signers) != 2 {
		t.Errorf("expected 2 signers, got %v", tr.Signers)
	}
}

func TestSplTransferLookupMint(t *testing.T) {
	raw := must(txdecode.DecodeInput(splLookupMintTx, txdecode.EncodingHex))
	meta, err := txdecode.ParseSolana(raw, true)
	if err != nil {
		t.Fatalf("ParseSolana failed: %s", err)
	}

	if len(meta.SplTransfers) != 2 {
		t.Fatalf("expected 2 spl transfers, got %d", len(meta.SplTransfers))
	}
	tr1 := meta.SplTransfers[0]
	if tr1.From != "3NfEggXMdHJPTYV4pkbHjh4iC3q5NoLkXTwyWAB1QSkp" {
		t.Errorf("unexpected from: %s", tr1.From)
	}
	if tr1.To != "8jjWmLhYdqrtFMcEkiMDdqkEN85cvEFnNS4LFgNf5NRv" {
		t.Errorf("unexpected to: %s", tr1.To)
	}
	if tr1.TokenMint != "ADDRESS_TABLE_LOOKUP" {
		t.Errorf("expected lookup mint marker, got %s", tr1.TokenMint)
	}
	if tr1.Owner != "DTwnQq6QdYRibHtyzWM5MxqsBuDTiUD8aeaFcjesnoKt" {
		t.Errorf("unexpected owner: %s", tr1.Owner)
	}
	tr2 := meta.SplTransfers[1]
	if tr2.TokenMint != "ADDRESS_TABLE_LOOKUP" {
		t.Errorf("expected lookup mint marker, got %s", tr2.TokenMint)
	}
}

func TestSplUnknownTagIgnored(t *testing.T) {
	from := must(txdecode.ParseSolanaKey(legacySenderKey))
	to := must(txdecode.ParseSolanaKey(legacyRecipientKey))

	// CloseAccount (tag 9) is not a transfer; it must parse without emitting
	// an SPL record and without error
	spec := txdecode.SolanaInstructionSpec{
		ProgramID: txdecode.SolanaTokenProgram,
		Accounts: []txdecode.SolanaAccountMeta{
			{Pubkey: to, IsWritable: true},
			{Pubkey: from, IsWritable: true},
			{Pubkey: from, IsSigner: true},
		},
		Data: []byte{9},
	}
	tx := txdecode.NewSolanaTx(from, txdecode.SolanaKey{}, spec)
	raw := must(tx.MarshalBinary())
	meta, err := txdecode.ParseSolana(raw, true)
	if err != nil {
		t.Fatalf("ParseSolana failed: %s", err)
	}
	if len(meta.SplTransfers) != 0 {
		t.Errorf("expected no spl transfers, got %v", meta.SplTransfers)
	}
}

func TestSplUnknownFeeSubTagIgnored(t *testing.T) {
	from := must(txdecode.ParseSolanaKey(legacySenderKey))
	to := must(txdecode.ParseSolanaKey(legacyRecipientKey))

	spec := txdecode.SolanaInstructionSpec{
		ProgramID: txdecode.SolanaToken2022Program,
		Accounts: []txdecode.SolanaAccountMeta{
			{Pubkey: from, IsWritable: true},
			{Pubkey: to, IsWritable: true},
			{Pubkey: from, IsSigner: true},
		},
		Data: []byte{26, 2}, // fee extension, but not TransferCheckedWithFee
	}
	tx := txdecode.NewSolanaTx(from, txdecode.SolanaKey{}, spec)
	raw := must(tx.MarshalBinary())
	meta, err := txdecode.ParseSolana(raw, true)
	if err != nil {
		t.Fatalf("ParseSolana failed: %s", err)
	}
	if len(meta.SplTransfers) != 0 {
		t.Errorf("expected no spl transfers, got %v", meta.SplTransfers)
	}
}

func TestSplTruncatedAmount(t *testing.T) {
	from := must(txdecode.ParseSolanaKey(legacySenderKey))
	to := must(txdecode.ParseSolanaKey(legacyRecipientKey))

	spec := txdecode.SolanaInstructionSpec{
		ProgramID: txdecode.SolanaTokenProgram,
		Accounts: []txdecode.SolanaAccountMeta{
			{Pubkey: from, IsWritable: true},
			{Pubkey: to, IsWritable: true},
			{Pubkey: from, IsSigner: true},
		},
		Data: []byte{3, 1, 2, 3}, // Transfer with a truncated amount
	}
	tx := txdecode.NewSolanaTx(from, txdecode.SolanaKey{}, spec)
	raw := must(tx.MarshalBinary())
	_, err := txdecode.ParseSolana(raw, true)
	var ierr *txdecode.InsufficientBytesError
	if !asErr(err, &ierr) {
		t.Fatalf("expected InsufficientBytesError, got %v", err)
	}
	if ierr.Section != "spl Transfer amount" {
		t.Errorf("unexpected section %q", ierr.Section)
	}
}

func TestSystemTransferWrongAccountCount(t *testing.T) {
	from := must(txdecode.ParseSolanaKey(legacySenderKey))
	to := must(txdecode.ParseSolanaKey(legacyRecipientKey))

	spec := txdecode.SolanaTransferInstruction(from, to, 42)
	spec.Accounts = append(spec.Accounts, txdecode.SolanaAccountMeta{Pubkey: txdecode.SolanaSystemProgram})
	tx := txdecode.NewSolanaTx(from, txdecode.SolanaKey{}, spec)
	raw := must(tx.MarshalBinary())
	_, err := txdecode.ParseSolana(raw, true)
	var cerr *txdecode.InvalidAccountCountError
	if !asErr(err, &cerr) {
		t.Fatalf("expected InvalidAccountCountError, got %v", err)
	}
	if cerr.Expected != 2 || cerr.Actual != 3 {
		t.Errorf("unexpected counts: %+v", cerr)
	}
}

func TestSystemUnknownTagIgnored(t *testing.T) {
	from := must(txdecode.ParseSolanaKey(legacySenderKey))
	to := must(txdecode.ParseSolanaKey(legacyRecipientKey))

	spec := txdecode.SolanaInstructionSpec{
		ProgramID: txdecode.SolanaSystemProgram,
		Accounts: []txdecode.SolanaAccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsWritable: true},
		},
		Data: []byte{4, 0, 0, 0}, // AdvanceNonceAccount, not a transfer
	}
	tx := txdecode.NewSolanaTx(from, txdecode.SolanaKey{}, spec)
	raw := must(tx.MarshalBinary())
	meta, err := txdecode.ParseSolana(raw, true)
	if err != nil {
		t.Fatalf("ParseSolana failed: %s", err)
	}
	if len(meta.Transfers) != 0 {
		t.Errorf("expected no transfers, got %v", meta.Transfers)
	}
}
