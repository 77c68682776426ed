package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ModChain/txdecode"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// config holds environment-provided defaults, prefixed TXDECODE_.
type config struct {
	Encoding string `default:"hex"`
	IdlDir   string `split_words:"true"`
}

var log = logrus.New()

func main() {
	var cfg config
	if err := envconfig.Process("txdecode", &cfg); err != nil {
		log.Fatal(err)
	}
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	rootCmd := &cobra.Command{Use: "txdecode", SilenceUsage: true, SilenceErrors: true}
	rootCmd.AddCommand(parseCmd(&cfg))
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func parseCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <input>",
		Short: "decode a transaction payload into an auditable description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if asMessage, _ := cmd.Flags().GetBool("message"); asMessage {
				format = "message"
			}
			if asTransaction, _ := cmd.Flags().GetBool("transaction"); asTransaction {
				format = "transaction"
			}
			encoding, _ := cmd.Flags().GetString("encoding")
			abiPath, _ := cmd.Flags().GetString("abi")
			asEvmTx, _ := cmd.Flags().GetBool("tx")

			enc := txdecode.EncodingHex
			switch encoding {
			case "", "hex":
			case "base64":
				enc = txdecode.EncodingBase64
			default:
				return fmt.Errorf("unknown encoding %q (want hex or base64)", encoding)
			}
			raw, err := txdecode.DecodeInput(args[0], enc)
			if err != nil {
				return err
			}

			if abiPath != "" {
				return parseEvm(cmd, raw, abiPath, asEvmTx)
			}

			switch format {
			case "message", "transaction":
			default:
				return fmt.Errorf("unknown format %q (want message or transaction)", format)
			}
			reg, err := loadIdls(cmd, cfg)
			if err != nil {
				return err
			}
			meta, err := txdecode.ParseSolanaWithIdls(raw, format == "transaction", reg)
			if err != nil {
				return err
			}
			printSolana(cmd, args[0], meta)
			return nil
		},
	}
	cmd.Flags().String("format", "message", "solana input format: message or transaction")
	cmd.Flags().Bool("message", false, "shorthand for --format message")
	cmd.Flags().Bool("transaction", false, "shorthand for --format transaction")
	cmd.Flags().String("encoding", cfg.Encoding, "input encoding: hex or base64")
	cmd.Flags().String("abi", "", "EVM mode: decode calldata against this ABI JSON file")
	cmd.Flags().Bool("tx", false, "EVM mode: input is a full RLP transaction envelope")
	cmd.Flags().String("idl", "", "attach an anchor IDL JSON file")
	cmd.Flags().String("program-id", "", "program id the --idl file belongs to")
	cmd.Flags().String("program-name", "", "display name for the --idl program")
	return cmd
}

// loadIdls builds the IDL registry from --idl (if given) plus every
// <program-id>.json file found in TXDECODE_IDL_DIR.
func loadIdls(cmd *cobra.Command, cfg *config) (*txdecode.IdlRegistry, error) {
	reg := txdecode.NewIdlRegistry()
	if cfg.IdlDir != "" {
		entries, err := os.ReadDir(cfg.IdlDir)
		if err != nil {
			return nil, fmt.Errorf("reading IDL directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			programID := strings.TrimSuffix(e.Name(), ".json")
			buf, err := os.ReadFile(filepath.Join(cfg.IdlDir, e.Name()))
			if err != nil {
				return nil, err
			}
			idl, err := txdecode.ParseIdl(buf, programID, programID)
			if err != nil {
				return nil, fmt.Errorf("IDL %s: %w", e.Name(), err)
			}
			reg.Register(idl)
		}
	}

	idlPath, _ := cmd.Flags().GetString("idl")
	if idlPath == "" {
		return reg, nil
	}
	programID, _ := cmd.Flags().GetString("program-id")
	if programID == "" {
		return nil, fmt.Errorf("--idl requires --program-id")
	}
	programName, _ := cmd.Flags().GetString("program-name")
	if programName == "" {
		programName = programID
	}
	buf, err := os.ReadFile(idlPath)
	if err != nil {
		return nil, err
	}
	idl, err := txdecode.ParseIdl(buf, programID, programName)
	if err != nil {
		return nil, err
	}
	reg.Register(idl)
	return reg, nil
}

func parseEvm(cmd *cobra.Command, raw []byte, abiPath string, asEvmTx bool) error {
	abiJson, err := os.ReadFile(abiPath)
	if err != nil {
		return err
	}
	abi, err := txdecode.ParseEvmAbi(abiJson)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	data := raw
	if asEvmTx {
		var tx txdecode.EvmTx
		if err := tx.ParseTransaction(raw); err != nil {
			return fmt.Errorf("error parsing EVM transaction envelope: %w", err)
		}
		fmt.Fprintf(out, "EVM Transaction:\n")
		fmt.Fprintf(out, "  To: %s\n", tx.To)
		fmt.Fprintf(out, "  Value: %s\n", tx.Value)
		fmt.Fprintf(out, "  Nonce: %d\n", tx.Nonce)
		fmt.Fprintf(out, "  Gas: %d\n", tx.Gas)
		if tx.Signed {
			if from, err := tx.SenderAddress(); err == nil {
				fmt.Fprintf(out, "  From: %s\n", from)
			}
		}
		data = tx.Data
	}

	call, err := abi.DecodeCallData(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Decoded function: %s (%s)\n", call.Function.Name, call.Function.Signature())
	for i, p := range call.Params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		fmt.Fprintf(out, "  Parameter %s (%s): %s\n", name, p.Type, p.Value)
	}
	return nil
}

func printSolana(cmd *cobra.Command, input string, meta *txdecode.SolanaMetadata) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Solana Parsed Transaction Payload:\n")
	fmt.Fprintf(out, "  Unsigned Payload: %s\n", input)
	fmt.Fprintf(out, "  Transaction Metadata:\n")
	fmt.Fprintf(out, "    Signatures: %v\n", meta.Signatures)
	fmt.Fprintf(out, "    Account Keys: %v\n", meta.AccountKeys)
	fmt.Fprintf(out, "    Program Keys: %v\n", meta.ProgramKeys)
	fmt.Fprintf(out, "    Recent Blockhash: %s\n", meta.RecentBlockhash)
	fmt.Fprintf(out, "    Instructions:\n")
	for i, inst := range meta.Instructions {
		fmt.Fprintf(out, "      Instruction %d:\n", i+1)
		fmt.Fprintf(out, "        Program Key: %s\n", inst.ProgramKey)
		fmt.Fprintf(out, "        Accounts: %v\n", inst.Accounts)
		fmt.Fprintf(out, "        Instruction Data (hex): %s\n", inst.InstructionDataHex)
		fmt.Fprintf(out, "        Address Table Lookups: %v\n", inst.AddressTableLookups)
		if inst.Decoded != nil {
			fmt.Fprintf(out, "        Decoded (%s):\n", inst.Decoded.Name)
			for _, arg := range inst.Decoded.Args {
				fmt.Fprintf(out, "          %s: %v\n", arg.Name, arg.Value)
			}
			for _, acct := range inst.Decoded.Accounts {
				name := acct.Name
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Fprintf(out, "          account %s: %s\n", name, acct.Address)
			}
		}
	}
	fmt.Fprintf(out, "    Transfers:\n")
	for i, t := range meta.Transfers {
		fmt.Fprintf(out, "      Transfer %d:\n", i+1)
		fmt.Fprintf(out, "        From: %s\n", t.From)
		fmt.Fprintf(out, "        To: %s\n", t.To)
		fmt.Fprintf(out, "        Amount: %s\n", t.Amount)
	}
	fmt.Fprintf(out, "    SPL Transfers:\n")
	for i, t := range meta.SplTransfers {
		fmt.Fprintf(out, "      SPL Transfer %d:\n", i+1)
		fmt.Fprintf(out, "        From: %s\n", t.From)
		fmt.Fprintf(out, "        To: %s\n", t.To)
		fmt.Fprintf(out, "        Owner: %s\n", t.Owner)
		for j, s := range t.Signers {
			fmt.Fprintf(out, "        Signer %d: %s\n", j+1, s)
		}
		fmt.Fprintf(out, "        Amount: %s\n", t.Amount)
		if t.TokenMint != "" {
			fmt.Fprintf(out, "        Mint: %s\n", t.TokenMint)
		}
		if t.Decimals != "" {
			fmt.Fprintf(out, "        Decimals: %s\n", t.Decimals)
		}
		if t.Fee != "" {
			fmt.Fprintf(out, "        Fee: %s\n", t.Fee)
		}
	}
	fmt.Fprintf(out, "    Address Table Lookups: %v\n", meta.AddressTableLookups)
}
