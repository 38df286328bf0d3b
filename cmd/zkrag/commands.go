package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zkrag/zkrag/internal/core/attest"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Compile the circuit and run the trusted setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := buildManager()
			if err != nil {
				return err
			}
			art, err := mgr.Setup()
			if err != nil {
				return err
			}
			fmt.Printf("key version: %s\n", art.Version)
			fmt.Printf("constraints: %d\n", art.CS.GetNbConstraints())
			fmt.Printf("key dir:     %s\n", mgr.Keys().Dir())
			return nil
		},
	}
}

func newProveCmd() *cobra.Command {
	var witnessPath, outPath string

	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Generate a proof from a witness JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(witnessPath)
			if err != nil {
				return fmt.Errorf("read witness: %w", err)
			}
			var w attest.QueryWitness
			if err := json.Unmarshal(raw, &w); err != nil {
				return fmt.Errorf("parse witness: %w", err)
			}

			mgr, err := buildManager()
			if err != nil {
				return err
			}
			result, err := mgr.Prove(cmd.Context(), &w)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(result.ProofHex), 0o644); err != nil {
					return fmt.Errorf("write proof: %w", err)
				}
			} else {
				fmt.Println(result.ProofHex)
			}
			fmt.Fprintf(os.Stderr, "proof: %dB, key version %s, %v\n",
				result.ProofSize, result.KeyVersion, result.GenerationTime)
			return nil
		},
	}

	cmd.Flags().StringVar(&witnessPath, "witness", "", "witness JSON file (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "write the hex proof to a file instead of stdout")
	cmd.MarkFlagRequired("witness")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var proofArg, commitment, modelHash string
	var timestamp uint64

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a proof against the public inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			proofHex := proofArg
			if raw, err := os.ReadFile(proofArg); err == nil {
				proofHex = strings.TrimSpace(string(raw))
			}
			proofBytes, err := hex.DecodeString(proofHex)
			if err != nil {
				return fmt.Errorf("proof is neither a readable file nor valid hex: %w", err)
			}

			mgr, err := buildManager()
			if err != nil {
				return err
			}
			result, err := mgr.Verify(context.Background(), proofBytes, attest.PublicInputs{
				DocumentCommitment: commitment,
				ModelHash:          modelHash,
				Timestamp:          timestamp,
			})
			if err != nil {
				return err
			}

			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			if !result.Valid {
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&proofArg, "proof", "", "hex proof or path to a proof file (required)")
	cmd.Flags().StringVar(&commitment, "commitment", "", "document commitment hex (required)")
	cmd.Flags().StringVar(&modelHash, "model-hash", "", "model identity hash hex (required)")
	cmd.Flags().Uint64Var(&timestamp, "timestamp", 0, "query timestamp, Unix seconds (required)")
	cmd.MarkFlagRequired("proof")
	cmd.MarkFlagRequired("commitment")
	cmd.MarkFlagRequired("model-hash")
	cmd.MarkFlagRequired("timestamp")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the circuit shape and key versions in the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := buildManager()
			if err != nil {
				return err
			}
			fmt.Printf("shape:   %s\n", mgr.Shape())
			version, err := mgr.KeyVersion()
			if err != nil {
				return err
			}
			fmt.Printf("version: %s\n", version)

			versions, err := mgr.Keys().ListVersions()
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Println("cache:   empty (run setup)")
				return nil
			}
			fmt.Println("cache:")
			for _, v := range versions {
				marker := " "
				if v == version {
					marker = "*"
				}
				fmt.Printf("  %s %s\n", marker, v)
			}
			return nil
		},
	}
}

func newCommitCmd() *cobra.Command {
	var hashesPath string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Compute the document commitment for a list of chunk hashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(hashesPath)
			if err != nil {
				return fmt.Errorf("read hashes: %w", err)
			}
			var hashes []string
			for _, line := range strings.Split(string(raw), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					hashes = append(hashes, line)
				}
			}

			mgr, err := buildManager()
			if err != nil {
				return err
			}
			commitment, err := mgr.ComputeDocumentCommitment(hashes)
			if err != nil {
				return err
			}
			fmt.Println(commitment)
			return nil
		},
	}

	cmd.Flags().StringVar(&hashesPath, "hashes", "", "file with one hex chunk hash per line (required)")
	cmd.MarkFlagRequired("hashes")
	return cmd
}
