// Command zkrag manages the attestation pipeline: trusted setup, proving and
// verification from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zkrag/zkrag/internal/core/attest"
	infralog "github.com/zkrag/zkrag/internal/infrastructure/log"
)

var (
	flagKeyDir         string
	flagTreeDepth      int
	flagNumResults     int
	flagModelTreeDepth int
	flagApprovedModels []string
	flagWindowStart    uint64
	flagWindowEnd      uint64
	flagLogLevel       string
)

func main() {
	root := &cobra.Command{
		Use:           "zkrag",
		Short:         "Zero-knowledge attestation for retrieval-augmented queries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := infralog.New(&infralog.Config{Level: flagLogLevel, Format: "console"})
			if err != nil {
				return err
			}
			infralog.SetGlobal(logger)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagKeyDir, "key-dir", "", "key cache directory (default ~/.zkrag/keys)")
	pf.IntVar(&flagTreeDepth, "tree-depth", 0, "document tree depth")
	pf.IntVar(&flagNumResults, "results", 0, "retrieval slots per proof")
	pf.IntVar(&flagModelTreeDepth, "model-tree-depth", 0, "approved-model tree depth")
	pf.StringArrayVar(&flagApprovedModels, "approved-model", nil, "hex SHA-256 hash of an approved model (repeatable)")
	pf.Uint64Var(&flagWindowStart, "window-start", 0, "acceptance window start, Unix seconds")
	pf.Uint64Var(&flagWindowEnd, "window-end", 0, "acceptance window end, Unix seconds")
	pf.StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newSetupCmd(), newProveCmd(), newVerifyCmd(), newInfoCmd(), newCommitCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildManager() (*attest.Manager, error) {
	cfg := attest.DefaultConfig()
	cfg.KeyDir = orDefault(flagKeyDir, cfg.KeyDir)
	if flagTreeDepth > 0 {
		cfg.TreeDepth = flagTreeDepth
	}
	if flagNumResults > 0 {
		cfg.NumResults = flagNumResults
	}
	if flagModelTreeDepth > 0 {
		cfg.ModelTreeDepth = flagModelTreeDepth
	}
	if flagWindowStart > 0 {
		cfg.WindowStart = flagWindowStart
	}
	if flagWindowEnd > 0 {
		cfg.WindowEnd = flagWindowEnd
	}
	cfg.ApprovedModels = flagApprovedModels
	return attest.NewManager(cfg, infralog.Global())
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
