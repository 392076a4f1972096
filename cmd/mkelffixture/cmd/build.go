package cmd

import (
	"encoding/hex"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"corekernel/cmd/mkelffixture/internal/elfbuild"
)

func newBuildCommand() *cobra.Command {
	var (
		loadAddr uint64
		entry    uint64
		codeHex  string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "assemble a single-section ELF64 executable",
		RunE: func(c *cobra.Command, args []string) error {
			return runBuild(loadAddr, entry, codeHex, output)
		},
	}

	cmd.Flags().Uint64Var(&loadAddr, "load-addr", 0x1000, "virtual address the loader will place the code section at")
	cmd.Flags().Uint64Var(&entry, "entry", 0x1000, "entry point virtual address, must fall within the code section")
	cmd.Flags().StringVar(&codeHex, "code", "cd80c3", "machine code to embed, as a hex string (default: int 0x80; ret)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "path to write the ELF image to (required)")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runBuild(loadAddr, entry uint64, codeHex, output string) error {
	code, err := hex.DecodeString(codeHex)
	if err != nil {
		return errors.Wrap(err, "build: decoding --code")
	}

	img, err := elfbuild.Build(loadAddr, entry, code)
	if err != nil {
		return errors.Wrap(err, "build: assembling image")
	}

	if err := os.WriteFile(output, img, 0o644); err != nil {
		return errors.Wrapf(err, "build: writing %s", output)
	}
	return nil
}
