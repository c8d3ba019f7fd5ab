package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/labelgo/cachefile"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.bin>",
	Short: "Print the header of a binary cache file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		header, err := cachefile.ReadHeader(f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "magic:       0x%08x\n", header.Magic)
		fmt.Fprintf(out, "version:     %d.%d.%d\n", header.Version>>16, header.Version>>8&0xff, header.Version&0xff)
		fmt.Fprintf(out, "geographic:  %t\n", header.Geographic())
		fmt.Fprintf(out, "compression: %s\n", cachefile.CompressionType(header.Compression))
		fmt.Fprintf(out, "labels:      %d\n", header.Count)
		fmt.Fprintf(out, "bounds:      x %g - %g, y %g - %g\n", header.MinX, header.MaxX, header.MinY, header.MaxY)
		fmt.Fprintf(out, "checksum:    0x%08x\n", header.Checksum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
