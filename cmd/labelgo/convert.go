package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/labelgo/cachefile"
	"github.com/hupe1980/labelgo/ceformat"
)

var (
	convertCompression string
	convertPlanar      bool
	convertStrict      bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.ce> <output.bin>",
	Short: "Convert a label elimination sequence file into a binary cache file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var compression cachefile.CompressionType
		switch convertCompression {
		case "none":
			compression = cachefile.CompressionNone
		case "lz4":
			compression = cachefile.CompressionLZ4
		case "zstd":
			compression = cachefile.CompressionZSTD
		default:
			return fmt.Errorf("unknown compression %q (want none, lz4 or zstd)", convertCompression)
		}

		labels, err := ceformat.ParseFile(args[0], func(o *ceformat.ParseOptions) {
			o.Strict = convertStrict
		})
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		ds := &cachefile.Dataset{
			Labels:     labels,
			Geographic: !convertPlanar,
		}
		if err := cachefile.EncodeFile(args[1], ds, func(o *cachefile.EncodeOptions) {
			o.Compression = compression
		}); err != nil {
			return fmt.Errorf("write %s: %w", args[1], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d labels to %s (%s)\n", len(labels), args[1], compression)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertCompression, "compression", "lz4", "payload compression: none, lz4 or zstd")
	convertCmd.Flags().BoolVar(&convertPlanar, "planar", false, "mark coordinates as planar instead of lon/lat")
	convertCmd.Flags().BoolVar(&convertStrict, "strict", false, "fail on the first malformed input line instead of skipping it")
	rootCmd.AddCommand(convertCmd)
}
