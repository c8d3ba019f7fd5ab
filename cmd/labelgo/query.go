package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/hupe1980/labelgo"
	"github.com/hupe1980/labelgo/label"
)

var (
	queryThreshold float64
	queryMinX      float64
	queryMinY      float64
	queryMaxX      float64
	queryMaxY      float64
	queryMaxPrio   int32
	queryLimit     int
	queryWrapX     bool
)

var queryCmd = &cobra.Command{
	Use:   "query <file.bin>",
	Short: "Run a bounding-box query against a binary cache file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lg := labelgo.Open(args[0])
		defer lg.Close()
		if !lg.Good() {
			return lg.Err()
		}

		qb := lg.Query(label.NewBBox(queryMinX, queryMinY, queryMaxX, queryMaxY)).
			Threshold(queryThreshold).
			Limit(queryLimit)
		if queryWrapX {
			qb = qb.WrapX()
		}
		if cmd.Flags().Changed("max-prio") {
			qb = qb.MaxPrio(queryMaxPrio)
		}

		results, err := qb.Execute(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, l := range results {
			fmt.Fprintln(out, l.String())
		}
		fmt.Fprintf(out, "%d of %d labels\n", len(results), lg.Count())
		return nil
	},
}

func init() {
	queryCmd.Flags().Float64VarP(&queryThreshold, "threshold", "t", math.Inf(1), "visibility threshold (default: all labels)")
	queryCmd.Flags().Float64Var(&queryMinX, "min-x", -180, "west edge of the query box")
	queryCmd.Flags().Float64Var(&queryMinY, "min-y", -90, "south edge of the query box")
	queryCmd.Flags().Float64Var(&queryMaxX, "max-x", 180, "east edge of the query box")
	queryCmd.Flags().Float64Var(&queryMaxY, "max-y", 90, "north edge of the query box")
	queryCmd.Flags().Int32Var(&queryMaxPrio, "max-prio", 0, "only labels with rank <= this (lower = more important)")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "cap the number of results (0 = unlimited)")
	queryCmd.Flags().BoolVar(&queryWrapX, "wrap-x", false, "treat min-x > max-x as an antimeridian wraparound")
	rootCmd.AddCommand(queryCmd)
}
