package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/fieldwire/pkg/codec"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode [file|-]",
	Short: "Encode a JSON field into a binary record",
	Long: `Encode a JSON field, or a JSON array of fields, into binary records.

Records are printed as hex, one line per field, unless --raw is given, in
which case the concatenated records are written to stdout as-is.

Examples:
  echo '{"key":"age","type":"int32","value":42}' | fieldwire encode
  fieldwire encode --raw user.json > user.bin`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		data, err := readInput(cmd, args, 0)
		if err != nil {
			return err
		}
		fields, err := parseFields(data)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if raw {
			var buf []byte
			for _, f := range fields {
				buf = codec.AppendField(buf, f)
			}
			_, err := out.Write(buf)
			return err
		}
		for _, f := range fields {
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(codec.EncodeField(f)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().Bool("raw", false, "Write binary records instead of hex")
}
