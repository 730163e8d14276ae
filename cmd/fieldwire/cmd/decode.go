package cmd

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/fieldwire/pkg/codec"
	"github.com/ssargent/fieldwire/pkg/fieldjson"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [file|-]",
	Short: "Decode a binary record into JSON",
	Long: `Decode the first binary record of the input and print it as indented JSON.

The number of bytes consumed and any trailing bytes are reported on stderr.
With --all every record in the input is decoded in turn.

Examples:
  fieldwire decode user.bin
  echo 0100000003616765000000040000002a | fieldwire decode --hex
  fieldwire decode --lenient --max-depth 8 untrusted.bin`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asHex, _ := cmd.Flags().GetBool("hex")
		all, _ := cmd.Flags().GetBool("all")

		data, err := readInput(cmd, args, 0)
		if err != nil {
			return err
		}
		if asHex {
			if data, err = decodeHex(data); err != nil {
				return err
			}
		}

		return decodeRecords(cmd.OutOrStdout(), cmd.ErrOrStderr(), decoderFor(cmd), data, all)
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().Bool("hex", false, "Input is hex text instead of binary")
	decodeCmd.Flags().Bool("all", false, "Decode every record in the input")
	decodeCmd.Flags().Int("max-depth", 0, "Maximum message nesting depth (default from config)")
	decodeCmd.Flags().Bool("lenient", false, "Keep the children decoded before a malformed nested field")
}

// decoderFor applies the decode flags on top of the configured decoder.
func decoderFor(cmd *cobra.Command) *codec.Decoder {
	opts := []codec.DecoderOption{
		codec.WithMaxDepth(decoder.MaxDepth()),
		codec.WithNestedPolicy(decoder.Policy()),
	}
	if cmd.Flags().Changed("max-depth") {
		depth, _ := cmd.Flags().GetInt("max-depth")
		opts = append(opts, codec.WithMaxDepth(depth))
	}
	if lenient, _ := cmd.Flags().GetBool("lenient"); lenient {
		opts = append(opts, codec.WithNestedPolicy(codec.NestedLenient))
	}
	return codec.NewDecoder(opts...)
}

// decodeRecords prints the first record of data, or all of them, as JSON to
// out and a consumption summary to summary.
func decodeRecords(out, summary io.Writer, dec *codec.Decoder, data []byte, all bool) error {
	offset := 0
	for {
		f, n, err := dec.Decode(data[offset:])
		if err != nil {
			return errors.Wrapf(err, "record at offset %d", offset)
		}

		js, err := fieldjson.MarshalIndent(f, "", "  ")
		if err != nil {
			return err
		}
		if _, err := out.Write(append(js, '\n')); err != nil {
			return err
		}
		offset += n

		trailing := len(data) - offset
		if !all || trailing == 0 {
			_, err := fmt.Fprintf(summary, "consumed %d bytes, %d trailing\n", offset, trailing)
			return err
		}
	}
}

