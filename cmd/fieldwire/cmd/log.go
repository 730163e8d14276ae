package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/fieldwire/pkg/fieldjson"
	"github.com/ssargent/fieldwire/pkg/store"
)

// appendCmd represents the append command
var appendCmd = &cobra.Command{
	Use:   "append <log> [file|-]",
	Short: "Append fields to a field log",
	Long: `Append JSON fields to a field log, creating it if needed. The input is a
single field object or an array of them. With --raw the input must be
exactly one binary record.

Examples:
  fieldwire append events.log event.json
  fieldwire encode --raw event.json | fieldwire append --raw events.log`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		fsync, _ := cmd.Flags().GetDuration("fsync-interval")

		data, err := readInput(cmd, args, 1)
		if err != nil {
			return err
		}

		writer, err := store.NewLogWriter(store.LogWriterConfig{FilePath: args[0], FsyncInterval: fsync})
		if err != nil {
			return errors.Wrapf(err, "failed to open log %s", args[0])
		}
		defer writer.Close()

		if raw {
			offset, err := writer.AppendRaw(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", offset)
			return writer.Sync()
		}

		fields, err := parseFields(data)
		if err != nil {
			return err
		}
		for _, f := range fields {
			offset, err := writer.Append(f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", offset)
		}
		logger.Debug().Str("log", args[0]).Int("fields", len(fields)).Msg("appended fields")
		return writer.Sync()
	},
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <log>",
	Short: "Print every field in a field log",
	Long: `Print every field in a field log as one JSON line prefixed by its offset.

Scanning stops at the first torn or undecodable record and reports it; use
'fieldwire recover' to truncate the log back to its last good record.

Examples:
  fieldwire scan events.log
  fieldwire scan --from 128 events.log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetInt64("from")
		key, _ := cmd.Flags().GetString("key")

		reader, err := store.NewLogReader(store.LogReaderConfig{
			FilePath:    args[0],
			StartOffset: from,
			Decoder:     decoder,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to open log %s", args[0])
		}
		defer reader.Close()

		var count int
		if cmd.Flags().Changed("key") {
			count, err = scanKey(cmd.OutOrStdout(), reader, key)
		} else {
			count, err = scanLog(cmd.OutOrStdout(), reader.Iterator())
		}
		cmd.PrintErrf("%d fields\n", count)
		return err
	},
}

// keysCmd represents the keys command
var keysCmd = &cobra.Command{
	Use:   "keys <log>",
	Short: "List the top-level field keys in a field log",
	Long: `List every distinct top-level field key in a field log with the number of
records that carry it.

Example:
  fieldwire keys --prefix user: events.log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")

		reader, err := store.NewLogReader(store.LogReaderConfig{FilePath: args[0], Decoder: decoder})
		if err != nil {
			return errors.Wrapf(err, "failed to open log %s", args[0])
		}
		defer reader.Close()

		idx := store.NewKeyIndex()
		if err := idx.BuildFromLog(reader); err != nil {
			return err
		}
		for _, key := range idx.KeysWithPrefix(prefix) {
			offsets, _ := idx.Offsets(key)
			fmt.Fprintf(cmd.OutOrStdout(), "%q\t%d\n", key, len(offsets))
		}
		return nil
	},
}

// recoverCmd represents the recover command
var recoverCmd = &cobra.Command{
	Use:   "recover <log>",
	Short: "Truncate a field log to its last valid record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := store.Recover(args[0], logger)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Records validated: %d\n", result.RecordsValidated)
		fmt.Fprintf(cmd.OutOrStdout(), "Records truncated: %d\n", result.RecordsTruncated)
		fmt.Fprintf(cmd.OutOrStdout(), "Size: %d -> %d bytes\n", result.FileSizeBefore, result.FileSizeAfter)
		fmt.Fprintf(cmd.OutOrStdout(), "Took: %s\n", result.RecoveryTime.Round(time.Microsecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(keysCmd)

	appendCmd.Flags().Bool("raw", false, "Input is one binary record instead of JSON")
	appendCmd.Flags().Duration("fsync-interval", 0, "Fsync interval (0 syncs on every write)")
	scanCmd.Flags().Int64("from", 0, "Byte offset to start scanning from")
	scanCmd.Flags().String("key", "", "Only print fields with this top-level key")
	keysCmd.Flags().String("prefix", "", "Only list keys with this prefix")
}

// scanLog writes one "<offset> <json>" line per field and returns how many
// fields were written.
func scanLog(out io.Writer, it store.FieldIterator) (int, error) {
	count := 0
	for it.Next() {
		js, err := fieldjson.Marshal(it.Field())
		if err != nil {
			return count, err
		}
		if _, err := fmt.Fprintf(out, "%d %s\n", it.Offset(), js); err != nil {
			return count, err
		}
		count++
	}
	return count, it.Err()
}


// scanKey prints the fields stored under key using a key index over the log.
func scanKey(out io.Writer, reader *store.LogReader, key string) (int, error) {
	idx := store.NewKeyIndex()
	if err := idx.BuildFromLog(reader); err != nil {
		return 0, err
	}

	offsets, _ := idx.Offsets(key)
	for i, offset := range offsets {
		if err := reader.Seek(offset); err != nil {
			return i, err
		}
		f, err := reader.ReadNext()
		if err != nil {
			return i, err
		}
		js, err := fieldjson.Marshal(f)
		if err != nil {
			return i, err
		}
		if _, err := fmt.Fprintf(out, "%d %s\n", offset, js); err != nil {
			return i, err
		}
	}
	return len(offsets), nil
}
