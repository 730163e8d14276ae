package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/fieldwire/pkg/codec"
	"github.com/ssargent/fieldwire/pkg/fieldjson"
	"github.com/ssargent/fieldwire/pkg/storage"
)

// storePath is where the field store lives inside the data directory.
func storePath() string {
	return filepath.Join(appConfig.DataDir, "fields")
}

func openStore() (*storage.FieldStorage, error) {
	fs, err := storage.Open(storePath(), storage.WithDecoder(decoder), storage.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put [file|-]",
	Short: "Store a field",
	Long: `Store a JSON field, or one binary record with --raw, in the field store
and print its new id.

Example:
  echo '{"key":"age","type":"int32","value":42}' | fieldwire put`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		data, err := readInput(cmd, args, 0)
		if err != nil {
			return err
		}

		fs, err := openStore()
		if err != nil {
			return err
		}
		defer fs.Close()

		var id ksuid.KSUID
		if raw {
			id, err = fs.CreateRaw(data)
		} else {
			var f codec.Field
			if f, err = fieldjson.Parse(data); err != nil {
				return err
			}
			id, err = fs.Create(f)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.String())
		return nil
	},
}

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored field",
	Long: `Print a stored field as indented JSON, or its binary record with --raw.

Example:
  fieldwire get 2zN3Zo8fRzpQpZb7eYl3TmwXyJ1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		id, err := ksuid.Parse(args[0])
		if err != nil {
			return errors.Wrapf(err, "invalid id %q", args[0])
		}

		fs, err := openStore()
		if err != nil {
			return err
		}
		defer fs.Close()

		if raw {
			record, err := fs.ReadRaw(id)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(record)
			return err
		}

		f, err := fs.Read(id)
		if err != nil {
			return err
		}
		js, err := fieldjson.MarshalIndent(f, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(js))
		return nil
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return errors.Wrapf(err, "invalid id %q", args[0])
		}

		fs, err := openStore()
		if err != nil {
			return err
		}
		defer fs.Close()

		if err := fs.Delete(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		return nil
	},
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored field ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		fs, err := openStore()
		if err != nil {
			return err
		}
		defer fs.Close()

		ids, err := fs.List(limit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)

	putCmd.Flags().Bool("raw", false, "Input is one binary record instead of JSON")
	getCmd.Flags().Bool("raw", false, "Write the binary record instead of JSON")
	listCmd.Flags().Int("limit", 0, "Maximum number of ids to list (0 lists all)")
}
