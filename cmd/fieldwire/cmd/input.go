package cmd

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/fieldwire/pkg/codec"
	"github.com/ssargent/fieldwire/pkg/fieldjson"
)

// readInput reads the named file, or stdin when the name is "-" or absent.
func readInput(cmd *cobra.Command, args []string, index int) ([]byte, error) {
	if len(args) <= index || args[index] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errors.Wrap(err, "failed to read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(args[index])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", args[index])
	}
	return data, nil
}

// decodeHex accepts hex with any whitespace between digits.
func decodeHex(data []byte) ([]byte, error) {
	cleaned := strings.Join(strings.Fields(string(data)), "")
	out, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, errors.Wrap(err, "input is not valid hex")
	}
	return out, nil
}

// parseFields reads a single JSON field object or an array of them.
func parseFields(data []byte) ([]codec.Field, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return fieldjson.ParseList(trimmed)
	}
	f, err := fieldjson.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	return []codec.Field{f}, nil
}
