package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Zereker/rtmp/amf"
)

var encodeType string

var encodeCmd = &cobra.Command{
	Use:   "encode <name> <value>",
	Short: "Hex-dump the AMF0 encoding of a named value",
	Long: `Encode writes name and value as an AMF0 object property (2 bytes name
length, the name, a type marker and the value) and prints a hex dump.

The value is a number by default; use --type to encode a boolean or string.`,
	Args: cobra.ExactArgs(2),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().StringVarP(&encodeType, "type", "t", "number", "value type: number, bool or string")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	buf, err := encodeNamed(args[0], args[1], encodeType)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), hex.Dump(buf))
	return nil
}

func encodeNamed(name, value, typ string) ([]byte, error) {
	var v any
	switch typ {
	case "number":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", value, err)
		}
		v = f
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q: %w", value, err)
		}
		v = b
	case "string":
		v = value
	default:
		return nil, fmt.Errorf("unknown type %q", typ)
	}

	var e amf.Encoder
	e.AddNamed(name, v)
	return e.Encode()
}
