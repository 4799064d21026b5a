package cli

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

const (
	formatPlain = "plain"
	formatJSON  = "json"
	formatTSV   = "tsv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// parseFormat accepts the values of --format. An empty value means plain.
func parseFormat(s string) (string, error) {
	switch s {
	case "":
		return formatPlain, nil
	case formatPlain, formatJSON, formatTSV:
		return s, nil
	}
	return "", fmt.Errorf("unknown output format %q (want plain, json or tsv)", s)
}

func isJSON(flags *rootFlags) bool { return flags.Format == formatJSON }
func isTSV(flags *rootFlags) bool  { return flags.Format == formatTSV }

// writeJSON pretty-prints v as a single document.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONLine(cmd *cobra.Command, v any) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}

// writeOK reports a completed action in JSON mode. Other formats stay quiet
// so scripts can rely on the exit code.
func writeOK(cmd *cobra.Command, flags *rootFlags, action string, extra map[string]any) error {
	if !isJSON(flags) {
		return nil
	}
	doc := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		doc[k] = v
	}
	doc["ok"] = true
	doc["action"] = action
	return writeJSON(cmd, doc)
}

func writePlainLine(cmd *cobra.Command, flags *rootFlags, s string) {
	if !isJSON(flags) {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
}

// writeValue prints a single named reading such as a volume level.
func writeValue(cmd *cobra.Command, flags *rootFlags, key string, v any) error {
	w := cmd.OutOrStdout()
	switch {
	case isJSON(flags):
		return writeJSON(cmd, map[string]any{key: v})
	case isTSV(flags):
		_, err := fmt.Fprintf(w, "%s\t%v\n", key, v)
		return err
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}
