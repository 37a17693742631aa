package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/samhoang/myrepo/internal/plugin"
)

var showCmd = &cobra.Command{
	Use:   "show <hash>",
	Short: "Show every field of one plugin",
	Long: `Print a plugin record as YAML. The hash may be abbreviated to any unique
prefix.

Examples:
  myrepo show 3f2a9c1d`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	if _, err := c.Load(cmd.Context(), false); err != nil {
		return err
	}

	hash, err := resolveHash(c, args[0])
	if err != nil {
		return err
	}
	r, ok := c.Find(hash)
	if !ok {
		return fmt.Errorf("plugin %s is not in the working list", hash)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(yamlRecord(r))
}

// yamlRecord converts json.Number values so YAML prints them as numbers
func yamlRecord(r plugin.Record) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = yamlValue(v)
	}
	return out
}

func yamlValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = yamlValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = yamlValue(inner)
		}
		return s
	}
	return v
}
