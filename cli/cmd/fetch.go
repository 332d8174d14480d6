package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/michalshavit1/salto/element"
)

func newFetchCommand() *cobra.Command {
	var out string
	var includeHidden bool

	cmd := &cobra.Command{
		Use:   "fetch [kind...]",
		Short: "Fetch configuration elements from the service",
		Long: `Fetch lists the given resource kinds (all listable kinds when none are
named), maps every record into an element, and resolves references across the
fetched set. With --out, each element is written as a yaml file under
<out>/<kind>/; without it, a one-line summary per element is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			kinds := args
			if len(kinds) == 0 {
				kinds = rt.cfg.Fetch.Kinds
			}
			result, err := rt.orchestrator.Fetch(cmd.Context(), kinds...)
			if err != nil {
				return err
			}
			for _, warning := range result.Warnings {
				cmd.PrintErrln("warning:", warning)
			}

			written := 0
			for _, e := range result.Elements {
				if e.Hidden() && !includeHidden {
					continue
				}
				if out == "" {
					cmd.Printf("%-24s %s\n", e.Kind, e.ID)
					continue
				}
				if err := writeElementFile(out, e); err != nil {
					return err
				}
				written++
			}
			if out != "" {
				cmd.Printf("wrote %d elements to %s\n", written, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Directory to write element files into")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Also emit hidden synthetic elements")
	return cmd
}

func writeElementFile(out string, e *element.Element) error {
	dir := filepath.Join(out, sanitizeFileName(e.Kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %q: %w", dir, err)
	}
	data, err := yaml.Marshal(exportValue(e.Values))
	if err != nil {
		return fmt.Errorf("cannot encode element %s: %w", e.ID, err)
	}
	path := filepath.Join(dir, sanitizeFileName(e.FileName)+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %q: %w", path, err)
	}
	return nil
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "-")
	name = strings.ReplaceAll(name, "..", "-")
	if name == "" {
		return "unnamed"
	}
	return name
}
