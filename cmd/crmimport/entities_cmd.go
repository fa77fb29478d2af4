package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmimport/internal/core"
)

func newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "entities",
		Short:             "List the registered entities",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printEntities(cmd.OutOrStdout(), core.All())
		},
	}
}

func printEntities(w io.Writer, defs []core.EntityDefinition) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tOBJECT\tMAPPING\tIMPORT ID\tREFERENCES")
	for _, def := range defs {
		mapping := def.MappingFile
		if mapping == "" {
			mapping = "(inline)"
		}
		var refs []string
		for _, ref := range def.References {
			refs = append(refs, ref.Table+"."+ref.KeyColumn+" -> "+ref.TargetField)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			def.Info.Key, def.Info.Object, mapping, def.ExternalIDField(), strings.Join(refs, ", "))
	}
	return tw.Flush()
}
