package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cronus42/goose"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the known models of each provider",
	RunE:  runModels,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools accepted by --tool",
	RunE:  runTools,
}

func runTools(_ *cobra.Command, _ []string) error {
	registry := llmprovider.GetToolRegistry()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Tool", "Description"})
	table.SetBorder(false)
	for _, name := range registry.List() {
		def, err := registry.Get(name)
		if err != nil {
			return err
		}
		table.Append([]string{def.Name, def.Description})
	}
	table.Render()
	return nil
}

func runModels(_ *cobra.Command, _ []string) error {
	registry := llmprovider.GetCapabilityRegistry()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Provider", "Model", "Context", "Max output", "Tools", "Default"})
	table.SetBorder(false)

	for _, id := range llmprovider.KnownProviders() {
		name := id.String()
		if flagProvider != "" && name != flagProvider {
			continue
		}
		caps, err := registry.GetProviderCapabilities(name)
		if err != nil {
			return err
		}
		for _, m := range caps.Models {
			def := ""
			if m.ID == caps.DefaultModel {
				def = "*"
			}
			table.Append([]string{
				name,
				m.ID,
				strconv.Itoa(m.ContextWindow),
				strconv.Itoa(m.MaxOutputTokens),
				strconv.FormatBool(m.Features.Tools),
				def,
			})
		}
	}
	table.Render()
	return nil
}
