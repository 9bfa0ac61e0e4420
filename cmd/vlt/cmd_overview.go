package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show the project's index and memory at a glance",
	RunE:  runOverview,
}

var (
	overviewTitleStyle = lipgloss.NewStyle().Bold(true)
	overviewKeyStyle   = lipgloss.NewStyle().Width(15).Foreground(lipgloss.Color("245"))
)

func runOverview(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureProject(); err != nil {
		return err
	}

	stats, err := a.st.GetProjectStats(a.cfg.Project.ID)
	if err != nil {
		return err
	}

	fmt.Println(overviewTitleStyle.Render(a.cfg.Project.Name) + "  (" + a.cfg.Project.ID + ")")
	if a.cfg.Project.Description != "" {
		fmt.Println(a.cfg.Project.Description)
	}
	fmt.Println()

	row := func(key string, value any) {
		fmt.Println(overviewKeyStyle.Render(key) + fmt.Sprint(value))
	}
	row("chunks", stats.Chunks)
	row("graph nodes", stats.Nodes)
	row("graph edges", stats.Edges)
	row("symbols", stats.Symbols)
	row("threads", stats.Threads)
	row("conversations", stats.Conversations)

	if m, err := a.st.GetRepoMap(a.cfg.Project.ID, nil); err == nil {
		row("repo map", fmt.Sprintf("%d symbols, %d tokens, built %s",
			m.SymbolsIncluded, m.TokenCount, m.CreatedAt.Format("2006-01-02 15:04")))
	}
	return nil
}
