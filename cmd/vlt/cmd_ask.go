package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"vlt/internal/oracle"
)

var (
	askExplain   bool
	askNoRepoMap bool
	askNoHistory bool
	askJSON      bool
	askSources   []string
	askUser      string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the Oracle a question about the project",
	Long: `Ask retrieves relevant code, documentation, and discussion
history, then synthesises an answer with inline citations.

Sources default to all of code, vault, and threads; restrict with
--sources. Follow-up questions share a conversation per user unless
--no-history is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askExplain, "explain", false, "include retrieval traces in the output")
	askCmd.Flags().BoolVar(&askNoRepoMap, "no-repo-map", false, "leave the repository map out of the context")
	askCmd.Flags().BoolVar(&askNoHistory, "no-history", false, "do not use or update the conversation")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the raw response as JSON")
	askCmd.Flags().StringSliceVar(&askSources, "sources", nil, "restrict sources (code, vault, threads)")
	askCmd.Flags().StringVar(&askUser, "user", defaultAuthor(), "conversation owner")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureProject(); err != nil {
		return err
	}

	question := strings.Join(args, " ")
	o := a.newOracle(cmd.Context())

	resp, err := o.Query(cmd.Context(), question, oracle.QueryOptions{
		Sources:         askSources,
		Explain:         askExplain,
		IncludeRepoMap:  !askNoRepoMap,
		UserID:          askUser,
		UseConversation: !askNoHistory,
	})
	if err != nil {
		return err
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printAnswer(resp)
	return nil
}

var (
	sourceHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sourceLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	footerStyle       = lipgloss.NewStyle().Faint(true)
)

func printAnswer(resp *oracle.Response) {
	fmt.Println(renderMarkdown(resp.Answer))

	if len(resp.Sources) > 0 {
		fmt.Println(sourceHeaderStyle.Render("Sources"))
		for _, s := range resp.Sources {
			fmt.Println(sourceLineStyle.Render(
				fmt.Sprintf("  %-50s %-10s %-7s %.2f", s.Path, s.Type, s.Method, s.Score)))
		}
	}

	fmt.Println(footerStyle.Render(fmt.Sprintf(
		"%s · %d tokens · %.3f¢ · %dms", resp.Model, resp.TokensUsed, resp.CostCents, resp.DurationMS)))

	if resp.Traces != nil {
		out, err := json.MarshalIndent(resp.Traces, "", "  ")
		if err == nil {
			fmt.Println(sourceHeaderStyle.Render("Traces"))
			fmt.Println(string(out))
		}
	}
}

// renderMarkdown pretty-prints for terminals and passes markdown through
// untouched when output is piped.
func renderMarkdown(text string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return text
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
