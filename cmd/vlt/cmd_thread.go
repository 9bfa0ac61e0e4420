package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vlt/internal/logging"
	"vlt/internal/store"
	"vlt/internal/summary"
)

var (
	threadFlag string
	authorFlag string
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage discussion threads",
	Long: `Threads are append-only sequences of notes. Push adds a note,
read prints a thread in order, seek resumes from a sequence number, and
list shows the project's threads.`,
}

var threadPushCmd = &cobra.Command{
	Use:   "push [content]",
	Short: "Append a note to a thread",
	Long: `Append a note to a thread. Without --thread a new thread is
created and its identifier printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runThreadPush,
}

var threadReadCmd = &cobra.Command{
	Use:   "read <thread-id>",
	Short: "Print a thread's notes in sequence order",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadRead,
}

var threadSeekCmd = &cobra.Command{
	Use:   "seek <thread-id> <sequence>",
	Short: "Print a thread's notes from a sequence number onward",
	Args:  cobra.ExactArgs(2),
	RunE:  runThreadSeek,
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the project's threads",
	RunE:  runThreadList,
}

var threadSummary bool

func init() {
	threadPushCmd.Flags().StringVarP(&threadFlag, "thread", "t", "", "thread to append to (default: create a new one)")
	threadPushCmd.Flags().StringVarP(&authorFlag, "author", "a", defaultAuthor(), "note author")
	threadReadCmd.Flags().BoolVar(&threadSummary, "summary", false, "print the cached summary instead of the notes")

	threadCmd.AddCommand(threadPushCmd)
	threadCmd.AddCommand(threadReadCmd)
	threadCmd.AddCommand(threadSeekCmd)
	threadCmd.AddCommand(threadListCmd)
}

func defaultAuthor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "user"
}

func runThreadPush(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureProject(); err != nil {
		return err
	}

	threadID := threadFlag
	if threadID == "" {
		thread, err := a.st.CreateThread(a.cfg.Project.ID)
		if err != nil {
			return err
		}
		threadID = thread.ID
		fmt.Println("created thread", threadID)
	}

	node, err := a.st.AppendNode(threadID, args[0], authorFlag)
	if err != nil {
		return err
	}
	fmt.Printf("appended node #%d (%s)\n", node.SequenceID, node.ID)
	return nil
}

func runThreadRead(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	threadID := args[0]
	if threadSummary {
		chat := a.chatClient()
		s := summary.NewSummarizer(a.st, chat, a.cfg.Oracle.SynthesisModel, logging.Named("summary"))
		text, err := s.GenerateSummary(cmd.Context(), threadID, false)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	nodes, err := a.st.GetNodes(threadID)
	if err != nil {
		return err
	}
	printNodes(nodes)
	return nil
}

func runThreadSeek(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	var seq int
	if _, err := fmt.Sscanf(args[1], "%d", &seq); err != nil {
		return fmt.Errorf("sequence must be a number: %q", args[1])
	}

	nodes, err := a.st.NodesAfter(args[0], seq-1)
	if err != nil {
		return err
	}
	printNodes(nodes)
	return nil
}

func printNodes(nodes []store.Node) {
	if len(nodes) == 0 {
		fmt.Println("no notes")
		return
	}
	for _, n := range nodes {
		fmt.Printf("#%d  %s  %s\n%s\n\n",
			n.SequenceID, n.Author, n.CreatedAt.Format("2006-01-02 15:04"), n.Content)
	}
}

func runThreadList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	threads, err := a.st.ListThreads(a.cfg.Project.ID, 50)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Println("no threads")
		return nil
	}
	for _, th := range threads {
		count, err := a.st.CountNodes(th.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %-9s  %3d notes  updated %s\n",
			th.ID, th.Status, count, th.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
