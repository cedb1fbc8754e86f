package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/coderag/internal/memory"
)

var (
	flagMemAgent  string
	flagMemTag    string
	flagMemLimit  int
	flagMemFormat string
	flagMemOut    string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage saved ask conversations",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	RunE:  runMemoryList,
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryShow,
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search conversation titles and content",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemorySearch,
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryDelete,
}

var memoryExportCmd = &cobra.Command{
	Use:   "export [id...]",
	Short: "Export conversations as JSON or Markdown",
	RunE:  runMemoryExport,
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show conversation storage statistics",
	RunE:  runMemoryStats,
}

func init() {
	memoryListCmd.Flags().StringVar(&flagMemAgent, "agent", "", "filter by agent")
	memoryListCmd.Flags().StringVar(&flagMemTag, "tag", "", "filter by tag")
	memoryListCmd.Flags().IntVar(&flagMemLimit, "limit", 0, "maximum results (0 = all)")
	memoryExportCmd.Flags().StringVar(&flagMemFormat, "format", "json", "export format: json or markdown")
	memoryExportCmd.Flags().StringVar(&flagMemOut, "out", "", "output file (default: stdout)")

	memoryCmd.AddCommand(memoryListCmd, memoryShowCmd, memorySearchCmd, memoryDeleteCmd, memoryExportCmd, memoryStatsCmd)
	rootCmd.AddCommand(memoryCmd)
}

func openMemory() (*memory.Manager, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}
	return memory.NewManager(filepath.Join(root, ".coderag", "memory"))
}

// resolveConversation accepts a full ID or a unique prefix.
func resolveConversation(mgr *memory.Manager, id string) (string, error) {
	var match string
	for _, s := range mgr.List("", "", 0) {
		if s.ID == id {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, id) {
			if match != "" {
				return "", fmt.Errorf("conversation ID %q is ambiguous", id)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", memory.ErrConversationNotFound, id)
	}
	return match, nil
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	mgr, err := openMemory()
	if err != nil {
		return err
	}
	summaries := mgr.List(flagMemAgent, flagMemTag, flagMemLimit)
	if len(summaries) == 0 {
		cmd.Println("No conversations.")
		return nil
	}
	for _, s := range summaries {
		cmd.Printf("%s  %-40s  %3d msgs  %s\n",
			s.ID[:8], s.Title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	mgr, err := openMemory()
	if err != nil {
		return err
	}
	id, err := resolveConversation(mgr, args[0])
	if err != nil {
		return err
	}
	conv, err := mgr.Load(id)
	if err != nil {
		return err
	}
	cmd.Printf("# %s (%s)\n\n", conv.Title, conv.ID)
	for _, m := range conv.Messages {
		cmd.Printf("[%s] %s\n%s\n\n", m.Role, m.Timestamp.Format("2006-01-02 15:04:05"), m.Content)
	}
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	mgr, err := openMemory()
	if err != nil {
		return err
	}
	results, err := mgr.Search(args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		cmd.Println("No matches.")
		return nil
	}
	for _, r := range results {
		cmd.Printf("%s  %-40s  (match: %s)\n", r.ID[:8], r.Title, r.MatchType)
	}
	return nil
}

func runMemoryDelete(cmd *cobra.Command, args []string) error {
	mgr, err := openMemory()
	if err != nil {
		return err
	}
	id, err := resolveConversation(mgr, args[0])
	if err != nil {
		return err
	}
	if err := mgr.Delete(id); err != nil {
		return err
	}
	cmd.Println("Deleted.")
	return nil
}

func runMemoryExport(cmd *cobra.Command, args []string) error {
	mgr, err := openMemory()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, rerr := resolveConversation(mgr, arg)
		if rerr != nil {
			return rerr
		}
		ids = append(ids, id)
	}

	out := cmd.OutOrStdout()
	if flagMemOut != "" {
		f, ferr := os.Create(flagMemOut)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		out = f
	}
	return mgr.Export(out, flagMemFormat, ids)
}

func runMemoryStats(cmd *cobra.Command, args []string) error {
	mgr, err := openMemory()
	if err != nil {
		return err
	}
	stats, err := mgr.Stats()
	if err != nil {
		return err
	}
	cmd.Printf("Conversations: %d\n", stats.TotalConversations)
	cmd.Printf("Messages:      %d\n", stats.TotalMessages)
	cmd.Printf("Storage:       %d bytes\n", stats.StorageBytes)
	for agent, n := range stats.ByAgent {
		cmd.Printf("  %-12s %d\n", agent, n)
	}
	return nil
}
