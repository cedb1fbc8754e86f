package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/coderag/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Starts a Model Context Protocol server over stdin/stdout so AI coding
assistants can index and search projects through the index_codebase,
search_code, and get_status tools.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := mcp.NewServer()
	if err != nil {
		return err
	}
	return srv.Serve(cmd.Context())
}
