package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var flagYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the project's index",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip confirmation")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	if _, err := os.Stat(dbPath(root)); os.IsNotExist(err) {
		cmd.Println("No index to clear.")
		return nil
	}

	if !flagYes {
		cmd.Printf("Delete the index for %s? [y/N] ", root)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	st, err := openStore(root)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	cmd.Println("Index cleared.")
	return nil
}
