package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/coderag/internal/config"
	"github.com/dshills/coderag/internal/llm"
	"github.com/dshills/coderag/internal/memory"
	"github.com/dshills/coderag/internal/searcher"
	"github.com/dshills/coderag/pkg/types"
)

const askSystemPrompt = `You are a code assistant answering questions about a specific
codebase. Base your answers on the provided code context. When the
context does not contain the answer, say so rather than guessing.`

const askContextChunks = 5

var (
	flagAskSave     bool
	flagAskContinue string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the codebase",
	Long: `Retrieves the most relevant indexed code for the question and asks the
configured chat model to answer with that context. Use --save to keep
the exchange as a conversation, or --continue to extend a saved one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&flagAskSave, "save", false, "save the exchange as a conversation")
	askCmd.Flags().StringVar(&flagAskContinue, "continue", "", "continue a saved conversation by ID")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	st, err := openStore(root)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer emb.Close()

	s, err := searcher.New(st, emb)
	if err != nil {
		return err
	}
	results, err := s.Search(cmd.Context(), types.Query{Text: question, TopK: askContextChunks})
	if err != nil {
		return err
	}

	client, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	var conv *memory.Conversation
	if flagAskContinue != "" {
		mgr, merr := openMemory()
		if merr != nil {
			return merr
		}
		id, merr := resolveConversation(mgr, flagAskContinue)
		if merr != nil {
			return merr
		}
		if conv, merr = mgr.Load(id); merr != nil {
			return merr
		}
	}

	prompt := buildAskPrompt(question, results)
	var answer string
	if conv != nil {
		recent := conv.Context(10)
		history := make([]memory.Message, 0, len(recent)+1)
		history = append(history, recent...)
		history = append(history, memory.Message{Role: memory.RoleUser, Content: prompt})
		answer, err = client.Chat(cmd.Context(), history, askSystemPrompt)
	} else {
		answer, err = client.Generate(cmd.Context(), prompt, askSystemPrompt)
	}
	if err != nil {
		return err
	}

	cmd.Println(answer)

	if flagAskSave || conv != nil {
		mgr, merr := openMemory()
		if merr != nil {
			return merr
		}
		if conv == nil {
			title := question
			if len(title) > 60 {
				title = title[:60]
			}
			if conv, merr = mgr.Create(title, "code-assistant"); merr != nil {
				return merr
			}
		}
		conv.AddMessage(memory.RoleUser, question)
		conv.AddMessage(memory.RoleAssistant, answer)
		if merr := mgr.Save(conv); merr != nil {
			return merr
		}
		cmd.Printf("\n[saved to conversation %s]\n", conv.ID[:8])
	}
	return nil
}

// buildAskPrompt sandwiches retrieved chunks between the question and an
// instruction so the model cites files it actually saw.
func buildAskPrompt(question string, results []types.ScoredChunk) string {
	var b strings.Builder
	if len(results) == 0 {
		b.WriteString("No indexed code matched this question.\n\n")
	} else {
		b.WriteString("Relevant code from the project:\n\n")
		for _, r := range results {
			fmt.Fprintf(&b, "--- %s (lines %d-%d) ---\n%s\n\n",
				r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Chunk.Content)
		}
	}
	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}
