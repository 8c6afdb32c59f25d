package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/clinrag/internal/assistant"
	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/memory"
	"github.com/ziadkadry99/clinrag/internal/sessions"
)

var (
	chatUser     string
	chatName     string
	chatNoTools  bool
	chatSession  string
	chatNoStream bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to HopeAI in the terminal",
	Long: `Starts an interactive conversation with the HopeAI assistant. Replies are
streamed as they are generated; patient searches and session bookings the
assistant requests are executed against the local database. Type /exit to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx, appParts{assistant: true, database: true})
		if err != nil {
			return err
		}
		defer a.Close()

		store := sessions.NewStore(a.db)
		var history []llm.Message
		if chatSession != "" {
			history, err = store.History(ctx, chatSession)
			if err != nil {
				return fmt.Errorf("loading session %s: %w", chatSession, err)
			}
		} else {
			s, err := store.CreateSession(ctx, chatUser, "Terminal chat")
			if err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
			chatSession = s.ID
		}
		fmt.Fprintf(os.Stderr, "HopeAI (session %s). Type /exit to quit.\n\n", chatSession)

		for {
			line, err := (&promptui.Prompt{Label: "Tú"}).Run()
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			if err != nil {
				return err
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/exit" || line == "/quit" {
				return nil
			}

			req := assistant.SendRequest{
				Message:               line,
				History:               history,
				Context:               assistant.ContextParams{UserName: chatName, CurrentSection: "terminal"},
				EnableFunctionCalling: !chatNoTools,
				SessionID:             chatSession,
				UserID:                chatUser,
			}
			reply := runTurn(ctx, a, req)
			for _, call := range reply.FunctionCalls {
				res := a.tools.Execute(ctx, chatUser, call)
				fmt.Printf("  [%s] %s\n", call.Name, res.Message)
			}
			fmt.Println()

			for _, m := range []sessions.Message{
				{Role: llm.RoleUser, Content: line},
				{Role: llm.RoleAssistant, Content: reply.Text, FunctionCalls: reply.FunctionCalls,
					UsedMemories: reply.UsedMemories, IsUsingMemory: reply.IsUsingMemory},
			} {
				if _, err := store.AddMessage(ctx, chatSession, m); err != nil {
					a.log.Warn("persisting chat turn", "session_id", chatSession, "error", err)
				}
			}
			history = append(history,
				llm.Message{Role: llm.RoleUser, Content: line},
				llm.Message{Role: llm.RoleAssistant, Content: reply.Text},
			)
		}
	},
}

// runTurn prints the assistant's answer as it arrives and returns what was
// said.
func runTurn(ctx context.Context, a *app, req assistant.SendRequest) assistant.Reply {
	if chatNoStream {
		reply := a.assistant.SendMessage(ctx, req)
		fmt.Printf("HopeAI: %s\n", reply.Text)
		return reply
	}

	var (
		text  strings.Builder
		reply = assistant.Reply{Status: assistant.StatusSuccess}
	)
	fmt.Print("HopeAI: ")
	err := a.assistant.StreamMessage(ctx, assistant.StreamRequest{
		SendRequest: req,
		OnChunk: func(chunk string) error {
			if strings.HasPrefix(chunk, "function_call: ") {
				return nil
			}
			text.WriteString(chunk)
			fmt.Print(chunk)
			return nil
		},
		OnFunctionCall: func(call llm.FunctionCall) {
			reply.FunctionCalls = append(reply.FunctionCalls, call)
		},
		OnMemoryUsage: func(entries []memory.Entry) {
			reply.UsedMemories = entries
			reply.IsUsingMemory = len(entries) > 0
		},
	})
	fmt.Println()
	if err != nil {
		a.log.Warn("streaming reply", "error", err)
		reply.Status = assistant.StatusError
	}
	reply.Text = text.String()
	return reply
}

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "local", "User id for memories and records")
	chatCmd.Flags().StringVar(&chatName, "name", "", "Your name, as the assistant should address you")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Resume an existing session")
	chatCmd.Flags().BoolVar(&chatNoTools, "no-tools", false, "Disable function calling")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "Wait for complete replies instead of streaming")
	rootCmd.AddCommand(chatCmd)
}
