package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

var (
	chatFiles    []string
	chatNoStream bool
	chatJSON     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the RNA design assistant",
	Long: `Ask a question about RNA design.

Questions are classified, answered from the indexed literature and, when
sequence or structure files are attached, run through the analysis tools.
Without a message, chat reads one question per line until EOF or "exit".

Examples:
  ribo chat "How do I design a riboswitch for theophylline?"
  ribo chat -f seqs.fasta "Predict the secondary structure"
  ribo chat --json "What is SHAPE probing?"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringArrayVarP(&chatFiles, "file", "f", nil, "attach a sequence or structure file (repeatable)")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for the full answer instead of streaming tokens")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "output the full response as JSON")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errNotConfigured("chat")
	}

	files, err := readUploads(chatFiles)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return ask(cmd, domain.ChatRequest{Message: args[0], UploadedFiles: files})
	}

	return chatLoop(cmd, files)
}

// chatLoop answers one question per input line. Attachments go with the
// first question only.
func chatLoop(cmd *cobra.Command, files []domain.UploadedFile) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			fmt.Fprintln(cmd.OutOrStdout())
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := ask(cmd, domain.ChatRequest{Message: line, UploadedFiles: files}); err != nil {
			cmd.PrintErrf("Error: %v\n", err)
		}
		files = nil
	}
}

func ask(cmd *cobra.Command, req domain.ChatRequest) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	if chatJSON || chatNoStream {
		resp, err := chatService.Chat(ctx, req)
		if err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		if chatJSON {
			data, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal response: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}
		cmd.Println(resp.Response)
		printCitations(cmd.OutOrStdout(), resp.Citations)
		return nil
	}

	return streamAnswer(ctx, cmd, req)
}

// streamAnswer prints tokens as they arrive. Interrupting cancels the
// request and waits for its terminal event.
func streamAnswer(ctx context.Context, cmd *cobra.Command, req domain.ChatRequest) error {
	handle, err := chatService.ChatStream(context.WithoutCancel(ctx), req)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	out := cmd.OutOrStdout()
	showStatus := isTerminal(cmd.ErrOrStderr())
	streamed := false
	done := ctx.Done()

	for {
		select {
		case <-done:
			handle.Cancel()
			done = nil
		case event, ok := <-handle.Events:
			if !ok {
				return errors.New("chat stream closed without a result")
			}
			switch event.Type {
			case domain.EventToken:
				fmt.Fprint(out, event.Content)
				streamed = true
			case domain.EventToolStatus:
				if showStatus {
					cmd.PrintErrln(toolStatusLine(event))
				}
			case domain.EventComplete:
				if !streamed && event.Response != nil {
					fmt.Fprint(out, event.Response.Response)
				}
				fmt.Fprintln(out)
				if event.Response != nil {
					printCitations(out, event.Response.Citations)
				}
				return nil
			case domain.EventError:
				if streamed {
					fmt.Fprintln(out)
				}
				if event.Message == domain.ErrCancelled.Error() {
					cmd.PrintErrln("(cancelled)")
					return nil
				}
				return errors.New(event.Message)
			}
		}
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func toolStatusLine(event domain.StreamEvent) string {
	line := fmt.Sprintf("[%s] %s", event.Tool, event.Status)
	if event.Message != "" {
		line += ": " + event.Message
	}
	return line
}

func printCitations(w io.Writer, citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for _, c := range citations {
		fmt.Fprintf(w, "  %s\n", c.Reference)
	}
}

func readUploads(paths []string) ([]domain.UploadedFile, error) {
	files := make([]domain.UploadedFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files = append(files, domain.UploadedFile{
			Name:    filepath.Base(p),
			Content: string(data),
		})
	}
	return files, nil
}
