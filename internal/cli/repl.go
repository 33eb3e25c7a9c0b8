// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"

	"github.com/morganforge/portal-tui/internal/config"
	"github.com/morganforge/portal-tui/internal/session"
	"github.com/morganforge/portal-tui/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputReader wraps liner with persistent input history.
// USABILITY: arrow keys navigate history, Ctrl+C aborts the prompt.
type inputReader struct {
	line        *liner.State
	historyFile string
}

func newInputReader() *inputReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	r := &inputReader{
		line:        line,
		historyFile: filepath.Join(configDir, "repl_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *inputReader) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *inputReader) close() {
	if dir := filepath.Dir(r.historyFile); dir != "" {
		os.MkdirAll(dir, 0o700)
	}
	if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// RunREPL runs the plain-terminal chat loop. It is the fallback for
// environments where the full-screen TUI is unwanted (piped output,
// minimal terminals) and for quick one-off chats.
func RunREPL(app *App) error {
	ctx := context.Background()

	if err := app.RefreshHistory(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s could not load chat history: %v\n",
			warningStyle.Render("[warn]"), err)
	}
	app.RefreshBalance(ctx)

	reader := newInputReader()
	defer reader.close()

	// First Ctrl+C during a stream cancels that send only.
	var cancelMu sync.Mutex
	var cancelCurrent context.CancelFunc
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			cancelMu.Lock()
			if cancelCurrent != nil {
				cancelCurrent()
				cancelCurrent = nil
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[cancelled]"))
			}
			cancelMu.Unlock()
		}
	}()

	printBanner(app)

	for {
		input, err := reader.read(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF both end the session.
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}
		if strings.HasPrefix(input, "/") {
			if done := handleSlashCommand(ctx, app, input); done {
				return nil
			}
			continue
		}

		sendMessage(ctx, app, input, &cancelMu, &cancelCurrent)
	}
}

func printBanner(app *App) {
	fmt.Println(titleStyle.Render("portal-tui chat"))
	if app.Cfg.Portal.ModuleID != "" {
		if info, err := app.Client.ModuleModel(context.Background(), app.Cfg.Portal.ModuleID); err == nil && info.Name != "" {
			fmt.Println(dimStyle.Render("model: " + info.Name))
		}
	}
	if bal, ok := app.Ledger.Balance(app.Assignment()); ok {
		line := "credits: " + util.FormatFloat(bal, 4)
		if bal < 0 {
			line += "  (sending disabled until topped up)"
			fmt.Println(warningStyle.Render(line))
		} else {
			fmt.Println(dimStyle.Render(line))
		}
	}
	fmt.Println(dimStyle.Render("/help for commands, exit to quit"))
	fmt.Println()
}

// handleSlashCommand executes one /command. Returns true to exit.
func handleSlashCommand(ctx context.Context, app *App, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/help":
		fmt.Println(dimStyle.Render(`/new           start a new chat
/chats         list your chats in this module
/open <id>     switch to a chat
/credits       show balance and last cost
/quit          exit`))

	case "/new":
		app.Store.Select("")
		app.Ledger.ClearLastCost(app.Assignment())
		fmt.Println(dimStyle.Render("started a new chat"))

	case "/chats":
		sessions := app.Store.Sessions()
		if len(sessions) == 0 {
			fmt.Println(dimStyle.Render("no chats yet"))
			break
		}
		for _, s := range sessions {
			id := s.ID
			if id == "" {
				id = "(unsaved)"
			}
			marker := "  "
			if s.ID == app.Store.Selected() {
				marker = "* "
			}
			fmt.Printf("%s%-10s %s\n", marker, id, util.TruncateRunes(s.Title, 60))
		}

	case "/open":
		if len(fields) < 2 {
			fmt.Println(errorStyle.Render("[error]") + " usage: /open <chat-id>")
			break
		}
		id := fields[1]
		if err := app.EnsureLoaded(ctx, id); err != nil {
			fmt.Printf("%s %v\n", errorStyle.Render("[error]"), err)
			break
		}
		if err := app.Store.Select(id); err != nil {
			fmt.Printf("%s %v\n", errorStyle.Render("[error]"), err)
			break
		}
		replayTranscript(app)

	case "/credits":
		app.RefreshBalance(ctx)
		if bal, ok := app.Ledger.Balance(app.Assignment()); ok {
			fmt.Println("balance: " + util.FormatFloat(bal, 4))
		} else {
			fmt.Println(dimStyle.Render("balance unknown"))
		}
		if cost, ok := app.Ledger.LastCost(app.Assignment()); ok {
			fmt.Println("last message cost: " + util.FormatFloat(cost, 6))
		}

	case "/quit", "/exit":
		return true

	default:
		fmt.Printf("%s unknown command %s\n", errorStyle.Render("[error]"), fields[0])
	}
	return false
}

// replayTranscript prints the selected chat's messages.
func replayTranscript(app *App) {
	s, ok := app.Store.SelectedSession()
	if !ok {
		return
	}
	fmt.Println(titleStyle.Render(s.Title))
	for _, m := range s.Messages {
		prefix := "you> "
		if m.Sender != "" && m.Sender != "user" {
			prefix = "ai>  "
		}
		fmt.Println(promptStyle.Render(prefix) + m.Content)
	}
}

// sendMessage runs one streamed send, printing tokens as they arrive.
func sendMessage(ctx context.Context, app *App, text string, cancelMu *sync.Mutex, cancelCurrent *context.CancelFunc) {
	printed := 0
	op, err := app.Registry.Begin(session.BeginParams{
		SessionID: app.Store.Selected(),
		UserID:    app.Cfg.Portal.UserID,
		Target:    app.Target(),
		Text:      text,
		Callbacks: session.Callbacks{
			OnToken: func(_, accumulated string) {
				fmt.Print(accumulated[printed:])
				printed = len(accumulated)
			},
			OnFailure: func(_ string, f *session.Failure) {
				if printed > 0 {
					fmt.Println()
				}
				fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("[error]"), f.Message)
			},
		},
	})
	if err != nil {
		var f *session.Failure
		if errors.As(err, &f) {
			fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("[error]"), f.Message)
		} else {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
		}
		return
	}

	sendCtx, cancel := context.WithCancel(ctx)
	cancelMu.Lock()
	*cancelCurrent = cancel
	cancelMu.Unlock()

	fmt.Print(promptStyle.Render("ai>  "))
	res := op.Run(sendCtx)

	cancelMu.Lock()
	*cancelCurrent = nil
	cancelMu.Unlock()
	cancel()

	if res.State != session.StateCommitted {
		return
	}

	// The final text is authoritative; print whatever the tokens
	// missed.
	if len(res.Final) > printed {
		fmt.Print(res.Final[printed:])
	}
	fmt.Println()
	if res.Cost != nil {
		printCostLine(app, *res.Cost)
	}
	fmt.Println()
}

func printCostLine(app *App, cost float64) {
	line := "cost: " + util.FormatFloat(cost, 6)
	if bal, ok := app.Ledger.Balance(app.Assignment()); ok {
		line += "  balance: " + util.FormatFloat(bal, 4)
		if bal < 0 {
			fmt.Println(warningStyle.Render(line + "  (balance exhausted)"))
			return
		}
	}
	fmt.Println(dimStyle.Render(line))
}
