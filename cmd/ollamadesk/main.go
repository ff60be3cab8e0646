package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/quentinlg/ollamadesk/internal/archive"
	"github.com/quentinlg/ollamadesk/internal/config"
	"github.com/quentinlg/ollamadesk/internal/llm"
	"github.com/quentinlg/ollamadesk/internal/logger"
	"github.com/quentinlg/ollamadesk/internal/pipeline"
	"github.com/quentinlg/ollamadesk/internal/session"
)

var (
	promptStyle = color.New(color.FgGreen, color.Bold).SprintFunc()
	answerStyle = color.New(color.FgCyan).SprintFunc()
	thinkStyle  = color.New(color.FgYellow, color.Faint).SprintFunc()
	errorStyle  = color.New(color.FgRed).SprintFunc()
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	store, err := session.New(cfg.Storage.ConversationsDir)
	if err != nil {
		logger.L.Error("failed to open session store", "error", err)
		os.Exit(1)
	}

	arch, err := archive.Open(cfg.Storage.ArchivePath)
	if err != nil {
		logger.L.Warn("message archive unavailable; search disabled", "error", err)
		arch = nil
	} else {
		store.SetRecorder(arch)
		defer arch.Close()
	}

	client := llm.NewClient(cfg.Runtime)
	pipe := pipeline.New(store, client, pipeline.WithTimeout(cfg.Runtime.Timeout))

	model := cfg.Runtime.Model
	if models, err := client.ListModels(context.Background()); err != nil {
		logger.L.Warn("could not list installed models", "error", err)
	} else if len(models) > 0 && model == "" {
		model = models[0]
	}

	conv := currentConversation(store, model)
	fmt.Printf("Chatting on %s (conversation %s). /help for commands.\n", model, conv.ID[:8])

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle("You: "))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "/") {
			var quit bool
			conv, quit = runCommand(store, arch, conv, model, line)
			if quit {
				return
			}
			continue
		}

		if err := pipe.Send(conv, line); err != nil {
			fmt.Println(errorStyle("! " + err.Error()))
			continue
		}
		printDelivery(awaitDelivery(pipe))
	}
}

// currentConversation resumes the most recently active conversation or
// creates a fresh one.
func currentConversation(store *session.Store, model string) *session.Conversation {
	if list := store.List(); len(list) > 0 {
		return list[0]
	}
	conv, err := store.Create(model)
	if err != nil {
		logger.L.Error("failed to create conversation", "error", err)
		os.Exit(1)
	}
	return conv
}

// awaitDelivery drains the delivery channel without ever blocking on it,
// ticking a progress indicator meanwhile. This is the non-blocking poll the
// pipeline contract requires of its consumer.
func awaitDelivery(pipe *pipeline.Pipeline) pipeline.Delivery {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case d := <-pipe.Results():
			fmt.Println()
			return d
		default:
		}
		<-tick.C
		fmt.Print(".")
	}
}

func printDelivery(d pipeline.Delivery) {
	if !d.OK {
		fmt.Println(errorStyle(d.Answer))
		return
	}
	if d.Think != "" {
		fmt.Println(thinkStyle("(thoughts) " + d.Think))
	}
	fmt.Println(answerStyle(d.Model+": ") + d.Answer)
}

// resolveConversationID matches a full conversation id or a unique id prefix.
func resolveConversationID(store *session.Store, ref string) (string, error) {
	var match string
	for _, c := range store.List() {
		if c.ID == ref {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("conversation id %q is ambiguous", ref)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no conversation matches %q", ref)
	}
	return match, nil
}

func runCommand(store *session.Store, arch *archive.Archive, conv *session.Conversation, model, line string) (*session.Conversation, bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return conv, true
	case "/new":
		next, err := store.Create(model)
		if err != nil {
			fmt.Println(errorStyle("! " + err.Error()))
			return conv, false
		}
		fmt.Println("started conversation", next.ID[:8])
		return next, false
	case "/list":
		for _, c := range store.List() {
			marker := " "
			if c.ID == conv.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %d msgs  %s\n",
				marker, c.ID[:8], c.LastUpdated.Format("2006-01-02 15:04"), len(c.Messages), c.Preview())
		}
	case "/delete":
		id := conv.ID
		if arg != "" {
			// /list shows truncated ids, so accept any unique prefix.
			resolved, err := resolveConversationID(store, arg)
			if err != nil {
				fmt.Println(errorStyle("! " + err.Error()))
				return conv, false
			}
			id = resolved
		}
		if err := store.Delete(id); err != nil {
			fmt.Println(errorStyle("! " + err.Error()))
			return conv, false
		}
		if id == conv.ID {
			return currentConversation(store, model), false
		}
	case "/search":
		if arch == nil {
			fmt.Println(errorStyle("! archive unavailable"))
			return conv, false
		}
		matches, err := arch.Search(arg)
		if err != nil {
			fmt.Println(errorStyle("! " + err.Error()))
			return conv, false
		}
		for _, m := range matches {
			fmt.Printf("%s  %s  %s: %s\n",
				m.ConversationID[:8], m.CreatedAt.Format("2006-01-02 15:04"), m.Role, m.Content)
		}
	case "/clear":
		if err := store.ClearAll(); err != nil {
			fmt.Println(errorStyle("! " + err.Error()))
		}
		return currentConversation(store, model), false
	case "/help":
		fmt.Println("commands: /new /list /search <text> /delete [id] /clear /quit")
	default:
		fmt.Println(errorStyle("unknown command " + cmd))
	}
	return conv, false
}
