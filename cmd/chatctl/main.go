package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/client"
	"github.com/matheus3301/chatd/internal/view"
)

func main() {
	addrFlag := flag.String("addr", "http://127.0.0.1:8080", "daemon base URL")
	nameFlag := flag.String("name", "", "display name for send")
	addressFlag := flag.String("address", "", "counterparty address for send")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(*addrFlag)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "conversations":
		cmdConversations(ctx, c, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatctl messages <conversation_id>")
			os.Exit(1)
		}
		cmdMessages(ctx, c, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: chatctl send <conversation_id> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], *nameFlag, *addressFlag, strings.Join(args[2:], " "), *jsonFlag)
	case "ingest":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatctl ingest <payload-dir>")
			os.Exit(1)
		}
		cmdIngest(ctx, c, args[1])
	case "watch":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatctl watch <conversation_id>")
			os.Exit(1)
		}
		cmdWatch(c, args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl [--addr <url>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  conversations                List conversations, most recent first")
	fmt.Fprintln(os.Stderr, "  messages <conversation_id>   Show conversation history")
	fmt.Fprintln(os.Stderr, "  send <conversation_id> <text>  Send a message")
	fmt.Fprintln(os.Stderr, "  ingest <payload-dir>         Submit JSON payload files for ingestion")
	fmt.Fprintln(os.Stderr, "  watch <conversation_id>      Follow a conversation live")
}

func cmdConversations(ctx context.Context, c *client.Client, jsonOut bool) {
	summaries, err := c.Conversations(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(summaries)
		return
	}
	for _, s := range summaries {
		name := s.DisplayName
		if name == "" {
			name = s.ConversationID
		}
		fmt.Printf("%-24s %s  %s\n", name, formatTime(s.LastTime), s.LastMessage)
	}
}

func cmdMessages(ctx context.Context, c *client.Client, conversationID string, jsonOut bool) {
	msgs, err := c.Messages(ctx, conversationID)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		direction := "<-"
		if m.FromMe {
			direction = "->"
		}
		fmt.Printf("%s %s [%s] %s\n", formatTime(m.Timestamp), direction, m.Status, m.Body)
	}
}

func cmdSend(ctx context.Context, c *client.Client, conversationID, name, address, text string, jsonOut bool) {
	msg, err := c.Send(ctx, conversationID, name, address, text)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(msg)
		return
	}
	fmt.Printf("sent %s\n", msg.MessageID)
}

func cmdIngest(ctx context.Context, c *client.Client, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fatal(err)
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", entry.Name(), err)
			continue
		}
		if err := c.Webhook(ctx, raw); err != nil {
			fmt.Fprintf(os.Stderr, "error submitting %s: %v\n", entry.Name(), err)
			continue
		}
		processed++
	}
	fmt.Printf("submitted %d payload file(s)\n", processed)
}

// cmdWatch follows one conversation: history fetch merged with the live
// stream, new messages printed as they land.
func cmdWatch(c *client.Client, conversationID string) {
	ctx := context.Background()

	stream, err := c.Stream(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = stream.Close() }()

	if err := stream.Join(ctx, conversationID); err != nil {
		fatal(err)
	}

	v := view.New()
	v.BeginLoad()

	go func() {
		for {
			frame, err := stream.Next(ctx)
			if err != nil {
				fatal(err)
			}
			if frame.Kind == bus.KindMessageCreated && frame.Message != nil {
				v.ApplyLive(*frame.Message)
			}
		}
	}()

	history, err := c.Messages(ctx, conversationID)
	if err != nil {
		fatal(err)
	}
	v.SeedHistory(history)

	printed := 0
	for {
		for _, m := range v.Entries()[printed:] {
			direction := "<-"
			if m.FromMe {
				direction = "->"
			}
			fmt.Printf("%s %s %s\n", formatTime(m.Timestamp), direction, m.Body)
			printed++
		}
		<-v.RefreshCh()
	}
}

func formatTime(unixMs int64) string {
	return time.UnixMilli(unixMs).Local().Format("2006-01-02 15:04")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
