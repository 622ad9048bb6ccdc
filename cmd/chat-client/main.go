package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relaychat/relaychat-server/internal/client"
	"github.com/relaychat/relaychat-server/internal/log"
	"github.com/relaychat/relaychat-server/internal/proto"
)

var (
	flagAddr  string
	flagToken string
	flagNick  string
	flagRoom  string
	flagDebug bool
)

func main() {
	root := &cobra.Command{
		Use:   "chat-client",
		Short: "Terminal client for a relaychat server",
		Long: `Connects to a relaychat server over websocket, reconnecting with
backoff when the transport drops. Stdin lines are sent as global messages;
slash commands control rooms and nickname:

  /join <room>         join a room
  /leave <room>        leave a room
  /room <room> <text>  send a message to a room
  /nick <name>         set nickname
  /quit                disconnect and exit`,
		RunE: runClient,
	}

	root.Flags().StringVar(&flagAddr, "addr", "ws://localhost:8080/ws", "websocket address")
	root.Flags().StringVar(&flagToken, "token", "", "auth token (empty for anonymous)")
	root.Flags().StringVar(&flagNick, "nick", "", "nickname to set after connecting")
	root.Flags().StringVar(&flagRoom, "room", "", "room to join after connecting")
	root.Flags().BoolVar(&flagDebug, "debug", false, "debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chat-client: %v\n", err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, _ []string) error {
	level := "warn"
	if flagDebug {
		level = "debug"
	}
	logger := log.New(level, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Options{
		URL:     flagAddr,
		Token:   flagToken,
		Logger:  logger,
		OnEvent: printEvent,
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- c.Run(ctx)
	}()

	// Initial nickname and room, best-effort: the connection may still be
	// dialing, the user can retype on failure.
	if flagNick != "" {
		_ = c.SetNickname(flagNick)
	}
	if flagRoom != "" {
		_ = c.JoinRoom(flagRoom)
	}

	go readStdin(c, stop)

	err := <-runErr
	return err
}

func readStdin(c *client.Client, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(c, line, stop); err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
	}
	stop()
}

func dispatch(c *client.Client, line string, stop func()) error {
	if !strings.HasPrefix(line, "/") {
		return c.SendMessage(line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/join":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /join <room>")
		}
		return c.JoinRoom(fields[1])
	case "/leave":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /leave <room>")
		}
		return c.LeaveRoom(fields[1])
	case "/room":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /room <room> <text>")
		}
		return c.SendRoomMessage(fields[1], strings.Join(fields[2:], " "))
	case "/nick":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /nick <name>")
		}
		return c.SetNickname(fields[1])
	case "/quit":
		stop()
		return nil
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func printEvent(ev proto.ServerEvent) {
	switch ev.Event {
	case proto.EventConnected:
		var data proto.ConnectedData
		if decode(ev.Data, &data) {
			fmt.Printf("* connected as %s", data.UserID)
			if len(data.Rooms) > 0 {
				fmt.Printf(" (rooms: %s)", strings.Join(data.Rooms, ", "))
			}
			fmt.Println()
		}
	case proto.EventMessage:
		var data proto.MessageData
		if decode(ev.Data, &data) {
			if data.Kind == proto.KindNickChange {
				fmt.Printf("* %s is now known as %s\n", data.OldNick, data.NewNick)
				return
			}
			fmt.Printf("%s: %s\n", displayName(data), data.Content)
		}
	case proto.EventRoomMessage:
		var data proto.RoomMessageData
		if decode(ev.Data, &data) {
			fmt.Printf("[%s] %s: %s\n", data.RoomID, displayName(data.Message), data.Message.Content)
		}
	case proto.EventUserJoined:
		var data proto.PresenceData
		if decode(ev.Data, &data) {
			fmt.Printf("* %s connected\n", presenceName(data))
		}
	case proto.EventUserLeft:
		var data proto.PresenceData
		if decode(ev.Data, &data) {
			fmt.Printf("* %s disconnected\n", presenceName(data))
		}
	case proto.EventUserJoinedRoom:
		var data proto.RoomPresenceData
		if decode(ev.Data, &data) {
			fmt.Printf("* %s joined %s\n", data.UserID, data.RoomID)
		}
	case proto.EventUserLeftRoom:
		var data proto.RoomPresenceData
		if decode(ev.Data, &data) {
			fmt.Printf("* %s left %s\n", data.UserID, data.RoomID)
		}
	case proto.EventError:
		var data proto.ErrorData
		if decode(ev.Data, &data) {
			fmt.Fprintf(os.Stderr, "! server error: %s (%s)\n", data.Message, data.Code)
		}
	}
}

func decode(data any, out any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func displayName(m proto.MessageData) string {
	if m.Nickname != "" {
		return m.Nickname
	}
	return m.UserID
}

func presenceName(p proto.PresenceData) string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.UserID
}
