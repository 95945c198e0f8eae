package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"

	"github.com/wfunc/roulette/bet"
	"github.com/wfunc/roulette/network"
)

type CLI struct {
	URL    string `help:"Websocket endpoint" default:"ws://localhost:3001/ws"`
	ID     string `short:"u" help:"Player or observer id" default:"QuickClient"`
	Secret string `short:"p" help:"Secret for the id" default:"quick" env:"ROULETTE_SECRET"`
}

var errQuit = errors.New("quit")

const usage = `commands:
  bet <position> <amount> [<position> <amount> ...]   e.g. bet RED 10 17 5
  ready                                                ask for the result
  idle                                                 finish the reveal
  quit`

// parseCommand turns an input line into a signal. Empty lines yield nil.
func parseCommand(line string) (network.Inbound, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	switch strings.ToLower(fields[0]) {
	case "bet":
		args := fields[1:]
		if len(args) == 0 || len(args)%2 != 0 {
			return nil, errors.New("bet needs position/amount pairs")
		}
		var bets []bet.Entry
		for i := 0; i < len(args); i += 2 {
			amount, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("amount %q: %w", args[i+1], err)
			}
			bets = append(bets, bet.Entry{Position: args[i], Amount: amount})
		}
		return network.PlaceBet{Bets: bets}, nil
	case "ready":
		return network.ReadyForResult{}, nil
	case "idle":
		return network.RevealComplete{}, nil
	case "quit", "exit":
		return nil, errQuit
	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

// describe renders a server frame for the terminal.
func describe(frame []byte) string {
	var env network.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Sprintf("?? %s", frame)
	}
	switch env.Event {
	case network.EventMessage:
		var m network.Message
		if json.Unmarshal(env.Data, &m) == nil {
			return "message: " + m.Text
		}
	case network.EventState:
		var m network.StateChanged
		if json.Unmarshal(env.Data, &m) == nil {
			return "state: " + m.RoundState.String()
		}
	}
	return fmt.Sprintf("%s: %s", env.Event, env.Data)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli, kong.Description("Command-line client for the roulette table."))

	u, err := url.Parse(cli.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad url: %v\n", err)
		ctx.Exit(1)
	}
	q := u.Query()
	q.Set("id", cli.ID)
	q.Set("secret", cli.Secret)
	u.RawQuery = q.Encode()

	log.Printf("Connecting to %s as %s", cli.URL, cli.ID)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, frame, err := c.ReadMessage()
			if err != nil {
				log.Println("Connection closed:", err)
				return
			}
			fmt.Println("<-", describe(frame))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println(usage)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			closeGracefully(c, done)
			return
		case line, ok := <-lines:
			if !ok {
				closeGracefully(c, done)
				return
			}
			msg, err := parseCommand(line)
			if errors.Is(err, errQuit) {
				closeGracefully(c, done)
				return
			}
			if err != nil {
				fmt.Println("!!", err)
				continue
			}
			if msg == nil {
				continue
			}
			frame, err := network.EncodeInbound(msg)
			if err != nil {
				fmt.Println("!!", err)
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}

func closeGracefully(c *websocket.Conn, done <-chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
