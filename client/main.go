package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   uint32          `json:"ack,omitempty"`
}

// send wraps a payload into the wire envelope and ships it.
func send(c *websocket.Conn, event string, data interface{}, ack uint32) error {
	ev := envelope{Event: event, Ack: ack}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.Data = raw
	}
	return c.WriteJSON(&ev)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	roomID := flag.String("room", "room-demo", "room id to create or join")
	name := flag.String("name", "tester", "player name")
	level := flag.String("level", "1", "player level")
	join := flag.Bool("join", false, "join instead of create")
	spectate := flag.Bool("spectate", false, "join as spectator")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var ev envelope
			if err := c.ReadJSON(&ev); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV %s: %s", ev.Event, string(ev.Data))
		}
	}()

	player := map[string]interface{}{"name": *name, "level": *level}
	if *spectate {
		player["isSpectator"] = true
	}
	req := map[string]interface{}{"roomId": *roomID, "player": player}

	if *join || *spectate {
		log.Printf("Joining room %s as %q...", *roomID, *name)
		if err := send(c, "join-room", req, 0); err != nil {
			log.Println("Write error:", err)
			return
		}
	} else {
		log.Printf("Creating room %s as %q...", *roomID, *name)
		if err := send(c, "create-room", req, 0); err != nil {
			log.Println("Write error:", err)
			return
		}
	}

	log.Println("Commands: start | leave | check | update")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			text = strings.TrimSpace(text)

			var err error
			switch text {
			case "start":
				err = send(c, "start-game", *roomID, 0)
			case "leave":
				err = send(c, "remove-player", map[string]string{"roomId": *roomID, "name": *name}, 1)
			case "check":
				err = send(c, "check-room", *roomID, 2)
			case "update":
				err = send(c, "update-room", *roomID, 0)
			case "":
				continue
			default:
				log.Printf("Unknown command %q", text)
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", text)
		}
	}
}
