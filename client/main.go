package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/hexarace/network"
)

// send encodes and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// command 把一行输入翻译成消息；不认识的命令返回 false
func command(line, roomID string) (uint16, map[string]any, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, false
	}
	payload := map[string]any{"roomId": roomID}

	switch fields[0] {
	case "start":
		return network.MsgTypeGameStart, payload, true
	case "roll":
		return network.MsgTypeGameRoll, payload, true
	case "gift":
		return network.MsgTypeGameGift, payload, true
	case "leave":
		return network.MsgTypeLeaveRoom, payload, true
	case "settings":
		// settings <circles> [maxPlayers] [anon]
		if len(fields) > 1 {
			payload["circles"] = fields[1]
		}
		if len(fields) > 2 {
			payload["maxPlayers"] = fields[2]
		}
		if len(fields) > 3 {
			anon, _ := strconv.ParseBool(fields[3])
			payload["anonymous"] = anon
		}
		return network.MsgTypeGameSettings, payload, true
	}
	return 0, nil, false
}

func main() {
	addr := flag.String("addr", "localhost:3000", "server address")
	roomID := flag.String("room", "lobby", "room to join")
	name := flag.String("name", "", "display name")
	mode := flag.String("mode", "race-uniform", "race-uniform or race-weighted")
	circles := flag.Int("circles", 20, "track length for a new room")
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
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			log.Printf("<- %s: %s", network.EventName(packet.MsgID), string(packet.Data))
		}
	}()

	if err := send(c, network.MsgTypeJoinRoom, map[string]any{
		"roomId": *roomID, "name": *name, "mode": *mode, "circles": *circles,
	}); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: start | roll | gift | leave | settings <circles> [maxPlayers] [anon]")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := c.WriteMessage(websocket.BinaryMessage, mustEncode(network.MsgTypeHeartbeat)); err != nil {
				log.Println("Write error:", err)
				return
			}
		case line, ok := <-lines:
			if !ok {
				return
			}
			msgID, payload, ok := command(line, *roomID)
			if !ok {
				log.Printf("Unknown command %q", strings.TrimSpace(line))
				continue
			}
			if err := send(c, msgID, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> %s", network.EventName(msgID))
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
		}
	}
}

func mustEncode(msgID uint16) []byte {
	packet, _ := network.Encode(msgID, nil)
	return packet
}
