// Package main runs a demo WebSocket client for design run events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Create a small demo network
	netBody := []byte(`{
		"name": "demo",
		"dist": [[0,2,3,4],[2,0,2,3],[3,2,0,2],[4,3,2,0]],
		"odPairs": [
			{"origin":0,"destination":2,"demand":100,"constant":5,"preference":-1},
			{"origin":1,"destination":3,"demand":50,"constant":5,"preference":-1}
		],
		"numRoutes": 2
	}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/networks", bytes.NewReader(netBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	var netResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&netResp); err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("Network ID: %s", netResp.ID)

	// Launch a design run
	designBody, _ := json.Marshal(map[string]any{"networkId": netResp.ID, "timeBudgetMs": 2000})
	req, _ = http.NewRequest(http.MethodPost, base+"/v1/design", bytes.NewReader(designBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	var runResp struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&runResp); err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("Run ID: %s", runResp.RunID)

	// Connect WS and subscribe to run events
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	_ = c.WriteJSON(wsMessage{Type: "connection_init"})
	payload, _ := json.Marshal(map[string]string{"runId": runResp.RunID})
	_ = c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: payload})

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			log.Fatal(err)
		}
		log.Printf("<- %s %s", msg.Type, string(msg.Payload))
		if msg.Type == "complete" {
			return
		}
	}
	log.Fatal("timed out waiting for run completion")
}
