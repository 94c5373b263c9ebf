package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// Event is one message from the dashboard's /ws feed.
type Event struct {
	Type    string          `json:"type"`
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

// JobEvent is the payload of the job.* events.
type JobEvent struct {
	RunID       string `json:"runId"`
	Job         string `json:"job"`
	ExecutionID int    `json:"executionId"`
	Status      string `json:"status"`
	Permalink   string `json:"permalink"`
	Message     string `json:"message"`
}

// Subscription reads events until Close is called or the connection drops.
type Subscription struct {
	conn   *websocket.Conn
	Events <-chan Event
}

func (c *Client) Subscribe() (*Subscription, error) {
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(c.WebSocketURL(), header)
	if err != nil {
		return nil, err
	}
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			ch <- ev
		}
	}()
	return &Subscription{conn: conn, Events: ch}, nil
}

func (s *Subscription) Close() error {
	return s.conn.Close()
}
