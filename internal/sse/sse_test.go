package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBroadcast(t *testing.T) {
	hub := NewSSEClients()
	listing := &Client{Msg: make(chan string, 1), Topic: ListingTopic}
	other := &Client{Msg: make(chan string, 1), Topic: "P42"}
	hub.Add(listing)
	hub.Add(other)

	if n := hub.Broadcast(ListingTopic, "reload"); n != 1 {
		t.Errorf("Expected one delivery, got %d", n)
	}
	if msg := <-listing.Msg; msg != "reload" {
		t.Errorf("Expected reload, got %q", msg)
	}
	select {
	case msg := <-other.Msg:
		t.Errorf("Expected no message on another topic, got %q", msg)
	default:
	}

	t.Run("Full buffer drops", func(t *testing.T) {
		hub.Broadcast(ListingTopic, "one")
		if n := hub.Broadcast(ListingTopic, "two"); n != 0 {
			t.Errorf("Expected dropped message, got %d deliveries", n)
		}
	})

	t.Run("Delete closes once", func(t *testing.T) {
		hub.Delete(listing)
		hub.Delete(listing)
		if hub.Len() != 1 {
			t.Errorf("Expected one client left, got %d", hub.Len())
		}
	})
}

func TestHandler(t *testing.T) {
	hub := NewSSEClients()
	srv := httptest.NewServer(hub.Handler(zerolog.Nop()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?topic=posts", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Expected stream to open, got %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("Failed reading stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return strings.Join(lines, "\n")
			}
			lines = append(lines, line)
		}
	}

	if ev := readEvent(); !strings.Contains(ev, "event: connected") {
		t.Fatalf("Expected connected event, got %q", ev)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Broadcast(ListingTopic, "reload")

	if ev := readEvent(); ev != "data: reload" {
		t.Errorf("Expected reload event, got %q", ev)
	}
}
