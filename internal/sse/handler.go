package sse

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/config"
)

// Handler streams the messages of the topic named by the "topic" query
// parameter, ListingTopic when absent.
func (s *SSEClients) Handler(logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := r.URL.Query().Get("topic")
		if topic == "" {
			topic = ListingTopic
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set(config.HCType, "text/event-stream")
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Del("X-Content-Type-Options")

		fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
		flusher.Flush()

		client := &Client{
			Msg:   make(chan string, 4),
			Topic: topic,
		}
		s.Add(client)
		logger.Debug().Str("topic", topic).Msg("SSE client connected")

		defer func() {
			s.Delete(client)
			logger.Debug().Str("topic", topic).Msg("SSE client disconnected")
		}()

		notify := r.Context().Done()
		for {
			select {
			case msg := <-client.Msg:
				fmt.Fprintf(w, "data: %s\n\n", msg)
				flusher.Flush()
			case <-notify:
				return
			}
		}
	}
}
