package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prepvox/PrepVox/internal/models"
)

var upgrader = websocket.Upgrader{}

// sessionServer is a fake session service speaking the websocket frame protocol.
func sessionServer(t *testing.T, script []models.SessionEvent) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var start startFrame
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("failed to read start frame: %v", err)
			return
		}
		if start.Type != "start" {
			t.Errorf("expected start frame, got %q", start.Type)
		}
		for _, evt := range script {
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSClientDeliversScriptedEvents(t *testing.T) {
	script := []models.SessionEvent{
		{Type: models.SessionEventCallStart},
		{Type: models.SessionEventTranscript, Role: models.MessageRoleAssistant, TranscriptType: models.TranscriptTypeFinal, Transcript: "Tell me about yourself."},
		{Type: models.SessionEventCallEnd},
	}
	srv := sessionServer(t, script)
	defer srv.Close()

	c, err := NewWSClient(WithURL(wsURL(srv)), WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Start(context.Background(), "workflow-1", map[string]string{"username": "Ada"}); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	var received []models.SessionEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-c.Events():
			if !ok {
				if len(received) != 3 {
					t.Fatalf("expected 3 events before close, got %d: %v", len(received), received)
				}
				if received[0].Type != models.SessionEventCallStart {
					t.Errorf("expected call-start first, got %s", received[0].Type)
				}
				if !received[1].IsFinalTranscript() {
					t.Errorf("expected final transcript second, got %+v", received[1])
				}
				if received[2].Type != models.SessionEventCallEnd {
					t.Errorf("expected call-end last, got %s", received[2].Type)
				}
				return
			}
			received = append(received, evt)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", received)
		}
	}
}

func TestWSClientAbruptCloseStillEndsCall(t *testing.T) {
	// Server hangs up without a call-end frame; the client must still
	// deliver a terminal call-end before closing the channel.
	script := []models.SessionEvent{{Type: models.SessionEventCallStart}}
	srv := sessionServer(t, script)
	defer srv.Close()

	c, err := NewWSClient(WithURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Start(context.Background(), "workflow-1", nil); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	var last models.SessionEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-c.Events():
			if !ok {
				if last.Type != models.SessionEventCallEnd {
					t.Errorf("expected terminal call-end, got %s", last.Type)
				}
				return
			}
			last = evt
		case <-timeout:
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestWSClientRequiresURL(t *testing.T) {
	if _, err := NewWSClient(); err == nil {
		t.Error("expected error when URL not configured")
	}
}

func TestWSClientDoubleStart(t *testing.T) {
	// Server holds the connection open so the first session stays live.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var start startFrame
		conn.ReadJSON(&start)
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewWSClient(WithURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Start(context.Background(), "workflow-1", nil); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer c.Stop()
	if err := c.Start(context.Background(), "workflow-1", nil); err == nil {
		t.Error("expected error on second start")
	}
}
