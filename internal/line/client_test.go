// ABOUTME: Tests for the Messaging API client against a local test server.
// ABOUTME: Covers reply/push wire shapes, auth header, batching, and error statuses.

package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path string
	auth string
	body map[string]any
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		captured = append(captured, capturedRequest{
			path: r.URL.Path,
			auth: r.Header.Get("Authorization"),
			body: body,
		})
		w.WriteHeader(status)
	}))
	return srv, &captured
}

func TestClient_Reply(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	err := client.Reply(context.Background(), "R1", NewText("hello"))
	require.NoError(t, err)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, "/v2/bot/message/reply", req.path)
	assert.Equal(t, "Bearer test-token", req.auth)
	assert.Equal(t, "R1", req.body["replyToken"])

	messages := req.body["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "text", msg["type"])
	assert.Equal(t, "hello", msg["text"])
}

func TestClient_Reply_EmptyToken(t *testing.T) {
	client := NewClient("http://unused.invalid", "test-token")
	err := client.Reply(context.Background(), "", NewText("hello"))
	assert.Error(t, err)
}

func TestClient_Push(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	err := client.Push(context.Background(), "U1", NewText("result"))
	require.NoError(t, err)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, "/v2/bot/message/push", req.path)
	assert.Equal(t, "U1", req.body["to"])
}

func TestClient_PushText_Batches(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	texts := []string{"a", "b", "c", "d", "e", "f", "g"}
	err := client.PushText(context.Background(), "U1", texts...)
	require.NoError(t, err)

	// 7 messages split into batches of 5 then 2
	require.Len(t, *captured, 2)
	assert.Len(t, (*captured)[0].body["messages"], 5)
	assert.Len(t, (*captured)[1].body["messages"], 2)
}

func TestClient_Push_ErrorStatus(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusTooManyRequests)
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	err := client.Push(context.Background(), "U1", NewText("result"))
	assert.ErrorContains(t, err, "429")
}

func TestFlexMessage_Marshal(t *testing.T) {
	msg := FlexMessage{
		AltText:  "menu",
		Contents: json.RawMessage(`{"type":"bubble"}`),
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "flex", decoded["type"])
	assert.Equal(t, "menu", decoded["altText"])
	assert.Equal(t, "bubble", decoded["contents"].(map[string]any)["type"])
}

func TestParseWebhookBody(t *testing.T) {
	raw := []byte(`{"events":[{"type":"message","message":{"type":"text","text":"hello"},"source":{"userId":"U1"},"replyToken":"R1"}]}`)
	body, err := ParseWebhookBody(raw)
	require.NoError(t, err)
	require.Len(t, body.Events, 1)

	ev := body.Events[0]
	assert.Equal(t, EventTypeMessage, ev.Type)
	assert.Equal(t, "U1", ev.Source.UserID)
	assert.Equal(t, "R1", ev.ReplyToken)
	require.NotNil(t, ev.Message)
	assert.Equal(t, MessageTypeText, ev.Message.Type)
	assert.Equal(t, "hello", ev.Message.Text)
}

func TestParseWebhookBody_NoEvents(t *testing.T) {
	body, err := ParseWebhookBody([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, body.Events)
}
