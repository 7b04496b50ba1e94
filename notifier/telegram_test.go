package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-token", nil)
	c.httpClient = srv.Client()
	// redirect the fixed Telegram API host to the test server
	c.botToken = "test-token"
	apiBase = srv.URL
	t.Cleanup(func() { apiBase = defaultAPIBase })
	return c, srv
}

func TestSendMessage_Success(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "sendMessage")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	})

	err := c.SendMessage(context.Background(), "123", "hello")
	require.NoError(t, err)
}

func TestSendMessage_TruncatesOverLimit(t *testing.T) {
	var seenLen int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		seenLen = len(body["text"].(string))
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	})

	err := c.SendMessage(context.Background(), "123", strings.Repeat("a", maxMessageChars+500))
	require.NoError(t, err)
	assert.Equal(t, maxMessageChars, seenLen)
}

func TestSendMessage_FallsBackToPlainTextOnParseModeRejection(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["parse_mode"] != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(sendMessageResponse{OK: false, Description: "can't parse entities"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	})

	err := c.SendMessage(context.Background(), "123", "*broken markdown")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSendMessage_ServerErrorPropagates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.SendMessage(context.Background(), "123", "hello")
	assert.Error(t, err)
}

func TestGetUpdates_ParsesMessages(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("timeout"), "25")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(getUpdatesResponse{
			OK: true,
			Result: []Update{
				{UpdateID: 1, Message: &UpdateMessage{Text: "/status"}},
			},
		})
	})

	updates, err := c.GetUpdates(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "/status", updates[0].Message.Text)
}
