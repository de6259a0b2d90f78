package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReply(t *testing.T) {
	var got ReplyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		assert.Equal(t, "Bearer token-a", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	err = c.Reply(context.Background(), "token-a", "reply-1", []Message{TextMessage("hi")})
	require.NoError(t, err)

	assert.Equal(t, "reply-1", got.ReplyToken)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "text", got.Messages[0].Type)
	assert.Equal(t, "hi", got.Messages[0].Text)
}

func TestReplyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	err = c.Reply(context.Background(), "t", "expired", []Message{TextMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid reply token")
}

func TestReplyRejectsBadInput(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:0")
	require.NoError(t, err)

	assert.Error(t, c.Reply(context.Background(), "t", "", []Message{TextMessage("x")}))

	six := make([]Message, 6)
	assert.Error(t, c.Reply(context.Background(), "t", "r", six))

	assert.NoError(t, c.Reply(context.Background(), "t", "r", nil))
}

func TestValidateSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := Sign("secret", body)

	assert.NoError(t, ValidateSignature("secret", sig, body))
	assert.ErrorIs(t, ValidateSignature("other", sig, body), ErrInvalidSignature)
	assert.ErrorIs(t, ValidateSignature("secret", sig, []byte(`{"events":[{}]}`)), ErrInvalidSignature)
	assert.ErrorIs(t, ValidateSignature("secret", "not base64!", body), ErrInvalidSignature)
	assert.ErrorIs(t, ValidateSignature("secret", "", body), ErrInvalidSignature)
}
