package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("chat_id"))
		assert.Equal(t, "🟢 [Reuters] Fed holds", r.PostForm.Get("text"))
		assert.Empty(t, r.PostForm.Get("parse_mode"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier("TOKEN", "42").WithBaseURL(server.URL + "/")
	require.NoError(t, n.PublishDigest(context.Background(), "🟢 [Reuters] Fed holds"))
}

func TestPublishDigestTruncates(t *testing.T) {
	t.Parallel()

	texts := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		texts <- r.PostForm.Get("text")
	}))
	defer server.Close()

	long := strings.Repeat("é", MaxMessageRunes+100)
	n := NewNotifier("TOKEN", "42").WithBaseURL(server.URL)
	require.NoError(t, n.PublishDigest(context.Background(), long))
	require.Equal(t, MaxMessageRunes, utf8.RuneCountInString(<-texts))
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	err := NewNotifier("TOKEN", "42").WithBaseURL(server.URL).PublishDigest(context.Background(), "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "chat not found")

	require.Error(t, NewNotifier("", "42").PublishDigest(context.Background(), "x"))
}
