package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(&common.TTSConfig{
		Endpoint:    endpoint,
		APIKey:      "test-key",
		Timeout:     "5s",
		MaxAttempts: 3,
	}, arbor.NewLogger())
	require.NoError(t, err)
	return client
}

func speechRequest(text string) interfaces.SpeechRequest {
	return interfaces.SpeechRequest{
		Text: text,
		Profile: models.AudioProfile{
			VoiceID:  "voice-penny",
			Speed:    1.1,
			Language: "en-US",
		},
		Format: "mp3",
	}
}

func TestSynthesizeSendsProfileAndAuth(t *testing.T) {
	var got synthesizeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/synthesize", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("X-Duration-Seconds", "3.5")
		w.Write([]byte("audio-bytes"))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	segment, err := client.Synthesize(context.Background(), speechRequest("Hello there"))
	require.NoError(t, err)

	assert.Equal(t, []byte("audio-bytes"), segment.Data)
	assert.Equal(t, 3.5, segment.DurationSeconds)
	assert.Equal(t, "mp3", segment.Format)
	assert.Equal(t, "voice-penny", got.VoiceID)
	assert.Equal(t, 1.1, got.Speed)
	assert.Equal(t, "en-US", got.Language)
}

func TestSynthesizeRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("X-Duration-Seconds", "2.0")
		w.Write([]byte("audio"))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	segment, err := client.Synthesize(context.Background(), speechRequest("retry me"))
	require.NoError(t, err)
	assert.Equal(t, 2.0, segment.DurationSeconds)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSynthesizeClientErrorFailsImmediately(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown voice", http.StatusBadRequest)
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	_, err := client.Synthesize(context.Background(), speechRequest("bad voice"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSynthesizeEmptyText(t *testing.T) {
	client := testClient(t, "http://127.0.0.1:0")

	_, err := client.Synthesize(context.Background(), speechRequest("   "))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 0.0, EstimateDuration(""))
	// 5 words at 2.5 words per second
	assert.InDelta(t, 2.0, EstimateDuration("one two three four five"), 0.001)
}
