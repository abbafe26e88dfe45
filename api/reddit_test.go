package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"probesampler/models"
)

func collect(nodes []commentNode, limit int) []models.Comment {
	out := make([]models.Comment, 0, limit)
	collectComments(nodes, limit, &out)
	return out
}

func TestGetHeaderAsInt(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string][]string
		key      string
		expected int
	}{
		{
			name: "Valid integer header",
			headers: map[string][]string{
				"X-Ratelimit-Used": {"42"},
			},
			key:      "X-Ratelimit-Used",
			expected: 42,
		},
		{
			name: "Empty header value",
			headers: map[string][]string{
				"X-Ratelimit-Used": {""},
			},
			key:      "X-Ratelimit-Used",
			expected: 0,
		},
		{
			name: "Missing header",
			headers: map[string][]string{
				"X-Ratelimit-Reset": {"10"},
			},
			key:      "X-Ratelimit-Used",
			expected: 0,
		},
		{
			name: "Non-integer header value",
			headers: map[string][]string{
				"X-Ratelimit-Used": {"not-a-number"},
			},
			key:      "X-Ratelimit-Used",
			expected: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header(tc.headers)
			result := getHeaderAsInt(header, tc.key)
			if result != tc.expected {
				t.Errorf("getHeaderAsInt(%v, %q) = %d; want %d",
					header, tc.key, result, tc.expected)
			}
		})
	}
}

func TestDoGetRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := NewRedditAPI("id", "secret", "test-agent", 6000, logrus.New())

	_, err := r.doGet(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestDoGetUpdatesRateHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Used", "17")
		w.Header().Set("X-Ratelimit-Reset", "412")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := NewRedditAPI("id", "secret", "test-agent", 6000, logrus.New())

	_, err := r.doGet(context.Background(), srv.URL)
	require.NoError(t, err)

	reset, used := r.GetRateLimitStatus()
	assert.Equal(t, 412, reset)
	assert.Equal(t, 17, used)
}

func TestParseReplies(t *testing.T) {
	assert.Nil(t, parseReplies(nil), "absent replies")
	assert.Nil(t, parseReplies(json.RawMessage(`""`)), "empty string placeholder")
	assert.Nil(t, parseReplies(json.RawMessage(`null`)))

	nested := json.RawMessage(`{"kind":"Listing","data":{"children":[
		{"kind":"t1","data":{"id":"c1","author":"u1","body":"nested reply","replies":""}}
	]}}`)
	nodes := parseReplies(nested)
	require.Len(t, nodes, 1)
	assert.Equal(t, "nested reply", nodes[0].Data.Body)
}

func TestCollectCommentsFlattensAndCaps(t *testing.T) {
	raw := `[
		{"kind":"t1","data":{"id":"a","author":"u1","body":"top level","replies":
			{"kind":"Listing","data":{"children":[
				{"kind":"t1","data":{"id":"b","author":"u2","body":"child","replies":""}}
			]}}}},
		{"kind":"more","data":{"id":"m","author":"","body":"","replies":""}},
		{"kind":"t1","data":{"id":"c","author":"u3","body":"sibling","replies":""}}
	]`
	var nodes []commentNode
	require.NoError(t, json.Unmarshal([]byte(raw), &nodes))

	comments := collect(nodes, 10)
	require.Len(t, comments, 3)
	assert.Equal(t, []string{"top level", "child", "sibling"},
		[]string{comments[0].Body, comments[1].Body, comments[2].Body})

	capped := collect(nodes, 2)
	assert.Len(t, capped, 2)
}
