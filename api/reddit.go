package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"probesampler/models"
)

const (
	baseURL     = "https://oauth.reddit.com"
	authURL     = "https://www.reddit.com/api/v1/access_token"
	searchLimit = 100 // max results per search page
)

// ErrRateLimited marks a 429 response from Reddit. The harvester's governor
// keys its single-retry backoff off this sentinel.
var ErrRateLimited = errors.New("reddit: rate limited")

// RedditAPI is an OAuth2 client-credentials Reddit client with outbound
// request throttling
type RedditAPI struct {
	clientID     string
	clientSecret string
	userAgent    string
	httpClient   *http.Client
	accessToken  string
	tokenExpiry  time.Time
	mutex        sync.RWMutex
	log          *logrus.Logger
	limiter      *rate.Limiter

	rateHeadersMutex sync.RWMutex
	rateResetCached  int
	rateUsedCached   int
}

// searchResponse is the Reddit listing shape returned by search.json
type searchResponse struct {
	Kind string `json:"kind"`
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Author      string  `json:"author"`
				Subreddit   string  `json:"subreddit"`
				CreatedUTC  float64 `json:"created_utc"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				SelfText    string  `json:"selftext"`
				Permalink   string  `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// commentNode is one entry of a comment listing. Replies is raw because
// Reddit sends an empty string instead of a listing when there are none.
type commentNode struct {
	Kind string `json:"kind"`
	Data struct {
		ID      string          `json:"id"`
		Author  string          `json:"author"`
		Body    string          `json:"body"`
		Replies json.RawMessage `json:"replies"`
	} `json:"data"`
}

type commentListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []commentNode `json:"children"`
	} `json:"data"`
}

// NewRedditAPI creates a new Reddit API client. maxRequestsPerMinute caps
// the outbound request rate; Reddit allows ~100/min for OAuth clients.
func NewRedditAPI(clientID, clientSecret, userAgent string, maxRequestsPerMinute int, log *logrus.Logger) *RedditAPI {
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 100
	}

	// 95% of the allowed rate as a safety buffer, no burst
	interval := time.Duration(float64(time.Minute) / (float64(maxRequestsPerMinute) * 0.95))
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	return &RedditAPI{
		clientID:        clientID,
		clientSecret:    clientSecret,
		userAgent:       userAgent,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		log:             log,
		limiter:         limiter,
		rateResetCached: 600,
	}
}

// GetRateLimitStatus returns the reset countdown and used-request count last
// reported by Reddit's X-Ratelimit headers
func (r *RedditAPI) GetRateLimitStatus() (reset int, used int) {
	r.rateHeadersMutex.RLock()
	defer r.rateHeadersMutex.RUnlock()
	return r.rateResetCached, r.rateUsedCached
}

// authenticate obtains or refreshes the application-only access token
func (r *RedditAPI) authenticate(ctx context.Context) error {
	r.mutex.RLock()
	token := r.accessToken
	expiry := r.tokenExpiry
	r.mutex.RUnlock()

	if token != "" && time.Now().Before(expiry) {
		return nil
	}

	r.log.Info("Authenticating with Reddit API")

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute auth request: %w", err)
	}
	defer resp.Body.Close()

	r.updateRateLimits(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("auth request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var authResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}

	r.mutex.Lock()
	r.accessToken = authResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn) * time.Second)
	r.mutex.Unlock()

	r.log.Info("Successfully authenticated with Reddit API")
	return nil
}

// SearchPosts runs one page of a subreddit-scoped search, newest first.
// It returns the page of posts plus the pagination token for the next page
// (empty when the listing is exhausted). Results arrive in reverse
// chronological order, which callers rely on for time-window cutoffs.
func (r *RedditAPI) SearchPosts(ctx context.Context, subreddit, query, after string) ([]models.Post, string, error) {
	if err := r.authenticate(ctx); err != nil {
		return nil, "", err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("restrict_sr", "1")
	params.Set("sort", "new")
	params.Set("limit", strconv.Itoa(searchLimit))
	if after != "" {
		params.Set("after", after)
	}
	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", baseURL, url.PathEscape(subreddit), params.Encode())

	r.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"query":     query,
		"after":     after,
	}).Debug("Searching subreddit")

	body, err := r.doGet(ctx, endpoint)
	if err != nil {
		return nil, "", err
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, "", fmt.Errorf("failed to decode search response: %w", err)
	}

	posts := make([]models.Post, 0, len(searchResp.Data.Children))
	for _, child := range searchResp.Data.Children {
		d := child.Data
		posts = append(posts, models.Post{
			ID:          d.ID,
			Title:       d.Title,
			Author:      d.Author,
			Subreddit:   d.Subreddit,
			CreatedUTC:  d.CreatedUTC,
			Score:       d.Score,
			NumComments: d.NumComments,
			SelfText:    d.SelfText,
			Permalink:   d.Permalink,
		})
	}

	return posts, searchResp.Data.After, nil
}

// FetchComments retrieves up to limit comment bodies for a post, walking
// nested replies depth-first. Unexpanded "more" stubs are skipped rather
// than resolved; comment sampling is best-effort.
func (r *RedditAPI) FetchComments(ctx context.Context, subreddit, postID string, limit int) ([]models.Comment, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := r.authenticate(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/r/%s/comments/%s.json?limit=%d", baseURL, url.PathEscape(subreddit), url.PathEscape(postID), limit)

	body, err := r.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// the endpoint returns [postListing, commentListing]
	var listings []commentListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode comments response: %w", err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	comments := make([]models.Comment, 0, limit)
	collectComments(listings[1].Data.Children, limit, &comments)
	return comments, nil
}

func collectComments(nodes []commentNode, limit int, out *[]models.Comment) {
	for _, node := range nodes {
		if len(*out) >= limit {
			return
		}
		if node.Kind != "t1" {
			continue
		}
		*out = append(*out, models.Comment{
			ID:     node.Data.ID,
			Author: node.Data.Author,
			Body:   node.Data.Body,
		})
		if replies := parseReplies(node.Data.Replies); len(replies) > 0 {
			collectComments(replies, limit, out)
		}
	}
}

// parseReplies tolerates Reddit's empty-string placeholder for no replies
func parseReplies(raw json.RawMessage) []commentNode {
	if len(raw) == 0 || string(raw) == `""` || string(raw) == "null" {
		return nil
	}
	var listing commentListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil
	}
	return listing.Data.Children
}

// doGet performs a throttled, authenticated GET and returns the body.
// 429 responses map to ErrRateLimited.
func (r *RedditAPI) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	r.mutex.RLock()
	token := r.accessToken
	r.mutex.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	r.updateRateLimits(resp)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("request to %s: %w", endpoint, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.log.WithFields(logrus.Fields{
			"status_code":   resp.StatusCode,
			"response_body": string(body),
		}).Error("Reddit API error response")
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// updateRateLimits caches Reddit's rate headers for observability.
// X-Ratelimit-Used counts up within the period, X-Ratelimit-Reset counts
// down from ~600 seconds.
func (r *RedditAPI) updateRateLimits(resp *http.Response) {
	used := getHeaderAsInt(resp.Header, "X-Ratelimit-Used")
	reset := getHeaderAsInt(resp.Header, "X-Ratelimit-Reset")

	if reset == 0 && used == 0 {
		return
	}

	r.rateHeadersMutex.Lock()
	r.rateResetCached = reset
	r.rateUsedCached = used
	r.rateHeadersMutex.Unlock()

	r.log.WithFields(logrus.Fields{
		"used":      used,
		"reset_sec": reset,
	}).Debug("Updated rate limit status from Reddit headers")
}

func getHeaderAsInt(header http.Header, name string) int {
	value := header.Get(name)
	if value == "" {
		return 0
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return intValue
}
