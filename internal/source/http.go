package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client fetches comments from the platform graph API.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTP        *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		AccessToken: token,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
	}
}

type graphAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type graphComment struct {
	ID          string      `json:"id"`
	Message     string      `json:"message"`
	From        graphAuthor `json:"from"`
	CreatedTime time.Time   `json:"created_time"`
}

type graphPage struct {
	Data   []graphComment `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

func (c *Client) FetchPage(ctx context.Context, postID, cursor string) (Page, error) {
	q := url.Values{}
	q.Set("fields", "id,message,from,created_time")
	q.Set("access_token", c.AccessToken)
	if cursor != "" {
		q.Set("after", cursor)
	}
	u := fmt.Sprintf("%s/%s/comments?%s", c.BaseURL, postID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Page{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch comments: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch comments: status %d", resp.StatusCode)
	}

	var gp graphPage
	if err := json.NewDecoder(resp.Body).Decode(&gp); err != nil {
		return Page{}, fmt.Errorf("decode comments: %w", err)
	}

	p := Page{Comments: make([]Comment, 0, len(gp.Data))}
	for _, gc := range gp.Data {
		p.Comments = append(p.Comments, Comment{
			ID:         gc.ID,
			Text:       gc.Message,
			AuthorID:   gc.From.ID,
			AuthorName: gc.From.Name,
			CreatedAt:  gc.CreatedTime,
		})
	}
	// paging.cursors.after is present even on the last page; paging.next is not.
	if gp.Paging.Next != "" {
		p.NextCursor = gp.Paging.Cursors.After
	}
	return p, nil
}
