// Package inbound normalizes the two webhook payload shapes the platform
// delivers (page feed-change batches and bare comment objects) into the one
// Comment type the allocation pipeline consumes.
package inbound

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dimasraya/live-orders/internal/source"
)

var ErrUnsupportedPayload = errors.New("unsupported webhook payload")

// Event is one normalized inbound comment and the post it belongs to.
type Event struct {
	PostID  string
	Comment source.Comment
}

type author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Shape 1: page subscription batch. entry[].changes[].value carries the
// comment; created_time is unix seconds.
type pageWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type feedValue struct {
	Item        string `json:"item"`
	Verb        string `json:"verb"`
	CommentID   string `json:"comment_id"`
	PostID      string `json:"post_id"`
	Message     string `json:"message"`
	From        author `json:"from"`
	CreatedTime int64  `json:"created_time"`
}

// Shape 2: a single comment object, RFC3339 created_time.
type edgeComment struct {
	ID          string `json:"id"`
	PostID      string `json:"post_id"`
	Message     string `json:"message"`
	From        author `json:"from"`
	CreatedTime string `json:"created_time"`
}

// Normalize decodes either shape. Non-comment feed changes (likes, edits,
// removals) are dropped, not errors.
func Normalize(raw []byte) ([]Event, error) {
	var pw pageWebhook
	if err := json.Unmarshal(raw, &pw); err == nil && pw.Object == "page" {
		return fromPageWebhook(pw)
	}

	var ec edgeComment
	if err := json.Unmarshal(raw, &ec); err == nil && ec.ID != "" && ec.PostID != "" {
		ts, err := time.Parse(time.RFC3339, ec.CreatedTime)
		if err != nil {
			return nil, ErrUnsupportedPayload
		}
		return []Event{{
			PostID: ec.PostID,
			Comment: source.Comment{
				ID:         ec.ID,
				Text:       ec.Message,
				AuthorID:   ec.From.ID,
				AuthorName: ec.From.Name,
				CreatedAt:  ts,
			},
		}}, nil
	}

	return nil, ErrUnsupportedPayload
}

func fromPageWebhook(pw pageWebhook) ([]Event, error) {
	var out []Event
	for _, e := range pw.Entry {
		for _, ch := range e.Changes {
			if ch.Field != "feed" {
				continue
			}
			var v feedValue
			if err := json.Unmarshal(ch.Value, &v); err != nil {
				return nil, ErrUnsupportedPayload
			}
			if v.Item != "comment" || v.Verb != "add" {
				continue
			}
			out = append(out, Event{
				PostID: v.PostID,
				Comment: source.Comment{
					ID:         v.CommentID,
					Text:       v.Message,
					AuthorID:   v.From.ID,
					AuthorName: v.From.Name,
					CreatedAt:  time.Unix(v.CreatedTime, 0).UTC(),
				},
			})
		}
	}
	return out, nil
}
