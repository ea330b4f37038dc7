package source

import (
	"context"
	"time"
)

// Comment is one raw comment fetched from the platform. Immutable once fetched.
type Comment struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Page is one page of a paginated comment fetch. An empty NextCursor means
// there are no more pages.
type Page struct {
	Comments   []Comment
	NextCursor string
}

// Source fetches comments for a post, one page per call.
type Source interface {
	FetchPage(ctx context.Context, postID, cursor string) (Page, error)
}
