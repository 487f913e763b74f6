package domain

import "time"

// Content collections.
const (
	CollectionPosts     = "posts"
	CollectionPortfolio = "portfolio_items"
)

// Field names shared by content records.
const (
	FieldOrder     = "order"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Post is a blog article.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Content   string    `json:"content"`
	CoverURL  string    `json:"coverImageUrl,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToFields converts the post into a document payload without its id.
func (p Post) ToFields() Fields {
	return Fields{
		"title":         p.Title,
		"slug":          p.Slug,
		"excerpt":       p.Excerpt,
		"content":       p.Content,
		"coverImageUrl": p.CoverURL,
		"published":     p.Published,
		FieldCreatedAt:  formatTime(p.CreatedAt),
		FieldUpdatedAt:  formatTime(p.UpdatedAt),
	}
}

// PostFromRecord decodes a stored post.
func PostFromRecord(r Record) Post {
	published, _ := r.Fields["published"].(bool)
	return Post{
		ID:        r.ID,
		Title:     r.String("title"),
		Slug:      r.String("slug"),
		Excerpt:   r.String("excerpt"),
		Content:   r.String("content"),
		CoverURL:  r.String("coverImageUrl"),
		Published: published,
		CreatedAt: parseTime(r.String(FieldCreatedAt)),
		UpdatedAt: parseTime(r.String(FieldUpdatedAt)),
	}
}

// PortfolioItem is a showcased project. Order is nil until the list has been
// manually reordered once.
type PortfolioItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Category     string    `json:"category,omitempty"`
	Description  string    `json:"description,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	ProjectURL   string    `json:"projectUrl,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Order        *int      `json:"order,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToFields converts the item into a document payload without its id. The
// order field is only present when set.
func (p PortfolioItem) ToFields() Fields {
	f := Fields{
		"title":        p.Title,
		"category":     p.Category,
		"description":  p.Description,
		"thumbnailUrl": p.ThumbnailURL,
		"projectUrl":   p.ProjectURL,
		FieldCreatedAt: formatTime(p.CreatedAt),
		FieldUpdatedAt: formatTime(p.UpdatedAt),
	}
	if len(p.Tags) > 0 {
		tags := make([]any, len(p.Tags))
		for i, t := range p.Tags {
			tags[i] = t
		}
		f["tags"] = tags
	}
	if p.Order != nil {
		f[FieldOrder] = *p.Order
	}
	return f
}

// PortfolioItemFromRecord decodes a stored portfolio item.
func PortfolioItemFromRecord(r Record) PortfolioItem {
	item := PortfolioItem{
		ID:           r.ID,
		Title:        r.String("title"),
		Category:     r.String("category"),
		Description:  r.String("description"),
		ThumbnailURL: r.String("thumbnailUrl"),
		ProjectURL:   r.String("projectUrl"),
		CreatedAt:    parseTime(r.String(FieldCreatedAt)),
		UpdatedAt:    parseTime(r.String(FieldUpdatedAt)),
	}
	switch tags := r.Fields["tags"].(type) {
	case []any:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				item.Tags = append(item.Tags, s)
			}
		}
	case []string:
		item.Tags = append(item.Tags, tags...)
	}
	if n, ok := r.Int(FieldOrder); ok {
		item.Order = &n
	}
	return item
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
