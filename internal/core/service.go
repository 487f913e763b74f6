package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"nexonsite/internal/infra/persistence/memory"
	"nexonsite/internal/ordering"
	"nexonsite/pkg/domain"
)

// DefaultSuggestions is the number of related projects shown under a project.
const DefaultSuggestions = 3

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service exposes transactional content operations over a document store.
// The principal attached to ctx is checked by the store's access rules.
type Service struct {
	store   PersistentStore
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
	newSlug func() string
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		now:     func() time.Time { return time.Now().UTC() },
		newSlug: RandomSlug,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// RandomSlug returns 10 random lowercase alphanumeric characters.
func RandomSlug() string {
	var b strings.Builder
	b.Grow(10)
	for range 10 {
		b.WriteByte(slugAlphabet[rand.IntN(len(slugAlphabet))])
	}
	return b.String()
}

// run wraps one operation with tracing, metrics, audit and logging. fn
// returns the affected document id, if known.
func (s *Service) run(ctx context.Context, op, collection string, fn func(context.Context) (string, error)) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	id, err := fn(ctx)
	span.End(err)
	elapsed := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, elapsed)

	entry := AuditEntry{
		Operation:  op,
		Collection: collection,
		EntityID:   id,
		Actor:      domain.PrincipalFromContext(ctx).Subject,
		Status:     AuditStatusSuccess,
		Duration:   elapsed,
		At:         s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Warn("content operation failed", "operation", op, "id", id, "error", err)
	} else {
		s.logger.Debug("content operation", "operation", op, "id", id, "duration", elapsed)
	}
	s.audit.Record(ctx, entry)
	return err
}

func postRef(id string) domain.DocumentRef {
	return domain.DocumentRef{Collection: CollectionPosts, ID: id}
}

func portfolioRef(id string) domain.DocumentRef {
	return domain.DocumentRef{Collection: CollectionPortfolio, ID: id}
}

func notFound(ref domain.DocumentRef) error {
	return fmt.Errorf("%s: %w", ref.Path(), domain.ErrNotFound)
}

// CreatePost persists a new post. A post without a slug gets a random one.
func (s *Service) CreatePost(ctx context.Context, post Post) (Post, Result, error) {
	var created Post
	var res Result
	err := s.run(ctx, "create_post", CollectionPosts, func(ctx context.Context) (string, error) {
		if strings.TrimSpace(post.Title) == "" {
			return "", ValidationError{Field: "title", Reason: "required"}
		}
		if post.Slug == "" {
			post.Slug = s.newSlug()
		}
		now := s.now()
		post.CreatedAt, post.UpdatedAt = now, now
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			rec, err := tx.Create(CollectionPosts, post.ToFields())
			if err != nil {
				return err
			}
			created = domain.PostFromRecord(rec)
			return nil
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdatePost applies mutator to a stored post. The id and createdAt are kept.
func (s *Service) UpdatePost(ctx context.Context, id string, mutator func(*Post) error) (Post, Result, error) {
	var updated Post
	var res Result
	err := s.run(ctx, "update_post", CollectionPosts, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			ref := postRef(id)
			rec, ok := tx.Get(ref)
			if !ok {
				return notFound(ref)
			}
			original := domain.PostFromRecord(rec)
			post := original
			if err := mutator(&post); err != nil {
				return err
			}
			if strings.TrimSpace(post.Title) == "" {
				return ValidationError{Field: "title", Reason: "required"}
			}
			post.ID, post.CreatedAt = original.ID, original.CreatedAt
			post.UpdatedAt = s.now()
			rec, err := tx.Update(ref, post.ToFields())
			if err != nil {
				return err
			}
			updated = domain.PostFromRecord(rec)
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// DeletePost removes a post.
func (s *Service) DeletePost(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_post", CollectionPosts, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.Delete(postRef(id))
		})
		return id, err
	})
	return res, err
}

// GetPost returns one post.
func (s *Service) GetPost(ctx context.Context, id string) (Post, error) {
	var post Post
	err := s.run(ctx, "get_post", CollectionPosts, func(ctx context.Context) (string, error) {
		ref := postRef(id)
		rec, ok, err := s.store.Get(ctx, ref)
		if err != nil {
			return id, err
		}
		if !ok {
			return id, notFound(ref)
		}
		if !PostVisible(domain.PrincipalFromContext(ctx), rec) {
			return id, notFound(ref)
		}
		post = domain.PostFromRecord(rec)
		return id, nil
	})
	return post, err
}

// PostVisible reports whether p may read the post in rec. Drafts are visible
// to the admin principal only.
func PostVisible(p domain.Principal, rec Record) bool {
	return p.IsAdmin() || domain.PostFromRecord(rec).Published
}

// VisiblePosts drops the drafts p may not read. recs is not modified.
func VisiblePosts(p domain.Principal, recs []Record) []Record {
	if p.IsAdmin() {
		return recs
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if PostVisible(p, r) {
			out = append(out, r)
		}
	}
	return out
}

// PostBySlug returns the post published under slug.
func (s *Service) PostBySlug(ctx context.Context, slug string) (Post, error) {
	var post Post
	err := s.run(ctx, "get_post_by_slug", CollectionPosts, func(ctx context.Context) (string, error) {
		q := domain.Collection(CollectionPosts).Where("slug", domain.OpEqual, slug)
		recs, err := s.store.Query(ctx, *q)
		if err != nil {
			return "", err
		}
		recs = VisiblePosts(domain.PrincipalFromContext(ctx), recs)
		if len(recs) == 0 {
			return "", fmt.Errorf("%s?slug=%s: %w", CollectionPosts, slug, domain.ErrNotFound)
		}
		post = domain.PostFromRecord(recs[0])
		return post.ID, nil
	})
	return post, err
}

// PostsQuery is the newest-first listing of posts.
func PostsQuery() *domain.Query {
	return domain.Collection(CollectionPosts).Order(domain.FieldCreatedAt, true)
}

// ListPosts returns the posts the caller may read, newest first.
func (s *Service) ListPosts(ctx context.Context) ([]Post, error) {
	var posts []Post
	err := s.run(ctx, "list_posts", CollectionPosts, func(ctx context.Context) (string, error) {
		recs, err := s.store.Query(ctx, *PostsQuery())
		if err != nil {
			return "", err
		}
		recs = VisiblePosts(domain.PrincipalFromContext(ctx), recs)
		posts = make([]Post, 0, len(recs))
		for _, r := range recs {
			posts = append(posts, domain.PostFromRecord(r))
		}
		return "", nil
	})
	return posts, err
}

// CreatePortfolioItem appends an item. When every sibling already carries an
// order the new item is placed last; otherwise it stays unordered until the
// next move backfills the set.
func (s *Service) CreatePortfolioItem(ctx context.Context, item PortfolioItem) (PortfolioItem, Result, error) {
	var created PortfolioItem
	var res Result
	err := s.run(ctx, "create_portfolio_item", CollectionPortfolio, func(ctx context.Context) (string, error) {
		if strings.TrimSpace(item.Title) == "" {
			return "", ValidationError{Field: "title", Reason: "required"}
		}
		now := s.now()
		item.CreatedAt, item.UpdatedAt = now, now
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if item.Order == nil {
				if next, ok := ordering.Next(tx.Query(*domain.Collection(CollectionPortfolio))); ok {
					item.Order = &next
				}
			}
			rec, err := tx.Create(CollectionPortfolio, item.ToFields())
			if err != nil {
				return err
			}
			created = domain.PortfolioItemFromRecord(rec)
			return nil
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdatePortfolioItem applies mutator to a stored item. The display order is
// owned by MovePortfolioItem and is never changed here.
func (s *Service) UpdatePortfolioItem(ctx context.Context, id string, mutator func(*PortfolioItem) error) (PortfolioItem, Result, error) {
	var updated PortfolioItem
	var res Result
	err := s.run(ctx, "update_portfolio_item", CollectionPortfolio, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			ref := portfolioRef(id)
			rec, ok := tx.Get(ref)
			if !ok {
				return notFound(ref)
			}
			original := domain.PortfolioItemFromRecord(rec)
			item := original
			item.Tags = append([]string(nil), original.Tags...)
			if err := mutator(&item); err != nil {
				return err
			}
			if strings.TrimSpace(item.Title) == "" {
				return ValidationError{Field: "title", Reason: "required"}
			}
			item.ID, item.CreatedAt, item.Order = original.ID, original.CreatedAt, original.Order
			item.UpdatedAt = s.now()
			fields := item.ToFields()
			if len(item.Tags) == 0 {
				fields["tags"] = []any{}
			}
			rec, err := tx.Update(ref, fields)
			if err != nil {
				return err
			}
			updated = domain.PortfolioItemFromRecord(rec)
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// DeletePortfolioItem removes an item. Remaining orders are left untouched;
// gaps are harmless to the ordering protocol.
func (s *Service) DeletePortfolioItem(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_portfolio_item", CollectionPortfolio, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.Delete(portfolioRef(id))
		})
		return id, err
	})
	return res, err
}

// GetPortfolioItem returns one item.
func (s *Service) GetPortfolioItem(ctx context.Context, id string) (PortfolioItem, error) {
	var item PortfolioItem
	err := s.run(ctx, "get_portfolio_item", CollectionPortfolio, func(ctx context.Context) (string, error) {
		ref := portfolioRef(id)
		rec, ok, err := s.store.Get(ctx, ref)
		if err != nil {
			return id, err
		}
		if !ok {
			return id, notFound(ref)
		}
		item = domain.PortfolioItemFromRecord(rec)
		return id, nil
	})
	return item, err
}

func (s *Service) portfolioRecords(ctx context.Context) ([]Record, error) {
	recs, err := s.store.Query(ctx, *domain.Collection(CollectionPortfolio))
	if err != nil {
		return nil, err
	}
	return ordering.Sort(recs), nil
}

func decodePortfolio(recs []Record, keep func(PortfolioItem) bool) []PortfolioItem {
	items := make([]PortfolioItem, 0, len(recs))
	for _, r := range recs {
		item := domain.PortfolioItemFromRecord(r)
		if keep == nil || keep(item) {
			items = append(items, item)
		}
	}
	return items
}

// ListPortfolio returns every item in display order.
func (s *Service) ListPortfolio(ctx context.Context) ([]PortfolioItem, error) {
	var items []PortfolioItem
	err := s.run(ctx, "list_portfolio", CollectionPortfolio, func(ctx context.Context) (string, error) {
		recs, err := s.portfolioRecords(ctx)
		if err != nil {
			return "", err
		}
		items = decodePortfolio(recs, nil)
		return "", nil
	})
	return items, err
}

// MovePortfolioItem moves an item one position up or down. The caller must be
// allowed to update the collection even when the move turns out to be a no-op.
// The sibling set is read first and the resulting batch committed atomically;
// concurrent moves from stale reads resolve last-writer-wins.
func (s *Service) MovePortfolioItem(ctx context.Context, id string, dir ordering.Direction) (ordering.Outcome, error) {
	var outcome ordering.Outcome
	err := s.run(ctx, "move_portfolio_item", CollectionPortfolio, func(ctx context.Context) (string, error) {
		if err := s.store.Authorize(ctx, domain.Request{
			Operation:  domain.OperationUpdate,
			Collection: CollectionPortfolio,
			DocumentID: id,
		}); err != nil {
			return id, err
		}
		recs, err := s.store.Query(ctx, *domain.Collection(CollectionPortfolio))
		if err != nil {
			return id, err
		}
		outcome, err = ordering.Move(ctx, s.store, CollectionPortfolio, recs, id, dir)
		if err == nil {
			s.logger.Info("portfolio item moved", "id", id, "direction", string(dir), "outcome", outcome.String())
		}
		return id, err
	})
	return outcome, err
}

func hasThumbnail(item PortfolioItem) bool {
	return item.ThumbnailURL != ""
}

// FeaturedProjects returns the items that have a thumbnail, in display order.
func (s *Service) FeaturedProjects(ctx context.Context) ([]PortfolioItem, error) {
	var items []PortfolioItem
	err := s.run(ctx, "featured_projects", CollectionPortfolio, func(ctx context.Context) (string, error) {
		recs, err := s.portfolioRecords(ctx)
		if err != nil {
			return "", err
		}
		items = decodePortfolio(recs, hasThumbnail)
		return "", nil
	})
	return items, err
}

// SuggestedProjects returns up to n other items with a thumbnail, in display
// order. n <= 0 selects DefaultSuggestions.
func (s *Service) SuggestedProjects(ctx context.Context, id string, n int) ([]PortfolioItem, error) {
	if n <= 0 {
		n = DefaultSuggestions
	}
	var items []PortfolioItem
	err := s.run(ctx, "suggested_projects", CollectionPortfolio, func(ctx context.Context) (string, error) {
		recs, err := s.portfolioRecords(ctx)
		if err != nil {
			return id, err
		}
		items = decodePortfolio(recs, func(item PortfolioItem) bool {
			return item.ID != id && hasThumbnail(item)
		})
		if len(items) > n {
			items = items[:n]
		}
		return id, nil
	})
	return items, err
}

// IsNotFound reports whether err means a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
