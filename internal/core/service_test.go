package core

import (
	"context"
	"errors"
	"testing"

	"nexonsite/internal/ordering"
	"nexonsite/pkg/domain"
)

func TestCreatePostAssignsSlugAndTimestamps(t *testing.T) {
	svc := newTestService(WithSlugGenerator(func() string { return "abc123defg" }))
	ctx := adminCtx()

	post, _, err := svc.CreatePost(ctx, Post{Title: "Hello", Content: "Body"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.ID == "" {
		t.Fatalf("expected backend-assigned id")
	}
	if post.Slug != "abc123defg" {
		t.Fatalf("expected generated slug, got %q", post.Slug)
	}
	if post.CreatedAt.IsZero() || !post.CreatedAt.Equal(post.UpdatedAt) {
		t.Fatalf("unexpected timestamps: %v %v", post.CreatedAt, post.UpdatedAt)
	}

	kept, _, err := svc.CreatePost(ctx, Post{Title: "Second", Slug: "custom", Published: true})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if kept.Slug != "custom" {
		t.Fatalf("explicit slug replaced: %q", kept.Slug)
	}

	found, err := svc.PostBySlug(context.Background(), "custom")
	if err != nil || found.ID != kept.ID {
		t.Fatalf("post by slug: %+v %v", found, err)
	}
}

func TestRandomSlugShape(t *testing.T) {
	for range 20 {
		slug := RandomSlug()
		if len(slug) != 10 {
			t.Fatalf("slug length %d", len(slug))
		}
		for _, r := range slug {
			if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
				t.Fatalf("unexpected rune %q in %q", r, slug)
			}
		}
	}
}

func TestCreatePostRequiresTitle(t *testing.T) {
	svc := newTestService()
	_, _, err := svc.CreatePost(adminCtx(), Post{Title: "  "})
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}
}

func TestPostWritesRequireAdmin(t *testing.T) {
	svc := newTestService()
	_, _, err := svc.CreatePost(context.Background(), Post{Title: "Anon"})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
	var perr *domain.PermissionError
	if !errors.As(err, &perr) || perr.Context.Operation != domain.OperationCreate {
		t.Fatalf("expected create permission context, got %#v", perr)
	}
	posts, err := svc.ListPosts(context.Background())
	if err != nil || len(posts) != 0 {
		t.Fatalf("anonymous list: %v %v", posts, err)
	}
}

func TestListPostsNewestFirst(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	for _, title := range []string{"first", "second", "third"} {
		if _, _, err := svc.CreatePost(ctx, Post{Title: title, Published: true}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	posts, err := svc.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	got := []string{posts[0].Title, posts[1].Title, posts[2].Title}
	want := []string{"third", "second", "first"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}

func TestDraftPostsHiddenFromNonAdmins(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	draft, _, err := svc.CreatePost(ctx, Post{Title: "draft", Slug: "draft"})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if _, _, err := svc.CreatePost(ctx, Post{Title: "live", Slug: "live", Published: true}); err != nil {
		t.Fatalf("create live: %v", err)
	}

	anon := context.Background()
	posts, err := svc.ListPosts(anon)
	if err != nil || len(posts) != 1 || posts[0].Title != "live" {
		t.Fatalf("anonymous list: %+v %v", posts, err)
	}
	if _, err := svc.GetPost(anon, draft.ID); !IsNotFound(err) {
		t.Fatalf("anonymous get draft: expected not found, got %v", err)
	}
	if _, err := svc.PostBySlug(anon, "draft"); !IsNotFound(err) {
		t.Fatalf("anonymous slug draft: expected not found, got %v", err)
	}
	if found, err := svc.PostBySlug(anon, "live"); err != nil || found.Title != "live" {
		t.Fatalf("anonymous slug live: %+v %v", found, err)
	}

	all, err := svc.ListPosts(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("admin list: %+v %v", all, err)
	}
	if got, err := svc.GetPost(ctx, draft.ID); err != nil || got.Published {
		t.Fatalf("admin get draft: %+v %v", got, err)
	}

	published, _, err := svc.UpdatePost(ctx, draft.ID, func(p *Post) error {
		p.Published = true
		return nil
	})
	if err != nil || !published.Published {
		t.Fatalf("publish: %+v %v", published, err)
	}
	if _, err := svc.GetPost(anon, draft.ID); err != nil {
		t.Fatalf("anonymous get after publish: %v", err)
	}
}

func TestUpdatePostKeepsIdentityAndCreatedAt(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	post, _, err := svc.CreatePost(ctx, Post{Title: "Draft"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, _, err := svc.UpdatePost(ctx, post.ID, func(p *Post) error {
		p.Title = "Final"
		p.Published = true
		p.ID = "hijack"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != post.ID || updated.Title != "Final" || !updated.Published {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if !updated.CreatedAt.Equal(post.CreatedAt) || !updated.UpdatedAt.After(post.UpdatedAt) {
		t.Fatalf("timestamps not maintained: %+v", updated)
	}

	mutErr := errors.New("abort")
	if _, _, err := svc.UpdatePost(ctx, post.ID, func(*Post) error { return mutErr }); !errors.Is(err, mutErr) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	if _, _, err := svc.UpdatePost(ctx, "missing", func(*Post) error { return nil }); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeletePost(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	post, _, err := svc.CreatePost(ctx, Post{Title: "Gone soon"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetPost(ctx, post.ID); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := svc.DeletePost(ctx, post.ID); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func createItems(t *testing.T, svc *Service, items ...PortfolioItem) []PortfolioItem {
	t.Helper()
	out := make([]PortfolioItem, 0, len(items))
	for _, item := range items {
		created, _, err := svc.CreatePortfolioItem(adminCtx(), item)
		if err != nil {
			t.Fatalf("create %s: %v", item.Title, err)
		}
		out = append(out, created)
	}
	return out
}

func titles(items []PortfolioItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreatePortfolioItemAppendsOrder(t *testing.T) {
	svc := newTestService()
	items := createItems(t, svc, PortfolioItem{Title: "a"}, PortfolioItem{Title: "b"}, PortfolioItem{Title: "c"})
	for i, item := range items {
		if item.Order == nil || *item.Order != i {
			t.Fatalf("item %s order = %v, want %d", item.Title, item.Order, i)
		}
	}
}

func TestCreatePortfolioItemLeavesUnorderedSetAlone(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	batch := domain.NewWriteBatch().
		Set(portfolioRef("legacy-1"), Fields{"title": "legacy 1"}).
		Set(portfolioRef("legacy-2"), Fields{"title": "legacy 2", "order": 4})
	if err := svc.Store().CommitBatch(ctx, batch); err != nil {
		t.Fatalf("seed: %v", err)
	}
	created, _, err := svc.CreatePortfolioItem(ctx, PortfolioItem{Title: "new"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Order != nil {
		t.Fatalf("expected unordered item in incomplete set, got %d", *created.Order)
	}
}

func TestMovePortfolioItem(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	items := createItems(t, svc, PortfolioItem{Title: "a"}, PortfolioItem{Title: "b"}, PortfolioItem{Title: "c"})

	outcome, err := svc.MovePortfolioItem(ctx, items[2].ID, ordering.Up)
	if err != nil || outcome != ordering.OutcomeSwapped {
		t.Fatalf("move up: %v %v", outcome, err)
	}
	list, err := svc.ListPortfolio(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := titles(list); !equalStrings(got, []string{"a", "c", "b"}) {
		t.Fatalf("display order %v", got)
	}

	outcome, err = svc.MovePortfolioItem(ctx, items[0].ID, ordering.Up)
	if err != nil || outcome != ordering.OutcomeNoop {
		t.Fatalf("boundary move: %v %v", outcome, err)
	}
	if _, err := svc.MovePortfolioItem(ctx, "missing", ordering.Down); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	anon := context.Background()
	for _, tc := range []struct {
		id  string
		dir ordering.Direction
	}{
		{items[1].ID, ordering.Down},
		{items[1].ID, ordering.Up},
		{items[0].ID, ordering.Up},
		{"missing", ordering.Down},
	} {
		outcome, err := svc.MovePortfolioItem(anon, tc.id, tc.dir)
		if !errors.Is(err, domain.ErrPermissionDenied) {
			t.Fatalf("anonymous move %s %s should be denied, got %v %v", tc.id, tc.dir, outcome, err)
		}
	}
	list, err = svc.ListPortfolio(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := titles(list); !equalStrings(got, []string{"a", "c", "b"}) {
		t.Fatalf("denied moves changed order: %v", got)
	}
}

func TestMovePortfolioItemBackfillsFirst(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	batch := domain.NewWriteBatch().
		Set(portfolioRef("x"), Fields{"title": "x"}).
		Set(portfolioRef("y"), Fields{"title": "y"}).
		Set(portfolioRef("z"), Fields{"title": "z"})
	if err := svc.Store().CommitBatch(ctx, batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := svc.MovePortfolioItem(ctx, "z", ordering.Up)
	if err != nil || outcome != ordering.OutcomeBackfilled {
		t.Fatalf("first move: %v %v", outcome, err)
	}
	list, _ := svc.ListPortfolio(ctx)
	if got := titles(list); !equalStrings(got, []string{"x", "y", "z"}) {
		t.Fatalf("backfill must not reorder, got %v", got)
	}
	outcome, err = svc.MovePortfolioItem(ctx, "z", ordering.Up)
	if err != nil || outcome != ordering.OutcomeSwapped {
		t.Fatalf("second move: %v %v", outcome, err)
	}
	list, _ = svc.ListPortfolio(ctx)
	if got := titles(list); !equalStrings(got, []string{"x", "z", "y"}) {
		t.Fatalf("after swap %v", got)
	}
}

func TestUpdatePortfolioItemPreservesOrder(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	items := createItems(t, svc, PortfolioItem{Title: "a", Tags: []string{"go"}}, PortfolioItem{Title: "b"})

	updated, _, err := svc.UpdatePortfolioItem(ctx, items[1].ID, func(p *PortfolioItem) error {
		p.Title = "b2"
		p.Order = intPtr(-5)
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Order == nil || *updated.Order != 1 || updated.Title != "b2" {
		t.Fatalf("unexpected update %+v", updated)
	}

	cleared, _, err := svc.UpdatePortfolioItem(ctx, items[0].ID, func(p *PortfolioItem) error {
		p.Tags = nil
		return nil
	})
	if err != nil {
		t.Fatalf("clear tags: %v", err)
	}
	if len(cleared.Tags) != 0 {
		t.Fatalf("tags not cleared: %v", cleared.Tags)
	}
}

func TestFeaturedAndSuggestedProjects(t *testing.T) {
	svc := newTestService()
	items := createItems(t, svc,
		PortfolioItem{Title: "a", ThumbnailURL: "https://img/a.png"},
		PortfolioItem{Title: "b"},
		PortfolioItem{Title: "c", ThumbnailURL: "https://img/c.png"},
		PortfolioItem{Title: "d", ThumbnailURL: "https://img/d.png"},
		PortfolioItem{Title: "e", ThumbnailURL: "https://img/e.png"},
		PortfolioItem{Title: "f", ThumbnailURL: "https://img/f.png"},
	)

	featured, err := svc.FeaturedProjects(context.Background())
	if err != nil {
		t.Fatalf("featured: %v", err)
	}
	if got := titles(featured); !equalStrings(got, []string{"a", "c", "d", "e", "f"}) {
		t.Fatalf("featured %v", got)
	}

	suggested, err := svc.SuggestedProjects(context.Background(), items[2].ID, 0)
	if err != nil {
		t.Fatalf("suggested: %v", err)
	}
	if got := titles(suggested); !equalStrings(got, []string{"a", "d", "e"}) {
		t.Fatalf("suggested %v", got)
	}
	one, _ := svc.SuggestedProjects(context.Background(), items[0].ID, 1)
	if got := titles(one); !equalStrings(got, []string{"c"}) {
		t.Fatalf("suggested n=1 %v", got)
	}
}

func TestDeletePortfolioItem(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	items := createItems(t, svc, PortfolioItem{Title: "a"}, PortfolioItem{Title: "b"})
	if _, err := svc.DeletePortfolioItem(ctx, items[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetPortfolioItem(ctx, items[0].ID); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	next := createItems(t, svc, PortfolioItem{Title: "c"})[0]
	if next.Order == nil || *next.Order != 2 {
		t.Fatalf("expected order after the max, got %v", next.Order)
	}
}
