package site

import (
	"net/http"
	"strconv"

	"nexonsite/internal/core"
	"nexonsite/internal/ordering"
)

type portfolioPatch struct {
	Title        *string   `json:"title"`
	Category     *string   `json:"category"`
	Description  *string   `json:"description"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
	ProjectURL   *string   `json:"projectUrl"`
	Tags         *[]string `json:"tags"`
}

func (p portfolioPatch) apply(item *core.PortfolioItem) error {
	setString(&item.Title, p.Title)
	setString(&item.Category, p.Category)
	setString(&item.Description, p.Description)
	setString(&item.ThumbnailURL, p.ThumbnailURL)
	setString(&item.ProjectURL, p.ProjectURL)
	if p.Tags != nil {
		item.Tags = *p.Tags
	}
	return nil
}

type postPatch struct {
	Title     *string `json:"title"`
	Slug      *string `json:"slug"`
	Excerpt   *string `json:"excerpt"`
	Content   *string `json:"content"`
	CoverURL  *string `json:"coverImageUrl"`
	Published *bool   `json:"published"`
}

func (p postPatch) apply(post *core.Post) error {
	setString(&post.Title, p.Title)
	setString(&post.Slug, p.Slug)
	setString(&post.Excerpt, p.Excerpt)
	setString(&post.Content, p.Content)
	setString(&post.CoverURL, p.CoverURL)
	if p.Published != nil {
		post.Published = *p.Published
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

type moveRequest struct {
	Direction string `json:"direction"`
}

func (h *Handler) handleListPortfolio(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Service.ListPortfolio(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *Handler) handleFeatured(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Service.FeaturedProjects(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *Handler) handleSuggested(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		n = parsed
	}
	items, err := h.deps.Service.SuggestedProjects(r.Context(), r.PathValue("id"), n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *Handler) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var item core.PortfolioItem
	if !decodeBody(w, r, &item) {
		return
	}
	created, res, err := h.deps.Service.CreatePortfolioItem(r.Context(), item)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": created, "violations": res.Violations})
}

func (h *Handler) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	item, err := h.deps.Service.GetPortfolioItem(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *Handler) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	var patch portfolioPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	item, res, err := h.deps.Service.UpdatePortfolioItem(r.Context(), r.PathValue("id"), patch.apply)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "violations": res.Violations})
}

func (h *Handler) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.Service.DeletePortfolioItem(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMovePortfolio(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dir, err := ordering.ParseDirection(req.Direction)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	outcome, err := h.deps.Service.MovePortfolioItem(r.Context(), r.PathValue("id"), dir)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome.String()})
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.deps.Service.ListPosts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": nonNil(posts)})
}

func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var post core.Post
	if !decodeBody(w, r, &post) {
		return
	}
	created, res, err := h.deps.Service.CreatePost(r.Context(), post)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"post": created, "violations": res.Violations})
}

func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.deps.Service.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

func (h *Handler) handlePostBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.deps.Service.PostBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

func (h *Handler) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var patch postPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	post, res, err := h.deps.Service.UpdatePost(r.Context(), r.PathValue("id"), patch.apply)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post, "violations": res.Violations})
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.Service.DeletePost(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
