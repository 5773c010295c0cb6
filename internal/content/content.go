// Package content is the typed convenience layer over the cache manager for
// the catalog domain. It encodes the key shapes and cross-invalidation rules
// that relate movies, shows, episode lists, and search results; it never talks
// to either cache tier directly.
package content

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sparrowflix/contentcache/internal/cache"
)

// Content type tags resolved through the policy table.
const (
	TypeMovies   = "movies"
	TypeShows    = "shows"
	TypeEpisodes = "episodes"
	TypeSearch   = "search"
	TypeTrending = "trending"
)

// searchSlugLen is how many characters of a title participate in search
// invalidation. Search keys start with the normalized query, so any cached
// query sharing this much of a freshly written title is dropped.
const searchSlugLen = 10

// Movie is the cached projection of one movie title.
type Movie struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Language string `json:"language,omitempty"`
	Year     int    `json:"year,omitempty"`
	Overview string `json:"overview,omitempty"`
}

// Show is the cached projection of one TV show.
type Show struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Language string `json:"language,omitempty"`
	Seasons  int    `json:"seasons,omitempty"`
}

// Episode is one entry of a show's episode list.
type Episode struct {
	ShowID string `json:"showId"`
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
	FileID string `json:"fileId,omitempty"`
}

// SearchHit is one row of a cached search result.
type SearchHit struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Cache composes cache manager calls with domain-specific key and
// invalidation shapes.
type Cache struct {
	manager *cache.Manager
	logger  *slog.Logger
}

// New wraps a constructed manager. A nil logger falls back to slog.Default.
func New(manager *cache.Manager, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		manager: manager,
		logger:  logger.With(slog.String("agent", "content_cache")),
	}
}

// Movie fetches one movie through the cache, consulting the provider on a miss.
func (c *Cache) Movie(ctx context.Context, id string, provider func(ctx context.Context) (Movie, bool, error)) (Movie, bool, error) {
	return cache.GetAs(ctx, c.manager, id, TypeMovies, provider)
}

// SaveMovie writes a movie through both tiers. A searchable item write also
// drops any cached search result whose query shares the title's leading slug,
// so stale listings are not served after an update.
func (c *Cache) SaveMovie(ctx context.Context, movie Movie) error {
	if err := cache.SetAs(ctx, c.manager, movie.ID, movie, TypeMovies); err != nil {
		return err
	}
	c.invalidateSearch(movie.Title)
	return nil
}

// Show fetches one show through the cache.
func (c *Cache) Show(ctx context.Context, id string, provider func(ctx context.Context) (Show, bool, error)) (Show, bool, error) {
	return cache.GetAs(ctx, c.manager, id, TypeShows, provider)
}

// SaveShow writes a show through both tiers. Updating a collection
// invalidates every cached episode list keyed by the show's identifier, and
// search results matching the title slug.
func (c *Cache) SaveShow(ctx context.Context, show Show) error {
	if err := cache.SetAs(ctx, c.manager, show.ID, show, TypeShows); err != nil {
		return err
	}
	removed := c.manager.InvalidatePattern(show.ID, TypeEpisodes)
	if removed > 0 {
		c.logger.Debug("episode lists invalidated",
			slog.String("show_id", show.ID), slog.Int("removed", removed))
	}
	c.invalidateSearch(show.Title)
	return nil
}

// Episodes fetches a show's episode list. params narrows the list (for
// example {"season": "2"}) and participates in the deterministic key.
func (c *Cache) Episodes(ctx context.Context, showID string, params map[string]string, provider func(ctx context.Context) ([]Episode, bool, error)) ([]Episode, bool, error) {
	key := cache.GenerateKey(showID, params)
	return cache.GetAs(ctx, c.manager, key, TypeEpisodes, provider)
}

// Search fetches cached search results for a query. The query is normalized
// before key generation so invalidation by title slug lines up with lookups.
func (c *Cache) Search(ctx context.Context, query string, params map[string]string, provider func(ctx context.Context) ([]SearchHit, bool, error)) ([]SearchHit, bool, error) {
	key := cache.GenerateKey(normalizeQuery(query), params)
	return cache.GetAs(ctx, c.manager, key, TypeSearch, provider)
}

// Trending fetches the trending list, optionally forcing a refresh past both
// lookup tiers.
func (c *Cache) Trending(ctx context.Context, forceRefresh bool, provider func(ctx context.Context) ([]SearchHit, bool, error)) ([]SearchHit, bool, error) {
	return cache.CacheAsideAs(ctx, c.manager, "all", TypeTrending, provider, cache.AsideOptions{
		ForceRefresh: forceRefresh,
	})
}

// InvalidateMovie drops one movie from both tiers.
func (c *Cache) InvalidateMovie(ctx context.Context, id string) {
	c.manager.Invalidate(ctx, id, TypeMovies)
}

// InvalidateShow drops one show and its dependent episode lists.
func (c *Cache) InvalidateShow(ctx context.Context, id string) {
	c.manager.Invalidate(ctx, id, TypeShows)
	c.manager.InvalidatePattern(id, TypeEpisodes)
}

// WarmPopular bulk-populates the catalog's popular content.
func (c *Cache) WarmPopular(ctx context.Context, popular cache.PopularFunc, fetch cache.FetchFunc) int {
	return c.manager.WarmCache(ctx, popular, fetch)
}

func (c *Cache) invalidateSearch(title string) {
	slug := searchSlug(title)
	if slug == "" {
		return
	}
	removed := c.manager.InvalidatePattern(slug, TypeSearch)
	if removed > 0 {
		c.logger.Debug("search results invalidated",
			slog.String("slug", slug), slog.Int("removed", removed))
	}
}

// searchSlug lower-cases the title and truncates it so partial-query cache
// entries still match.
func searchSlug(title string) string {
	slug := normalizeQuery(title)
	runes := []rune(slug)
	if len(runes) > searchSlugLen {
		runes = runes[:searchSlugLen]
	}
	return string(runes)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
