package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
)

type supabaseCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	Type string `json:"type"`
}

// resolveCategories returns the categories for ids, serving what it can from
// the cache and fetching the rest in a single request. Unknown ids are
// simply absent from the result.
func (c *Client) resolveCategories(ctx context.Context, ids []string) (map[string]domain.Category, error) {
	out := make(map[string]domain.Category, len(ids))
	var missing []string
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if cat, ok := c.categories.Get(id); ok {
			c.metrics.IncrCacheHit("category")
			out[id] = cat
			continue
		}
		c.metrics.IncrCacheMiss("category")
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	ctx, span := tracer.Start(ctx, "Supabase.ResolveCategories")
	defer span.End()

	quoted := make([]string, len(missing))
	for i, id := range missing {
		quoted[i] = `"` + id + `"`
	}
	path := fmt.Sprintf("categories?select=id,name,icon,type&id=in.(%s)", url.QueryEscape(strings.Join(quoted, ",")))

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return out, nil
	}

	var rows []supabaseCategory
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	for _, r := range rows {
		cat := domain.Category{Name: r.Name, Icon: r.Icon, Type: r.Type}
		c.categories.Set(r.ID, cat)
		out[r.ID] = cat
	}
	return out, nil
}
