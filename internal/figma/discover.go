package figma

import (
	"log/slog"

	"github.com/raphaelgruber/designscan/internal/models"
)

// DefaultMaxItems bounds discovery on very large files.
const DefaultMaxItems = 200

// Discoverer walks a document and lists analyzable frames.
type Discoverer struct {
	MaxItems int
	Logger   *slog.Logger
}

// Discover lists frames using DefaultMaxItems.
func Discover(doc *Document, rootNodeID string) []models.WorkItem {
	return Discoverer{}.Discover(doc, rootNodeID)
}

// Discover lists analyzable nodes in document order.
// With an empty rootNodeID it scans the direct children of every page.
// Otherwise it walks the subtree below rootNodeID, including the root itself.
// A malformed document or an unknown root yields an empty list.
func (d Discoverer) Discover(doc *Document, rootNodeID string) []models.WorkItem {
	limit := d.MaxItems
	if limit <= 0 {
		limit = DefaultMaxItems
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &collector{seen: make(map[string]bool)}

	if rootNodeID == "" {
		for _, page := range doc.Pages() {
			if page == nil {
				continue
			}
			for _, n := range page.Children {
				c.add(n, page.Name)
			}
		}
	} else {
		root := doc.FindNode(rootNodeID)
		if root == nil {
			logger.Warn("root node not found", "node_id", rootNodeID)
			return []models.WorkItem{}
		}
		c.walk(root, pageOf(doc, rootNodeID))
	}

	if len(c.items) > limit {
		logger.Warn("discovery truncated", "found", len(c.items), "max_items", limit)
		c.items = c.items[:limit]
	}
	return c.items
}

type collector struct {
	items []models.WorkItem
	seen  map[string]bool
}

func (c *collector) add(n *Node, page string) {
	if n == nil || n.ID == "" || !isAnalyzable(n.Type) || c.seen[n.ID] {
		return
	}
	c.seen[n.ID] = true
	c.items = append(c.items, models.WorkItem{
		ID:       n.ID,
		Name:     n.Name,
		PageName: page,
		NodeType: n.Type,
	})
}

func (c *collector) walk(n *Node, page string) {
	if n == nil {
		return
	}
	c.add(n, page)
	for _, child := range n.Children {
		c.walk(child, page)
	}
}

// pageOf returns the name of the page containing id.
func pageOf(doc *Document, id string) string {
	for _, page := range doc.Pages() {
		if page != nil && findNode(page, id) != nil {
			return page.Name
		}
	}
	return ""
}
