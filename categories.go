package taskdesk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/courtregistry/taskdesk/permission"
)

type categoryListEnvelope struct {
	Data []Category `json:"data"`
}

// CategoryTree returns the category hierarchy as nested by the backend.
func (c *Client) CategoryTree(ctx context.Context) ([]Category, error) {
	return c.categories(ctx, "/categories/tree")
}

// Categories returns every category as a flat list.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	return c.categories(ctx, "/categories/get")
}

func (c *Client) categories(ctx context.Context, path string) ([]Category, error) {
	if err := c.require(ctx, permission.CategoriesRead); err != nil {
		return nil, err
	}

	var out categoryListEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path}, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []Category{}
	}
	return out.Data, nil
}

// CreateCategory adds a category, nested under ParentID when set.
func (c *Client) CreateCategory(ctx context.Context, in NewCategory) (*Category, error) {
	if err := c.require(ctx, permission.CategoriesManage); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidRequest)
	}

	var out struct {
		Data Category `json:"data"`
	}
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/categories/category", JSON: in}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// DeleteCategory removes a category.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	if err := c.require(ctx, permission.CategoriesManage); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: category id is required", ErrInvalidRequest)
	}
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: "/categories/delete/" + url.PathEscape(id)}, nil)
}

// BuildCategoryTree nests a flat category list by ParentID. Categories whose
// parent is missing from flat become roots, as does one member of every
// parent cycle. Siblings are ordered by name. Children already present on the
// input are discarded.
func BuildCategoryTree(flat []Category) []Category {
	parentOf := make(map[string]string, len(flat))
	known := make(map[string]bool, len(flat))
	for _, cat := range flat {
		known[cat.ID] = true
	}
	for _, cat := range flat {
		if cat.ParentID != nil && *cat.ParentID != cat.ID && known[*cat.ParentID] {
			parentOf[cat.ID] = *cat.ParentID
		}
	}
	for _, cat := range flat {
		if inParentCycle(parentOf, cat.ID, len(flat)) {
			delete(parentOf, cat.ID)
		}
	}

	roots := []Category{}
	byParent := make(map[string][]Category, len(flat))
	for _, cat := range flat {
		cat.Children = nil
		if parent, ok := parentOf[cat.ID]; ok {
			byParent[parent] = append(byParent[parent], cat)
			continue
		}
		roots = append(roots, cat)
	}

	var attach func(nodes []Category) []Category
	attach = func(nodes []Category) []Category {
		sortCategories(nodes)
		for i := range nodes {
			if kids := byParent[nodes[i].ID]; len(kids) > 0 {
				nodes[i].Children = attach(append([]Category(nil), kids...))
			}
		}
		return nodes
	}
	return attach(roots)
}

func inParentCycle(parentOf map[string]string, id string, limit int) bool {
	cur := id
	for i := 0; i < limit; i++ {
		next, ok := parentOf[cur]
		if !ok {
			return false
		}
		if next == id {
			return true
		}
		cur = next
	}
	return false
}

func sortCategories(cats []Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		a, b := strings.ToLower(cats[i].Name), strings.ToLower(cats[j].Name)
		if a != b {
			return a < b
		}
		return cats[i].ID < cats[j].ID
	})
}
