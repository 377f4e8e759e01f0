package entity

import (
	"sort"
	"strings"
)

// PathSeparator joins the segments of a category path, e.g. Shoes_Running_Trail.
const PathSeparator = "_"

// Category groups products under a hierarchical path
type Category struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CategoryPath string   `json:"categoryPath"`
	Products     []string `json:"products"`
	Version      int64    `json:"version"`
}

// NewCategory builds an unsaved category for path, named after its last segment.
func NewCategory(path string) *Category {
	parts := strings.Split(path, PathSeparator)
	return &Category{
		Name:         parts[len(parts)-1],
		CategoryPath: path,
		Products:     []string{},
	}
}

// IsWithin reports whether the category is path itself or one of its descendants.
func (c *Category) IsWithin(path string) bool {
	return c.CategoryPath == path || strings.HasPrefix(c.CategoryPath, path+PathSeparator)
}

// HasProduct reports whether id is associated with the category.
func (c *Category) HasProduct(id string) bool {
	for _, p := range c.Products {
		if p == id {
			return true
		}
	}
	return false
}

// AddProducts associates ids with the category, ignoring ones already present.
func (c *Category) AddProducts(ids ...string) {
	set := c.productSet()
	for _, id := range ids {
		set[id] = struct{}{}
	}
	c.setProducts(set)
}

// RemoveProducts drops ids from the category.
func (c *Category) RemoveProducts(ids ...string) {
	set := c.productSet()
	for _, id := range ids {
		delete(set, id)
	}
	c.setProducts(set)
}

// Rebase replaces the oldPrefix part of the path with newPrefix. The path must be within oldPrefix.
func (c *Category) Rebase(oldPrefix, newPrefix string) {
	if !c.IsWithin(oldPrefix) {
		return
	}
	c.CategoryPath = newPrefix + strings.TrimPrefix(c.CategoryPath, oldPrefix)
	parts := strings.Split(c.CategoryPath, PathSeparator)
	c.Name = parts[len(parts)-1]
}

func (c *Category) productSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		set[p] = struct{}{}
	}
	return set
}

// setProducts stores the set sorted so documents are stable.
func (c *Category) setProducts(set map[string]struct{}) {
	products := make([]string, 0, len(set))
	for id := range set {
		products = append(products, id)
	}
	sort.Strings(products)
	c.Products = products
}

func (c *Category) GetVersion() int64 { return c.Version }

func (c *Category) SetVersion(v int64) { c.Version = v }

func (c *Category) GetID() string { return c.ID }
