package model

// Category is a node of the platform's category tree.
type Category struct {
	ID       string     `json:"categoryId"`
	Name     string     `json:"name"`
	Level    int        `json:"level"`
	ParentID *string    `json:"parentId,omitempty"`
	Children []Category `json:"children,omitempty"`
}

// Leaves returns the categories without children, depth first.
// Master items may only reference leaf categories.
func (c Category) Leaves() []Category {
	if len(c.Children) == 0 {
		return []Category{c}
	}
	var out []Category
	for _, child := range c.Children {
		out = append(out, child.Leaves()...)
	}
	return out
}
