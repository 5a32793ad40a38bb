package cache

import "encoding/json"

// Category is one node of the category tree. A node owns its children; the
// parent reference is a non-owning back-pointer used for lookup and removal
// only.
type Category struct {
	Name     string      `json:"name"`
	Children []*Category `json:"children,omitempty"`
	Problems []int       `json:"problems,omitempty"`

	parent *Category
}

// Parent returns the owning node, nil for a root.
func (c *Category) Parent() *Category {
	return c.parent
}

// AddChild appends child and takes ownership of it.
func (c *Category) AddChild(child *Category) {
	child.parent = c
	c.Children = append(c.Children, child)
}

// Child returns the direct child with the given name, or nil.
func (c *Category) Child(name string) *Category {
	for _, ch := range c.Children {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

// RemoveChild removes the direct child with the given name and reports
// whether a node was removed.
func (c *Category) RemoveChild(name string) bool {
	for i, ch := range c.Children {
		if ch.Name == name {
			ch.parent = nil
			c.Children = append(c.Children[:i], c.Children[i+1:]...)
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes a category subtree and restores the parent
// back-references the wire format omits.
func (c *Category) UnmarshalJSON(data []byte) error {
	type category Category
	if err := json.Unmarshal(data, (*category)(c)); err != nil {
		return err
	}
	c.link()
	return nil
}

func (c *Category) link() {
	for _, ch := range c.Children {
		ch.parent = c
	}
}
