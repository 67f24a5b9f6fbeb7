// Package figma reads design documents from the Figma REST API and
// discovers the frames worth analyzing.
package figma

// Node types that qualify as work items.
const (
	NodeTypeFrame        = "FRAME"
	NodeTypeComponent    = "COMPONENT"
	NodeTypeComponentSet = "COMPONENT_SET"
	NodeTypeSection      = "SECTION"
	NodeTypeCanvas       = "CANVAS"
)

// Node is one element of the document tree.
type Node struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Children []*Node `json:"children,omitempty"`
}

// Document is a design file as returned by /v1/files/{key}.
// The nodes endpoint is normalized into the same shape.
type Document struct {
	Name     string `json:"name"`
	Document *Node  `json:"document"`
}

// FindNode returns the node with the given id, searching depth-first.
func (d *Document) FindNode(id string) *Node {
	if d == nil || d.Document == nil {
		return nil
	}
	return findNode(d.Document, id)
}

func findNode(n *Node, id string) *Node {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if found := findNode(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Pages returns the top-level canvases of the document.
func (d *Document) Pages() []*Node {
	if d == nil || d.Document == nil {
		return nil
	}
	return d.Document.Children
}

func isAnalyzable(nodeType string) bool {
	switch nodeType {
	case NodeTypeFrame, NodeTypeComponent, NodeTypeComponentSet, NodeTypeSection:
		return true
	}
	return false
}
