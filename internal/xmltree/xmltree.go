// Package xmltree holds the small set of tree operations the merge engine
// needs on top of etree: parse, structural query by path, standalone node
// serialization, ordered insertion among siblings and indented output.
package xmltree

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Parse reads an XML document from text. A document without a root
// element is rejected.
func Parse(text string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}

	return doc, nil
}

// Children returns the child elements of parent whose unprefixed tag is one
// of tags, in document order.
func Children(parent *etree.Element, tags ...string) []*etree.Element {
	if parent == nil {
		return nil
	}

	var out []*etree.Element
	for _, child := range parent.ChildElements() {
		if child.Space != "" {
			continue
		}
		for _, tag := range tags {
			if child.Tag == tag {
				out = append(out, child)

				break
			}
		}
	}

	return out
}

// Child returns the first child element of parent with the given tag.
func Child(parent *etree.Element, tag string) *etree.Element {
	if kids := Children(parent, tag); len(kids) > 0 {
		return kids[0]
	}

	return nil
}

// Find walks a slash separated path below root. Every step matches all
// children with that tag; the last step may list alternatives with "|".
// Results keep document order.
func Find(root *etree.Element, path string) []*etree.Element {
	steps := strings.Split(path, "/")
	current := []*etree.Element{root}

	for _, step := range steps {
		tags := strings.Split(step, "|")
		var next []*etree.Element
		for _, el := range current {
			next = append(next, Children(el, tags...)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}

	return current
}

// Comments returns the text of every comment directly below parent.
func Comments(parent *etree.Element) []string {
	if parent == nil {
		return nil
	}

	var out []string
	for _, tok := range parent.Child {
		if c, ok := tok.(*etree.Comment); ok {
			out = append(out, c.Data)
		}
	}

	return out
}

// String serializes a single element, detached from its document.
func String(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())

	s, err := doc.WriteToString()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(s), nil
}

// ParseElement parses a serialized element back into a detached element.
func ParseElement(text string) (*etree.Element, error) {
	doc, err := Parse(text)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	doc.RemoveChild(root)

	return root, nil
}

// EnsureChild returns the child of parent named tag, creating it when
// missing. A created child is placed before the first existing sibling that
// ranks later in order, so sibling order keeps following order regardless of
// which siblings were already there. Siblings not named in order are
// ignored when choosing the position.
func EnsureChild(parent *etree.Element, tag string, order []string) *etree.Element {
	if existing := Child(parent, tag); existing != nil {
		return existing
	}

	el := etree.NewElement(tag)
	InsertOrdered(parent, el, order)

	return el
}

// InsertOrdered inserts el under parent at the position implied by order.
func InsertOrdered(parent, el *etree.Element, order []string) {
	rank := indexOf(order, el.Tag)
	if rank >= 0 {
		for _, sibling := range parent.ChildElements() {
			r := indexOf(order, sibling.Tag)
			if r > rank && sibling.Space == "" {
				parent.InsertChildAt(sibling.Index(), el)

				return
			}
		}
	}

	parent.AddChild(el)
}

// Serialize indents doc with two spaces per level and writes it out.
// Whitespace-only text between elements is replaced, so repeated calls on
// the same tree produce identical output.
func Serialize(doc *etree.Document) (string, error) {
	doc.Indent(2)

	return doc.WriteToString()
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}

	return -1
}

const (
	commentOpen  = "<!--"
	commentClose = "-->"
)

// CommentString serializes comment data as a standalone comment node.
func CommentString(data string) string {
	return commentOpen + data + commentClose
}

// IsComment reports whether a serialized node is a comment.
func IsComment(node string) bool {
	node = strings.TrimSpace(node)

	return strings.HasPrefix(node, commentOpen) && strings.HasSuffix(node, commentClose)
}

// AppendNode parses a serialized element or comment and appends it to
// parent.
func AppendNode(parent *etree.Element, node string) error {
	if IsComment(node) {
		node = strings.TrimSpace(node)
		parent.CreateComment(node[len(commentOpen) : len(node)-len(commentClose)])

		return nil
	}

	el, err := ParseElement(node)
	if err != nil {
		return err
	}
	parent.AddChild(el)

	return nil
}
