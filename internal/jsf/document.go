package jsf

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Document wraps a parsed HTML tree. The remote's markup is uncontrolled, so
// every lookup returns found/not-found instead of failing.
type Document struct {
	root *html.Node
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) Root() *html.Node { return d.root }

// Find returns the first node, in document order, matching pred.
func (d *Document) Find(pred func(*html.Node) bool) *html.Node {
	return FindNode(d.root, pred)
}

func (d *Document) FindAll(pred func(*html.Node) bool) []*html.Node {
	return FindAllNodes(d.root, pred)
}

func (d *Document) ByID(id string) *html.Node {
	return d.Find(func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "id") == id
	})
}

func FindNode(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	if pred(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindNode(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func FindAllNodes(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	if root == nil {
		return out
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func HasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func ClassContains(n *html.Node, fragment string) bool {
	return strings.Contains(Attr(n, "class"), fragment)
}

// Text concatenates the trimmed text content below n.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(node.Data))
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return sb.String()
}

// Ancestor walks up from n to the nearest enclosing element with the tag.
func Ancestor(n *html.Node, tag string) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if IsElement(p, tag) {
			return p
		}
	}
	return nil
}

// ChildElements returns the direct element children of n with the tag.
func ChildElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c, tag) {
			out = append(out, c)
		}
	}
	return out
}

// Strategy is one named way to locate a control id in a document. Strategies
// are ranked: the first one that finds anything wins.
type Strategy struct {
	Name   string
	Locate func(root *html.Node) (string, bool)
}

func Locate(root *html.Node, strategies ...Strategy) (string, string, bool) {
	for _, s := range strategies {
		if id, ok := s.Locate(root); ok && id != "" {
			return id, s.Name, true
		}
	}
	return "", "", false
}

// FormState snapshots every current field of the named form the way a browser
// would submit it: text and hidden inputs as-is, checkboxes and radios only
// when checked, selects by their selected option. It must be taken fresh
// before every dependent POST; the embedded view token rotates per request.
func (d *Document) FormState(formID string) url.Values {
	values := url.Values{}
	form := d.ByID(formID)
	if form == nil {
		return values
	}
	for _, n := range FindAllNodes(form, func(n *html.Node) bool {
		return IsElement(n, "input") || IsElement(n, "select") || IsElement(n, "textarea")
	}) {
		name := Attr(n, "name")
		if name == "" {
			continue
		}
		switch n.Data {
		case "input":
			kind := Attr(n, "type")
			if kind == "checkbox" || kind == "radio" {
				if !HasAttr(n, "checked") {
					continue
				}
			}
			values.Set(name, Attr(n, "value"))
		case "textarea":
			values.Set(name, Text(n))
		case "select":
			selected := FindNode(n, func(o *html.Node) bool {
				return IsElement(o, "option") && HasAttr(o, "selected")
			})
			if selected != nil {
				values.Set(name, Attr(selected, "value"))
			} else {
				values.Set(name, "")
			}
		}
	}
	return values
}
