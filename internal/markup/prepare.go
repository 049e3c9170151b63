package markup

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-pdfcompose/internal/layout"
)

// ErrPrepare indicates the document could not be parsed or rendered back.
var ErrPrepare = errors.New("document preparation failed")

// Watermark defaults.
const (
	DefaultWatermarkColor   = "#888888"
	DefaultWatermarkOpacity = 0.1
	DefaultWatermarkAngle   = -45.0
)

const watermarkFontSize = "8rem"

var hexColorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// IsHexColor reports whether s is a #rgb or #rrggbb color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// Watermark is diagonal text drawn behind the content on every page.
type Watermark struct {
	Text    string
	Color   string
	Opacity float64
	Angle   float64
}

// Options controls document preparation.
type Options struct {
	Title     string
	Watermark *Watermark

	// BaseDir, when set, turns relative img src and a href paths into
	// file:// URLs under it. Paths escaping BaseDir are left untouched.
	BaseDir string
}

const baseCSS = `
html, body { margin: 0; padding: 0; }
#` + layout.RootID + ` { display: flow-root; }
#` + layout.RootID + ` img { max-width: 100%; }
[` + layout.SignatureAttribute + `] { break-inside: avoid; page-break-inside: avoid; }
[` + layout.LayerAttribute + `="` + layout.BackgroundLayer + `"] {
  position: fixed;
  top: 0; right: 0; bottom: 0; left: 0;
  z-index: -1;
  pointer-events: none;
  overflow: hidden;
}
`

// Prepare parses content as an HTML document or fragment and returns a full
// document whose body content sits inside the root container. An existing
// element with the root ID is kept as the container.
func Prepare(content string, opts Options) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrepare, err)
	}

	head := findElement(doc, atom.Head)
	body := findElement(doc, atom.Body)
	if head == nil || body == nil {
		return "", fmt.Errorf("%w: document has no head or body", ErrPrepare)
	}

	ensureDoctype(doc)
	ensureCharset(head)
	if opts.Title != "" {
		setTitle(head, opts.Title)
	}
	wrapRoot(body)

	css := baseCSS
	if opts.Watermark != nil && opts.Watermark.Text != "" {
		css += buildWatermarkCSS(opts.Watermark)
		body.InsertBefore(watermarkLayer(opts.Watermark.Text), body.FirstChild)
	}
	head.AppendChild(styleElement(css))

	if opts.BaseDir != "" {
		absDir, err := filepath.Abs(opts.BaseDir)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPrepare, err)
		}
		rewriteNode(doc, absDir)
	}

	var buf strings.Builder
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrepare, err)
	}
	return buf.String(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// ensureDoctype keeps Chrome out of quirks mode, which changes box metrics.
func ensureDoctype(doc *html.Node) {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.DoctypeNode {
			return
		}
	}
	doc.InsertBefore(&html.Node{Type: html.DoctypeNode, Data: "html"}, doc.FirstChild)
}

func ensureCharset(head *html.Node) {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Meta && attr(c, "charset") != "" {
			return
		}
	}
	meta := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Meta,
		Data:     "meta",
		Attr:     []html.Attribute{{Key: "charset", Val: "utf-8"}},
	}
	head.InsertBefore(meta, head.FirstChild)
}

func setTitle(head *html.Node, title string) {
	t := findElement(head, atom.Title)
	if t == nil {
		t = &html.Node{Type: html.ElementNode, DataAtom: atom.Title, Data: "title"}
		head.AppendChild(t)
	}
	for c := t.FirstChild; c != nil; {
		next := c.NextSibling
		t.RemoveChild(c)
		c = next
	}
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

// wrapRoot moves every body child into a new root container unless one
// already exists.
func wrapRoot(body *html.Node) {
	if findByID(body, layout.RootID) != nil {
		return
	}

	root := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr:     []html.Attribute{{Key: "id", Val: layout.RootID}},
	}
	for c := body.FirstChild; c != nil; {
		next := c.NextSibling
		body.RemoveChild(c)
		root.AppendChild(c)
		c = next
	}
	body.AppendChild(root)
}

func styleElement(css string) *html.Node {
	style := &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	return style
}

func watermarkLayer(text string) *html.Node {
	layer := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr: []html.Attribute{
			{Key: "class", Val: "pc-watermark"},
			{Key: layout.LayerAttribute, Val: layout.BackgroundLayer},
			{Key: "aria-hidden", Val: "true"},
		},
	}
	span := &html.Node{Type: html.ElementNode, DataAtom: atom.Span, Data: "span"}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: breakURLPattern(text)})
	layer.AppendChild(span)
	return layer
}

// buildWatermarkCSS styles the watermark layer. Invalid colors fall back to
// the default so that nothing but a hex value reaches the stylesheet.
func buildWatermarkCSS(w *Watermark) string {
	color := w.Color
	if !IsHexColor(color) {
		color = DefaultWatermarkColor
	}
	opacity := w.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = DefaultWatermarkOpacity
	}

	return fmt.Sprintf(`
.pc-watermark span {
  position: absolute;
  top: 50%%;
  left: 50%%;
  transform: translate(-50%%, -50%%) rotate(%.1fdeg);
  font-size: %s;
  font-weight: bold;
  color: %s;
  opacity: %.2f;
  white-space: nowrap;
  font-family: sans-serif;
}
`, w.Angle, watermarkFontSize, color, opacity)
}

// breakURLPattern swaps dots for ONE DOT LEADER (U+2024) so PDF viewers do
// not turn watermark text into links.
func breakURLPattern(text string) string {
	return strings.ReplaceAll(text, ".", "\u2024")
}

func rewriteNode(n *html.Node, baseDir string) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Img:
			rewriteAttr(n, "src", baseDir)
		case atom.A:
			rewriteAttr(n, "href", baseDir)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteNode(c, baseDir)
	}
}

func rewriteAttr(n *html.Node, key, baseDir string) {
	for i, a := range n.Attr {
		if a.Key != key || !isRelativePath(a.Val) {
			continue
		}
		absPath := filepath.Join(baseDir, a.Val)
		if !isPathUnderDir(absPath, baseDir) {
			continue
		}
		n.Attr[i].Val = (&url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}).String()
	}
}

func isRelativePath(path string) bool {
	if path == "" || strings.HasPrefix(path, "#") || strings.HasPrefix(path, "//") {
		return false
	}
	for _, scheme := range []string{"http://", "https://", "file://", "data:", "mailto:"} {
		if strings.HasPrefix(path, scheme) {
			return false
		}
	}
	return !filepath.IsAbs(path)
}

func isPathUnderDir(absPath, dir string) bool {
	cleanDir := filepath.Clean(dir)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(filepath.Clean(absPath)+string(filepath.Separator), cleanDir)
}
