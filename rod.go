package pdfcompose

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-pdfcompose/internal/fitting"
	"github.com/alnah/go-pdfcompose/internal/geometry"
	"github.com/alnah/go-pdfcompose/internal/layout"
	"github.com/alnah/go-pdfcompose/internal/process"
)

// renderEngine opens prepared documents in a browser.
type renderEngine interface {
	Open(ctx context.Context, url string, geom geometry.PageGeometry) (renderSession, error)
	Close() error
}

// renderSession is one loaded page: it can be measured, mutated by the
// fitting engine, exported, and must be released exactly once.
type renderSession interface {
	fitting.Document
	ExportPDF(ctx context.Context, geom geometry.PageGeometry) ([]byte, error)
	Release() error
}

// Compile-time interface checks.
var (
	_ renderEngine  = (*rodEngine)(nil)
	_ renderSession = (*rodSession)(nil)
)

// idleTimeout bounds the wait for the page to go idle after load.
const idleTimeout = 2 * time.Second

// rodEngine implements renderEngine with a lazily launched headless Chrome.
// Rod downloads Chromium on first run if none is found.
type rodEngine struct {
	mu         sync.Mutex
	launcher   *launcher.Launcher
	browser    *rod.Browser
	browserBin string
	noSandbox  bool
}

func newRodEngine(cfg composerConfig) *rodEngine {
	return &rodEngine{browserBin: cfg.browserBin, noSandbox: cfg.noSandbox}
}

// ensureBrowser launches and connects to Chrome on first use.
func (e *rodEngine) ensureBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New()

	bin := e.browserBin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// Containers and CI runners cannot use the Chrome sandbox.
	if e.noSandbox || bin != "" || os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		killBrowser(l)
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	e.launcher = l
	e.browser = browser
	return browser, nil
}

// Close shuts the browser down and kills its process group so that no
// renderer or GPU child outlives the composer.
func (e *rodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	killBrowser(e.launcher)
	e.browser = nil
	e.launcher = nil
	return err
}

func killBrowser(l *launcher.Launcher) {
	if l == nil {
		return
	}
	if pid := l.PID(); pid > 0 {
		process.KillProcessGroup(pid)
	}
	l.Kill()
}

// Open creates a page sized to the printable area, emulates print media so
// that measured boxes match the exported layout, and loads url.
func (e *rodEngine) Open(ctx context.Context, url string, geom geometry.PageGeometry) (renderSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}

	s := &rodSession{page: page}
	if err := s.load(ctx, url, geom); err != nil {
		_ = page.Close()
		return nil, err
	}
	return s, nil
}

// rodSession implements renderSession over a single rod page.
type rodSession struct {
	page *rod.Page
}

func (s *rodSession) load(ctx context.Context, url string, geom geometry.PageGeometry) error {
	p := s.page.Context(ctx)

	viewport := &proto.EmulationSetDeviceMetricsOverride{
		Width:             int(math.Round(geom.ContentWidthPx())),
		Height:            int(math.Round(geom.ContentHeightPx)),
		DeviceScaleFactor: 1,
	}
	if err := p.SetViewport(viewport); err != nil {
		return fmt.Errorf("%w: setting viewport: %v", ErrPageLoad, err)
	}
	if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(p); err != nil {
		return fmt.Errorf("%w: emulating print media: %v", ErrPageLoad, err)
	}

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := p.WaitIdle(idleTimeout); err != nil {
		return fmt.Errorf("%w: waiting for idle: %v", ErrPageLoad, err)
	}
	return nil
}

// Release closes the page.
func (s *rodSession) Release() error {
	return s.page.Close()
}

// ExportPDF prints the page on A4 with the request margins.
func (s *rodSession) ExportPDF(ctx context.Context, geom geometry.PageGeometry) ([]byte, error) {
	top, bottom, left, right := geom.Margins.Inches()

	reader, err := s.page.Context(ctx).PDF(&proto.PagePrintToPDF{
		PaperWidth:      floatPtr(geometry.A4WidthInches),
		PaperHeight:     floatPtr(geometry.A4HeightInches),
		MarginTop:       floatPtr(top),
		MarginBottom:    floatPtr(bottom),
		MarginLeft:      floatPtr(left),
		MarginRight:     floatPtr(right),
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return pdf, nil
}

func floatPtr(v float64) *float64 {
	return &v
}

// ---------------------------------------------------------------------------
// Layout probe and tree mutation
// ---------------------------------------------------------------------------

// describeJS is shared by the probe scripts. It tags each described element
// with a stable ID so later mutations can address it.
const describeJS = `
const pcDescribe = (el) => {
  const idAttr = '` + layout.IDAttribute + `';
  const layerSel = '[` + layout.LayerAttribute + `="` + layout.BackgroundLayer + `"]';
  let id = el.getAttribute(idAttr);
  if (!id) {
    const seq = Number(document.documentElement.getAttribute('data-pc-seq') || 0) + 1;
    document.documentElement.setAttribute('data-pc-seq', String(seq));
    id = 'n' + seq;
    el.setAttribute(idAttr, id);
  }
  const r = el.getBoundingClientRect();
  const cs = getComputedStyle(el);
  return {
    id: id,
    tag: el.tagName.toLowerCase(),
    top: r.top + window.scrollY,
    height: r.height,
    display: cs.display,
    visibility: cs.visibility,
    signature: el.hasAttribute('` + layout.SignatureAttribute + `'),
    background: el.matches(layerSel),
    inBackground: el.closest(layerSel) !== null,
  };
};
`

const elementsJS = `() => {` + describeJS + `
  const root = document.getElementById('` + layout.RootID + `') || document.body;
  return JSON.stringify({
    container: pcDescribe(root),
    children: Array.from(root.children).map(pcDescribe),
  });
}`

const imagesJS = `() => {` + describeJS + `
  return JSON.stringify(Array.from(document.images).map(pcDescribe));
}`

const signatureBoxJS = `() => {` + describeJS + `
  const el = document.querySelector('[` + layout.SignatureAttribute + `]:not([data-pc-placement="absolute"])');
  return el ? JSON.stringify(pcDescribe(el)) : '';
}`

const resizeJS = `(id, h) => {
  const el = document.querySelector('[` + layout.IDAttribute + `="' + id + '"]');
  if (!el) throw new Error('element not found: ' + id);
  el.style.height = h + 'px';
  el.style.maxHeight = h + 'px';
  el.style.width = 'auto';
  return true;
}`

// buildBlockJS creates the signature node: image, divider and label, right
// aligned. Its height tracks imageWidth*0.6 plus about 30px of divider and
// label.
const buildBlockJS = `
const pcBlock = (src, imgW, lineW, label) => {
  const block = document.createElement('div');
  block.setAttribute('` + layout.SignatureAttribute + `', '');
  block.style.cssText = 'text-align:right;margin-top:4px;';
  const img = document.createElement('img');
  img.src = src;
  img.style.cssText = 'display:block;margin-left:auto;height:auto;max-width:' + imgW + 'px;max-height:' + (imgW * 0.6) + 'px;';
  const line = document.createElement('div');
  line.style.cssText = 'margin:4px 0 4px auto;border-top:1px solid #000;width:' + lineW + 'px;';
  const text = document.createElement('div');
  text.style.cssText = 'font:12px/16px sans-serif;';
  text.textContent = label;
  block.append(img, line, text);
  return block;
};
`

const insertJS = `(afterId, src, imgW, lineW, label) => {` + buildBlockJS + `
  document.querySelectorAll('[` + layout.SignatureAttribute + `]').forEach((n) => n.remove());
  const anchor = document.querySelector('[` + layout.IDAttribute + `="' + afterId + '"]');
  if (!anchor) throw new Error('anchor not found: ' + afterId);
  const root = document.getElementById('` + layout.RootID + `') || document.body;
  const block = pcBlock(src, imgW, lineW, label);
  if (anchor === root || anchor === document.body) {
    anchor.appendChild(block);
  } else {
    anchor.after(block);
  }
  return true;
}`

const removeJS = `() => {
  document.querySelectorAll('[` + layout.SignatureAttribute + `]').forEach((n) => n.remove());
  return true;
}`

const absoluteJS = `(src, imgW, lineW, label, right, top) => {` + buildBlockJS + `
  document.querySelectorAll('[` + layout.SignatureAttribute + `]').forEach((n) => n.remove());
  const block = pcBlock(src, imgW, lineW, label);
  block.setAttribute('data-pc-placement', 'absolute');
  block.style.position = 'absolute';
  block.style.right = right + 'px';
  block.style.top = top + 'px';
  block.style.marginTop = '0';
  document.body.style.position = 'relative';
  document.body.appendChild(block);
  return true;
}`

// evalString runs js on the page and returns its string result.
func (s *rodSession) evalString(ctx context.Context, js string, args ...interface{}) (string, error) {
	res, err := s.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *rodSession) eval(ctx context.Context, js string, args ...interface{}) error {
	_, err := s.page.Context(ctx).Eval(js, args...)
	return err
}

// Elements reports the root container and its direct children.
func (s *rodSession) Elements(ctx context.Context) (layout.Element, []layout.Element, error) {
	out, err := s.evalString(ctx, elementsJS)
	if err != nil {
		return layout.Element{}, nil, err
	}

	var snapshot struct {
		Container layout.Element   `json:"container"`
		Children  []layout.Element `json:"children"`
	}
	if err := json.Unmarshal([]byte(out), &snapshot); err != nil {
		return layout.Element{}, nil, fmt.Errorf("decoding layout snapshot: %w", err)
	}
	return snapshot.Container, snapshot.Children, nil
}

// Images reports every image in the document, including those inside the
// background layer.
func (s *rodSession) Images(ctx context.Context) ([]layout.Element, error) {
	out, err := s.evalString(ctx, imagesJS)
	if err != nil {
		return nil, err
	}

	var images []layout.Element
	if err := json.Unmarshal([]byte(out), &images); err != nil {
		return nil, fmt.Errorf("decoding image snapshot: %w", err)
	}
	return images, nil
}

// ResizeImage sets an image's rendered height, keeping its aspect ratio.
func (s *rodSession) ResizeImage(ctx context.Context, id string, heightPx float64) error {
	return s.eval(ctx, resizeJS, id, heightPx)
}

// InsertSignature replaces any signature node with an inline block after afterID.
func (s *rodSession) InsertSignature(ctx context.Context, afterID string, b fitting.Block) error {
	return s.eval(ctx, insertJS, afterID, b.ImageData, b.ImageMaxWidthPx, b.LineWidthPx, b.LabelText)
}

// SignatureBox reports the inline signature node.
func (s *rodSession) SignatureBox(ctx context.Context) (layout.Box, bool, error) {
	out, err := s.evalString(ctx, signatureBoxJS)
	if err != nil {
		return layout.Box{}, false, err
	}
	if out == "" {
		return layout.Box{}, false, nil
	}

	var el layout.Element
	if err := json.Unmarshal([]byte(out), &el); err != nil {
		return layout.Box{}, false, fmt.Errorf("decoding signature box: %w", err)
	}
	return el.Box(), true, nil
}

// RemoveSignature removes every signature node.
func (s *rodSession) RemoveSignature(ctx context.Context) error {
	return s.eval(ctx, removeJS)
}

// PlaceAbsolute positions the signature block at document coordinates.
func (s *rodSession) PlaceAbsolute(ctx context.Context, b fitting.Block, a fitting.Anchor) error {
	return s.eval(ctx, absoluteJS, b.ImageData, b.ImageMaxWidthPx, b.LineWidthPx, b.LabelText, a.RightPx, a.TopPx)
}
