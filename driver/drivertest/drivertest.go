// Package drivertest provides an in-memory driver.Page for tests.
//
// The page holds a flat list of elements addressed by exact selector
// strings. Tests arrange elements and click reactions; the page records
// navigations, fills, clicks and evaluated scripts.
package drivertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/networkteam/pageprobe/driver"
)

const pollInterval = 5 * time.Millisecond

// Element is a fake DOM element.
type Element struct {
	Selector string
	Text     string
	Value    string
	Visible  bool
	Rect     driver.Rect

	// OnClick runs when the element is clicked, e.g. to hide a panel.
	OnClick func(p *Page)
}

// Page is a fake driver.Page. It is safe for concurrent use.
type Page struct {
	mu       sync.Mutex
	elements []*Element
	aliases  map[string]*Element

	// EvaluateFunc answers scripts. Nil returns (nil, nil).
	EvaluateFunc func(script string) (any, error)
	// GotoFunc can fail navigations. Nil accepts every URL.
	GotoFunc func(url string) error
	// ScreenshotErr fails screenshots.
	ScreenshotErr error

	URLs     []string
	Scripts  []string
	Clicks   []string
	Viewport [2]int
	Reloads  int
	Closed   bool

	consoleHandlers []func(driver.ConsoleMessage)
}

// NewPage creates a page with the given elements.
func NewPage(elements ...*Element) *Page {
	return &Page{
		elements: elements,
		aliases:  make(map[string]*Element),
	}
}

// Add appends elements to the page.
func (p *Page) Add(elements ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append(p.elements, elements...)
}

// Update changes the first element matching selector. It panics if there is none.
func (p *Page) Update(selector string, fn func(el *Element)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := p.find(selector)
	if el == nil {
		panic(fmt.Sprintf("drivertest: no element %s", selector))
	}
	fn(el)
}

// Remove detaches all elements matching selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.elements[:0]
	for _, el := range p.elements {
		if el.Selector != selector {
			kept = append(kept, el)
		}
	}
	p.elements = kept
}

// Emit sends a console message to registered handlers.
func (p *Page) Emit(msg driver.ConsoleMessage) {
	p.mu.Lock()
	handlers := append([]func(driver.ConsoleMessage){}, p.consoleHandlers...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

// Must be called with lock held.
func (p *Page) find(selector string) *Element {
	if el, ok := p.aliases[selector]; ok {
		return el
	}
	for _, el := range p.elements {
		if el.Selector == selector {
			return el
		}
	}
	return nil
}

// await polls cond until it returns true or ctx is done.
func (p *Page) await(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		ok := cond()
		p.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return driver.ContextError(ctx)
		case <-ticker.C:
		}
	}
}

// visible waits for a visible element and returns it.
func (p *Page) visible(ctx context.Context, selector string) (*Element, error) {
	var found *Element
	err := p.await(ctx, func() bool {
		found = p.find(selector)
		return found != nil && found.Visible
	})
	return found, err
}

// attached waits for an element and returns it.
func (p *Page) attached(ctx context.Context, selector string) (*Element, error) {
	var found *Element
	err := p.await(ctx, func() bool {
		found = p.find(selector)
		return found != nil
	})
	return found, err
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return driver.ContextError(ctx)
	}
	p.mu.Lock()
	p.URLs = append(p.URLs, url)
	gotoFunc := p.GotoFunc
	p.mu.Unlock()
	if gotoFunc != nil {
		if err := gotoFunc(url); err != nil {
			return fmt.Errorf("%w: %s: %w", driver.ErrNavigation, url, err)
		}
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Reloads++
	return nil
}

func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Viewport = [2]int{width, height}
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	el, err := p.visible(ctx, selector)
	if err != nil {
		return err
	}
	p.mu.Lock()
	el.Value = value
	p.mu.Unlock()
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.visible(ctx, selector)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.Clicks = append(p.Clicks, selector)
	onClick := el.OnClick
	p.mu.Unlock()
	if onClick != nil {
		onClick(p)
	}
	return nil
}

func (p *Page) WaitFor(ctx context.Context, selector string, state driver.WaitState) error {
	return p.await(ctx, func() bool {
		el := p.find(selector)
		switch state {
		case driver.StateAttached:
			return el != nil
		case driver.StateDetached:
			return el == nil
		case driver.StateHidden:
			return el == nil || !el.Visible
		default:
			return el != nil && el.Visible
		}
	})
}

func (p *Page) Evaluate(ctx context.Context, script string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, driver.ContextError(ctx)
	}
	p.mu.Lock()
	p.Scripts = append(p.Scripts, script)
	fn := p.EvaluateFunc
	p.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(script)
}

func (p *Page) InnerText(ctx context.Context, selector string) (string, error) {
	el, err := p.attached(ctx, selector)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return el.Text, nil
}

func (p *Page) InputValue(ctx context.Context, selector string) (string, error) {
	el, err := p.attached(ctx, selector)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return el.Value, nil
}

func (p *Page) BoundingBox(ctx context.Context, selector string) (driver.Rect, error) {
	el, err := p.attached(ctx, selector)
	if err != nil {
		return driver.Rect{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !el.Visible {
		return driver.Rect{}, fmt.Errorf("%w: %s is not rendered", driver.ErrNotFound, selector)
	}
	return el.Rect, nil
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, driver.ContextError(ctx)
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return PNG(), nil
}

func (p *Page) OnConsole(handler func(driver.ConsoleMessage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consoleHandlers = append(p.consoleHandlers, handler)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// MatchText implements driver.TextMatcher on the element list.
func (p *Page) MatchText(ctx context.Context, q driver.TextQuery, state driver.WaitState, tag string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, driver.ContextError(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var candidates []*Element
	for _, el := range p.elements {
		switch {
		case q.Selector != "":
			if el.Selector == q.Selector && driver.ContainsText(el.Text, q.HasText) {
				candidates = append(candidates, el)
			}
		case driver.ContainsText(el.Text, q.Text):
			candidates = append(candidates, el)
		}
	}

	var match *Element
	for _, el := range candidates {
		if el.Visible || (state != driver.StateVisible && state != driver.StateHidden) {
			match = el
			break
		}
	}

	if match != nil && tag != "" {
		p.aliases[driver.TargetSelector(tag)] = match
	}

	switch state {
	case driver.StateHidden, driver.StateDetached:
		return match == nil, nil
	default:
		return match != nil, nil
	}
}

// Get returns a copy of the first element matching selector.
func (p *Page) Get(selector string) (Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := p.find(selector)
	if el == nil {
		return Element{}, false
	}
	return *el, true
}

// PNG returns a tiny valid PNG image.
func PNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// Browser is a fake driver.Browser serving a single page.
type Browser struct {
	Page *Page

	// ScriptTextQueries hides Page's MatchText, so text queries are
	// evaluated by script as with drivers lacking a TextMatcher.
	ScriptTextQueries bool

	mu         sync.Mutex
	Closed     bool
	PageOpts   []driver.PageOptions
	NewPageErr error
}

func (b *Browser) NewPage(ctx context.Context, opts driver.PageOptions) (driver.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.PageOpts = append(b.PageOpts, opts)
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	if b.ScriptTextQueries {
		return scriptPage{b.Page}, nil
	}
	return b.Page, nil
}

// scriptPage exposes only the driver.Page methods of the wrapped page.
type scriptPage struct {
	driver.Page
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (b *Browser) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Closed
}

// Launcher hands out browsers from NewBrowser and records every launch.
type Launcher struct {
	mu       sync.Mutex
	Browsers []*Browser
	Options  []driver.LaunchOptions
	Err      error

	NewBrowser func() *Browser
}

// NewLauncher creates a launcher serving a fresh browser around page for every launch.
func NewLauncher(page *Page) *Launcher {
	return &Launcher{
		NewBrowser: func() *Browser { return &Browser{Page: page} },
	}
}

// Launch implements driver.Launcher.
func (l *Launcher) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Options = append(l.Options, opts)
	if l.Err != nil {
		return nil, l.Err
	}
	b := l.NewBrowser()
	l.Browsers = append(l.Browsers, b)
	return b, nil
}

// Launches returns the browsers launched so far.
func (l *Launcher) Launches() []*Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Browser{}, l.Browsers...)
}

// ErrBoom is a generic error for failure injection.
var ErrBoom = errors.New("boom")

var (
	_ driver.Page        = (*Page)(nil)
	_ driver.TextMatcher = (*Page)(nil)
	_ driver.Browser     = (*Browser)(nil)
	_ driver.Launcher    = new(Launcher).Launch
)
