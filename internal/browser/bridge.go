package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"webconcolic/internal/driver"
	"webconcolic/internal/expr"
	"webconcolic/internal/logging"
	"webconcolic/internal/solver"
	"webconcolic/internal/trace"
	"webconcolic/internal/tracebuild"
)

// Config holds the browser bridge's connection and page settings: no
// multi-session store, one page per driver iteration.
type Config struct {
	DebuggerURL         string         `json:"debugger_url"`
	Launch              []string       `json:"launch"`
	Headless            bool           `json:"headless"`
	ViewportWidth       int            `json:"viewport_width"`
	ViewportHeight      int            `json:"viewport_height"`
	NavigationTimeoutMs int            `json:"navigation_timeout_ms"`
	PollIntervalMs      int            `json:"poll_interval_ms"`
	IndicatorWords      []string       `json:"indicator_words"`
	PresetCookies       []PresetCookie `json:"preset_cookies"`
}

// PresetCookie is one cookie the driver installs before the page loads.
type PresetCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1280,
		ViewportHeight:      960,
		NavigationTimeoutMs: 30000,
		PollIntervalMs:      50,
	}
}

func (c Config) viewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

func (c Config) viewportHeight() int {
	if c.ViewportHeight == 0 {
		return 960
	}
	return c.ViewportHeight
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

func (c Config) pollInterval() time.Duration {
	if c.PollIntervalMs == 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Bridge implements driver.Browser over a single detached Chrome instance:
// one page per iteration, reporting its event stream as it happens. The
// target page is assumed to carry its own symbolic-execution instrumentation
// and to mirror its events into `window.__concolicEvents` in the wire shape
// decoded by decodeBufferedEvent below — the bridge's only job is to ferry
// that ordered buffer, plus the CDP-native navigation/dialog signals, into a
// tracebuild.Event channel.
type Bridge struct {
	cfg        Config
	honeypot   *HoneypotDetector
	mu         sync.Mutex
	rodBrowser *rod.Browser
	controlURL string
}

// New returns a Bridge ready to Start.
func New(cfg Config) *Bridge {
	return &Bridge{cfg: cfg, honeypot: NewHoneypotDetector()}
}

var _ driver.Browser = (*Bridge)(nil)

// Start connects to an existing Chrome (DebuggerURL) or launches one,
// grounded on SessionManager.Start's connect-or-launch-with-fallback logic.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rodBrowser != nil {
		if _, err := b.rodBrowser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		_ = b.rodBrowser.Close()
		b.rodBrowser = nil
		b.controlURL = ""
	}

	controlURL := b.cfg.DebuggerURL
	if controlURL == "" && len(b.cfg.Launch) > 0 {
		bin := b.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(b.cfg.Headless)
		for _, rawFlag := range b.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}
	if controlURL == "" {
		url, err := launcher.New().Headless(b.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	rb := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	b.rodBrowser = rb
	b.controlURL = controlURL
	logging.Browser("connected: %s", controlURL)
	return nil
}

// Shutdown closes the underlying browser.
func (b *Bridge) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rodBrowser == nil {
		return nil
	}
	err := b.rodBrowser.Close()
	b.rodBrowser = nil
	b.controlURL = ""
	return err
}

func (b *Bridge) ensureStarted(ctx context.Context) error {
	b.mu.Lock()
	started := b.rodBrowser != nil
	b.mu.Unlock()
	if started {
		return nil
	}
	return b.Start(ctx)
}

// Run opens a fresh incognito page, applies actions, and streams events
// until the page reports endOfExecution or the context is cancelled. It
// satisfies driver.Browser.
func (b *Bridge) Run(ctx context.Context, url string, actions []driver.InjectAction) (<-chan tracebuild.Event, error) {
	if err := b.ensureStarted(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	rb := b.rodBrowser
	b.mu.Unlock()
	if rb == nil {
		return nil, fmt.Errorf("browser: not connected")
	}

	incognito, err := rb.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width: b.cfg.viewportWidth(), Height: b.cfg.viewportHeight(), DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}
	b.applyPresetCookies(page)

	sessionID := uuid.NewString()
	logging.Browser("session %s: incognito page created for %s", sessionID, url)

	events := make(chan tracebuild.Event, 64)
	go b.stream(ctx, sessionID, page, url, actions, events)
	return events, nil
}

func (b *Bridge) applyPresetCookies(page *rod.Page) {
	if len(b.cfg.PresetCookies) == 0 {
		return
	}
	params := make([]*proto.NetworkCookieParam, 0, len(b.cfg.PresetCookies))
	for _, c := range b.cfg.PresetCookies {
		params = append(params, &proto.NetworkCookieParam{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	_ = page.SetCookies(params)
}

// stream runs for the lifetime of one iteration: navigate, install the
// instrumentation bridge, inject, drain CDP navigation/dialog events and the
// polled event buffer, until endOfExecution or ctx cancellation, then close
// events. Modeled on SessionManager.startEventStream's goroutine-plus-
// EachEvent-plus-ticker shape.
func (b *Bridge) stream(ctx context.Context, sessionID string, page *rod.Page, url string, actions []driver.InjectAction, events chan<- tracebuild.Event) {
	defer close(events)
	defer page.Close()
	defer logging.Browser("session %s: closed", sessionID)

	if err := page.Context(ctx).Timeout(b.cfg.navigationTimeout()).Navigate(url); err != nil {
		logging.BrowserWarn("session %s: navigate %s failed: %v", sessionID, url, err)
		return
	}
	_ = page.Context(ctx).WaitLoad()
	events <- tracebuild.Event{Kind: tracebuild.EventPageLoad, URL: url}

	b.installInstrumentation(page)
	b.injectActions(page, actions)

	waitDialog := page.Context(ctx).EachEvent(func(ev *proto.PageJavascriptDialogOpening) {
		events <- tracebuild.Event{Kind: tracebuild.EventAlert, Message: ev.Message}
	})
	go waitDialog()

	_ = proto.PageSetBypassCSP{Enabled: true}.Call(page)

	ticker := time.NewTicker(b.cfg.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			buffered, done := b.drainBuffer(ctx, page)
			for _, ev := range buffered {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
			if done {
				return
			}
		}
	}
}

// installInstrumentation wires the page's event buffer and a DOM-mutation
// indicator-word counter, a generic buffer the instrumented page itself
// appends structured trace events to.
func (b *Bridge) installInstrumentation(page *rod.Page) {
	words := make([]string, len(b.cfg.IndicatorWords))
	copy(words, b.cfg.IndicatorWords)

	_, _ = page.Evaluate(&rod.EvalOptions{
		JS: `
		(indicatorWords) => {
			const w = window;
			if (w.__concolicHooked) return true;
			w.__concolicHooked = true;
			w.__concolicEvents = [];
			w.__concolicTrace = (ev) => { w.__concolicEvents.push(ev); };

			const counts = {};
			(indicatorWords || []).forEach((word, i) => { counts[i] = 0; });
			const obs = new MutationObserver((mutations) => {
				let amount = 0;
				const hit = {};
				mutations.forEach((m) => {
					m.addedNodes.forEach((node) => {
						const text = (node.textContent || '').toLowerCase();
						if (!text) return;
						amount += 1;
						(indicatorWords || []).forEach((word, i) => {
							if (word && text.includes(word.toLowerCase())) {
								hit[i] = (hit[i] || 0) + 1;
							}
						});
					});
				});
				if (amount > 0) {
					w.__concolicTrace({ kind: 'domModification', amount, words: hit });
				}
			});
			obs.observe(document.documentElement || document.body, { childList: true, subtree: true });
			return true;
		}
		`,
		JSArgs:       []interface{}{words},
		ByValue:      true,
		AwaitPromise: true,
	})
}

// injectActions writes each action's value into its named field, skipping
// (and logging) any field the honeypot detector flags — a value the driver
// solved for a decoy field would never correspond to anything a real
// browsing user could produce.
func (b *Bridge) injectActions(page *rod.Page, actions []driver.InjectAction) {
	for _, a := range actions {
		selector := fmt.Sprintf(`[name=%q], #%s`, a.Variable, a.Variable)
		if hp, reasons, err := b.honeypot.IsHoneypot(page, selector); err == nil && hp {
			logging.BrowserWarn("skipping injection into honeypot field %q: %v", a.Variable, reasons)
			continue
		}
		el, err := page.Element(selector)
		if err != nil {
			logging.BrowserWarn("injection target %q not found: %v", a.Variable, err)
			continue
		}
		if err := setFieldValue(el, a); err != nil {
			logging.BrowserWarn("injection into %q failed: %v", a.Variable, err)
		}
	}
}

func setFieldValue(el *rod.Element, a driver.InjectAction) error {
	switch a.Value.Kind {
	case solver.KindBool:
		checked, err := el.Property("checked")
		if err != nil {
			return err
		}
		want := a.Value.Bool
		if checked.Bool() != want {
			return el.Click(proto.InputMouseButtonLeft, 1)
		}
		return nil
	case solver.KindString:
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
		return el.Input(a.Value.Str)
	default: // solver.KindInt
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
		return el.Input(fmt.Sprintf("%d", a.Value.Int))
	}
}

// bufferedEvent is the wire shape the instrumented page appends to
// window.__concolicEvents via window.__concolicTrace.
type bufferedEvent struct {
	Kind    string          `json:"kind"`
	URL     string          `json:"url,omitempty"`
	Cond    json.RawMessage `json:"condition,omitempty"`
	Taken   bool            `json:"taken,omitempty"`
	Name    string          `json:"name,omitempty"`
	Message string          `json:"message,omitempty"`
	Amount  float64         `json:"amount,omitempty"`
	Words   map[string]int  `json:"words,omitempty"`
	Label   string          `json:"label,omitempty"`
	Index   string          `json:"index,omitempty"`
}

// drainBuffer reads and clears window.__concolicEvents, decoding each into
// a tracebuild.Event; done reports whether an "endOfExecution" marker was
// seen, in which case the caller must stop polling.
func (b *Bridge) drainBuffer(ctx context.Context, page *rod.Page) ([]tracebuild.Event, bool) {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `() => {
			const buf = Array.isArray(window.__concolicEvents) ? window.__concolicEvents : [];
			window.__concolicEvents = [];
			return buf;
		}`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil || res.Value.Nil() {
		return nil, false
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, false
	}
	var buffered []bufferedEvent
	if err := json.Unmarshal(raw, &buffered); err != nil {
		logging.BrowserWarn("malformed event buffer: %v", err)
		return nil, false
	}

	out := make([]tracebuild.Event, 0, len(buffered))
	done := false
	for _, be := range buffered {
		ev, isEnd, err := decodeBufferedEvent(be)
		if err != nil {
			logging.BrowserWarn("undecodable trace event %q: %v", be.Kind, err)
			continue
		}
		if isEnd {
			done = true
			continue
		}
		out = append(out, ev)
	}
	if done {
		out = append(out, tracebuild.Event{Kind: tracebuild.EventEndOfExecution})
	}
	return out, done
}

func decodeBufferedEvent(be bufferedEvent) (tracebuild.Event, bool, error) {
	switch be.Kind {
	case "endOfExecution":
		return tracebuild.Event{}, true, nil
	case "symbolicBranch":
		cond, err := decodeExpr(be.Cond)
		if err != nil {
			return tracebuild.Event{}, false, err
		}
		return tracebuild.Event{Kind: tracebuild.EventSymbolicBranch, Condition: cond, Taken: be.Taken}, false, nil
	case "concreteBranch":
		return tracebuild.Event{Kind: tracebuild.EventConcreteBranch, Taken: be.Taken}, false, nil
	case "functionCall":
		return tracebuild.Event{Kind: tracebuild.EventFunctionCall, Name: be.Name}, false, nil
	case "consoleMessage":
		return tracebuild.Event{Kind: tracebuild.EventConsoleMessage, Message: be.Message}, false, nil
	case "domModification":
		words := make(map[int]int, len(be.Words))
		for k, v := range be.Words {
			var idx int
			if _, err := fmt.Sscanf(k, "%d", &idx); err == nil {
				words[idx] = v
			}
		}
		return tracebuild.Event{Kind: tracebuild.EventDomModification, Amount: be.Amount, Words: words}, false, nil
	case "marker":
		var sel *trace.SelectRestriction
		return tracebuild.Event{Kind: tracebuild.EventMarker, Label: be.Label, Index: be.Index, SelectRestriction: sel}, false, nil
	default:
		return tracebuild.Event{}, false, fmt.Errorf("unknown buffered event kind %q", be.Kind)
	}
}

// exprWire is the narrow JSON shape decodeExpr understands: the subset of
// internal/expr covering Const/Var/IntBin/IntCmp/BoolBin/BoolNot/StrBin/
// StrCmp. Anything richer (StrCharAt, StrReplace, regex ops, Coercion) has
// no wire form and is rejected. This is close to, not equal to, the fd
// solver's boundary: fd still reports Unknown for some decodable shapes
// (e.g. string concatenation, StrIn/StrNotIn) and accepts int coercions,
// which this decoder never produces.
type exprWire struct {
	Kind      string    `json:"kind"`
	ValueKind string    `json:"valueKind,omitempty"`
	Int       int64     `json:"int,omitempty"`
	Bool      bool      `json:"bool,omitempty"`
	Str       string    `json:"str,omitempty"`
	Name      string    `json:"name,omitempty"`
	Op        string    `json:"op,omitempty"`
	Lhs       *exprWire `json:"lhs,omitempty"`
	Rhs       *exprWire `json:"rhs,omitempty"`
	Operand   *exprWire `json:"operand,omitempty"`
}

func decodeExpr(raw json.RawMessage) (expr.Expr, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("decodeExpr: empty condition")
	}
	var w exprWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decodeExpr: %w", err)
	}
	return decodeWire(&w)
}

func decodeWire(w *exprWire) (expr.Expr, error) {
	if w == nil {
		return nil, fmt.Errorf("decodeExpr: nil node")
	}
	switch w.Kind {
	case "const":
		switch w.ValueKind {
		case "int":
			return expr.ConstInt(w.Int), nil
		case "bool":
			return expr.ConstBool(w.Bool), nil
		case "string":
			return expr.ConstString(w.Str), nil
		default:
			return nil, fmt.Errorf("decodeExpr: unknown const valueKind %q", w.ValueKind)
		}
	case "var":
		return expr.NewVar(w.Name), nil
	case "intBin":
		op, err := decodeIntBinOp(w.Op)
		if err != nil {
			return nil, err
		}
		lhs, err := decodeWire(w.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeWire(w.Rhs)
		if err != nil {
			return nil, err
		}
		return expr.NewIntBin(op, lhs, rhs), nil
	case "intCmp":
		op, err := decodeIntCmpOp(w.Op)
		if err != nil {
			return nil, err
		}
		lhs, err := decodeWire(w.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeWire(w.Rhs)
		if err != nil {
			return nil, err
		}
		return expr.NewIntCmp(op, lhs, rhs), nil
	case "boolBin":
		op, err := decodeBoolBinOp(w.Op)
		if err != nil {
			return nil, err
		}
		lhs, err := decodeWire(w.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeWire(w.Rhs)
		if err != nil {
			return nil, err
		}
		return expr.NewBoolBin(op, lhs, rhs), nil
	case "boolNot":
		operand, err := decodeWire(w.Operand)
		if err != nil {
			return nil, err
		}
		return expr.NewBoolNot(operand), nil
	case "strBin":
		lhs, err := decodeWire(w.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeWire(w.Rhs)
		if err != nil {
			return nil, err
		}
		return expr.NewStrBin(expr.StrConcat, lhs, rhs), nil
	case "strCmp":
		op, err := decodeStrCmpOp(w.Op)
		if err != nil {
			return nil, err
		}
		lhs, err := decodeWire(w.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeWire(w.Rhs)
		if err != nil {
			return nil, err
		}
		return expr.NewStrCmp(op, lhs, rhs), nil
	default:
		return nil, fmt.Errorf("decodeExpr: unsupported node kind %q", w.Kind)
	}
}

func decodeIntBinOp(op string) (expr.IntBinOp, error) {
	switch op {
	case "add":
		return expr.IntAdd, nil
	case "sub":
		return expr.IntSub, nil
	case "mul":
		return expr.IntMul, nil
	case "mod":
		return expr.IntMod, nil
	default:
		return 0, fmt.Errorf("decodeExpr: unknown intBin op %q", op)
	}
}

func decodeIntCmpOp(op string) (expr.IntCmpOp, error) {
	switch op {
	case "eq":
		return expr.IntEq, nil
	case "neq":
		return expr.IntNeq, nil
	case "lt":
		return expr.IntLt, nil
	case "le":
		return expr.IntLe, nil
	case "gt":
		return expr.IntGt, nil
	case "ge":
		return expr.IntGe, nil
	default:
		return 0, fmt.Errorf("decodeExpr: unknown intCmp op %q", op)
	}
}

func decodeBoolBinOp(op string) (expr.BoolBinOp, error) {
	switch op {
	case "and":
		return expr.BoolAnd, nil
	case "or":
		return expr.BoolOr, nil
	case "eq":
		return expr.BoolEq, nil
	case "neq":
		return expr.BoolNeq, nil
	case "seq":
		return expr.BoolSeq, nil
	case "sneq":
		return expr.BoolSneq, nil
	default:
		return 0, fmt.Errorf("decodeExpr: unknown boolBin op %q", op)
	}
}

func decodeStrCmpOp(op string) (expr.StrCmpOp, error) {
	switch op {
	case "eq":
		return expr.StrEq, nil
	case "neq":
		return expr.StrNeq, nil
	case "in":
		return expr.StrIn, nil
	case "notIn":
		return expr.StrNotIn, nil
	default:
		return 0, fmt.Errorf("decodeExpr: unknown strCmp op %q", op)
	}
}
