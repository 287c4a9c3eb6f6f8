// Package browser is the Browser collaborator: it drives an instrumented
// page through go-rod and reports a strictly ordered tracebuild.Event
// stream.
package browser

import (
	"fmt"

	"github.com/go-rod/rod"
)

// DetectionResult records why a form field was flagged as a decoy: a field
// planted to catch automated fillers rather than a genuine input, which the
// driver must never assign a solved value to (doing so would pollute the
// path condition with a branch no real user could reach).
type DetectionResult struct {
	FieldID    string   `json:"field_id"`
	Reasons    []string `json:"reasons"`
	Confidence float64  `json:"confidence"`
}

// HoneypotDetector flags form fields hidden from a real user by CSS,
// geometry, or ARIA state, via a direct computed-style/attribute scan (no
// logic engine needed for a fixed, small rule set).
type HoneypotDetector struct{}

// NewHoneypotDetector returns a ready-to-use detector.
func NewHoneypotDetector() *HoneypotDetector { return &HoneypotDetector{} }

// ScanFields inspects every input/select/textarea on page and returns a
// DetectionResult for each one flagged as a decoy, keyed by its id (falling
// back to its name attribute, matching forms.Field.VariableName's
// preference order).
func (d *HoneypotDetector) ScanFields(page *rod.Page) (map[string]DetectionResult, error) {
	elements, err := page.Elements("input, select, textarea")
	if err != nil {
		return nil, fmt.Errorf("honeypot: enumerate fields: %w", err)
	}

	out := map[string]DetectionResult{}
	for _, el := range elements {
		id, err := fieldVariableName(el)
		if err != nil || id == "" {
			continue
		}

		reasons, err := d.reasonsFor(el)
		if err != nil {
			continue
		}
		if len(reasons) == 0 {
			continue
		}

		out[id] = DetectionResult{FieldID: id, Reasons: reasons, Confidence: confidenceFor(reasons)}
	}
	return out, nil
}

// IsHoneypot reports whether a single field (by CSS selector) is flagged,
// without scanning the whole page — useful right before injecting into a
// specific field the driver is about to act on.
func (d *HoneypotDetector) IsHoneypot(page *rod.Page, selector string) (bool, []string, error) {
	el, err := page.Element(selector)
	if err != nil {
		return false, nil, fmt.Errorf("honeypot: element not found: %w", err)
	}
	reasons, err := d.reasonsFor(el)
	if err != nil {
		return false, nil, err
	}
	return len(reasons) > 0, reasons, nil
}

func (d *HoneypotDetector) reasonsFor(el *rod.Element) ([]string, error) {
	styles, err := computedStyles(el)
	if err != nil {
		return nil, err
	}
	attrs, err := elementAttributes(el)
	if err != nil {
		return nil, err
	}
	box, _ := el.Shape()

	var x, y, width, height float64
	hasBox := box != nil && len(box.Quads) > 0
	if hasBox {
		quad := box.Quads[0]
		x = (quad[0] + quad[2] + quad[4] + quad[6]) / 4
		y = (quad[1] + quad[3] + quad[5] + quad[7]) / 4
		width = quad[2] - quad[0]
		height = quad[5] - quad[1]
	}
	return classifyReasons(styles, attrs, hasBox, x, y, width, height), nil
}

// classifyReasons is the pure decision core behind reasonsFor: given already
// -fetched computed styles, attributes, and geometry, it names every reason
// the field would be flagged as a decoy. Kept free of *rod.Element so it can
// be exercised directly in tests without a live page.
func classifyReasons(styles, attrs map[string]string, hasBox bool, x, y, width, height float64) []string {
	var reasons []string
	switch styles["display"] {
	case "none":
		reasons = append(reasons, "hidden via display:none")
	}
	if styles["visibility"] == "hidden" {
		reasons = append(reasons, "hidden via visibility:hidden")
	}
	if styles["opacity"] == "0" {
		reasons = append(reasons, "hidden via opacity:0")
	}
	if styles["pointerEvents"] == "none" {
		reasons = append(reasons, "pointer events disabled")
	}
	if attrs["aria-hidden"] == "true" {
		reasons = append(reasons, "marked aria-hidden")
	}
	if attrs["tabindex"] == "-1" {
		reasons = append(reasons, "not keyboard accessible (tabindex=-1)")
	}
	if attrs["autocomplete"] == "off" && (attrs["name"] == "email_confirm" || attrs["name"] == "website" || attrs["name"] == "url") {
		reasons = append(reasons, "conventional decoy field name")
	}
	if hasBox {
		if x < -1000 || y < -1000 {
			reasons = append(reasons, "positioned off-screen")
		}
		if width < 2 && height < 2 {
			reasons = append(reasons, "zero or near-zero size")
		}
	}
	return reasons
}

// confidenceFor turns a reason count into the 0.5-1.0 confidence scale
// ScanFields reports, extracted so tests can check the
// formula without constructing a DetectionResult end-to-end.
func confidenceFor(reasons []string) float64 {
	confidence := 0.5 + float64(len(reasons))*0.15
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func computedStyles(el *rod.Element) (map[string]string, error) {
	result, err := el.Eval(`() => {
		const s = window.getComputedStyle(this);
		return { display: s.display, visibility: s.visibility, opacity: s.opacity, pointerEvents: s.pointerEvents };
	}`)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for k, v := range result.Value.Map() {
		out[k] = v.String()
	}
	return out, nil
}

func elementAttributes(el *rod.Element) (map[string]string, error) {
	result, err := el.Eval(`() => {
		const attrs = {};
		for (const a of this.attributes) attrs[a.name] = a.value;
		return attrs;
	}`)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for k, v := range result.Value.Map() {
		out[k] = v.String()
	}
	return out, nil
}

// fieldVariableName mirrors forms.Field.VariableName's id-else-name
// preference, read directly off the live DOM element.
func fieldVariableName(el *rod.Element) (string, error) {
	if id, err := el.Attribute("id"); err == nil && id != nil && *id != "" {
		return *id, nil
	}
	if name, err := el.Attribute("name"); err == nil && name != nil && *name != "" {
		return *name, nil
	}
	return "", nil
}
