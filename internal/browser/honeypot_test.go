package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyReasonsDisplayNone(t *testing.T) {
	reasons := classifyReasons(map[string]string{"display": "none"}, nil, false, 0, 0, 0, 0)
	assert.Equal(t, []string{"hidden via display:none"}, reasons)
}

func TestClassifyReasonsVisibilityHidden(t *testing.T) {
	reasons := classifyReasons(map[string]string{"visibility": "hidden"}, nil, false, 0, 0, 0, 0)
	assert.Equal(t, []string{"hidden via visibility:hidden"}, reasons)
}

func TestClassifyReasonsOpacityZero(t *testing.T) {
	reasons := classifyReasons(map[string]string{"opacity": "0"}, nil, false, 0, 0, 0, 0)
	assert.Equal(t, []string{"hidden via opacity:0"}, reasons)
}

func TestClassifyReasonsPointerEventsNone(t *testing.T) {
	reasons := classifyReasons(map[string]string{"pointerEvents": "none"}, nil, false, 0, 0, 0, 0)
	assert.Equal(t, []string{"pointer events disabled"}, reasons)
}

func TestClassifyReasonsAriaHidden(t *testing.T) {
	reasons := classifyReasons(nil, map[string]string{"aria-hidden": "true"}, false, 0, 0, 0, 0)
	assert.Equal(t, []string{"marked aria-hidden"}, reasons)
}

func TestClassifyReasonsTabindexNegativeOne(t *testing.T) {
	reasons := classifyReasons(nil, map[string]string{"tabindex": "-1"}, false, 0, 0, 0, 0)
	assert.Equal(t, []string{"not keyboard accessible (tabindex=-1)"}, reasons)
}

func TestClassifyReasonsDecoyName(t *testing.T) {
	attrs := map[string]string{"autocomplete": "off", "name": "email_confirm"}
	reasons := classifyReasons(nil, attrs, false, 0, 0, 0, 0)
	assert.Equal(t, []string{"conventional decoy field name"}, reasons)
}

func TestClassifyReasonsDecoyNameRequiresAutocompleteOff(t *testing.T) {
	attrs := map[string]string{"name": "email_confirm"}
	reasons := classifyReasons(nil, attrs, false, 0, 0, 0, 0)
	assert.Empty(t, reasons)
}

func TestClassifyReasonsOffscreen(t *testing.T) {
	reasons := classifyReasons(nil, nil, true, -9999, 0, 100, 100)
	assert.Equal(t, []string{"positioned off-screen"}, reasons)
}

func TestClassifyReasonsZeroSize(t *testing.T) {
	reasons := classifyReasons(nil, nil, true, 100, 100, 0, 0)
	assert.Equal(t, []string{"zero or near-zero size"}, reasons)
}

func TestClassifyReasonsNormalElement(t *testing.T) {
	styles := map[string]string{"display": "block"}
	reasons := classifyReasons(styles, nil, true, 100, 100, 50, 20)
	assert.Empty(t, reasons)
}

func TestClassifyReasonsAccumulatesMultiple(t *testing.T) {
	styles := map[string]string{"display": "none", "visibility": "hidden"}
	attrs := map[string]string{"aria-hidden": "true"}
	reasons := classifyReasons(styles, attrs, false, 0, 0, 0, 0)
	assert.ElementsMatch(t, []string{
		"hidden via display:none",
		"hidden via visibility:hidden",
		"marked aria-hidden",
	}, reasons)
}

func TestConfidenceForScalesWithReasonCount(t *testing.T) {
	assert.InDelta(t, 0.5, confidenceFor(nil), 0.001)
	assert.InDelta(t, 0.65, confidenceFor([]string{"a"}), 0.001)
	assert.InDelta(t, 0.95, confidenceFor([]string{"a", "b", "c"}), 0.001)
}

func TestConfidenceForCapsAtOne(t *testing.T) {
	reasons := []string{"a", "b", "c", "d", "e", "f"}
	assert.InDelta(t, 1.0, confidenceFor(reasons), 0.001)
}
