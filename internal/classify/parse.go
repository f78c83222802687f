package classify

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukerupert/freightdocs/internal/model"
)

const (
	fallbackType       = model.DocTypeOther
	fallbackConfidence = 0.5
)

// response is what the model sent back: either a well-formed tool call or free text.
type response interface {
	result() Result
}

type structuredResponse struct {
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

type freeTextResponse struct {
	text string
}

var typeAliases = map[string]string{
	"bill_of_lading":    model.DocTypeBOL,
	"proof_of_delivery": model.DocTypePOD,
	"delivery_receipt":  model.DocTypePOD,
	"freight_invoice":   model.DocTypeInvoice,
}

func (r structuredResponse) result() Result {
	conf := fallbackConfidence
	if r.Confidence != nil {
		conf = *r.Confidence
	}
	return Result{
		Type:       normalizeType(r.Type),
		Confidence: clamp(conf),
		Reason:     strings.TrimSpace(r.Reason),
	}
}

var (
	typePattern       = regexp.MustCompile(`(?i)\btype"?\s*[:=]\s*"?([a-z_]+)`)
	confidencePattern = regexp.MustCompile(`(?i)\bconfidence"?\s*[:=]\s*"?([0-9]*\.?[0-9]+)`)
)

func (r freeTextResponse) result() Result {
	res := Result{Type: fallbackType, Confidence: fallbackConfidence, Reason: strings.TrimSpace(r.text)}
	if m := typePattern.FindStringSubmatch(r.text); m != nil {
		res.Type = normalizeType(m[1])
	}
	if m := confidencePattern.FindStringSubmatch(r.text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			res.Confidence = clamp(f)
		}
	}
	return res
}

// resolve picks the structured tool call when it carries usable arguments and
// falls back to scraping whatever text is available.
func resolve(msg responseMessage) response {
	var calls []functionCall
	for _, tc := range msg.ToolCalls {
		calls = append(calls, tc.Function)
	}
	if msg.FunctionCall != nil {
		calls = append(calls, *msg.FunctionCall)
	}

	var rawArgs []string
	for _, call := range calls {
		if call.Name != "" && call.Name != toolName {
			continue
		}
		var s structuredResponse
		if err := json.Unmarshal([]byte(call.Arguments), &s); err == nil && s.Type != "" {
			return s
		}
		rawArgs = append(rawArgs, call.Arguments)
	}

	text := strings.TrimSpace(strings.Join(append(rawArgs, msg.Content), "\n"))
	return freeTextResponse{text: text}
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if model.ValidDocTypes[t] {
		return t
	}
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return fallbackType
}

func clamp(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return fallbackConfidence
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
