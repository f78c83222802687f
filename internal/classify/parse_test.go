package classify

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		msg      responseMessage
		wantType string
		wantConf float64
	}{
		{
			name:     "legacy function_call",
			msg:      responseMessage{FunctionCall: &functionCall{Name: toolName, Arguments: `{"type":"pod","confidence":0.77}`}},
			wantType: "pod", wantConf: 0.77,
		},
		{
			name:     "unknown type becomes other",
			msg:      responseMessage{FunctionCall: &functionCall{Arguments: `{"type":"manifest","confidence":0.9}`}},
			wantType: "other", wantConf: 0.9,
		},
		{
			name:     "alias",
			msg:      responseMessage{FunctionCall: &functionCall{Arguments: `{"type":"Bill_Of_Lading","confidence":0.8}`}},
			wantType: "bol", wantConf: 0.8,
		},
		{
			name:     "confidence clamped high",
			msg:      responseMessage{FunctionCall: &functionCall{Arguments: `{"type":"bol","confidence":7}`}},
			wantType: "bol", wantConf: 1,
		},
		{
			name:     "confidence clamped low",
			msg:      responseMessage{FunctionCall: &functionCall{Arguments: `{"type":"bol","confidence":-0.2}`}},
			wantType: "bol", wantConf: 0,
		},
		{
			name:     "missing confidence",
			msg:      responseMessage{FunctionCall: &functionCall{Arguments: `{"type":"invoice"}`}},
			wantType: "invoice", wantConf: 0.5,
		},
		{
			name:     "malformed arguments scraped",
			msg:      responseMessage{FunctionCall: &functionCall{Arguments: `{type: pod, confidence: 0.66`}},
			wantType: "pod", wantConf: 0.66,
		},
		{
			name:     "free text",
			msg:      responseMessage{Content: "I think the type: BOL with confidence = .85"},
			wantType: "bol", wantConf: 0.85,
		},
		{
			name:     "nothing usable",
			msg:      responseMessage{Content: "I cannot read this file."},
			wantType: "other", wantConf: 0.5,
		},
		{
			name:     "empty",
			msg:      responseMessage{},
			wantType: "other", wantConf: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolve(tt.msg).result()
			if res.Type != tt.wantType {
				t.Errorf("type = %q, want %q", res.Type, tt.wantType)
			}
			if res.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", res.Confidence, tt.wantConf)
			}
		})
	}
}

func TestResolvePrefersStructured(t *testing.T) {
	msg := responseMessage{Content: "type: invoice confidence: 0.1"}
	msg.ToolCalls = append(msg.ToolCalls, struct {
		Type     string       `json:"type"`
		Function functionCall `json:"function"`
	}{Type: "function", Function: functionCall{Name: toolName, Arguments: `{"type":"pod","confidence":0.95,"reason":"signed receipt"}`}})

	r, ok := resolve(msg).(structuredResponse)
	if !ok {
		t.Fatalf("resolve returned %T, want structuredResponse", resolve(msg))
	}
	if res := r.result(); res.Type != "pod" || res.Reason != "signed receipt" {
		t.Errorf("result = %+v", res)
	}
}
