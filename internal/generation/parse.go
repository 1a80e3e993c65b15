package generation

import (
	"encoding/json"
	"strings"

	"medsim-server/internal/model"
)

// ExtractJSONObject pulls the structured payload out of a model response.
// Models routinely wrap JSON in code fences and surround it with prose, so
// the fence markers are stripped and the text is sliced to the span between
// the first '{' and the last '}'. Failure to locate or parse that span is a
// fatal parse error.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, model.NewGenerationError(model.FailureParse, "empty response body")
	}

	cleaned = stripCodeFences(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, model.NewGenerationError(model.FailureParse, "no JSON object found in response")
	}
	candidate := cleaned[start : end+1]

	if !json.Valid([]byte(candidate)) {
		return nil, model.NewGenerationError(model.FailureParse, "response JSON is malformed")
	}
	return json.RawMessage(candidate), nil
}

// UnmarshalResponse extracts and decodes the JSON object of a response into v.
func UnmarshalResponse(text string, v interface{}) error {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return model.WrapGenerationError(model.FailureParse, err, "response JSON has unexpected shape")
	}
	return nil
}

func stripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
