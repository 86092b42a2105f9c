package turn

import (
	"regexp"
	"strings"
)

// factAnnotation matches inline fact updates the model may embed in its reply
// text, e.g. "@remember budget=450k". This is the fallback adapter for models
// that ignore the structured response contract; annotations are merged into
// the fact table and stripped before the text is spoken.
var factAnnotation = regexp.MustCompile(`@remember\s+([A-Za-z0-9_.:-]+)\s*=\s*([^@\n]*)`)

// ExtractInlineFacts scans reply text for @remember annotations. It returns
// the text with all annotations removed and the parsed facts. Values are
// trimmed; annotations with empty keys or values are dropped silently.
func ExtractInlineFacts(text string) (string, map[string]string) {
	matches := factAnnotation.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	facts := make(map[string]string, len(matches))
	for _, m := range matches {
		key := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		if key == "" || value == "" {
			continue
		}
		facts[key] = value
	}

	cleaned := factAnnotation.ReplaceAllString(text, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if len(facts) == 0 {
		facts = nil
	}
	return cleaned, facts
}
