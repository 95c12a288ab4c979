package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/animus-ai/animus/pkg/models"
)

// Single-thought modes accept a thought only inside these length bounds;
// numbered thoughts in responsive mode just need to be non-empty.
const (
	minThoughtLen = 10
	maxThoughtLen = 300
)

// Output is the parsed structure of a cognitive-mode completion.
// Malformed sections degrade independently: missing thoughts yield an
// empty slice, an unparseable action list yields no actions.
type Output struct {
	Thoughts  []string
	Strategic string
	Actions   []models.Action
}

var numberedThoughtRe = regexp.MustCompile(`(?m)^\s*\[(\d+)\]\s*(.+?)\s*$`)

// ParseOutput extracts the numbered <thoughts>, the optional strategic
// <think>, and the <action_list> from a raw completion. It never fails:
// whatever is present is extracted, the rest stays zero.
func ParseOutput(raw string) Output {
	var out Output

	section, ok := extractTag(raw, "thoughts")
	if !ok {
		// Some models emit the numbered lines without the wrapper.
		section = raw
	}
	for _, match := range numberedThoughtRe.FindAllStringSubmatch(section, -1) {
		thought := strings.TrimSpace(match[2])
		if thought != "" {
			out.Thoughts = append(out.Thoughts, thought)
		}
	}

	if think, ok := extractTag(raw, "think"); ok {
		out.Strategic = strings.TrimSpace(think)
	}

	out.Actions = parseActionList(raw)
	return out
}

// ParseSingleThought extracts the one thought a planning or reflective
// prompt asked for: the <think> content when tagged, the whole text
// otherwise. It is rejected when shorter than 10 or longer than 300
// characters.
func ParseSingleThought(raw string) (string, bool) {
	thought, ok := extractTag(raw, "think")
	if !ok {
		thought = raw
	}
	thought = strings.TrimSpace(stripAllTags(thought))
	if len(thought) < minThoughtLen || len(thought) > maxThoughtLen {
		return "", false
	}
	return thought, true
}

// extractTag returns the content between <name> and </name>.
func extractTag(raw, name string) (string, bool) {
	open := "<" + name + ">"
	closing := "</" + name + ">"
	start := strings.Index(raw, open)
	if start < 0 {
		return "", false
	}
	rest := raw[start+len(open):]
	end := strings.Index(rest, closing)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

var tagRe = regexp.MustCompile(`</?[a-z_]+>`)

func stripAllTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

var trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)

// parseActionList pulls the <action_list> JSON out of a completion.
// Models frequently wrap the array in a markdown fence and leave a
// trailing comma before the closing bracket; both are repaired before
// decoding. Anything still unparseable yields an empty list.
func parseActionList(raw string) []models.Action {
	body, ok := extractTag(raw, "action_list")
	if !ok {
		return nil
	}

	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)
	if body == "" || body == "[]" {
		return nil
	}
	body = trailingCommaRe.ReplaceAllString(body, "$1")

	var rawActions []struct {
		Tool string `json:"tool"`
		Args []any  `json:"args"`
	}
	if err := json.Unmarshal([]byte(body), &rawActions); err != nil {
		return nil
	}

	actions := make([]models.Action, 0, len(rawActions))
	for _, ra := range rawActions {
		if strings.TrimSpace(ra.Tool) == "" {
			continue
		}
		args := make([]string, 0, len(ra.Args))
		for _, a := range ra.Args {
			args = append(args, stringifyArg(a))
		}
		actions = append(actions, models.Action{Tool: ra.Tool, Args: args})
	}
	return actions
}

// stringifyArg flattens a JSON value into the string form tools expect.
func stringifyArg(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case nil:
		return ""
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
