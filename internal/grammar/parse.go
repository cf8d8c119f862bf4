package grammar

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// quotedLiteralRe matches each double-quoted literal in a GBNF alternation
// line, e.g. extracting "lights", "heating" from `device ::= "lights" |
// "heating"`.
var quotedLiteralRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

var deviceRuleRe = regexp.MustCompile(`(?m)^device\s*::=\s*(.+)$`)
var locationRuleRe = regexp.MustCompile(`(?m)^location\s*::=\s*(.+)$`)

// Vocabulary is the device/location alternation lists extracted from a GBNF
// grammar file, used to compose the pipeline's grammar-primed prompt.
type Vocabulary struct {
	DeviceTypes []string
	Locations   []string
}

// ParseFile reads the grammar file at path and extracts its device and
// location alternation lists. It does not validate the grammar is otherwise
// well-formed.
func ParseFile(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("grammar: read %q: %w", path, err)
	}
	return parseVocabulary(string(data)), nil
}

func parseVocabulary(text string) Vocabulary {
	var v Vocabulary
	if m := deviceRuleRe.FindStringSubmatch(text); m != nil {
		v.DeviceTypes = extractLiterals(m[1])
	}
	if m := locationRuleRe.FindStringSubmatch(text); m != nil {
		v.Locations = extractLiterals(m[1])
	}
	return v
}

// extractLiterals returns the unescaped value of each quoted literal in
// rule, with any JSON quotes embedded in the literal (`"\"light\""`)
// trimmed off.
func extractLiterals(rule string) []string {
	matches := quotedLiteralRe.FindAllStringSubmatch(rule, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		lit := m[1]
		if unq, err := strconv.Unquote(`"` + lit + `"`); err == nil {
			lit = unq
		}
		out = append(out, strings.Trim(lit, `"`))
	}
	return out
}
