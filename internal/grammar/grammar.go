// Package grammar generates GBNF grammars from a backend's Device Mapping
// Store snapshot, constraining a llama.cpp completion to JSON referring only
// to devices and locations the operator has actually configured.
package grammar

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/oraclab/oraccore/internal/atomicfile"
	"github.com/oraclab/oraccore/internal/mapping"
)

// unknownLabel is the sentinel value always present in the device and
// location alternations, regardless of what is configured.
const unknownLabel = "UNKNOWN"

// simpleActions is the fixed action palette, excluding the parameterised
// set-percentage and set-temperature forms appended by [actionRule].
var simpleActions = []string{
	"on", "off", "toggle", "open", "close", "up", "down",
	"high", "low", "medium", "warm", "cold", "hot", "loud", "quiet",
	unknownLabel,
}

// Combination is a single valid (device_type, location) pair backed by at
// least one enabled, complete device mapping.
type Combination struct {
	EntityID     string `json:"entity_id"`
	DeviceType   string `json:"device_type"`
	Location     string `json:"location"`
	OriginalName string `json:"original_name"`
}

// Result is the output of [Generate]: the grammar text plus the statistics
// an operator surface or the pipeline's hint prompt would want.
type Result struct {
	Text              string        `json:"grammar_text"`
	Path              string        `json:"grammar_file"`
	DeviceTypes       []string      `json:"device_types"`
	Locations         []string      `json:"locations"`
	ValidCombinations []Combination `json:"valid_combinations"`
}

// FilePath returns the path a backend's grammar file is written to, derived
// purely from dir and backendID.
func FilePath(dir, backendID string) string {
	return filepath.Join(dir, fmt.Sprintf("backend_%s.gbnf", backendID))
}

// Generate projects rec's enabled, complete device mappings into a GBNF
// grammar. It is a pure function of rec: regenerating from an unchanged
// record produces byte-identical output, since device types, locations, and
// combinations are all sorted before being emitted.
func Generate(rec mapping.Record) Result {
	deviceTypes := map[string]struct{}{unknownLabel: {}}
	locations := map[string]struct{}{unknownLabel: {}}
	var combos []Combination

	for entityID, m := range rec.DeviceMappings {
		if !m.Enabled || !m.Complete() {
			continue
		}
		deviceTypes[m.DeviceType] = struct{}{}
		locations[m.Location] = struct{}{}
		combos = append(combos, Combination{
			EntityID:     entityID,
			DeviceType:   m.DeviceType,
			Location:     m.Location,
			OriginalName: m.OriginalName,
		})
	}

	sortedDeviceTypes := sortedKeys(deviceTypes)
	sortedLocations := sortedKeys(locations)
	sort.Slice(combos, func(i, j int) bool {
		if combos[i].DeviceType != combos[j].DeviceType {
			return combos[i].DeviceType < combos[j].DeviceType
		}
		if combos[i].Location != combos[j].Location {
			return combos[i].Location < combos[j].Location
		}
		return combos[i].EntityID < combos[j].EntityID
	})

	text := render(sortedDeviceTypes, sortedLocations)

	return Result{
		Text:              text,
		DeviceTypes:       sortedDeviceTypes,
		Locations:         sortedLocations,
		ValidCombinations: combos,
	}
}

// GenerateAndSave calls [Generate] and atomically writes the result to
// [FilePath](dataDir, rec.ID), returning the result with Path populated.
func GenerateAndSave(dataDir string, rec mapping.Record) (Result, error) {
	result := Generate(rec)
	result.Path = FilePath(dataDir, rec.ID)
	if err := atomicfile.WriteFile(result.Path, []byte(result.Text), 0o644); err != nil {
		return Result{}, fmt.Errorf("grammar: write %q: %w", result.Path, err)
	}
	return result, nil
}

// render emits the literal GBNF text for the given sorted vocabularies.
func render(deviceTypes, locations []string) string {
	var b strings.Builder

	b.WriteString(`root ::= "{\"device\":\"" device "\",\"action\":\"" action "\",\"location\":\"" location "\"}"` + "\n\n")
	b.WriteString("device ::= " + quotedAlternation(deviceTypes) + "\n")
	b.WriteString("location ::= " + quotedAlternation(locations) + "\n\n")
	b.WriteString(actionRule())

	return b.String()
}

// actionRule emits the fixed action palette: simple literal commands plus
// the parameterised set-percentage (10% steps, 0-100) and set-temperature
// (integer degrees C, 5-30) sub-rules.
func actionRule() string {
	var b strings.Builder

	b.WriteString("action ::= " + quotedAlternation(simpleActions) + " | set-action | set-temp-action\n")
	b.WriteString("pct ::= " + quotedAlternation(percentSteps()) + "\n")
	b.WriteString("temp ::= " + quotedAlternation(tempSteps()) + "\n")
	b.WriteString(`set-action ::= "set " pct` + "\n")
	b.WriteString(`set-temp-action ::= "set " temp`)

	return b.String()
}

// percentSteps returns "0%", "10%", ..., "100%".
func percentSteps() []string {
	steps := make([]string, 0, 11)
	for n := 0; n <= 100; n += 10 {
		steps = append(steps, strconv.Itoa(n)+"%")
	}
	return steps
}

// tempSteps returns "5C", "6C", ..., "30C".
func tempSteps() []string {
	steps := make([]string, 0, 26)
	for n := 5; n <= 30; n++ {
		steps = append(steps, strconv.Itoa(n)+"C")
	}
	return steps
}

// quotedAlternation renders values as a GBNF alternation of double-quoted
// literals, e.g. `"a" | "b" | "c"`.
func quotedAlternation(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Quote(v)
	}
	return strings.Join(parts, " | ")
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
