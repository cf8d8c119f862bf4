package grammar

import "strings"

// TestResult is the outcome of [TestCommand]'s heuristic check.
type TestResult struct {
	Valid           bool   `json:"valid"`
	FoundDeviceType string `json:"found_device_type,omitempty"`
	FoundLocation   string `json:"found_location,omitempty"`
	Message         string `json:"message"`
}

// TestCommand is a non-authoritative heuristic that reports whether command
// appears to mention a configured device type and location from result. It
// does not parse or validate GBNF; it exists only to give operator-facing
// test surfaces a quick sanity signal before a real model run.
func TestCommand(result Result, command string) TestResult {
	lower := strings.ToLower(command)

	foundType := firstContainedFold(lower, result.DeviceTypes)
	foundLocation := firstContainedFold(lower, result.Locations)

	if foundType == "" {
		return TestResult{Message: "no configured device type found in command"}
	}
	if foundLocation == "" {
		return TestResult{FoundDeviceType: foundType, Message: "no configured location found in command"}
	}

	for _, combo := range result.ValidCombinations {
		if strings.EqualFold(combo.DeviceType, foundType) && strings.EqualFold(combo.Location, foundLocation) {
			return TestResult{
				Valid:           true,
				FoundDeviceType: foundType,
				FoundLocation:   foundLocation,
				Message:         "command maps to a configured device",
			}
		}
	}

	return TestResult{
		FoundDeviceType: foundType,
		FoundLocation:   foundLocation,
		Message:         "device/location combination is not configured",
	}
}

// firstContainedFold returns the first value in values that appears as a
// case-insensitive substring of haystack, or "" if none do.
func firstContainedFold(haystack string, values []string) string {
	for _, v := range values {
		if v == unknownLabel {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(v)) {
			return v
		}
	}
	return ""
}
