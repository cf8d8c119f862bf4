package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oraclab/oraccore/internal/grammar"
	"github.com/oraclab/oraccore/internal/topic"
)

func TestStripWakeWord_RemovesPrefixCaseInsensitively(t *testing.T) {
	got := stripWakeWord("Hey Computer, turn on the lounge lights", []string{"hey computer"})
	assert.Equal(t, "turn on the lounge lights", got)
}

func TestStripWakeWord_NoMatchReturnsTrimmedInput(t *testing.T) {
	got := stripWakeWord("  turn on the lounge lights  ", []string{"hey computer"})
	assert.Equal(t, "turn on the lounge lights", got)
}

func TestIsErrorCorrectionPhrase_MatchesConfiguredPhrase(t *testing.T) {
	assert.True(t, isErrorCorrectionPhrase("no that's wrong", "no that's wrong", []string{"no that's wrong"}))
	assert.True(t, isErrorCorrectionPhrase("cancel that please", "cancel that please", []string{"cancel"}))
	assert.False(t, isErrorCorrectionPhrase("turn on the lights", "turn on the lights", []string{"cancel"}))
}

func TestEffectiveSampling_RequestOverridesTopicOverridesDefault(t *testing.T) {
	def := SamplingDefaults{Temperature: 0.5, TopP: 0.9, TopK: 40, MaxTokens: 256}
	topicTemp := 0.7
	tp := topic.Topic{Settings: topic.Settings{Temperature: &topicTemp}}

	s := effectiveSampling(Overrides{}, tp, def)
	assert.Equal(t, 0.7, s.Temperature, "topic setting should override default")

	reqTemp := 1.0
	s = effectiveSampling(Overrides{Temperature: &reqTemp}, tp, def)
	assert.Equal(t, 1.0, s.Temperature, "request override should win over topic setting")
	assert.Equal(t, 0.9, s.TopP, "unset fields fall back to default")
}

func TestRepairJSON_ParsesWellFormedObject(t *testing.T) {
	out, ok := repairJSON(`{"device":"light","action":"on"}`)
	assert.True(t, ok)
	assert.Equal(t, "light", out["device"])
}

func TestRepairJSON_RecoversObjectWithTrailingGarbage(t *testing.T) {
	out, ok := repairJSON(`{"device":"light","action":"on"} trailing garbage`)
	assert.True(t, ok)
	assert.Equal(t, "on", out["action"])
}

func TestRepairJSON_RejectsNonJSONText(t *testing.T) {
	_, ok := repairJSON(`not json at all`)
	assert.False(t, ok)
}

func TestFormatPrompt_UsesGrammarHintWhenPathSet(t *testing.T) {
	vocab := grammar.Vocabulary{DeviceTypes: []string{"light"}, Locations: []string{"lounge"}}
	got := formatPrompt("turn on the lounge light", topic.Topic{}, "/data/grammars/x.gbnf", vocab)
	assert.Contains(t, got, "Allowed devices: light")
	assert.Contains(t, got, "Allowed locations: lounge")
}

func TestFormatPrompt_PlainPromptWithoutGrammar(t *testing.T) {
	tp := topic.Topic{Settings: topic.Settings{ForceJSON: true}}
	got := formatPrompt("turn off the fan", tp, "", grammar.Vocabulary{})
	assert.Contains(t, got, "Output only a single JSON object and nothing else.")
	assert.Contains(t, got, "User: turn off the fan")
}
