package grammar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGrammar = `
root ::= "{" ws "\"device\":" ws device "," ws "\"action\":" ws action "," ws "\"location\":" ws location ws "}"
device ::= "\"light\"" | "\"switch\"" | "\"climate\""
location ::= "\"lounge\"" | "\"kitchen\"" | "\"bedroom\""
action ::= "\"on\"" | "\"off\""
ws ::= [ \t\n]*
`

func TestParseFile_ExtractsDeviceAndLocationVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backend.gbnf")
	require.NoError(t, os.WriteFile(path, []byte(sampleGrammar), 0o644))

	vocab, err := ParseFile(path)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"light", "switch", "climate"}, vocab.DeviceTypes)
	assert.ElementsMatch(t, []string{"lounge", "kitchen", "bedroom"}, vocab.Locations)
}

func TestParseFile_MissingFileReturnsError(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "does-not-exist.gbnf"))
	assert.Error(t, err)
}

func TestParseVocabulary_IgnoresUnrelatedRules(t *testing.T) {
	vocab := parseVocabulary("root ::= device\ndevice ::= \"fan\"\nnoise ::= \"ignored\"")
	assert.Equal(t, []string{"fan"}, vocab.DeviceTypes)
	assert.Empty(t, vocab.Locations)
}
