package grammar_test

import (
	"os"
	"testing"

	"github.com/oraclab/oraccore/internal/grammar"
)

func TestGenerateAndSave_WritesAtomically(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	rec := sampleRecord()

	result, err := grammar.GenerateAndSave(dir, rec)
	if err != nil {
		t.Fatalf("GenerateAndSave: %v", err)
	}

	data, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("read saved grammar: %v", err)
	}
	if string(data) != result.Text {
		t.Error("saved file content does not match returned Text")
	}
}
