package store

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// BuiltinSeed names the sample question set compiled into the binary.
const BuiltinSeed = "builtin"

//go:embed builtin_questions.yaml
var builtinQuestions []byte

// LoadSeedFile reads a YAML list of question records. The special path
// "builtin" yields the embedded sample set.
func LoadSeedFile(path string) ([]QuestionRecord, error) {
	data := builtinQuestions
	if path != BuiltinSeed {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
		}
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates seed records. Any invalid record rejects
// the whole batch.
func ParseSeed(data []byte) ([]QuestionRecord, error) {
	var records []QuestionRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}

	validate := validator.New()
	for i := range records {
		if err := validate.Struct(records[i]); err != nil {
			return nil, fmt.Errorf("seed record %d (%q): %w", i, records[i].Text, err)
		}
		if records[i].Tags == nil {
			records[i].Tags = []string{}
		}
	}
	return records, nil
}
