package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// PayloadScenario groups key payloads that must, or must not, derive the
// same cache key.
type PayloadScenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Payloads    []any  `json:"payloads"`
	SameKey     bool   `json:"sameKey"`
}

// LoadPayloadScenarios reads testdata/<filename> as a list of scenarios.
func LoadPayloadScenarios(t testing.TB, filename string) []PayloadScenario {
	t.Helper()

	var scenarios struct {
		Scenarios []PayloadScenario `json:"scenarios"`
	}
	LoadFixtureJSON(t, FixturePath(filename), &scenarios)

	if len(scenarios.Scenarios) == 0 {
		t.Fatalf("fixture %s holds no scenarios", filename)
	}
	return scenarios.Scenarios
}
