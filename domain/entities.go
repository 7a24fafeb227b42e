package domain

import "github.com/rhesis-ai/rhesis-backend/fieldcrypt"

// Table names
const (
	TableTest       = "test"
	TableTestSet    = "test_set"
	TableTestRun    = "test_run"
	TableTestResult = "test_result"
	TableModel      = "model"
)

type Test struct {
	Base
	Prompt    string `db:"prompt" json:"prompt"`
	Behavior  string `db:"behavior" json:"behavior"`
	Category  string `db:"category" json:"category"`
	TestSetID string `db:"test_set_id" json:"test_set_id" index:"true"`
}

type TestSet struct {
	Base
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

type TestRun struct {
	Base
	Name       string         `db:"name" json:"name"`
	TestSetID  string         `db:"test_set_id" json:"test_set_id"`
	Status     string         `db:"status" json:"status"`
	Attributes map[string]any `db:"attributes" json:"attributes,omitempty" nullable:"true"`
}

// TestResult rows follow their TestRun through soft deletion and restore
type TestResult struct {
	Base
	TestRunID  string         `db:"test_run_id" json:"test_run_id" index:"true"`
	TestID     string         `db:"test_id" json:"test_id"`
	Status     string         `db:"status" json:"status"`
	TestOutput map[string]any `db:"test_output" json:"test_output,omitempty" nullable:"true"`
}

// Model is an LLM endpoint configuration; the API key is stored encrypted
type Model struct {
	Base
	Name      string                     `db:"name" json:"name"`
	Provider  string                     `db:"provider" json:"provider"`
	ModelName string                     `db:"model_name" json:"model_name"`
	Endpoint  string                     `db:"endpoint" json:"endpoint"`
	APIKey    fieldcrypt.EncryptedString `db:"api_key" json:"api_key"`
}
