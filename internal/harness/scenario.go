package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStart is the clock start when a scenario sets none.
var DefaultStart = time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)

// Scenario is one scripted replica session.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// User acts for steps that name no user.
	User string `yaml:"user"`

	// Start is the initial clock time. Zero uses DefaultStart.
	Start time.Time `yaml:"start,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation against the replica.
type Step struct {
	Op   string         `yaml:"op"`
	User string         `yaml:"user,omitempty"`
	Args map[string]any `yaml:"args,omitempty"`

	// Expect names the expected failure. Nil expects success.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected step failure.
type ExpectClause struct {
	// Error is a precondition code, or "dropped" for a rejected delivery.
	Error string `yaml:"error"`
}

// Assertion validates the replica after all steps ran.
type Assertion struct {
	Type string `yaml:"type"`

	Conversation string `yaml:"conversation,omitempty"`
	// User defaults to the scenario user.
	User string `yaml:"user,omitempty"`

	// Text is the expected rendering (tree).
	Text string `yaml:"text,omitempty"`

	// IDs is the expected id sequence (thread, conversations).
	IDs []string `yaml:"ids,omitempty"`

	// Count is the expected count (daily_count).
	Count int `yaml:"count,omitempty"`

	// Kind and ID select an entity; Expect is a subset match on its JSON
	// fields and Absent expects no entity (entity).
	Kind   string         `yaml:"kind,omitempty"`
	ID     string         `yaml:"id,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Absent bool           `yaml:"absent,omitempty"`
}

// Step operations.
const (
	OpCreateConversation = "create_conversation"
	OpCreateMessage      = "create_message"
	OpSelectBranch       = "select_branch"
	OpHide               = "hide"
	OpShow               = "show"
	OpSetLLMs            = "set_llms"
	OpDeliver            = "deliver"
	OpAdvance            = "advance"
	OpReset              = "reset"
)

// Assertion types.
const (
	AssertTree          = "tree"
	AssertThread        = "thread"
	AssertConversations = "conversations"
	AssertDailyCount    = "daily_count"
	AssertEntity        = "entity"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Start.IsZero() {
		scenario.Start = DefaultStart
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, s.User); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// required lists the args each operation needs.
var required = map[string][]string{
	OpCreateConversation: {"title"},
	OpCreateMessage:      {"conversation", "content"},
	OpSelectBranch:       {"conversation", "message"},
	OpHide:               {"conversation"},
	OpShow:               {"conversation"},
	OpSetLLMs:            {"conversation"},
	OpDeliver:            {"type", "data"},
	OpAdvance:            {"duration"},
	OpReset:              {},
}

// userless operations run without an acting user.
var userless = map[string]bool{OpDeliver: true, OpAdvance: true, OpReset: true}

func validateStep(index int, step *Step, defaultUser string) error {
	if step.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", index)
	}
	keys, ok := required[step.Op]
	if !ok {
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	for _, k := range keys {
		if _, ok := step.Args[k]; !ok {
			return fmt.Errorf("steps[%d]: %s requires arg %q", index, step.Op, k)
		}
	}
	if !userless[step.Op] && step.User == "" && defaultUser == "" {
		return fmt.Errorf("steps[%d]: %s needs a user (step or scenario)", index, step.Op)
	}
	if step.Expect != nil && step.Expect.Error == "" {
		return fmt.Errorf("steps[%d].expect: error is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTree, AssertThread:
		if a.Conversation == "" {
			return fmt.Errorf("assertions[%d]: conversation is required for %s", index, a.Type)
		}
	case AssertConversations, AssertDailyCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertEntity:
		if a.Kind == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: kind and id are required for entity", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for entity", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
