package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/threadkeep/internal/durable"
	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/root"
	"github.com/roach88/threadkeep/internal/syncer"
	"github.com/roach88/threadkeep/internal/testutil"
)

// Outcomes recorded in the trace besides precondition codes.
const (
	OutcomeOK      = "ok"
	OutcomeDropped = "dropped"
)

// Harness executes scenario steps against one replica.
type Harness struct {
	root    *root.Root
	applier *syncer.Applier
	clock   *testutil.FixedClock
	user    string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. An error
// is returned only when the scenario cannot run at all; mismatches are
// reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return run(ctx, scenario, nil)
}

// run executes the scenario and hands the live replica to inspect before
// it is closed.
func run(ctx context.Context, scenario *Scenario, inspect func(*Harness, *Result) error) (*Result, error) {
	st, err := durable.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := scenario.Start
	if start.IsZero() {
		start = DefaultStart
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios

	clock := testutil.NewFixedClock(start)
	r, err := root.New(root.Deps{
		Durable: st,
		Clock:   clock,
		IDs:     testutil.NewSequenceGenerator("id"),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	h := &Harness{
		root:    r,
		applier: syncer.NewApplier(r, nil, logger),
		clock:   clock,
		user:    scenario.User,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(msg)
	}

	if inspect != nil {
		if err := inspect(h, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, index int, step Step, result *Result) error {
	user := step.User
	if user == "" && !userless[step.Op] {
		user = h.user
	}

	id, err := h.apply(ctx, step, user)
	outcome := OutcomeOK
	var pe *root.PreconditionError
	switch {
	case err == nil:
	case errors.As(err, &pe):
		outcome = string(pe.Code)
	case model.IsIngestError(err), step.Op == OpDeliver:
		outcome = OutcomeDropped
	default:
		return err
	}
	result.addTrace(TraceEvent{Op: step.Op, User: user, ID: id, Outcome: outcome})

	want := OutcomeOK
	if step.Expect != nil {
		want = step.Expect.Error
	}
	if outcome != want {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", index, step.Op, want, outcome))
	}
	return nil
}

// apply runs one step and returns the id it created or touched.
func (h *Harness) apply(ctx context.Context, step Step, user string) (string, error) {
	a := args(step.Args)
	switch step.Op {
	case OpCreateConversation:
		conv, _, err := h.root.CreateConversation(ctx, root.CreateConversationInput{
			Title:        a.str("title"),
			OwnerID:      user,
			LLMsSelected: a.strs("llms"),
		})
		return conv.ID, err

	case OpCreateMessage:
		msg, err := h.root.CreateMessage(ctx, root.CreateMessageInput{
			ConversationID: a.str("conversation"),
			AuthorID:       user,
			ReplyToID:      a.str("reply_to"),
			Content:        a.str("content"),
		})
		return msg.ID, err

	case OpSelectBranch:
		_, err := h.root.SelectBranch(ctx, a.str("conversation"), user, a.str("message"))
		return a.str("message"), err

	case OpHide:
		_, err := h.root.HideConversation(ctx, a.str("conversation"), user)
		return a.str("conversation"), err

	case OpShow:
		_, err := h.root.ShowConversation(ctx, a.str("conversation"), user)
		return a.str("conversation"), err

	case OpSetLLMs:
		_, err := h.root.SetConversationLLMs(ctx, a.str("conversation"), user, a.strs("llms"))
		return a.str("conversation"), err

	case OpDeliver:
		frame, err := json.Marshal(map[string]any{"type": step.Args["type"], "data": step.Args["data"]})
		if err != nil {
			return "", fmt.Errorf("encode delta: %w", err)
		}
		var id string
		if data, ok := step.Args["data"].(map[string]any); ok {
			id, _ = data["id"].(string)
		}
		return id, h.applier.Ingest(frame, syncer.SourcePush)

	case OpAdvance:
		d, err := time.ParseDuration(a.str("duration"))
		if err != nil {
			return "", fmt.Errorf("advance: %w", err)
		}
		h.clock.Advance(d)
		return "", nil

	case OpReset:
		return "", h.root.ClearAll(ctx)
	}
	return "", fmt.Errorf("unknown op %q", step.Op)
}

// args reads typed values from decoded YAML.
type args map[string]any

func (a args) str(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (a args) strs(key string) []string {
	list, _ := a[key].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
