package governance

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/llm"
	"github.com/thalamus-ai/thalamus/pkg/memory"
	"github.com/thalamus-ai/thalamus/pkg/observe"
	"github.com/thalamus-ai/thalamus/pkg/orchestrator"
)

// windowMessages caps the rolling per-user conversation window passed as
// model context (user+assistant pairs, so 20 messages is 10 turns).
const windowMessages = 20

// DefaultUserID is used when a request does not name a user.
const DefaultUserID = "default"

// Generator is the orchestrator seam.
type Generator interface {
	Generate(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// GovernanceInfo summarizes the routing decisions made for a request.
type GovernanceInfo struct {
	Context           CommContext      `json:"context"`
	ContextConfidence float64          `json:"context_confidence"`
	TaskType          TaskType         `json:"task_type"`
	Agents            []Recommendation `json:"agents"`
}

// Response is the rich result of one processed input.
type Response struct {
	Response string `json:"response"`
	// FullResponse carries the untruncated text when the verbosity
	// post-edit shortened the display text; empty otherwise.
	FullResponse string             `json:"full_response,omitempty"`
	Provider     string             `json:"provider"`
	Consensus    bool               `json:"consensus"`
	Governance   GovernanceInfo     `json:"governance"`
	Profile      *brain.CommProfile `json:"communication_profile"`
	Quality      *Assessment        `json:"quality"`
	Timestamp    time.Time          `json:"timestamp"`
	UserID       string             `json:"user_id"`
}

// Engine is the public entry point: it composes context detection,
// classification, agent selection, generation, quality checking and
// memory into one pipeline.
type Engine struct {
	generator Generator
	selector  *Selector
	communer  *Communer
	checker   *Checker
	memory    *memory.Integration
	store     *brain.Store
	metrics   *observe.Metrics
	logger    *slog.Logger
	clock     func() time.Time

	mu      sync.Mutex
	windows map[string][]llm.Message
}

// NewEngine wires the governance pipeline. A nil clock means wall time.
func NewEngine(generator Generator, selector *Selector, communer *Communer, checker *Checker, mem *memory.Integration, store *brain.Store, clock func() time.Time, metrics *observe.Metrics, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		generator: generator,
		selector:  selector,
		communer:  communer,
		checker:   checker,
		memory:    mem,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
		windows:   make(map[string][]llm.Message),
	}
}

// Plan classifies an input and ranks agents without generating. The
// WebSocket handler uses it for the classification frame.
func (e *Engine) Plan(ctx context.Context, input string) (Classification, []Recommendation) {
	cls := Classify(input)
	return cls, e.selector.Select(ctx, cls)
}

var cveFindingRe = regexp.MustCompile(`\bCVE-\d{4}-\d{4,7}\b`)

// ProcessInput runs the full governance pipeline for one user input.
// hints carries request metadata: role, system_call, feedback, consensus.
func (e *Engine) ProcessInput(ctx context.Context, input, userID string, hints map[string]string) (*Response, error) {
	start := e.clock()
	if userID == "" {
		userID = DefaultUserID
	}

	commCtx, detectConf := DetectContext(input, hints)
	profile, profileConf := e.communer.ProfileFor(ctx, userID, commCtx, detectConf)

	if fb := hints["feedback"]; fb != "" {
		if err := e.communer.Learn(ctx, profile, fb); err != nil {
			e.logger.Warn("profile learning failed", "user_id", userID, "error", err)
		}
	}

	cls := Classify(input)
	agents := e.selector.Select(ctx, cls)
	systemPrompt := e.systemPromptFor(profile, agents)

	req := orchestrator.Request{
		Prompt:  input,
		System:  systemPrompt,
		Context: e.window(userID),
	}
	if v, ok := hints["consensus"]; ok {
		consensus := v == "true"
		req.Consensus = &consensus
	}

	result, err := e.generator.Generate(ctx, req)
	if err != nil {
		e.countRequest(ctx, "error", false)
		return nil, err
	}

	quality := e.checker.Check(ctx, input, result.Text)
	display, full := PostEdit(profile, result.Text)

	e.persist(ctx, input, full, userID, result, cls, agents, quality)
	e.pushWindow(userID, input, full)
	e.countRequest(ctx, "ok", result.Consensus)

	resp := &Response{
		Response:   display,
		Provider:   result.Provider,
		Consensus:  result.Consensus,
		Governance: GovernanceInfo{
			Context:           commCtx,
			ContextConfidence: profileConf,
			TaskType:          cls.TaskType,
			Agents:            agents,
		},
		Profile:    profile,
		Quality:    quality,
		Timestamp:  start,
		UserID:     userID,
	}
	if display != full {
		resp.FullResponse = full
	}
	return resp, nil
}

// systemPromptFor renders the profile instructions plus the lead agent's
// custom instructions.
func (e *Engine) systemPromptFor(profile *brain.CommProfile, agents []Recommendation) string {
	prompt := SystemPrompt(profile)
	if len(agents) == 0 {
		return prompt
	}
	if agent, err := e.selector.registry.Get(agents[0].Agent); err == nil && agent.CustomInstructions != "" {
		prompt += " " + agent.CustomInstructions
	}
	return prompt
}

// persist records everything learned from the exchange. Storage failures
// are logged; they never fail the request.
func (e *Engine) persist(ctx context.Context, input, response, userID string, result *orchestrator.Result, cls Classification, agents []Recommendation, quality *Assessment) {
	e.memory.Capture(ctx, input, memory.CaptureOptions{
		Topic:      strings.ToLower(string(cls.TaskType)),
		Response:   response,
		UserID:     userID,
		ModelsUsed: []string{result.Provider},
	})

	if len(agents) > 0 {
		err := e.store.TrackSkillUse(ctx, agents[0].Agent, quality.IsClean, string(quality.Level))
		if err != nil {
			e.logger.Warn("skill tracking failed", "agent", agents[0].Agent, "error", err)
		}
	}

	if err := e.store.RecordUserEvent(ctx, userID, "chat", map[string]string{
		"task_type": string(cls.TaskType),
		"provider":  result.Provider,
	}); err != nil {
		e.logger.Warn("user event record failed", "error", err)
	}

	for _, flag := range quality.Flags {
		if err := e.store.RecordPattern(ctx, "quality_flag", flag, false); err != nil {
			e.logger.Warn("quality pattern record failed", "error", err)
		}
	}

	if cls.TaskType == TaskSecurity {
		for _, cve := range cveFindingRe.FindAllString(strings.ToUpper(input), -1) {
			if err := e.store.RecordFinding(ctx, cve, "mentioned in chat", "info"); err != nil {
				e.logger.Warn("finding record failed", "cve", cve, "error", err)
			}
		}
	}
}

// Clear drops a user's rolling conversation window.
func (e *Engine) Clear(userID string) {
	if userID == "" {
		userID = DefaultUserID
	}
	e.mu.Lock()
	delete(e.windows, userID)
	e.mu.Unlock()
}

func (e *Engine) window(userID string) []llm.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]llm.Message(nil), e.windows[userID]...)
}

func (e *Engine) pushWindow(userID, input, response string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := append(e.windows[userID],
		llm.Message{Role: "user", Content: input},
		llm.Message{Role: "assistant", Content: response})
	if len(w) > windowMessages {
		w = w[len(w)-windowMessages:]
	}
	e.windows[userID] = w
}

func (e *Engine) countRequest(ctx context.Context, status string, consensus bool) {
	if e.metrics == nil {
		return
	}
	e.metrics.ChatRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.Bool("consensus", consensus),
	))
}
