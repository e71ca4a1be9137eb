// Package privacy implements the mode machine that gates every cloud call,
// and the outbound prompt masking applied while in HYBRID mode.
package privacy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thalamus-ai/thalamus/pkg/config"
)

// maxSessionLog caps the in-memory session log so a long-lived process does
// not grow without bound.
const maxSessionLog = 1000

// ApprovalFunc decides a cloud-access request. Return true to approve.
// Implementations may block (e.g. prompting a human) but should honor ctx.
type ApprovalFunc func(ctx context.Context, provider, reason string) bool

// LogEntry is one privacy decision in the session log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Provider  string    `json:"provider,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Snapshot is a consistent read of controller state for the API surface.
type Snapshot struct {
	Mode             config.PrivacyMode `json:"mode"`
	CloudAllowed     bool               `json:"cloud_allowed"`
	EnabledProviders []string           `json:"enabled_providers"`
	LastCloudRequest *time.Time         `json:"last_cloud_request,omitempty"`
	Explanation      string             `json:"explanation"`
	SessionLogLen    int                `json:"session_log_len"`
}

// Controller is the process-wide privacy gatekeeper.
//
// It starts in the configured mode (LOCAL by default) and moves between
// LOCAL and HYBRID as providers are approved and disabled. CLOUD mode
// admits every available backend without per-provider approval.
//
// Invariant: mode == LOCAL implies the enabled set is empty.
type Controller struct {
	mu sync.RWMutex

	mode        config.PrivacyMode
	enabled     map[string]bool
	sessionLog  []LogEntry
	lastCloud   *time.Time
	autoConfirm bool
	approve     ApprovalFunc

	// available reports whether a backend can currently serve. Injected by
	// main as a registry closure so the controller stays free of backend
	// wiring.
	available func(ctx context.Context, provider string) bool

	clock func() time.Time
}

// NewController creates a controller in the given starting mode.
// available must not be nil.
func NewController(mode config.PrivacyMode, autoConfirm bool, available func(ctx context.Context, provider string) bool) *Controller {
	if !mode.IsValid() {
		mode = config.PrivacyModeLocal
	}
	return &Controller{
		mode:        mode,
		enabled:     make(map[string]bool),
		autoConfirm: autoConfirm,
		available:   available,
		clock:       time.Now,
	}
}

// SetApprovalFunc registers the approval callback. Without a callback and
// without auto-confirm, every cloud-access request is denied.
func (c *Controller) SetApprovalFunc(fn ApprovalFunc) {
	c.mu.Lock()
	c.approve = fn
	c.mu.Unlock()
}

// Mode returns the current privacy mode.
func (c *Controller) Mode() config.PrivacyMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// RequestCloudAccess asks to enable one cloud provider for this session.
// Approved requests move LOCAL→HYBRID and add the provider to the enabled
// set. Every request and its decision is appended to the session log.
func (c *Controller) RequestCloudAccess(ctx context.Context, provider, reason string) bool {
	c.mu.Lock()
	now := c.clock()
	c.lastCloud = &now
	c.appendLogLocked(LogEntry{Timestamp: now, Action: "request_cloud_access", Provider: provider, Reason: reason})

	if c.mode == config.PrivacyModeCloud || c.enabled[provider] {
		c.appendLogLocked(LogEntry{Timestamp: now, Action: "approved", Provider: provider, Reason: "already enabled"})
		c.mu.Unlock()
		return true
	}

	autoConfirm := c.autoConfirm
	approve := c.approve
	c.mu.Unlock()

	// Decide outside the lock: the callback may block on a human.
	approved := autoConfirm
	if !approved && approve != nil {
		approved = approve(ctx, provider, reason)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now = c.clock()
	if !approved {
		c.appendLogLocked(LogEntry{Timestamp: now, Action: "denied", Provider: provider, Reason: reason})
		return false
	}

	c.enabled[provider] = true
	if c.mode == config.PrivacyModeLocal {
		c.mode = config.PrivacyModeHybrid
	}
	c.appendLogLocked(LogEntry{Timestamp: now, Action: "approved", Provider: provider, Reason: reason})
	slog.Info("Cloud provider enabled", "provider", provider, "mode", c.mode)
	return true
}

// DisableProvider removes one provider from the enabled set. Disabling the
// last provider returns the controller to LOCAL.
func (c *Controller) DisableProvider(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.enabled, provider)
	c.appendLogLocked(LogEntry{Timestamp: c.clock(), Action: "disable_provider", Provider: provider})

	if len(c.enabled) == 0 && c.mode == config.PrivacyModeHybrid {
		c.mode = config.PrivacyModeLocal
		slog.Info("All cloud providers disabled, returning to LOCAL mode")
	}
}

// DisableAllCloud clears the enabled set and returns to LOCAL from any mode.
func (c *Controller) DisableAllCloud() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = make(map[string]bool)
	c.mode = config.PrivacyModeLocal
	c.appendLogLocked(LogEntry{Timestamp: c.clock(), Action: "disable_all_cloud"})
	slog.Info("Cloud access disabled", "mode", c.mode)
}

// CanUse reports whether the named cloud provider may be called right now:
// it must be enabled for this session (or the mode is CLOUD) and its
// backend must report available. The orchestrator consults this before
// every cloud generate.
func (c *Controller) CanUse(ctx context.Context, provider string) bool {
	c.mu.RLock()
	mode := c.mode
	enabled := c.enabled[provider]
	c.mu.RUnlock()

	switch mode {
	case config.PrivacyModeLocal:
		return false
	case config.PrivacyModeHybrid:
		if !enabled {
			return false
		}
	case config.PrivacyModeCloud:
		// every available provider is admitted
	}

	return c.available(ctx, provider)
}

// SessionLog returns a copy of the session log.
func (c *Controller) SessionLog() []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]LogEntry(nil), c.sessionLog...)
}

// Snapshot returns a consistent view of the controller for the API.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	providers := make([]string, 0, len(c.enabled))
	for p := range c.enabled {
		providers = append(providers, p)
	}

	return Snapshot{
		Mode:             c.mode,
		CloudAllowed:     c.mode != config.PrivacyModeLocal,
		EnabledProviders: providers,
		LastCloudRequest: c.lastCloud,
		Explanation:      explain(c.mode),
		SessionLogLen:    len(c.sessionLog),
	}
}

func explain(mode config.PrivacyMode) string {
	switch mode {
	case config.PrivacyModeLocal:
		return "All processing happens on this machine. No data leaves the host."
	case config.PrivacyModeHybrid:
		return "Approved cloud providers may receive masked prompts; everything else stays local."
	case config.PrivacyModeCloud:
		return "All configured providers may receive prompts without per-provider approval."
	default:
		return ""
	}
}

func (c *Controller) appendLogLocked(e LogEntry) {
	c.sessionLog = append(c.sessionLog, e)
	if len(c.sessionLog) > maxSessionLog {
		c.sessionLog = c.sessionLog[len(c.sessionLog)-maxSessionLog:]
	}
}
