// Package coordinator implements the preview/publish message pipeline client.
//
// The coordinator owns per-participant last-seen state, orchestrates dry-run
// preview calls against the backend's bot-processing endpoint, orchestrates
// publish calls, and diffs the resulting message feeds to decide whether
// genuinely new content arrived. The view layer only ever receives read-only
// snapshots of its state.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loopmsg/loopconsole/internal/client"
)

// Identity is one logical participant's session identity. It is replaced
// wholesale on re-login and never partially mutated.
type Identity struct {
	Key       string
	ProfileID string
	Token     string
	Label     string
}

// Participant is an identity plus its optional thread binding override.
type Participant struct {
	Identity
	ThreadID string
}

// RefreshState tracks what a participant's client has already reconciled.
type RefreshState struct {
	LastSeenID    string
	LastRefreshAt time.Time
	LastPreviewAt time.Time
}

// Outcome classifies a completed publish-then-fetch cycle.
type Outcome string

const (
	// OutcomeUpdated means genuinely new bot content arrived.
	OutcomeUpdated Outcome = "updated"
	// OutcomeUnchanged means the feed holds nothing newer than last seen
	// (which is distinct from the feed being empty).
	OutcomeUnchanged Outcome = "unchanged"
)

// SendResult separates the send's own outcome from the best-effort preview
// refresh that may follow it.
type SendResult struct {
	Message *client.Message

	// PreviewErr carries a preview-on-send failure. The send itself
	// succeeded whenever SendMessage returned a nil error.
	PreviewErr error
}

// RefreshResult is the render-ready outcome of PublishThenFetch.
type RefreshResult struct {
	Outcome   Outcome
	CheckedAt time.Time

	// Messages is the full fetched list, most-recent-first. Only populated
	// for OutcomeUpdated.
	Messages []client.Message

	// NewestID is the newest bot-addressed message id for OutcomeUpdated.
	NewestID string

	// PublishErr carries a publish-stage failure that did not abort the
	// fetch stage.
	PublishErr error

	// PreviewErr carries a preview-after-publish failure.
	PreviewErr error
}

// Config is the coordinator's construction-time configuration. It is
// validated once in New; call sites never null-guard individual fields.
type Config struct {
	ThreadID            string
	LoopID              string
	Limit               int
	PreviewOnSend       bool
	PreviewAfterPublish bool

	// LegacyAuth allows X-User-Id header auth for identities without a
	// bearer token.
	LegacyAuth bool

	OperatorToken string
	BotProfileID  string

	Participants []Participant
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLogger sets the logger for best-effort failures.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// Coordinator drives the two-phase preview/publish interaction with the
// backend and reconciles results into participant-specific views.
type Coordinator struct {
	api *client.Client

	threadID            string
	loopID              string
	limit               int
	previewOnSend       bool
	previewAfterPublish bool
	legacyAuth          bool
	operatorToken       string
	botProfileID        string

	now func() time.Time
	log *slog.Logger

	mu         sync.Mutex
	identities map[string]Identity
	threads    map[string]string // per-participant overrides only
	states     map[string]RefreshState
	previews   map[string]string

	// flight serializes PublishThenFetch per participant so overlapping
	// refreshes cannot interleave reconciliation.
	flight map[string]*sync.Mutex
}

// New validates cfg and builds a Coordinator.
func New(api *client.Client, cfg Config, opts ...Option) (*Coordinator, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: api client is required", ErrConfiguration)
	}
	if cfg.ThreadID == "" {
		return nil, fmt.Errorf("%w: shared thread_id is required", ErrConfiguration)
	}
	limit := cfg.Limit
	if limit == 0 {
		limit = 10
	}
	if limit < 1 || limit > 100 {
		return nil, fmt.Errorf("%w: limit must be between 1 and 100", ErrConfiguration)
	}

	c := &Coordinator{
		api:                 api,
		threadID:            cfg.ThreadID,
		loopID:              cfg.LoopID,
		limit:               limit,
		previewOnSend:       cfg.PreviewOnSend,
		previewAfterPublish: cfg.PreviewAfterPublish,
		legacyAuth:          cfg.LegacyAuth,
		operatorToken:       cfg.OperatorToken,
		botProfileID:        cfg.BotProfileID,
		now:                 time.Now,
		log:                 slog.Default(),
		identities:          make(map[string]Identity),
		threads:             make(map[string]string),
		states:              make(map[string]RefreshState),
		previews:            make(map[string]string),
		flight:              make(map[string]*sync.Mutex),
	}

	for _, p := range cfg.Participants {
		if p.Key == "" {
			return nil, fmt.Errorf("%w: participant key is empty", ErrConfiguration)
		}
		if _, dup := c.identities[p.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate participant key %q", ErrConfiguration, p.Key)
		}
		if p.ProfileID == "" {
			return nil, fmt.Errorf("%w: participant %q has no profile id", ErrConfiguration, p.Key)
		}
		c.identities[p.Key] = p.Identity
		if p.ThreadID != "" {
			c.threads[p.Key] = p.ThreadID
		}
		c.states[p.Key] = RefreshState{}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ThreadFor resolves the thread identifier for a participant key. Resolution
// is pure and total: keys without an override map to the shared thread.
func (c *Coordinator) ThreadFor(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.threads[key]; ok {
		return t
	}
	return c.threadID
}

// SetIdentity replaces a participant's identity wholesale (login/re-login).
func (c *Coordinator) SetIdentity(id Identity) error {
	if id.Key == "" || id.ProfileID == "" {
		return fmt.Errorf("%w: identity needs a key and a profile id", ErrConfiguration)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identities[id.Key] = id
	if _, ok := c.states[id.Key]; !ok {
		c.states[id.Key] = RefreshState{}
	}
	return nil
}

// ListenCredentials consumes identity updates pushed by the external auth
// collaborator until ctx is done or the channel closes. The coordinator
// never polls for credential changes itself.
func (c *Coordinator) ListenCredentials(ctx context.Context, updates <-chan Identity) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-updates:
			if !ok {
				return
			}
			if err := c.SetIdentity(id); err != nil {
				c.log.Warn("dropping credential update", "key", id.Key, "error", err)
			}
		}
	}
}

// SendMessage posts text to the backend for the given participant. It does
// not update local message lists; the backend stays the source of truth and
// callers refresh separately.
func (c *Coordinator) SendMessage(ctx context.Context, key, text string) (*SendResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: message text is empty", ErrValidation)
	}

	id, cred, err := c.participantCredential(key)
	if err != nil {
		return nil, err
	}
	thread := c.ThreadFor(key)
	if thread == "" {
		return nil, fmt.Errorf("%w: no thread resolves for participant %q", ErrConfiguration, key)
	}

	msg, err := c.api.SendMessage(ctx, cred, &client.SendMessageRequest{
		ThreadID: thread,
		UserID:   id.ProfileID,
		Content:  trimmed,
	})
	if err != nil {
		return nil, err
	}

	result := &SendResult{Message: msg}
	if c.previewOnSend {
		if err := c.RefreshPreviews(ctx); err != nil {
			result.PreviewErr = err
			c.log.Warn("preview refresh after send failed", "participant", key, "error", err)
		}
	}
	return result, nil
}

// RefreshPreviews issues a single dry-run bot-processing call for the shared
// thread and rebuilds the preview map from the proposals it returns. A
// participant with no proposal addressed to them simply ends up without a
// preview; that is not an error.
func (c *Coordinator) RefreshPreviews(ctx context.Context) error {
	op := c.operatorCredential()
	if op.IsZero() {
		return fmt.Errorf("%w: operator credential is not configured", ErrAuthenticationMissing)
	}

	resp, err := c.api.BotProcess(ctx, op, &client.BotProcessRequest{
		ThreadID: c.threadID,
		Limit:    c.limit,
		DryRun:   true,
	})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("bot processing refused: %s", resp.Reason)
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	fresh := make(map[string]string, len(c.identities))
	for key, id := range c.identities {
		content, ok := firstPreviewFor(resp.Items, id.ProfileID)
		if !ok {
			continue
		}
		fresh[key] = content
		st := c.states[key]
		st.LastPreviewAt = now
		c.states[key] = st
	}
	c.previews = fresh
	return nil
}

// PublishThenFetch runs the strict two-stage refresh cycle for a participant:
// publish pending bot messages (failure recorded, not fatal), fetch the
// participant's feed (failure fatal), then reconcile against the stored
// last-seen identifier to distinguish "unchanged" from "updated".
func (c *Coordinator) PublishThenFetch(ctx context.Context, key string) (*RefreshResult, error) {
	id, cred, err := c.participantCredential(key)
	if err != nil {
		return nil, err
	}

	lock := c.flightLock(key)
	lock.Lock()
	defer lock.Unlock()

	result := &RefreshResult{}

	// Stage 1: publish. The fetch still runs on failure; whatever is already
	// committed may be new to this participant.
	if op := c.operatorCredential(); op.IsZero() {
		result.PublishErr = fmt.Errorf("%w: operator credential is not configured", ErrAuthenticationMissing)
		c.log.Warn("publish skipped", "participant", key, "error", result.PublishErr)
	} else if resp, err := c.api.BotProcess(ctx, op, &client.BotProcessRequest{
		ThreadID: c.threadID,
		Limit:    c.limit,
		DryRun:   false,
	}); err != nil {
		result.PublishErr = err
		c.log.Warn("publish failed", "participant", key, "error", err)
	} else if !resp.OK {
		result.PublishErr = fmt.Errorf("bot processing refused: %s", resp.Reason)
		c.log.Warn("publish refused", "participant", key, "reason", resp.Reason)
	}

	// Stage 2: fetch with the participant's own credential.
	fetched, err := c.api.GetMessages(ctx, cred, &client.GetMessagesRequest{
		ThreadID: c.ThreadFor(key),
		UserID:   id.ProfileID,
	})
	if err != nil {
		return nil, err
	}

	// Stage 3: reconcile.
	now := c.now()
	result.CheckedAt = now
	newest, found := newestBotMessage(fetched.Items, id.ProfileID)

	c.mu.Lock()
	st := c.states[key]
	if !found || newest.ID == st.LastSeenID {
		result.Outcome = OutcomeUnchanged
		st.LastRefreshAt = now
		c.states[key] = st
	} else {
		result.Outcome = OutcomeUpdated
		result.NewestID = newest.ID
		result.Messages = sortMessagesDesc(fetched.Items)
		st.LastSeenID = newest.ID
		st.LastRefreshAt = now
		c.states[key] = st
		// A committed message supersedes its own preview.
		delete(c.previews, key)
	}
	c.mu.Unlock()

	// Stage 4: best-effort preview refresh for the other side.
	if c.previewAfterPublish {
		if err := c.RefreshPreviews(ctx); err != nil {
			result.PreviewErr = err
			c.log.Warn("preview refresh after publish failed", "participant", key, "error", err)
		}
	}

	return result, nil
}

// Preview returns the pending preview text for a participant, if any.
func (c *Coordinator) Preview(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.previews[key]
	return text, ok
}

// State returns a participant's refresh state snapshot.
func (c *Coordinator) State(key string) (RefreshState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[key]
	return st, ok
}

// Participants returns the known identities sorted by key.
func (c *Coordinator) Participants() []Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Identity, 0, len(c.identities))
	for _, id := range c.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Coordinator) participantCredential(key string) (Identity, client.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.identities[key]
	if !ok {
		return Identity{}, client.Credential{}, fmt.Errorf("%w: unknown participant %q", ErrAuthenticationMissing, key)
	}
	cred := c.credentialFor(id)
	if cred.IsZero() {
		return Identity{}, client.Credential{}, fmt.Errorf("%w: participant %q has no credential", ErrAuthenticationMissing, key)
	}
	return id, cred, nil
}

func (c *Coordinator) credentialFor(id Identity) client.Credential {
	if id.Token != "" {
		return client.Credential{Token: id.Token, ProfileID: id.ProfileID}
	}
	if c.legacyAuth {
		return client.Credential{ProfileID: id.ProfileID}
	}
	return client.Credential{}
}

func (c *Coordinator) operatorCredential() client.Credential {
	if c.operatorToken != "" {
		return client.Credential{Token: c.operatorToken, ProfileID: c.botProfileID}
	}
	if c.legacyAuth && c.botProfileID != "" {
		return client.Credential{ProfileID: c.botProfileID}
	}
	return client.Credential{}
}

func (c *Coordinator) flightLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.flight[key]
	if !ok {
		lock = &sync.Mutex{}
		c.flight[key] = lock
	}
	return lock
}

// firstPreviewFor returns the first proposal addressed to profileID across
// the response items, in backend order.
func firstPreviewFor(items []client.BotProcessItem, profileID string) (string, bool) {
	for _, item := range items {
		for _, p := range item.Previews {
			if p.RecipientProfileID == profileID {
				return p.Content, true
			}
		}
	}
	return "", false
}

// newestBotMessage selects the bot-authored message addressed to profileID
// with the latest creation timestamp. Equal timestamps have no secondary
// tie-break: the later entry in backend array order wins.
func newestBotMessage(items []client.Message, profileID string) (client.Message, bool) {
	var best client.Message
	var bestAt time.Time
	found := false
	for _, m := range items {
		if m.Audience != client.AudienceBotToUser || m.RecipientProfileID != profileID {
			continue
		}
		at := parseCreatedAt(m.CreatedAt)
		if !found || !at.Before(bestAt) {
			best, bestAt, found = m, at, true
		}
	}
	return best, found
}

// sortMessagesDesc returns a copy sorted most-recent-first. The sort is
// stable so equal timestamps keep backend order.
func sortMessagesDesc(items []client.Message) []client.Message {
	out := make([]client.Message, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return parseCreatedAt(out[i].CreatedAt).After(parseCreatedAt(out[j].CreatedAt))
	})
	return out
}

func parseCreatedAt(s string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		ts, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}
		}
	}
	return ts
}
