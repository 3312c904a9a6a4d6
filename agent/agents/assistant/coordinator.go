package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

const (
	DefaultMaxHistory     = 10
	DefaultInputMaxLength = 1000

	apologyPrefix = "I apologize, but I encountered an error: "
	imageSuffix   = " [with image]"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooLong  = errors.New("message is too long")
	ErrImageNotEnabled = fmt.Errorf("%w: no image workflow configured", contractx.ErrImageUnsupported)
)

type Config struct {
	MaxHistory     int `envconfig:"MAX_HISTORY" default:"10"`
	InputMaxLength int `envconfig:"INPUT_MAX_LENGTH" default:"1000"`
}

// Processor runs one turn over a conversation state.
type Processor interface {
	Process(ctx context.Context, st *statex.ConversationState) *statex.ConversationState
}

// Dependencies wires the coordinator. Store, Images, Observer and Metrics
// are optional.
type Dependencies struct {
	Store        statex.Store
	Orchestrator Processor
	Images       contractx.ImageWorkflow
	Observer     contractx.TurnObserver
	Metrics      contractx.MetricsProvider
}

type TurnRequest struct {
	Text      string `json:"message"`
	Image     string `json:"image,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type TurnResult struct {
	Response  string                  `json:"response"`
	SessionID string                  `json:"session_id"`
	Intent    statex.Intent           `json:"intent"`
	Context   statex.TurnContext      `json:"context"`
	ToolCalls []statex.ToolCallRecord `json:"tool_calls"`
	Error     string                  `json:"error,omitempty"`
}

// Coordinator owns the session lifecycle around the orchestrator.
type Coordinator struct {
	store        statex.Store
	orchestrator Processor
	images       contractx.ImageWorkflow
	observer     contractx.TurnObserver
	metrics      contractx.MetricsProvider

	maxHistory     int
	inputMaxLength int

	locks *sessionLocks
	now   func() time.Time
	newID func() string
}

func New(deps Dependencies, cfg Config) (*Coordinator, error) {
	if deps.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if deps.Store == nil {
		logx.Warn().Msg("no session store configured, sessions will not persist")
	}

	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	inputMax := cfg.InputMaxLength
	if inputMax <= 0 {
		inputMax = DefaultInputMaxLength
	}

	return &Coordinator{
		store:          deps.Store,
		orchestrator:   deps.Orchestrator,
		images:         deps.Images,
		observer:       deps.Observer,
		metrics:        deps.Metrics,
		maxHistory:     maxHistory,
		inputMaxLength: inputMax,
		locks:          newSessionLocks(),
		now:            time.Now,
		newID:          uuid.NewString,
	}, nil
}

// ProcessMessage runs one user turn. Failures are reported in
// TurnResult.Error; the call itself never fails.
func (c *Coordinator) ProcessMessage(ctx context.Context, req TurnRequest) (res TurnResult) {
	start := c.now()
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = c.newID()
	}

	defer func() {
		if r := recover(); r != nil {
			logx.Session(sessionID).Error().Interface("panic", r).Msg("turn panicked")
			res = errorResult(sessionID, fmt.Errorf("internal error: %v", r))
		}
		c.observe(res, c.now().Sub(start))
	}()

	if err := c.validate(req); err != nil {
		return errorResult(sessionID, err)
	}

	release, err := c.locks.acquire(ctx, sessionID)
	if err != nil {
		return errorResult(sessionID, err)
	}
	defer release()

	st := c.loadOrCreate(ctx, sessionID)

	if strings.TrimSpace(req.Image) != "" {
		if c.images == nil {
			return errorResult(sessionID, ErrImageNotEnabled)
		}
		st = c.runImageTurn(ctx, st, req)
	} else {
		st.BeginTurn()
		st.AppendMessage(statex.RoleUser, req.Text)
		st.TrimHistory(2 * c.maxHistory)
		st = c.orchestrator.Process(ctx, st)
		if st == nil {
			return errorResult(sessionID, fmt.Errorf("%w: orchestrator returned no state", contractx.ErrValidation))
		}
	}

	if err := ctx.Err(); err != nil {
		logx.Session(sessionID).Warn().Err(err).Msg("turn cancelled, state not saved")
		return errorResult(sessionID, err)
	}

	st.Touch(c.now())
	c.save(ctx, st)

	return resultFromState(st)
}

func (c *Coordinator) validate(req TurnRequest) error {
	hasImage := strings.TrimSpace(req.Image) != ""
	if strings.TrimSpace(req.Text) == "" && !hasImage {
		return ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(req.Text); n > c.inputMaxLength {
		return fmt.Errorf("%w: %d characters, limit is %d", ErrMessageTooLong, n, c.inputMaxLength)
	}
	return nil
}

func (c *Coordinator) runImageTurn(ctx context.Context, st *statex.ConversationState, req TurnRequest) *statex.ConversationState {
	st.BeginTurn()
	st.AppendMessage(statex.RoleUser, req.Text+imageSuffix)
	st.TrimHistory(2 * c.maxHistory)
	st.CurrentIntent = statex.IntentTool
	st.NeedsTool = true

	out, err := c.images.Process(ctx, contractx.ImageRequest{
		SessionID: st.SessionID,
		Text:      req.Text,
		Image:     req.Image,
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("image workflow failed")
		st.SetError(err)
		st.AppendMessage(statex.RoleAssistant, apologyPrefix+err.Error())
		return st
	}

	st.AppendMessage(statex.RoleAssistant, out.Response)
	st.Context = out.Context
	st.ToolCalls = out.ToolCalls
	return st
}

// loadOrCreate treats every load problem as "no prior state".
func (c *Coordinator) loadOrCreate(ctx context.Context, sessionID string) *statex.ConversationState {
	fresh := func() *statex.ConversationState {
		return statex.NewConversationState(sessionID, c.now())
	}
	if c.store == nil {
		return fresh()
	}

	blob, err := c.store.Load(ctx, sessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		logx.Session(sessionID).Debug().Msg("starting new session")
		return fresh()
	}
	if err != nil {
		logx.Session(sessionID).Warn().Err(err).Msg("failed to load session, starting fresh")
		return fresh()
	}

	st, err := statex.UnmarshalConversationState(blob)
	if err != nil {
		logx.Session(sessionID).Warn().Err(err).Msg("discarding unreadable session state")
		return fresh()
	}
	st.SessionID = sessionID
	return st
}

func (c *Coordinator) save(ctx context.Context, st *statex.ConversationState) {
	if c.store == nil {
		return
	}
	blob, err := st.Marshal()
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("failed to encode session state")
		return
	}
	if err := c.store.Save(ctx, st.SessionID, blob); err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("failed to save session state")
	}
}

func (c *Coordinator) observe(res TurnResult, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	names := make([]string, 0, len(res.ToolCalls))
	for _, call := range res.ToolCalls {
		names = append(names, call.Tool)
	}
	c.observer.ObserveTurn(contractx.TurnObservation{
		SessionID: res.SessionID,
		Intent:    res.Intent,
		Duration:  elapsed,
		ToolCalls: names,
		Error:     res.Error,
		At:        c.now(),
	})
}

// ClearSession deletes the stored session and reports whether it existed.
func (c *Coordinator) ClearSession(ctx context.Context, sessionID string) bool {
	sessionID = strings.TrimSpace(sessionID)
	if c.store == nil || sessionID == "" {
		return false
	}

	release, err := c.locks.acquire(ctx, sessionID)
	if err != nil {
		return false
	}
	defer release()

	if err := c.store.Delete(ctx, sessionID); err != nil {
		if !errors.Is(err, statex.ErrStateNotFound) {
			logx.Session(sessionID).Error().Err(err).Msg("failed to clear session")
		}
		return false
	}
	logx.Session(sessionID).Info().Msg("session cleared")
	return true
}

// GetHistory returns the stored messages, or an empty list when the session
// is unknown or unreadable.
func (c *Coordinator) GetHistory(ctx context.Context, sessionID string) []statex.Message {
	sessionID = strings.TrimSpace(sessionID)
	if c.store == nil || sessionID == "" {
		return []statex.Message{}
	}
	blob, err := c.store.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, statex.ErrStateNotFound) {
			logx.Session(sessionID).Warn().Err(err).Msg("failed to load history")
		}
		return []statex.Message{}
	}
	st, err := statex.UnmarshalConversationState(blob)
	if err != nil {
		logx.Session(sessionID).Warn().Err(err).Msg("failed to decode history")
		return []statex.Message{}
	}
	return append([]statex.Message{}, st.Messages...)
}

// ListSessions returns the ids of stored sessions.
func (c *Coordinator) ListSessions(ctx context.Context) ([]string, error) {
	if c.store == nil {
		return []string{}, nil
	}
	ids, err := c.store.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (c *Coordinator) GetMetrics(ctx context.Context) contractx.MetricsSnapshot {
	if c.metrics == nil {
		return contractx.EmptyMetrics()
	}
	snap, err := c.metrics.Snapshot(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("failed to collect metrics")
		return contractx.EmptyMetrics()
	}
	if snap.RecentActivity == nil {
		snap.RecentActivity = []contractx.Activity{}
	}
	return snap
}

func resultFromState(st *statex.ConversationState) TurnResult {
	res := TurnResult{
		SessionID: st.SessionID,
		Intent:    st.CurrentIntent,
		Context:   st.Context,
		ToolCalls: st.ToolCalls,
		Error:     st.Error,
	}
	if res.ToolCalls == nil {
		res.ToolCalls = []statex.ToolCallRecord{}
	}
	if last, ok := st.LastMessage(); ok && last.Role == statex.RoleAssistant {
		res.Response = last.Content
	} else {
		res.Response = apologyPrefix + st.Error
	}
	return res
}

func errorResult(sessionID string, err error) TurnResult {
	return TurnResult{
		Response:  apologyPrefix + err.Error(),
		SessionID: sessionID,
		Intent:    statex.IntentUnknown,
		ToolCalls: []statex.ToolCallRecord{},
		Error:     err.Error(),
	}
}
