package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prepvox/PrepVox/internal/models"
	"github.com/prepvox/PrepVox/internal/transport"
)

// CallStatus represents the lifecycle state of one interview session.
type CallStatus string

const (
	// CallStatusInactive is the initial state; no session is running.
	CallStatusInactive CallStatus = "inactive"
	// CallStatusConnecting means the call was requested but not yet established.
	CallStatusConnecting CallStatus = "connecting"
	// CallStatusActive means the session transport reported call-start.
	CallStatusActive CallStatus = "active"
	// CallStatusFinished is terminal; the session ended.
	CallStatusFinished CallStatus = "finished"
)

// ErrNoContent signals a session that ended with zero accumulated transcript
// messages; no feedback generation is attempted.
var ErrNoContent = errors.New("session ended with no transcript content")

// CallParams describes one interview session to run.
type CallParams struct {
	UserName    string
	UserID      string
	InterviewID string
	FeedbackID  string
	Type        models.InterviewType
	Questions   []string
	Role        string
	Level       string
	Techstack   []string
}

// Targets holds the session service identifiers the controller starts
// sessions against.
type Targets struct {
	// GenerateWorkflowID is the target for question-generating sessions.
	GenerateWorkflowID string
	// InterviewerAssistantID is the target for pre-authored question sessions.
	InterviewerAssistantID string
}

// Outcome is the terminal result of one session.
type Outcome struct {
	InterviewID string
	FeedbackID  string
	Err         error
}

// Controller orchestrates a single interview session: it creates the
// interview record when needed, starts the session transport, accumulates
// final transcript messages, and on session end triggers exactly one
// feedback-generation attempt. A Controller runs one session and is not
// reused.
type Controller struct {
	svc       *Service
	generator *Generator
	transport transport.Service
	targets   Targets
	params    CallParams

	mu          sync.Mutex
	status      CallStatus
	messages    []models.TranscriptMessage
	lastMessage string
	speaking    bool
	outcome     Outcome

	done chan struct{}
}

// NewController creates a Controller in the Inactive state.
func NewController(svc *Service, gen *Generator, ts transport.Service, targets Targets, params CallParams) *Controller {
	return &Controller{
		svc:       svc,
		generator: gen,
		transport: ts,
		targets:   targets,
		params:    params,
		status:    CallStatusInactive,
		done:      make(chan struct{}),
	}
}

// StartCall transitions Inactive to Connecting and starts the session.
//
// For "generate" sessions without an interview identity, an Interview record
// is created first; if that creation fails the transport is never started
// and the controller returns to Inactive. Transport start failure behaves
// the same way.
func (c *Controller) StartCall(ctx context.Context) error {
	c.mu.Lock()
	if c.status != CallStatusInactive {
		defer c.mu.Unlock()
		return fmt.Errorf("call already started (status %s)", c.status)
	}
	c.status = CallStatusConnecting
	c.mu.Unlock()

	slog.Debug("Controller.StartCall: connecting", "type", c.params.Type, "interviewID", c.params.InterviewID)

	if c.params.Type == models.InterviewTypeGenerate && c.params.InterviewID == "" {
		id, err := c.svc.CreateInterview(models.Interview{
			UserID:    c.params.UserID,
			Role:      c.params.Role,
			Level:     c.params.Level,
			Techstack: c.params.Techstack,
			Type:      models.InterviewTypeGenerate,
		})
		if err != nil {
			slog.Error("Controller.StartCall: interview creation failed, returning to inactive", "error", err)
			c.setStatus(CallStatusInactive)
			return fmt.Errorf("could not create interview: %w", err)
		}
		c.params.InterviewID = id
	}

	var target string
	var variables map[string]string
	if c.params.Type == models.InterviewTypeGenerate {
		target = c.targets.GenerateWorkflowID
		variables = map[string]string{
			"username": c.params.UserName,
			"userid":   c.params.UserID,
		}
	} else {
		target = c.targets.InterviewerAssistantID
		variables = map[string]string{
			"questions": models.FormatBulletList(c.params.Questions),
		}
	}

	if err := c.transport.Start(ctx, target, variables); err != nil {
		slog.Error("Controller.StartCall: transport start failed, returning to inactive", "error", err)
		c.setStatus(CallStatusInactive)
		return fmt.Errorf("could not start session: %w", err)
	}

	go c.eventLoop(ctx)
	return nil
}

// Disconnect stops the session transport. The resulting call-end event
// drives the controller to Finished exactly as a remote hang-up would.
func (c *Controller) Disconnect() {
	slog.Debug("Controller.Disconnect invoked")
	if err := c.transport.Stop(); err != nil {
		slog.Warn("Controller.Disconnect: transport stop failed", "error", err)
	}
}

// Status returns the current lifecycle state.
func (c *Controller) Status() CallStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastMessage returns the most recent transcript text, including partial
// fragments, for display.
func (c *Controller) LastMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessage
}

// Speaking reports whether the remote party is currently speaking.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// InterviewID returns the session's interview identity, which may have been
// allocated during StartCall.
func (c *Controller) InterviewID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.InterviewID
}

// Done is closed once the session reaches its terminal outcome.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Outcome returns the terminal result. Only valid after Done is closed.
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

func (c *Controller) setStatus(status CallStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// eventLoop consumes session events until call-end (or the channel closing),
// then finishes the session. Transport errors are logged but do not force a
// transition; the transport's own call-end is authoritative.
func (c *Controller) eventLoop(ctx context.Context) {
	for evt := range c.transport.Events() {
		switch evt.Type {
		case models.SessionEventCallStart:
			slog.Info("Controller: call started", "interviewID", c.InterviewID())
			c.setStatus(CallStatusActive)

		case models.SessionEventTranscript:
			c.handleTranscript(evt)

		case models.SessionEventSpeechStart:
			c.mu.Lock()
			c.speaking = true
			c.mu.Unlock()

		case models.SessionEventSpeechEnd:
			c.mu.Lock()
			c.speaking = false
			c.mu.Unlock()

		case models.SessionEventError:
			slog.Error("Controller: transport error event", "error", evt.Err, "interviewID", c.InterviewID())

		case models.SessionEventCallEnd:
			slog.Info("Controller: call ended", "interviewID", c.InterviewID())
			c.finish(ctx)
			return
		}
	}
	// Channel closed without an explicit call-end event.
	c.finish(ctx)
}

// handleTranscript appends final fragments to the transcript in arrival
// order; partial fragments only update the transient last-shown message.
func (c *Controller) handleTranscript(evt models.SessionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastMessage = evt.Transcript
	if evt.IsFinalTranscript() {
		c.messages = append(c.messages, models.TranscriptMessage{Role: evt.Role, Content: evt.Transcript})
	}
}

// finish runs once per session: it transitions to Finished and, when the
// transcript is non-empty, hands it to the feedback generator exactly once.
func (c *Controller) finish(ctx context.Context) {
	c.mu.Lock()
	if c.status == CallStatusFinished {
		c.mu.Unlock()
		return
	}
	c.status = CallStatusFinished
	transcript := c.messages
	interviewID := c.params.InterviewID
	c.mu.Unlock()

	outcome := Outcome{InterviewID: interviewID}
	if len(transcript) == 0 {
		slog.Info("Controller: no transcript content, skipping feedback generation", "interviewID", interviewID)
		outcome.Err = ErrNoContent
	} else {
		feedbackID, err := c.generator.Generate(ctx, interviewID, c.params.UserID, transcript, c.params.FeedbackID)
		if err != nil {
			slog.Error("Controller: feedback generation failed", "error", err, "interviewID", interviewID)
			outcome.Err = err
		} else {
			outcome.FeedbackID = feedbackID
		}
	}

	c.mu.Lock()
	c.outcome = outcome
	c.mu.Unlock()
	close(c.done)
}
