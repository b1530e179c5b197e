package orchestrator

import "sync"

// SteeringMessage is injected between tool-loop iterations, interrupting
// remaining tool calls the provider requested this turn when
// SkipRemainingTools is set. Grounded on internal/agent/steering.go's
// SteeringMessage, narrowed to this orchestrator's text-only message model
// (no attachments/priority field, since nothing here consumes them).
type SteeringMessage struct {
	Text               string
	SkipRemainingTools bool
}

// FollowUpMessage is queued to continue the current turn once the agent
// would otherwise stop, rather than waiting for a fresh user message.
type FollowUpMessage struct {
	Text string
}

// SteeringMode controls how many queued steering messages GetSteeringMessages
// hands back at once.
type SteeringMode string

const (
	SteeringOneAtATime SteeringMode = "one-at-a-time"
	SteeringAll        SteeringMode = "all"
)

// FollowUpMode controls how many queued follow-up messages GetFollowUpMessages
// hands back at once.
type FollowUpMode string

const (
	FollowUpOneAtATime FollowUpMode = "one-at-a-time"
	FollowUpAll        FollowUpMode = "all"
)

// SteeringQueue lets an operator interrupt a session's in-flight turn or
// queue a continuation for when it finishes. One queue exists per session,
// looked up by Orchestrator.Steering; it is safe for concurrent use since
// the queuing side and the orchestrator's tool loop run on different
// goroutines in general. Grounded on internal/agent/steering.go's
// SteeringQueue.
type SteeringQueue struct {
	mu sync.Mutex

	steering []*SteeringMessage
	followUp []*FollowUpMessage

	steeringMode SteeringMode
	followUpMode FollowUpMode
}

// NewSteeringQueue creates a queue with one-at-a-time delivery for both
// steering and follow-up messages.
func NewSteeringQueue() *SteeringQueue {
	return &SteeringQueue{steeringMode: SteeringOneAtATime, followUpMode: FollowUpOneAtATime}
}

// SetSteeringMode configures how many queued steering messages are
// delivered per drain.
func (q *SteeringQueue) SetSteeringMode(mode SteeringMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steeringMode = mode
}

// SetFollowUpMode configures how many queued follow-up messages are
// delivered per drain.
func (q *SteeringQueue) SetFollowUpMode(mode FollowUpMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.followUpMode = mode
}

// Steer queues a message to interrupt the turn currently running for this
// session, delivered the next time the tool loop checks between
// iterations.
func (q *SteeringQueue) Steer(msg *SteeringMessage) {
	if msg == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steering = append(q.steering, msg)
}

// SteerText is a convenience wrapper queuing a plain-text steering message.
func (q *SteeringQueue) SteerText(text string) {
	q.Steer(&SteeringMessage{Text: text})
}

// FollowUp queues a message to continue the turn once it would otherwise
// stop.
func (q *SteeringQueue) FollowUp(msg *FollowUpMessage) {
	if msg == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.followUp = append(q.followUp, msg)
}

// FollowUpText is a convenience wrapper queuing a plain-text follow-up
// message.
func (q *SteeringQueue) FollowUpText(text string) {
	q.FollowUp(&FollowUpMessage{Text: text})
}

// GetSteeringMessages drains pending steering messages per the configured
// mode: one-at-a-time pops the oldest, all drains everything queued.
func (q *SteeringQueue) GetSteeringMessages() []*SteeringMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.steering) == 0 {
		return nil
	}
	if q.steeringMode == SteeringAll {
		msgs := q.steering
		q.steering = nil
		return msgs
	}
	msg := q.steering[0]
	q.steering = q.steering[1:]
	return []*SteeringMessage{msg}
}

// GetFollowUpMessages drains pending follow-up messages per the configured
// mode.
func (q *SteeringQueue) GetFollowUpMessages() []*FollowUpMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.followUp) == 0 {
		return nil
	}
	if q.followUpMode == FollowUpAll {
		msgs := q.followUp
		q.followUp = nil
		return msgs
	}
	msg := q.followUp[0]
	q.followUp = q.followUp[1:]
	return []*FollowUpMessage{msg}
}

// HasFollowUp reports whether any follow-up message is queued.
func (q *SteeringQueue) HasFollowUp() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.followUp) > 0
}

// Clear removes every queued steering and follow-up message, called when a
// session ends.
func (q *SteeringQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steering = nil
	q.followUp = nil
}
