package event

import (
	"encoding/json"

	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/logging"
)

// Sender is the outbound half of the push connection the router uses
// for control frames. Send reports whether the frame was handed to an
// open connection; a dropped control frame is not an error, the server
// default scope continues to apply.
type Sender interface {
	Send(v any) bool
}

// controlFrame is the outbound subscribe/unsubscribe message narrowing
// what the server pushes. Scoping happens server-side; the router never
// filters inbound events against it.
type controlFrame struct {
	Type       string   `json:"type"`
	CardIDs    []string `json:"cardIds,omitempty"`
	ProjectIDs []string `json:"projectIds,omitempty"`
}

// Router turns raw frames into typed events on its Bus. A frame that
// fails to decode is identical to no frame at all: dropped with a debug
// log, never propagated, never fatal to the stream.
type Router struct {
	bus    *Bus
	sender Sender
	logger *logging.Logger
	onPong func()
}

// NewRouter creates a Router dispatching onto a fresh bus.
func NewRouter(sender Sender, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Router{
		bus:    NewBus(logger),
		sender: sender,
		logger: logger,
	}
}

// Bus returns the router's dispatcher for handler registration.
func (r *Router) Bus() *Bus { return r.bus }

// SetPongHandler installs a callback invoked when a heartbeat response
// arrives. Pongs are swallowed here and never reach bus consumers.
func (r *Router) SetPongHandler(fn func()) { r.onPong = fn }

// HandleRaw decodes one inbound frame and dispatches the resulting
// event, if any.
func (r *Router) HandleRaw(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Debug("dropping malformed frame", "error", err)
		return
	}
	if env.Type == "" {
		r.logger.Debug("dropping frame without type tag")
		return
	}

	if env.Type == TypePong {
		if r.onPong != nil {
			r.onPong()
		}
		return
	}

	event, ok := r.decode(env)
	if !ok {
		return
	}
	r.bus.Publish(event)
}

// decode builds the typed event for a recognized tag. Unrecognized tags
// take the default path: logged at debug and ignored, keeping the
// client forward-compatible with server-added event types.
func (r *Router) decode(env Envelope) (Event, bool) {
	base := newBaseEvent(env.Type, env.Timestamp)

	switch env.Type {
	case TypeCardCreated, TypeCardUpdated:
		var card domain.Card
		if err := json.Unmarshal(env.Data, &card); err != nil {
			r.logger.Debug("dropping card event with bad payload", "error", err)
			return nil, false
		}
		return CardUpserted{baseEvent: base, Card: card}, true

	case TypeCardDeleted:
		id := env.CardID
		if id == "" {
			id = env.ID
		}
		if id == "" {
			r.logger.Debug("dropping card.deleted without id")
			return nil, false
		}
		return CardDeleted{baseEvent: base, CardID: id}, true

	case TypeWorkerCreated, TypeWorkerUpdated:
		var worker domain.Worker
		if err := json.Unmarshal(env.Data, &worker); err != nil {
			r.logger.Debug("dropping worker event with bad payload", "error", err)
			return nil, false
		}
		return WorkerUpserted{baseEvent: base, Worker: worker}, true

	case TypeWorkerDeleted:
		if env.ID == "" {
			r.logger.Debug("dropping worker.deleted without id")
			return nil, false
		}
		return WorkerDeleted{baseEvent: base, WorkerID: env.ID}, true

	case TypeProjectCreated, TypeProjectUpdated:
		var project domain.Project
		if err := json.Unmarshal(env.Data, &project); err != nil {
			r.logger.Debug("dropping project event with bad payload", "error", err)
			return nil, false
		}
		return ProjectUpserted{baseEvent: base, Project: project}, true

	case TypeProjectDeleted:
		if env.ID == "" {
			r.logger.Debug("dropping project.deleted without id")
			return nil, false
		}
		return ProjectDeleted{baseEvent: base, ProjectID: env.ID}, true

	case TypeLoopStarted, TypeLoopProgress, TypeLoopPaused, TypeLoopCompleted, TypeLoopFailed:
		var loop domain.Loop
		if err := json.Unmarshal(env.Data, &loop); err != nil {
			r.logger.Debug("dropping loop event with bad payload", "error", err)
			return nil, false
		}
		if loop.CardID == "" {
			loop.CardID = env.CardID
		}
		return LoopUpdated{baseEvent: base, Loop: loop}, true

	case TypeQueueUpdated:
		return QueueUpdated{baseEvent: base, ProjectID: env.ProjectID, Data: env.Data}, true

	case TypeDecisionRequired:
		return DecisionRequired{baseEvent: base, CardID: env.CardID, Data: env.Data}, true

	case TypeQuestionAsked:
		return QuestionAsked{baseEvent: base, CardID: env.CardID, Data: env.Data}, true

	default:
		r.logger.Debug("ignoring unrecognized event type", "type", env.Type)
		return nil, false
	}
}

// SubscribeTopics asks the server to narrow pushed delivery to the
// given card and project ids. Reports whether the control frame was
// sent; when disconnected the frame is dropped and the connect-time
// default scope stays in effect.
func (r *Router) SubscribeTopics(cardIDs, projectIDs []string) bool {
	return r.sender.Send(controlFrame{Type: "subscribe", CardIDs: cardIDs, ProjectIDs: projectIDs})
}

// UnsubscribeTopics reverses a previous SubscribeTopics.
func (r *Router) UnsubscribeTopics(cardIDs, projectIDs []string) bool {
	return r.sender.Send(controlFrame{Type: "unsubscribe", CardIDs: cardIDs, ProjectIDs: projectIDs})
}
