// Package assistant translates free-text user requests into booking
// actions. The oracle proposes, the reservation engine disposes: a
// proposed booking goes through exactly the same Reserve contract as a
// direct UI-driven booking, so slot invariants hold regardless of entry
// point.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"innoviahub/internal/metrics"
	"innoviahub/internal/models"
	"innoviahub/internal/oracle"

	"github.com/rs/zerolog"
)

// SystemPrompt is the fixed instruction contract for the oracle. It
// enumerates the only two timeslot codes and pins the JSON action shape;
// anything else must come back as plain prose.
const SystemPrompt = `You are a resource booking assistant.
If the user asks to create a booking, respond ONLY with JSON like this:

{
"action": "create_booking",
"parameters": {
    "resourceId": <integer>,
    "bookingDate": "YYYY-MM-DD",
    "timeslot": "FM" or "EF"
}
}

Rules:
1. "FM" represents the morning slot (08:00-12:00).
2. "EF" represents the afternoon slot (12:00-16:00).
3. Always use "FM" or "EF" - never a specific clock time.
4. If the user doesn't specify morning or afternoon, choose the slot logically based on context.
5. Respond ONLY in JSON as shown above; do not include explanatory text.

Otherwise, if the user asks a general question not related to booking, respond with plain text.
You are a helpful assistant that helps users find resources based on the list of resources you have access to. If the user asks for something not in the list, respond with "I'm sorry, I don't have information on that topic."`

// Action is the tagged result of interpreting an oracle reply.
type Action interface {
	isAction()
}

// CreateBookingAction is a recognized booking proposal.
type CreateBookingAction struct {
	ResourceID  int64
	BookingDate string
	Timeslot    string
}

// InformationalReply carries pass-through prose. Unparseable replies land
// here on purpose: the oracle is allowed to answer non-booking questions
// in plain text, so a parse failure is an expected branch, not an error.
type InformationalReply struct {
	Text string
}

func (CreateBookingAction) isAction() {}
func (InformationalReply) isAction()  {}

type oracleAction struct {
	Action     string `json:"action"`
	Parameters struct {
		ResourceID  int64  `json:"resourceId"`
		BookingDate string `json:"bookingDate"`
		Timeslot    string `json:"timeslot"`
	} `json:"parameters"`
}

// ParseReply interprets the raw oracle output as an Action. JSON with
// action "create_booking" yields a CreateBookingAction; everything else,
// including valid JSON lacking the action field, is informational.
func ParseReply(raw string) Action {
	var parsed oracleAction
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return InformationalReply{Text: raw}
	}
	if parsed.Action != "create_booking" {
		return InformationalReply{Text: raw}
	}
	return CreateBookingAction{
		ResourceID:  parsed.Parameters.ResourceID,
		BookingDate: parsed.Parameters.BookingDate,
		Timeslot:    parsed.Parameters.Timeslot,
	}
}

// ChatResult is the structured reply for assistant requests. The same
// shape is used for booking successes, recovered booking failures and
// informational pass-through.
type ChatResult struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Error       string              `json:"error,omitempty"`
	Reservation *models.Reservation `json:"booking,omitempty"`
}

// Engine is the reservation surface the bridge forwards proposals to.
type Engine interface {
	Reserve(ctx context.Context, userID string, resourceID int64, dateStr, slotStr string) (*models.Reservation, error)
}

// ContextProvider supplies the availability snapshot for the oracle.
type ContextProvider interface {
	Summary(ctx context.Context) (string, error)
}

// Bridge wires the oracle to the reservation engine.
type Bridge struct {
	oracle  oracle.Oracle
	engine  Engine
	catalog ContextProvider
	logger  *zerolog.Logger
}

// NewBridge constructs the assistant bridge.
func NewBridge(o oracle.Oracle, engine Engine, catalog ContextProvider, logger *zerolog.Logger) *Bridge {
	return &Bridge{oracle: o, engine: engine, catalog: catalog, logger: logger}
}

// Ask runs one propose/interpret round for the user's question.
func (b *Bridge) Ask(ctx context.Context, userID, question string) (*ChatResult, error) {
	summary, err := b.catalog.Summary(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := b.oracle.Complete(ctx, SystemPrompt, summary, question)
	if err != nil {
		// OracleUnavailable short-circuits before any reservation attempt.
		metrics.IncChatRequest("oracle_error")
		return nil, err
	}

	switch action := ParseReply(raw).(type) {
	case CreateBookingAction:
		return b.createBooking(ctx, userID, action), nil
	case InformationalReply:
		metrics.IncChatRequest("informational")
		return &ChatResult{Success: true, Message: action.Text}, nil
	default:
		return nil, fmt.Errorf("unhandled assistant action %T", action)
	}
}

// createBooking forwards the proposal to the engine. Validation and
// conflict errors are recovered into a structured failure, never
// propagated as a request error.
func (b *Bridge) createBooking(ctx context.Context, userID string, action CreateBookingAction) *ChatResult {
	reservation, err := b.engine.Reserve(ctx, userID, action.ResourceID, action.BookingDate, action.Timeslot)
	if err != nil {
		metrics.IncChatRequest("booking_failed")
		b.logger.Warn().Err(err).Str("user", userID).Int64("resource", action.ResourceID).
			Msg("assistant booking rejected")
		return &ChatResult{
			Success: false,
			Message: "Booking could not be completed.",
			Error:   err.Error(),
		}
	}

	metrics.IncChatRequest("booking_created")
	return &ChatResult{
		Success:     true,
		Message:     fmt.Sprintf("Booking created successfully for resource ID %d.", action.ResourceID),
		Reservation: reservation,
	}
}
