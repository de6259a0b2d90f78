// Package conversation tracks, per user, which free-text answer the order
// flow is waiting for.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
)

// Stage is the awaiting position of a conversation.
type Stage string

const (
	StageIdle                Stage = "idle"
	StageAwaitingBudget      Stage = "awaiting_budget"
	StageAwaitingName        Stage = "awaiting_name"
	StageAwaitingPhoneNumber Stage = "awaiting_phone_number"
)

// Events that move a conversation between stages.
const (
	EventColorSelected = "color_selected"
	EventBudgetEntered = "budget_entered"
	EventNameEntered   = "name_entered"
	EventPhoneEntered  = "phone_entered"
	EventReset         = "reset"
)

var allStages = []string{
	string(StageIdle),
	string(StageAwaitingBudget),
	string(StageAwaitingName),
	string(StageAwaitingPhoneNumber),
}

var transitions = fsm.Events{
	{Name: EventColorSelected, Src: allStages, Dst: string(StageAwaitingBudget)},
	{Name: EventBudgetEntered, Src: []string{string(StageAwaitingBudget)}, Dst: string(StageAwaitingName)},
	{Name: EventNameEntered, Src: []string{string(StageAwaitingName)}, Dst: string(StageAwaitingPhoneNumber)},
	{Name: EventPhoneEntered, Src: []string{string(StageAwaitingPhoneNumber)}, Dst: string(StageIdle)},
	{Name: EventReset, Src: allStages, Dst: string(StageIdle)},
}

// State is one user's conversation. A single stage replaces separate
// awaiting flags, so at most one flag can ever be set.
type State struct {
	UserID    string    `json:"userId"`
	Stage     Stage     `json:"stage"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewState returns an idle conversation for userID.
func NewState(userID string) *State {
	return &State{UserID: userID, Stage: StageIdle, UpdatedAt: time.Now()}
}

func (s *State) AwaitingBudget() bool      { return s.Stage == StageAwaitingBudget }
func (s *State) AwaitingName() bool        { return s.Stage == StageAwaitingName }
func (s *State) AwaitingPhoneNumber() bool { return s.Stage == StageAwaitingPhoneNumber }

// Fire applies event to the state. Firing an event that leaves the stage
// unchanged is not an error; an event not allowed from the current stage is.
func (s *State) Fire(ctx context.Context, event string) error {
	current := s.Stage
	if current == "" {
		current = StageIdle
	}

	machine := fsm.NewFSM(string(current), transitions, fsm.Callbacks{})
	if err := machine.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			return fmt.Errorf("conversation %s: %s from %s: %w", s.UserID, event, current, err)
		}
	}

	s.Stage = Stage(machine.Current())
	s.UpdatedAt = time.Now()
	return nil
}
