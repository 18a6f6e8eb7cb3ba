// Package board models the governance task board reconciled against the
// canonical workflow state.
package board

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Lane string

const (
	LaneFinance    Lane = "Finance"
	LaneGovernance Lane = "Project Governance"
)

func Lanes() []Lane {
	return []Lane{LaneFinance, LaneGovernance}
}

// Phase is the workflow sub-phase a card's seed tasks are derived from.
type Phase string

const (
	PhaseProposal Phase = "proposal"
	PhaseFunding  Phase = "funding"
)

type TaskStatus string

const (
	TaskOpen TaskStatus = "OPEN"
	TaskDone TaskStatus = "DONE"
)

type Task struct {
	ID      uuid.UUID  `json:"id"`
	Title   string     `json:"title"`
	DueDate time.Time  `json:"dueDate"`
	Status  TaskStatus `json:"status"`
	Seed    bool       `json:"seed"`
}

// Card exists only while its submission is in an active governance-review
// sub-state. The key is deterministic so reconciliation is idempotent.
type Card struct {
	ID        string    `json:"id"`
	ProjectID uuid.UUID `json:"projectId"`
	Lane      Lane      `json:"lane"`
	Phase     Phase     `json:"phase"`
	Title     string    `json:"title"`
	Tasks     []Task    `json:"tasks"`

	CharacteristicsUpdatedAt *time.Time `json:"characteristicsUpdatedAt,omitempty"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

// CardID builds the deterministic {projectId}-{lane} key.
func CardID(projectID uuid.UUID, lane Lane) string {
	return fmt.Sprintf("%s-%s", projectID, lane)
}

// SeedTasks derives the fixed gating task for a phase. Titles and due dates
// are a pure function of the phase: they are regenerated on phase change,
// never migrated. The funding due horizon is exactly double the proposal's.
func SeedTasks(phase Phase, lane Lane, now time.Time, proposalDueDays int) []Task {
	due := now.UTC().AddDate(0, 0, proposalDueDays)
	title := fmt.Sprintf("Complete %s proposal review", laneNoun(lane))
	if phase == PhaseFunding {
		due = now.UTC().AddDate(0, 0, proposalDueDays*2)
		title = fmt.Sprintf("Complete %s funding review", laneNoun(lane))
	}
	return []Task{{
		ID:      uuid.New(),
		Title:   title,
		DueDate: due,
		Status:  TaskOpen,
		Seed:    true,
	}}
}

func laneNoun(lane Lane) string {
	if lane == LaneFinance {
		return "finance"
	}
	return "governance"
}
