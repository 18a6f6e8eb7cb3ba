package services

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/modules/workflow/domain/board"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/pkg/serrors"
)

// boardPhaseFor maps the lifecycle states that carry board cards to the
// card phase their seed tasks derive from. Everything else carries none.
var boardPhaseFor = map[submission.LifecycleStatus]board.Phase{
	submission.LifecycleProposalPGOFGOReview: board.PhaseProposal,
	submission.LifecycleFundingSponsorReview: board.PhaseFunding,
	submission.LifecycleFundingPGOFGOReview:  board.PhaseFunding,
}

// BoardService maintains the governance task board. The board is never
// written to directly by workflow transitions; instead every read
// reconciles the cards against the current submission set.
type BoardService struct {
	cards           board.Repository
	submissions     submission.Repository
	log             *logrus.Logger
	proposalDueDays int
	now             func() time.Time
}

func NewBoardService(
	cards board.Repository,
	submissions submission.Repository,
	log *logrus.Logger,
	proposalDueDays int,
) *BoardService {
	return &BoardService{
		cards:           cards,
		submissions:     submissions,
		log:             log,
		proposalDueDays: proposalDueDays,
		now:             time.Now,
	}
}

// ListCards reconciles and returns the board. Reconciliation write failures
// are logged and skipped so a flaky card store cannot block reading the
// board; read failures still propagate.
func (s *BoardService) ListCards(ctx context.Context) ([]*board.Card, error) {
	subs, err := s.submissions.List(ctx)
	if err != nil {
		return nil, serrors.Persistence("listing submissions failed", err)
	}
	s.autoAdvance(ctx, subs)

	eligible := map[string]*reconcileTarget{}
	for _, sub := range subs {
		ls := submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow)
		phase, ok := boardPhaseFor[ls]
		if !ok {
			continue
		}
		for _, lane := range board.Lanes() {
			id := board.CardID(sub.ID, lane)
			eligible[id] = &reconcileTarget{sub: sub, lane: lane, phase: phase}
		}
	}

	existing, err := s.cards.List(ctx)
	if err != nil {
		return nil, serrors.Persistence("listing board cards failed", err)
	}
	byID := lo.SliceToMap(existing, func(c *board.Card) (string, *board.Card) {
		return c.ID, c
	})

	now := s.now()
	var out []*board.Card

	for _, c := range existing {
		if _, ok := eligible[c.ID]; ok {
			continue
		}
		if err := s.cards.Delete(ctx, c.ID); err != nil {
			s.log.WithError(err).WithField("card", c.ID).Warn("dropping stale board card failed")
		}
	}

	for id, target := range eligible {
		card, ok := byID[id]
		switch {
		case !ok:
			card = &board.Card{
				ID:        id,
				ProjectID: target.sub.ID,
				Lane:      target.lane,
				Phase:     target.phase,
				Title:     target.sub.Title,
				Tasks:     board.SeedTasks(target.phase, target.lane, now, s.proposalDueDays),
				CreatedAt: now.UTC(),
				UpdatedAt: now.UTC(),
			}
		case card.Phase != target.phase:
			// Phase change resets the card wholesale: seed tasks are a pure
			// function of the phase and are never migrated across it.
			card.Phase = target.phase
			card.Tasks = board.SeedTasks(target.phase, target.lane, now, s.proposalDueDays)
			card.Title = target.sub.Title
			card.UpdatedAt = now.UTC()
		default:
			if card.Title != target.sub.Title {
				card.Title = target.sub.Title
				card.UpdatedAt = now.UTC()
				if err := s.cards.Save(ctx, card); err != nil {
					s.log.WithError(err).WithField("card", id).Warn("reconciling board card failed")
				}
			}
			out = append(out, card)
			continue
		}
		if err := s.cards.Save(ctx, card); err != nil {
			s.log.WithError(err).WithField("card", id).Warn("reconciling board card failed")
		}
		out = append(out, card)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type reconcileTarget struct {
	sub   *submission.Submission
	lane  board.Lane
	phase board.Phase
}

// autoAdvance moves funding submissions whose sponsor stage records are all
// approved from sponsor review to the PGO/FGO gate. Failures are logged and
// skipped so board reads stay available.
func (s *BoardService) autoAdvance(ctx context.Context, subs []*submission.Submission) {
	now := s.now()
	for _, sub := range subs {
		ls := submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow)
		if ls != submission.LifecycleFundingSponsorReview {
			continue
		}
		if !sub.AllStagesApproved(submission.StageContextFunding) {
			continue
		}
		sub.Workflow.SponsorDecision = "Approved"
		sub.SetLifecycle(submission.LifecycleFundingPGOFGOReview, now)
		sub.AppendAudit("system", "AUTO_ADVANCED",
			"all funding sponsor approvals recorded", now)
		if err := s.submissions.Save(ctx, sub); err != nil {
			s.log.WithError(err).WithField("submission", sub.ID).Warn("auto-advancing submission failed")
		}
	}
}

// GetCard reconciles the board, then returns one card.
func (s *BoardService) GetCard(ctx context.Context, cardID string) (*board.Card, error) {
	cards, err := s.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		if c.ID == cardID {
			return c, nil
		}
	}
	return nil, serrors.NotFound("NOT_FOUND", "board card not found")
}

// UpdateTaskStatus flips one task between OPEN and DONE.
func (s *BoardService) UpdateTaskStatus(ctx context.Context, cardID string, taskID string, status board.TaskStatus) (*board.Card, error) {
	if status != board.TaskOpen && status != board.TaskDone {
		return nil, serrors.Validation("INVALID_TASK_STATUS", "task status must be OPEN or DONE")
	}
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range card.Tasks {
		if card.Tasks[i].ID.String() == taskID {
			card.Tasks[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return nil, serrors.NotFound("NOT_FOUND", "task not found on card")
	}
	card.UpdatedAt = s.now().UTC()
	if err := s.cards.Save(ctx, card); err != nil {
		return nil, serrors.Persistence("saving board card failed", err)
	}
	return card, nil
}

// MarkCharacteristicsUpdated stamps a governance card with the time the
// project characteristics were last refreshed.
func (s *BoardService) MarkCharacteristicsUpdated(ctx context.Context, cardID string) (*board.Card, error) {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	card.CharacteristicsUpdatedAt = &now
	card.UpdatedAt = now
	if err := s.cards.Save(ctx, card); err != nil {
		return nil, serrors.Persistence("saving board card failed", err)
	}
	return card, nil
}
