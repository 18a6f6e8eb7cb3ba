// Package server wires configuration, storage, services and controllers
// into a runnable HTTP server.
package server

import (
	"context"
	"fmt"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/modules/changemgmt/domain/changerequest"
	changepersistence "github.com/northbeam/capitalgate/modules/changemgmt/infrastructure/persistence"
	changecontrollers "github.com/northbeam/capitalgate/modules/changemgmt/presentation/controllers"
	changeservices "github.com/northbeam/capitalgate/modules/changemgmt/services"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/modules/workflow/handlers"
	wfpersistence "github.com/northbeam/capitalgate/modules/workflow/infrastructure/persistence"
	wfcontrollers "github.com/northbeam/capitalgate/modules/workflow/presentation/controllers"
	wfservices "github.com/northbeam/capitalgate/modules/workflow/services"
	"github.com/northbeam/capitalgate/pkg/configuration"
	"github.com/northbeam/capitalgate/pkg/directory"
	"github.com/northbeam/capitalgate/pkg/eventbus"
	"github.com/northbeam/capitalgate/pkg/identity"
	"github.com/northbeam/capitalgate/pkg/middleware"
	"github.com/northbeam/capitalgate/pkg/notify"
	"github.com/northbeam/capitalgate/pkg/server"
	"github.com/northbeam/capitalgate/pkg/store"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	// Pool is required only for the postgres store backend.
	Pool *pgxpool.Pool
}

func Default(ctx context.Context, options *DefaultOptions) (*server.HTTPServer, error) {
	conf := options.Configuration
	log := options.Logger

	st, err := buildStore(ctx, conf, options.Pool, log)
	if err != nil {
		return nil, err
	}

	bus := eventbus.NewEventPublisher(log)

	submissions := wfpersistence.NewSubmissionRepository(st)
	requests := wfpersistence.NewApprovalRequestRepository(st)
	cards := wfpersistence.NewBoardCardRepository(st)
	changes := changepersistence.NewChangeRequestRepository(st)

	approvalSvc := wfservices.NewApprovalService(requests, bus, log)
	workflowSvc := wfservices.NewWorkflowService(submissions, approvalSvc, bus, log)
	boardSvc := wfservices.NewBoardService(cards, submissions, log, conf.Governance.ProposalDueDays)
	changeSvc := changeservices.NewChangeRequestService(
		changes,
		submissions,
		approvalSvc,
		log,
		changerequest.Thresholds{
			BudgetAbsolute:              conf.ChangeControl.BudgetAbsoluteThreshold,
			BudgetPercent:               conf.ChangeControl.BudgetPercentThreshold,
			ScheduleDays:                conf.ChangeControl.ScheduleDaysThreshold,
			CumulativeEscalationPercent: conf.ChangeControl.CumulativeEscalationPercent,
		},
		governanceReviewers(ctx, conf),
	)

	handlers.RegisterNotificationHandler(bus, buildDispatcher(conf, log), log)

	controllers := []server.Controller{
		wfcontrollers.NewSubmissionsController(workflowSvc),
		wfcontrollers.NewApprovalsController(approvalSvc),
		wfcontrollers.NewBoardController(boardSvc),
		changecontrollers.NewChangesController(changeSvc),
	}
	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(log),
		middleware.WithPrincipal(),
	}
	return server.NewHTTPServer(controllers, middlewares), nil
}

func buildStore(ctx context.Context, conf *configuration.Configuration, pool *pgxpool.Pool, log *logrus.Logger) (store.Store, error) {
	var st store.Store
	switch conf.Store.Backend {
	case configuration.StoreBackendMemory:
		st = store.NewMemory()
	case configuration.StoreBackendFile:
		fs, err := store.NewFile(conf.Store.FileRoot)
		if err != nil {
			return nil, fmt.Errorf("initializing file store: %w", err)
		}
		st = fs
	case configuration.StoreBackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres store backend requires a database pool")
		}
		pg, err := store.NewPostgres(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("initializing postgres store: %w", err)
		}
		st = pg
	default:
		return nil, fmt.Errorf("unknown store backend %q", conf.Store.Backend)
	}

	if conf.Store.PersistenceMode == configuration.PersistenceBestEffort {
		st = store.NewBestEffort(st, log)
	}
	return st, nil
}

func buildDispatcher(conf *configuration.Configuration, log *logrus.Logger) notify.Dispatcher {
	if !conf.SMTP.Enabled {
		return notify.Noop{}
	}
	smtp := notify.NewSMTP(notify.SMTPOptions{
		Host:     conf.SMTP.Host,
		Port:     conf.SMTP.Port,
		User:     conf.SMTP.User,
		Password: conf.SMTP.Password,
		From:     conf.SMTP.From,
	})
	return notify.NewLogging(smtp, log)
}

// governanceReviewers seeds the deployment-wide committee identities used by
// change governance, resolving them through the user directory.
func governanceReviewers(ctx context.Context, conf *configuration.Configuration) map[submission.RoleContext]submission.Approver {
	dir := directory.NewInMemory()
	if conf.Governance.ReviewEmail != "" {
		dir.Add(directory.User{
			Principal:   identity.Principal{Email: conf.Governance.ReviewEmail},
			DisplayName: conf.Governance.ReviewName,
		})
	}
	if conf.Governance.PMOAdminEmail != "" {
		dir.Add(directory.User{
			Principal:   identity.Principal{Email: conf.Governance.PMOAdminEmail},
			DisplayName: conf.Governance.PMOAdminName,
		})
	}

	out := map[submission.RoleContext]submission.Approver{}
	for role, email := range map[submission.RoleContext]string{
		submission.RoleGovernanceReview: conf.Governance.ReviewEmail,
		submission.RolePMOAdmin:         conf.Governance.PMOAdminEmail,
	} {
		if email == "" {
			continue
		}
		if u, ok, err := dir.FindUserByEmail(ctx, email); err == nil && ok {
			out[role] = submission.Approver{Principal: u.Principal, DisplayName: u.DisplayName}
		}
	}
	return out
}
