// Package auditlog records the disposition of every action request:
// an operational log line in the teacher's plain-Printf texture, plus
// a durable events row (actor_kind="system") so the outcome survives
// process restarts, per spec.md §4.5 step 9 and §7's "Audit log
// records every final status".
package auditlog

import (
	"context"
	"log"

	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

type Log struct {
	store  *store.Store
	logger *log.Logger
}

func New(st *store.Store, logger *log.Logger) *Log {
	return &Log{store: st, logger: logger}
}

// RecordCompletion persists an action.completed event and logs a
// one-line summary.
func (l *Log) RecordCompletion(ctx context.Context, workspaceID, requestID, agentID, actionType string, elapsedMS int64) {
	data, err := kerneldomain.EncodeEventData(kerneldomain.ActionCompletedData{
		RequestID: requestID, ActionType: actionType, ElapsedMS: elapsedMS,
	})
	if err != nil {
		l.logger.Printf("audit: encode completion for %s: %v", requestID, err)
		return
	}
	if err := l.store.InsertEvent(ctx, kerneldomain.Event{
		EventID: idgen.New("evt"), WorkspaceID: workspaceID, ActorKind: kerneldomain.ActorSystem,
		ActorID: agentID, Type: kerneldomain.EventActionCompleted, Data: data,
	}); err != nil {
		l.logger.Printf("audit: insert completion event for %s: %v", requestID, err)
	}
	l.logger.Printf("action request=%s agent=%s type=%s status=completed elapsed_ms=%d", requestID, agentID, actionType, elapsedMS)
}

// RecordFailure persists an action.failed event and logs a one-line
// summary; handler-raised errors are surfaced verbatim per spec.md §7,
// never a stack trace.
func (l *Log) RecordFailure(ctx context.Context, workspaceID, requestID, agentID, actionType, reason string, elapsedMS int64) {
	data, err := kerneldomain.EncodeEventData(kerneldomain.ActionFailedData{
		RequestID: requestID, ActionType: actionType, Error: reason, ElapsedMS: elapsedMS,
	})
	if err != nil {
		l.logger.Printf("audit: encode failure for %s: %v", requestID, err)
		return
	}
	if err := l.store.InsertEvent(ctx, kerneldomain.Event{
		EventID: idgen.New("evt"), WorkspaceID: workspaceID, ActorKind: kerneldomain.ActorSystem,
		ActorID: agentID, Type: kerneldomain.EventActionFailed, Data: data,
	}); err != nil {
		l.logger.Printf("audit: insert failure event for %s: %v", requestID, err)
	}
	l.logger.Printf("action request=%s agent=%s type=%s status=failed reason=%q elapsed_ms=%d", requestID, agentID, actionType, reason, elapsedMS)
}
