package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"case-system/internal/entities"
	"case-system/pkg/types"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return ts
}

func testCase(t *testing.T, status entities.CaseStatus, createdAt string) *entities.Case {
	t.Helper()
	created := mustTime(t, createdAt)
	c := &entities.Case{
		ID:        42,
		Type:      entities.CaseTypeIncident,
		Status:    status,
		Priority:  entities.PriorityMedium,
		CompanyID: 1,
		IsActive:  true,
	}
	c.BaseEntity = types.BaseEntity{CreatedAt: &created}
	return c
}

func event(t *testing.T, stage entities.Stage, at string) entities.TimelineEvent {
	t.Helper()
	return entities.TimelineEvent{CaseID: 42, Stage: stage, EventAt: mustTime(t, at)}
}

func TestStageResolver_FallbackByStatus(t *testing.T) {
	resolver := NewStageResolverService(zap.NewNop())

	cases := map[entities.CaseStatus]entities.Stage{
		entities.CaseStatusOpen:          entities.StageSubmission,
		entities.CaseStatusAssigned:      entities.StageAssignment,
		entities.CaseStatusInProgress:    entities.StageInvestigation,
		entities.CaseStatusPendingReview: entities.StageResolution,
		entities.CaseStatusResolved:      entities.StageResolution,
		entities.CaseStatusClosed:        entities.StageResolution,
	}
	for status, want := range cases {
		c := testCase(t, status, "2025-03-10 09:00")
		res := resolver.Resolve(c, nil)
		assert.Equal(t, want, res.Stage, "статус %s", status)
		assert.Equal(t, c.CreationTime(), res.EnteredAt)
	}

	// неизвестный статус - этап подачи
	c := testCase(t, entities.CaseStatus("archived"), "2025-03-10 09:00")
	res := resolver.Resolve(c, nil)
	assert.Equal(t, entities.StageSubmission, res.Stage)
}

func TestStageResolver_LastEventWins(t *testing.T) {
	resolver := NewStageResolverService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")

	events := []entities.TimelineEvent{
		event(t, entities.StageSubmission, "2025-03-10 09:00"),
		event(t, entities.StageTriage, "2025-03-10 10:00"),
		event(t, entities.StageInvestigation, "2025-03-10 12:00"),
	}

	res := resolver.Resolve(c, events)
	assert.Equal(t, entities.StageInvestigation, res.Stage)
	assert.Equal(t, mustTime(t, "2025-03-10 12:00"), res.EnteredAt)
}

func TestStageResolver_TrailingRunEntry(t *testing.T) {
	resolver := NewStageResolverService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")

	// Дело побывало на investigation, ушло и вернулось: момент входа -
	// начало последней непрерывной серии, а не первый заход.
	events := []entities.TimelineEvent{
		event(t, entities.StageInvestigation, "2025-03-10 09:00"),
		event(t, entities.StageResolution, "2025-03-10 11:00"),
		event(t, entities.StageInvestigation, "2025-03-10 13:00"),
		event(t, entities.StageInvestigation, "2025-03-10 14:00"),
	}

	res := resolver.Resolve(c, events)
	assert.Equal(t, entities.StageInvestigation, res.Stage)
	assert.Equal(t, mustTime(t, "2025-03-10 13:00"), res.EnteredAt)
}

func TestStageResolver_InternalEventsIgnored(t *testing.T) {
	resolver := NewStageResolverService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")

	internal := event(t, entities.StageResolution, "2025-03-10 15:00")
	internal.IsInternal = true

	events := []entities.TimelineEvent{
		event(t, entities.StageInvestigation, "2025-03-10 12:00"),
		internal,
	}

	res := resolver.Resolve(c, events)
	assert.Equal(t, entities.StageInvestigation, res.Stage)
	assert.Equal(t, mustTime(t, "2025-03-10 12:00"), res.EnteredAt)

	// если вся хронология служебная - откат на статус дела
	res = resolver.Resolve(c, []entities.TimelineEvent{internal})
	assert.Equal(t, entities.StageInvestigation, res.Stage)
	assert.Equal(t, c.CreationTime(), res.EnteredAt)
}

func TestStageResolver_UnknownStageFallsBack(t *testing.T) {
	resolver := NewStageResolverService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")

	events := []entities.TimelineEvent{
		event(t, entities.Stage("shipping"), "2025-03-10 12:00"),
	}

	res := resolver.Resolve(c, events)
	assert.Equal(t, entities.StageSubmission, res.Stage)
	assert.Equal(t, c.CreationTime(), res.EnteredAt)
}
