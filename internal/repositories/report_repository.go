package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"case-system/internal/entities"
)

type ReportRepositoryInterface interface {
	GetSLAReport(ctx context.Context, filter entities.SLAReportFilter) ([]entities.SLAReportItem, uint64, error)
}

type reportRepository struct {
	db *pgxpool.Pool
}

func NewReportRepository(db *pgxpool.Pool) ReportRepositoryInterface {
	return &reportRepository{db: db}
}

func (r *reportRepository) GetSLAReport(ctx context.Context, filter entities.SLAReportFilter) ([]entities.SLAReportItem, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	// Общая база для COUNT и основного запроса
	baseSelect := psql.Select().
		From("escalations e").
		Join("cases c ON e.case_id = c.id").
		Join("escalation_rules r ON e.rule_id = r.id").
		LeftJoin("users resolver ON e.resolved_by = resolver.id").
		LeftJoin("users assignee ON c.assigned_to = assignee.id")

	if filter.DateFrom != nil {
		baseSelect = baseSelect.Where(sq.GtOrEq{"e.escalated_at": filter.DateFrom})
	}
	if filter.DateTo != nil {
		baseSelect = baseSelect.Where(sq.LtOrEq{"e.escalated_at": filter.DateTo})
	}
	if filter.CompanyID != nil {
		baseSelect = baseSelect.Where(sq.Eq{"c.company_id": *filter.CompanyID})
	}
	if filter.BranchID != nil {
		baseSelect = baseSelect.Where(sq.Eq{"c.branch_id": *filter.BranchID})
	}
	if len(filter.Stages) > 0 {
		baseSelect = baseSelect.Where(sq.Eq{"e.stage": filter.Stages})
	}
	if len(filter.Levels) > 0 {
		baseSelect = baseSelect.Where(sq.Eq{"e.escalation_level": filter.Levels})
	}
	if filter.OnlyOpen {
		baseSelect = baseSelect.Where(sq.Eq{"e.is_resolved": false})
	}

	countBuilder := baseSelect.Columns("COUNT(e.id)")
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки COUNT-запроса: %w", err)
	}
	var totalCount uint64
	if err = r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения COUNT-запроса: %w", err)
	}
	if totalCount == 0 {
		return []entities.SLAReportItem{}, 0, nil
	}

	mainBuilder := baseSelect.Columns(
		"e.id", "e.case_id", "c.case_type", "c.category", "c.company_id", "c.branch_id",
		"r.name", "e.stage", "e.escalation_level", "e.reason",
		"e.elapsed_minutes", "e.threshold_used", "e.escalated_at",
		"e.is_resolved", "e.resolved_at", "resolver.fio", "e.resolution_note", "assignee.fio",
	).OrderBy("e.escalated_at DESC", "e.id DESC")

	if filter.PerPage > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		mainBuilder = mainBuilder.Limit(uint64(filter.PerPage)).Offset(uint64((page - 1) * filter.PerPage))
	}

	query, args, err := mainBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки основного запроса: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения основного запроса: %w", err)
	}
	defer rows.Close()

	var items []entities.SLAReportItem
	for rows.Next() {
		var item entities.SLAReportItem
		err := rows.Scan(
			&item.EscalationID, &item.CaseID, &item.CaseType, &item.Category, &item.CompanyID, &item.BranchID,
			&item.RuleName, &item.Stage, &item.Level, &item.Reason,
			&item.ElapsedMinutes, &item.ThresholdUsed, &item.EscalatedAt,
			&item.IsResolved, &item.ResolvedAt, &item.ResolvedByFio, &item.ResolutionNote, &item.AssigneeFio,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования строки отчёта: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return items, totalCount, nil
}
