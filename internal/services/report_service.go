package services

import (
	"context"

	"go.uber.org/zap"

	"case-system/internal/entities"
	"case-system/internal/repositories"
)

type ReportServiceInterface interface {
	GetSLAReport(ctx context.Context, filter entities.SLAReportFilter) ([]entities.SLAReportItem, uint64, error)
}

type reportService struct {
	reportRepo repositories.ReportRepositoryInterface
	logger     *zap.Logger
}

func NewReportService(reportRepo repositories.ReportRepositoryInterface, logger *zap.Logger) ReportServiceInterface {
	return &reportService{reportRepo: reportRepo, logger: logger}
}

func (s *reportService) GetSLAReport(ctx context.Context, filter entities.SLAReportFilter) ([]entities.SLAReportItem, uint64, error) {
	return s.reportRepo.GetSLAReport(ctx, filter)
}
