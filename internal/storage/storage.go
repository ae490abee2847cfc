package storage

import "tokenSniper/internal/model"

// ReportSink defines a sink for candidate reports.
type ReportSink interface {
	PutReportBatch(reports []model.CandidateReport) error
}
