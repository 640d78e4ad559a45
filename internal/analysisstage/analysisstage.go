// Package analysisstage cross-checks the extracted document text against the
// declared form through the analysis model.
package analysisstage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"caseflow/internal/logging"
	"caseflow/internal/services/analysis"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

// Analyzer verifies an application against its document text.
type Analyzer interface {
	Analyze(ctx context.Context, input analysis.Input) (analysis.Findings, error)
	Ready() bool
}

// Output is the stage's contribution to the workflow context.
type Output struct {
	VerifiedMonthlyIncome float64 `json:"verified_monthly_income"`
	IncomeMatchesDeclared bool    `json:"income_matches_declared"`
	Confidence            float64 `json:"confidence"`
	Summary               string  `json:"summary"`
}

// Analysis runs the content analysis stage.
type Analysis struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// New constructs the analysis stage executor.
func New(analyzer Analyzer, logger *slog.Logger) *Analysis {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analysis{analyzer: analyzer, logger: logging.NewComponentLogger(logger, "analysis")}
}

func (a *Analysis) Execute(ctx context.Context, req stage.Request) stage.Result {
	logger := logging.WithContext(ctx, a.logger)

	var form struct {
		ApplicantName string  `json:"applicant_name"`
		MonthlyIncome float64 `json:"monthly_income"`
		Dependents    int     `json:"dependents"`
	}
	if err := req.Input(workflow.StageFormSubmitted, &form); err != nil {
		return stage.Failure(err)
	}
	var extracted struct {
		CombinedText string `json:"combined_text"`
	}
	if err := req.Input(workflow.StageScanningDocuments, &extracted); err != nil {
		return stage.Failure(err)
	}

	findings, err := a.analyzer.Analyze(ctx, analysis.Input{
		ApplicantName:         form.ApplicantName,
		DeclaredMonthlyIncome: form.MonthlyIncome,
		Dependents:            form.Dependents,
		DocumentText:          extracted.CombinedText,
	})
	if err != nil {
		logger.Warn("content analysis failed", logging.Error(err))
		return stage.Failure(err)
	}

	update, err := json.Marshal(Output{
		VerifiedMonthlyIncome: findings.VerifiedMonthlyIncome,
		IncomeMatchesDeclared: findings.IncomeMatchesDeclared,
		Confidence:            findings.Confidence,
		Summary:               findings.Summary,
	})
	if err != nil {
		return stage.Failure(fmt.Errorf("encode analysis output: %w", err))
	}
	logger.Info("content analyzed",
		logging.Float64("confidence", findings.Confidence),
		logging.Bool("income_matches", findings.IncomeMatchesDeclared))
	return stage.Success(update)
}

func (a *Analysis) HealthCheck(context.Context) stage.Health {
	if !a.analyzer.Ready() {
		return stage.Unhealthy("analysis", "analysis model is not configured")
	}
	return stage.Healthy("analysis")
}
