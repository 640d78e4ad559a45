// Package decision evaluates the eligibility rules, the final stage of the
// processing pipeline.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"caseflow/internal/config"
	"caseflow/internal/logging"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

// Outcome values for the eligibility decision.
const (
	OutcomeApproved     = "approved"
	OutcomeRejected     = "rejected"
	OutcomeManualReview = "manual_review"
)

// Output is the stage's contribution to the workflow context.
type Output struct {
	Outcome         string  `json:"outcome"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
	IncomeLimit     float64 `json:"income_limit"`
	EffectiveIncome float64 `json:"effective_income"`
}

// Decision applies the configured eligibility thresholds. The rules run
// locally; no external service is involved.
type Decision struct {
	rules  config.Decision
	logger *slog.Logger
}

// New constructs the decision stage executor.
func New(cfg *config.Config, logger *slog.Logger) *Decision {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Decision{rules: cfg.Decision, logger: logging.NewComponentLogger(logger, "decision")}
}

func (d *Decision) Execute(ctx context.Context, req stage.Request) stage.Result {
	logger := logging.WithContext(ctx, d.logger)

	var form struct {
		MonthlyIncome float64 `json:"monthly_income"`
		Dependents    int     `json:"dependents"`
	}
	if err := req.Input(workflow.StageFormSubmitted, &form); err != nil {
		return stage.Failure(err)
	}
	var findings struct {
		VerifiedMonthlyIncome float64 `json:"verified_monthly_income"`
		IncomeMatchesDeclared bool    `json:"income_matches_declared"`
		Confidence            float64 `json:"confidence"`
		Summary               string  `json:"summary"`
	}
	if err := req.Input(workflow.StageAnalyzingContent, &findings); err != nil {
		return stage.Failure(err)
	}

	output := evaluate(d.rules, form.MonthlyIncome, form.Dependents, findings.VerifiedMonthlyIncome, findings.IncomeMatchesDeclared, findings.Confidence)
	update, err := json.Marshal(output)
	if err != nil {
		return stage.Failure(fmt.Errorf("encode decision output: %w", err))
	}
	logger.Info("decision made",
		logging.String("outcome", output.Outcome),
		logging.Float64("effective_income", output.EffectiveIncome),
		logging.Float64("income_limit", output.IncomeLimit))
	return stage.Success(update)
}

func (d *Decision) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("decision")
}

// evaluate applies the eligibility rules. Low analysis confidence routes the
// application to manual review rather than guessing; the verified income is
// authoritative when the analysis contradicts the declaration.
func evaluate(rules config.Decision, declaredIncome float64, dependents int, verifiedIncome float64, matches bool, confidence float64) Output {
	limit := rules.MonthlyIncomeLimit + rules.DependentAllowance*float64(dependents)

	income := declaredIncome
	if !matches && verifiedIncome > 0 {
		income = verifiedIncome
	}

	output := Output{
		Confidence:      confidence,
		IncomeLimit:     limit,
		EffectiveIncome: income,
	}

	switch {
	case confidence < rules.MinConfidence:
		output.Outcome = OutcomeManualReview
		output.Reasoning = fmt.Sprintf(
			"analysis confidence %.2f is below the %.2f threshold", confidence, rules.MinConfidence)
	case income <= limit:
		output.Outcome = OutcomeApproved
		output.Reasoning = fmt.Sprintf(
			"monthly income %.2f is within the %.2f limit for %d dependents", income, limit, dependents)
	default:
		output.Outcome = OutcomeRejected
		output.Reasoning = fmt.Sprintf(
			"monthly income %.2f exceeds the %.2f limit for %d dependents", income, limit, dependents)
	}
	return output
}
