// Package intake validates the submitted application form, the first stage
// of the processing pipeline.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"caseflow/internal/logging"
	"caseflow/internal/services"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

// Form is the applicant-submitted payload the stage validates and normalizes.
type Form struct {
	ApplicantName string   `json:"applicant_name"`
	MonthlyIncome float64  `json:"monthly_income"`
	Dependents    int      `json:"dependents"`
	DocumentRefs  []string `json:"document_refs"`
}

// Intake validates the submitted form payload.
type Intake struct {
	logger *slog.Logger
}

// New constructs the intake stage executor.
func New(logger *slog.Logger) *Intake {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Intake{logger: logging.NewComponentLogger(logger, "intake")}
}

func (i *Intake) Execute(ctx context.Context, req stage.Request) stage.Result {
	logger := logging.WithContext(ctx, i.logger)

	var form Form
	if err := req.Input(workflow.StageFormSubmitted, &form); err != nil {
		return stage.Failure(err)
	}
	if err := validate(&form); err != nil {
		logger.Warn("form rejected", logging.Error(err))
		return stage.Failure(err)
	}

	update, err := json.Marshal(form)
	if err != nil {
		return stage.Failure(fmt.Errorf("encode validated form: %w", err))
	}
	logger.Info("form accepted",
		logging.Int("document_refs", len(form.DocumentRefs)),
		logging.Int("dependents", form.Dependents))
	return stage.Success(update)
}

func (i *Intake) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("intake")
}

// validate normalizes the form in place and rejects unusable submissions.
func validate(form *Form) error {
	form.ApplicantName = strings.TrimSpace(form.ApplicantName)
	if form.ApplicantName == "" {
		return services.Wrap(
			services.ErrValidation, "intake", "validate form",
			"applicant name is required", nil)
	}
	if form.MonthlyIncome < 0 {
		return services.Wrap(
			services.ErrValidation, "intake", "validate form",
			"monthly income cannot be negative", nil)
	}
	if form.Dependents < 0 {
		return services.Wrap(
			services.ErrValidation, "intake", "validate form",
			"dependents cannot be negative", nil)
	}

	refs := form.DocumentRefs[:0]
	for _, ref := range form.DocumentRefs {
		if trimmed := strings.TrimSpace(ref); trimmed != "" {
			refs = append(refs, trimmed)
		}
	}
	form.DocumentRefs = refs
	if len(form.DocumentRefs) == 0 {
		return services.Wrap(
			services.ErrValidation, "intake", "validate form",
			"at least one supporting document is required", nil)
	}
	return nil
}
