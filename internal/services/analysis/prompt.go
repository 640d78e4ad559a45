package analysis

// IncomeVerificationPrompt captures the instructions sent to the model when
// cross-checking declared income against extracted document text. Keep
// updates centralized here so it is easy to tweak without hunting through
// call sites.
const IncomeVerificationPrompt = `You are an assistant that verifies a benefit application against its supporting documents.

You receive the applicant's declared details and the raw text extracted from their uploaded documents (payslips, bank statements, employer letters).

Your task:

- Determine the applicant's actual monthly income from the document text. Sum recurring income sources; ignore one-off transfers.

- Compare it with the declared monthly income. Treat a difference of up to 5% as a match.

- Rate your confidence between 0 and 1. Use low confidence when the documents are incomplete, contradictory, or do not mention income at all.

You must respond ONLY with a JSON object like: {"verified_monthly_income": 1850.00, "income_matches_declared": true, "confidence": 0.9, "summary": "short explanation"}

Now verify this application:`
