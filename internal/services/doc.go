// Package services holds the plumbing shared by collaborator clients and
// stage executors: sentinel error markers with a Wrap helper for consistent
// failure classification, and context annotation helpers that thread instance,
// application, stage, and correlation identifiers through the workflow.
//
// Concrete collaborator clients live in subpackages (docstore, ocr, llm).
package services
