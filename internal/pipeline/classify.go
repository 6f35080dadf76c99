package pipeline

import (
	"context"

	"adva-reconciliation-engine/internal/parser"
)

// classify runs the classification-stage LLM call and parses its reply
// into a typed Classification (spec §4.6 CLASSIFYING).
func classify(ctx context.Context, deps *Deps, docBytes []byte, mimeType string) (parser.Classification, error) {
	reply, err := deps.Gateway.AnalyzeDocument(ctx, docBytes, mimeType, deps.Prompts.Classify, deps.MaxRetries)
	if err != nil {
		return parser.Classification{}, err
	}
	return parser.ParseClassification(reply)
}
