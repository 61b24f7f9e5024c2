// Package oracle holds text-completion clients for the assistant. The
// oracle is an external collaborator: it receives the instruction
// contract plus catalog context and returns either a structured booking
// action or plain prose. Interpretation happens in the assistant package.
package oracle

import "context"

// Oracle is a text-completion collaborator.
type Oracle interface {
	// Complete sends the system prompt, availability context and user
	// question and returns the raw reply text. A failed or non-success
	// call is reported as models.ErrOracleUnavailable.
	Complete(ctx context.Context, systemPrompt, contextText, question string) (string, error)
}
