// Package nl2sql turns questions about the trip dataset into SQL through a
// chat-completion service.
package nl2sql

import "context"

type Kind uint8

const (
	KindSQL Kind = iota + 1
	KindRejected
	KindServiceError
)

func (k Kind) String() string {
	switch k {
	case KindSQL:
		return "sql"
	case KindRejected:
		return "rejected"
	case KindServiceError:
		return "service_error"
	default:
		return "unknown"
	}
}

// Completion is the outcome of one generation call. Text holds the SQL, the
// rejection text returned by the model, or a service error message.
type Completion struct {
	Kind Kind
	Text string
	// Timeout is set on service errors caused by a deadline.
	Timeout bool
}

func SQL(text string) Completion         { return Completion{Kind: KindSQL, Text: text} }
func Rejected(reason string) Completion  { return Completion{Kind: KindRejected, Text: reason} }
func ServiceError(msg string) Completion { return Completion{Kind: KindServiceError, Text: msg} }
func timeoutError(msg string) Completion { return Completion{Kind: KindServiceError, Text: msg, Timeout: true} }

// Generator produces one completion per question. Implementations never
// retry.
type Generator interface {
	Generate(ctx context.Context, question string) Completion
}
