// Package chat answers natural-language questions by generating, screening
// and running SQL against the trip dataset.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ridelens/ridelens/internal/nl2sql"
	"github.com/ridelens/ridelens/internal/observability"
	"github.com/ridelens/ridelens/internal/query"
	"github.com/ridelens/ridelens/internal/sqlguard"
)

// Outcome is the result of one question. Err is nil exactly when Rows holds
// the answer. SQL is set once a statement passed the sanitizer.
type Outcome struct {
	SQL     string
	Columns []string
	Rows    []query.Row
	Err     *Error
}

type Service struct {
	generator nl2sql.Generator
	executor  query.Executor
	logger    *slog.Logger
}

// NewService wires the pipeline. A nil generator means the completion
// service is not configured; every question then fails with
// KindConfiguration.
func NewService(generator nl2sql.Generator, executor query.Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{generator: generator, executor: executor, logger: logger}
}

// Answer runs the pipeline once: one completion call, at most one execution.
func (s *Service) Answer(ctx context.Context, question string) Outcome {
	start := time.Now()
	outcome, stage := s.answer(ctx, question)
	s.record(ctx, stage, outcome, time.Since(start))
	return outcome
}

func (s *Service) answer(ctx context.Context, question string) (Outcome, string) {
	if s.generator == nil {
		return failed("", KindConfiguration, msgMissingAPIKey, nil), "configuration"
	}

	generateStart := time.Now()
	completion := s.generator.Generate(ctx, question)
	observability.ObserveCompletionLatency(time.Since(generateStart))

	switch completion.Kind {
	case nl2sql.KindSQL:
	case nl2sql.KindRejected:
		return failed("", KindGenerationRejected, completion.Text, nil), "generating"
	case nl2sql.KindServiceError:
		if completion.Timeout || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed("", KindTimeout, msgGenTimeout, errors.New(completion.Text)), "generating"
		}
		return failed("", KindGenerationFailed, completion.Text, nil), "generating"
	default:
		return failed("", KindGenerationFailed, "completion returned no result", nil), "generating"
	}

	statement, err := sqlguard.Inspect(completion.Text)
	if err != nil {
		s.logger.DebugContext(ctx, "chat_sql_rejected",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("sql", completion.Text),
			slog.String("reason", err.Error()),
		)
		return failed("", KindSanitizationRejected, msgUnsafeSQL, err), "sanitizing"
	}

	executeStart := time.Now()
	result, err := s.executor.Execute(ctx, statement)
	observability.ObserveExecutionLatency(time.Since(executeStart))
	if err != nil {
		return executionFailure(statement, err), "executing"
	}

	return Outcome{SQL: statement, Columns: result.Columns, Rows: result.Rows}, "done"
}

func executionFailure(statement string, err error) Outcome {
	if errors.Is(err, query.ErrTimeout) {
		return failed(statement, KindTimeout, msgExecution+err.Error(), err)
	}
	message := err.Error()
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		message = execErr.Err.Error()
	}
	return failed(statement, KindExecutionFailed, msgExecution+message, err)
}

func failed(statement string, kind ErrorKind, message string, cause error) Outcome {
	return Outcome{SQL: statement, Err: &Error{Kind: kind, Message: message, Cause: cause}}
}

func (s *Service) record(ctx context.Context, stage string, outcome Outcome, elapsed time.Duration) {
	attrs := []slog.Attr{
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("stage", stage),
		slog.String("duration", elapsed.String()),
	}
	if outcome.Err != nil {
		observability.ObserveChatOutcome(string(outcome.Err.Kind), 0)
		attrs = append(attrs,
			slog.String("kind", string(outcome.Err.Kind)),
			slog.String("error", outcome.Err.Message),
		)
		if outcome.Err.Cause != nil {
			attrs = append(attrs, slog.String("cause", outcome.Err.Cause.Error()))
		}
		level := slog.LevelWarn
		if outcome.Err.Kind.HTTPStatus() >= 500 {
			level = slog.LevelError
		}
		s.logger.LogAttrs(ctx, level, "chat_answer_failed", attrs...)
	} else {
		observability.ObserveChatOutcome("ok", len(outcome.Rows))
		attrs = append(attrs, slog.Int("rows", len(outcome.Rows)))
		s.logger.LogAttrs(ctx, slog.LevelInfo, "chat_answer", attrs...)
	}
	if outcome.SQL != "" {
		s.logger.DebugContext(ctx, "chat_sql",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("sql", outcome.SQL),
		)
	}
}
