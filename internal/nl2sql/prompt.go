package nl2sql

import (
	"strconv"
	"strings"

	"github.com/ridelens/ridelens/internal/schema"
)

// IrrelevantAnswer is what the model must reply for questions outside the
// trip dataset.
const IrrelevantAnswer = "ERROR: Irrelevant"

const rejectionPrefix = "ERROR:"

var promptRules = []string{
	"Return ONLY the SQL string. No markdown, no explanations.",
	"Do NOT use markdown ```sql tags.",
	"If the question is about REVENUE, DURATION, or RATINGS, add condition: WHERE booking_status = '" + schema.CompletedStatus + "'.",
	"If the question is about CANCELLATIONS, add condition: WHERE booking_status != '" + schema.CompletedStatus + "'.",
	"If the question is unrelated to data, return '" + IrrelevantAnswer + "'.",
	"If the user asks for a list of text values (like reasons or types), always use 'SELECT DISTINCT'.",
	"When dividing by ride_distance, ALWAYS use NULLIF(ride_distance, 0) to avoid division by zero errors.",
}

// DefaultDialect names the SQL flavour the model is asked to write.
const DefaultDialect = "PostgreSQL"

// SystemPrompt is the instruction message sent with every question.
func SystemPrompt(dialect string, descriptor schema.Descriptor) string {
	if strings.TrimSpace(dialect) == "" {
		dialect = DefaultDialect
	}
	var b strings.Builder
	b.WriteString("You are a ")
	b.WriteString(dialect)
	b.WriteString(" expert. Convert the user's question into a SQL query for the table '")
	b.WriteString(descriptor.Table)
	b.WriteString("'.\nSchema:\n")
	b.WriteString(descriptor.Render())
	b.WriteString("RULES:\n")
	for i, rule := range promptRules {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(rule)
		b.WriteByte('\n')
	}
	return b.String()
}
