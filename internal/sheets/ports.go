// Package sheets defines the outbound ports for expense export.
package sheets

import (
	"context"

	"spendtrack/internal/core"
)

// ExpenseWriter appends an expense to an external sheet and returns a row
// reference.
type ExpenseWriter interface {
	Append(ctx context.Context, e core.Expense) (rowRef string, err error)
}
