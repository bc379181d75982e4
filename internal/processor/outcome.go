package processor

import (
	"time"

	"github.com/JonMunkholm/sheetcast/internal/messaging"
	"github.com/JonMunkholm/sheetcast/internal/result"
)

// Attributes maps attribute keys to casted values. Composite attributes hold
// the value returned by their builder ([]any for arrays).
type Attributes map[string]any

// Outcome is the sheet-level result of Process. Its Result never carries a
// value: success means every row was handed to the callback.
type Outcome struct {
	Result   result.Result[struct{}] `json:"result"`
	Messages []messaging.Message     `json:"messages,omitempty"`
}

// Accepted reports whether the sheet passed structural checks.
func (o Outcome) Accepted() bool { return o.Result.IsSuccess() }

// RowOutcome is the result of one data row. Row is 1-based.
type RowOutcome struct {
	Row      int                       `json:"row"`
	Result   result.Result[Attributes] `json:"result"`
	Messages []messaging.Message       `json:"messages,omitempty"`
}

// Accepted reports whether the row was cast without errors.
func (o RowOutcome) Accepted() bool { return o.Result.IsSuccess() }

// Stats summarizes one Process call.
type Stats struct {
	Rows     int
	Accepted int
	Rejected int
	Messages int
	Bytes    int64
	Duration time.Duration
}

// Observer is notified as rows and sheets complete. Implementations must be
// safe for concurrent use when one processor serves several goroutines.
type Observer interface {
	ObserveRow(RowOutcome)
	ObserveSheet(Outcome, Stats)
}
