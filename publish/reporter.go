package publish

// Reporter receives a run's progress and its single terminal outcome.
// It is the only thing a transport needs to implement to drive a pipeline.
type Reporter interface {
	ReportProgress(stage Stage, message string)
	ReportResult(outcome Outcome)
}

// Discard is a Reporter that drops everything
var Discard Reporter = discard{}

type discard struct{}

func (discard) ReportProgress(Stage, string) {}
func (discard) ReportResult(Outcome)         {}

// Outcome is the terminal result of a run. Err is nil on success.
type Outcome struct {
	RunID   string
	Stage   Stage  // failing stage, or StageDone
	Message string // caller-facing text
	Err     error
}

// Succeeded reports whether every stage passed
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}
