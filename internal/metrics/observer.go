package metrics

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomePartial  = "partial"
)

type Observer interface {
	RecordUploadFile(outcome string, bytes int64)
	RecordDetach(outcome string)
	RecordFetch(outcome string)
	RecordReconcileOrphans(count int)
	RecordRequest(method, statusClass string, seconds float64)
}

type NoopObserver struct{}

func (NoopObserver) RecordUploadFile(_ string, _ int64)   {}
func (NoopObserver) RecordDetach(_ string)                {}
func (NoopObserver) RecordFetch(_ string)                 {}
func (NoopObserver) RecordReconcileOrphans(_ int)         {}
func (NoopObserver) RecordRequest(_, _ string, _ float64) {}

// OrNoop returns o, or a NoopObserver when o is nil.
func OrNoop(o Observer) Observer {
	if o == nil {
		return NoopObserver{}
	}
	return o
}
