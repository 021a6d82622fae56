package metrics

// Entry outcomes.
const (
	OutcomeLogged     = "logged"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
)

// SizeBuckets are histogram buckets for encoded entry sizes, in bytes.
var SizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576}

// Audit holds the metrics reported by audit loggers. A nil *Audit records
// nothing.
type Audit struct {
	Entries   *Counter   // labels: logger, outcome
	EntrySize *Histogram // labels: logger
}

// NewAudit registers the audit metrics in r.
func NewAudit(r *Registry) (*Audit, error) {
	entries, err := r.NewCounter("reqaudit_entries_total",
		"Audit entries by logger and outcome",
		"logger", "outcome")
	if err != nil {
		return nil, err
	}
	size, err := r.NewHistogram("reqaudit_entry_bytes",
		"Size of encoded audit entries in bytes",
		SizeBuckets,
		"logger")
	if err != nil {
		return nil, err
	}
	return &Audit{Entries: entries, EntrySize: size}, nil
}

// Logged records a written entry. size is zero when the entry was handed
// to the sink unencoded.
func (a *Audit) Logged(logger string, size int) {
	if a == nil {
		return
	}
	_ = a.Entries.Inc(logger, OutcomeLogged)
	if size > 0 {
		_ = a.EntrySize.Observe(float64(size), logger)
	}
}

// Suppressed records a request the exclusion policy left out.
func (a *Audit) Suppressed(logger string) {
	if a == nil {
		return
	}
	_ = a.Entries.Inc(logger, OutcomeSuppressed)
}

// Failed records an entry that could not be built or written.
func (a *Audit) Failed(logger string) {
	if a == nil {
		return
	}
	_ = a.Entries.Inc(logger, OutcomeFailed)
}
