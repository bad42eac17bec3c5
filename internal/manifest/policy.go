package manifest

import "time"

// Progress is the work done since the last checkpoint.
type Progress struct {
	Documents int
	Bytes     int64
	Elapsed   time.Duration
}

// Policy decides when the pipeline saves the manifest mid-run.
type Policy interface {
	Due(p Progress) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(Progress) bool

// Due implements Policy.
func (f PolicyFunc) Due(p Progress) bool { return f(p) }

// EveryDocuments is due after n processed documents, ok and failed alike.
func EveryDocuments(n int) Policy {
	return PolicyFunc(func(p Progress) bool {
		return n > 0 && p.Documents >= n
	})
}

// EveryInterval is due once d has elapsed.
func EveryInterval(d time.Duration) Policy {
	return PolicyFunc(func(p Progress) bool {
		return d > 0 && p.Elapsed >= d
	})
}

// EveryBytes is due once b record bytes were appended.
func EveryBytes(b int64) Policy {
	return PolicyFunc(func(p Progress) bool {
		return b > 0 && p.Bytes >= b
	})
}

// AnyOf is due when any of policies is.
func AnyOf(policies ...Policy) Policy {
	return PolicyFunc(func(p Progress) bool {
		for _, pol := range policies {
			if pol != nil && pol.Due(p) {
				return true
			}
		}
		return false
	})
}

// Never is never due; only the final save happens.
func Never() Policy {
	return PolicyFunc(func(Progress) bool { return false })
}
