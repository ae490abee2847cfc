package model

// Verdict is the trust classification assigned to a candidate's caller.
// Only Wanted authorizes a dispatch; Indeterminate must be resolved through
// a transaction lookup before any action is taken.
type Verdict int

const (
	VerdictIndeterminate Verdict = iota
	VerdictWanted
	VerdictUnwanted
)

func (v Verdict) String() string {
	switch v {
	case VerdictWanted:
		return "wanted"
	case VerdictUnwanted:
		return "unwanted"
	case VerdictIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}
