package entity

// RecoveryType is the only intent type that allows a password change.
const RecoveryType = "recovery"

// Provenance records which part of the URL supplied a recovery intent.
type Provenance int

const (
	ProvenanceQuery Provenance = iota + 1
	ProvenanceFragment
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceQuery:
		return "query"
	case ProvenanceFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// RecoveryIntent is a parsed request, from URL data, to re-authenticate for
// the sole purpose of changing a password. It is never persisted.
type RecoveryIntent struct {
	Type         string
	AccessToken  string
	RefreshToken string
	Provenance   Provenance
}
