package finding

// Kind is the category of a finding.
type Kind string

const (
	KindMissingHeader       Kind = "MISSING_SECURITY_HEADER"
	KindIncorrectHeader     Kind = "INCORRECT_HEADER_VALUE"
	KindBrokenAuth          Kind = "BROKEN_AUTH"
	KindAuthBypass          Kind = "AUTH_BYPASS"
	KindPrivilegeEscalation Kind = "PRIVILEGE_ESCALATION"
	KindExposedDebug        Kind = "EXPOSED_DEBUG"
	KindIDOR                Kind = "IDOR"
	KindJWTNoneAlg          Kind = "JWT_NONE_ALG"
	KindJWTWeakAlg          Kind = "JWT_WEAK_ALG"
	KindNetworkError        Kind = "NETWORK_ERROR"

	// KindProbeError records a detector that failed internally.
	KindProbeError Kind = "PROBE_ERROR"
)

// Kinds lists every known kind.
var Kinds = []Kind{
	KindMissingHeader,
	KindIncorrectHeader,
	KindBrokenAuth,
	KindAuthBypass,
	KindPrivilegeEscalation,
	KindExposedDebug,
	KindIDOR,
	KindJWTNoneAlg,
	KindJWTWeakAlg,
	KindNetworkError,
	KindProbeError,
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// String returns the kind as a string.
func (k Kind) String() string {
	return string(k)
}
