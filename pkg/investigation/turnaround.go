package investigation

// FallbackTurnaroundMinutes applies when neither the request, the test, nor
// the case supplies a positive turnaround.
const FallbackTurnaroundMinutes = 30

type overrideKind int

const (
	overrideUnset overrideKind = iota
	overrideInstant
	overrideMinutes
)

// TurnaroundOverride is the request-level override as an explicit tri-state:
// absent, "instant" (zero minutes), or a positive minute count. Zero is
// never treated as unset.
type TurnaroundOverride struct {
	kind    overrideKind
	minutes int
}

func UnsetOverride() TurnaroundOverride {
	return TurnaroundOverride{kind: overrideUnset}
}

func InstantOverride() TurnaroundOverride {
	return TurnaroundOverride{kind: overrideInstant}
}

func MinutesOverride(minutes int) TurnaroundOverride {
	if minutes <= 0 {
		return TurnaroundOverride{kind: overrideInstant}
	}
	return TurnaroundOverride{kind: overrideMinutes, minutes: minutes}
}

// OverrideFromRequest maps the optional wire field: nil is unset, 0 is
// instant, a positive value is that many minutes.
func OverrideFromRequest(minutes *int) TurnaroundOverride {
	if minutes == nil {
		return UnsetOverride()
	}
	return MinutesOverride(*minutes)
}

func (o TurnaroundOverride) IsSet() bool { return o.kind != overrideUnset }

// ResolveTurnaround computes an order's result delay in minutes. Precedence:
// the case-wide instant flag, then the request override, then the test's own
// default, then the case default, then the global fallback.
func ResolveTurnaround(instant bool, override TurnaroundOverride, perTestDefault, caseDefault int) int {
	if instant {
		return 0
	}
	switch override.kind {
	case overrideInstant:
		return 0
	case overrideMinutes:
		return override.minutes
	}
	if perTestDefault > 0 {
		return perTestDefault
	}
	if caseDefault > 0 {
		return caseDefault
	}
	return FallbackTurnaroundMinutes
}
