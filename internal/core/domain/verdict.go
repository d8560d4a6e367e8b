package domain

type Reason string

const (
	REASON_OK                     Reason = "OK"
	REASON_DATA_UNAVAILABLE       Reason = "DATA_UNAVAILABLE"
	REASON_AVERAGE_LIMIT_EXCEEDED Reason = "AVERAGE_LIMIT_EXCEEDED"
	REASON_INSUFFICIENT_POWER     Reason = "INSUFFICIENT_POWER"
	REASON_COMMAND_FAILED         Reason = "COMMAND_FAILED"
)

// Verdict is the outcome of one decision. CurrentAmps is only meaningful when Allowed.
type Verdict struct {
	Allowed     bool
	CurrentAmps int
	Reason      Reason
}

func Deny(reason Reason) Verdict {
	return Verdict{
		Allowed: false,
		Reason:  reason,
	}
}

func Allow(currentAmps int) Verdict {
	return Verdict{
		Allowed:     true,
		CurrentAmps: currentAmps,
		Reason:      REASON_OK,
	}
}

// PublishedCurrent is the current exposed to observers: 0 when charging is not allowed.
func (v Verdict) PublishedCurrent() int {
	if !v.Allowed {
		return 0
	}
	return v.CurrentAmps
}
