package domain

import "strings"

// Status classifies current stock against the safety stock and reorder point.
type Status string

const (
	StatusCritical Status = "CRITICAL"
	StatusWarning  Status = "WARNING"
	StatusSafe     Status = "SAFE"
)

var statusLabels = map[Status]string{
	StatusCritical: "KRITIS",
	StatusWarning:  "WARNING",
	StatusSafe:     "AMAN",
}

var statusCodes = map[string]Status{
	"critical": StatusCritical,
	"kritis":   StatusCritical,
	"warning":  StatusWarning,
	"safe":     StatusSafe,
	"aman":     StatusSafe,
}

// Label returns the label shown on the plant dashboard.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}

	return "UNKNOWN"
}

// ParseStatus returns the status for a code or dashboard label (case-insensitive).
func ParseStatus(label string) (Status, bool) {
	status, ok := statusCodes[strings.ToLower(strings.TrimSpace(label))]

	return status, ok
}

// AlertMessage is the reorder banner text for the given alert flag.
func AlertMessage(alert bool) string {
	if alert {
		return "Stock is near the reorder point, order raw material now."
	}
	return "Stock is still safe."
}
