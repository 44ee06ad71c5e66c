// Package agent contains the command interpreter, the phase execution
// controller, and the interactive session driver. It turns model output
// into guarded workspace operations.
package agent

// Kind classifies a command outcome. Callers branch on the kind, never
// on message text.
type Kind string

const (
	KindOK               Kind = "ok"
	KindAccessDenied     Kind = "access_denied"
	KindNotFound         Kind = "not_found"
	KindGuardRejected    Kind = "guard_rejected"
	KindMalformedCommand Kind = "malformed_command"
	KindServiceFailure   Kind = "service_failure"
	KindIOFailure        Kind = "io_failure"
)

// Result is the structured outcome of a single command.
type Result struct {
	OK      bool
	Kind    Kind
	Message string

	// Data carries the payload of read-style commands (READ, TREE,
	// LIST_PATH).
	Data string
}

func okResult(message, data string) Result {
	return Result{OK: true, Kind: KindOK, Message: message, Data: data}
}

func failResult(kind Kind, message string) Result {
	return Result{OK: false, Kind: kind, Message: message}
}
