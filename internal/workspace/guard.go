package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"paicode/internal/diff"
	"paicode/internal/logging"
)

// previewLines caps the diff preview embedded in rejection messages.
const previewLines = 60

// GuardDecision is the outcome of a guarded modification.
type GuardDecision struct {
	// Accepted is true when the change was written (or was a no-op).
	Accepted bool

	// NoOp is true when the proposed content matched the original
	// after normalization; the file was left untouched.
	NoOp bool

	// Added and Removed are the changed line counts from the diff.
	Added   int
	Removed int

	// Ratio is changed lines over original lines (denominator >= 1).
	Ratio float64

	// Message describes a rejection: stats, a diff preview, and how to
	// proceed. Empty on acceptance.
	Message string
}

// Changed returns the total changed line count.
func (d GuardDecision) Changed() int {
	return d.Added + d.Removed
}

// ApplyModification diffs proposed content against the original and
// writes it only when the change passes the size gate. A change is
// rejected when the changed line count exceeds the threshold AND the
// change ratio exceeds the limit; either alone passes. Accepted content
// is written atomically. Line endings are normalized before diffing so
// CRLF churn never counts as change.
func (w *Workspace) ApplyModification(path, original, proposed string) (GuardDecision, error) {
	target, err := w.resolve(path)
	if err != nil {
		return GuardDecision{}, err
	}

	normOriginal := diff.Normalize(original)
	normProposed := diff.Normalize(proposed)

	result := w.engine.Compute(normOriginal, normProposed)
	decision := GuardDecision{
		Added:   result.Added,
		Removed: result.Removed,
		Ratio:   result.Ratio(),
	}

	if result.Changed() == 0 {
		decision.Accepted = true
		decision.NoOp = true
		logging.WorkspaceDebug("guard: %s no-op, file untouched", path)
		return decision, nil
	}

	if result.Changed() > w.threshold && result.Ratio() > w.maxRatio {
		decision.Message = fmt.Sprintf(
			"modification to %s rejected: %d changed lines (threshold %d) at ratio %.2f (limit %.2f)\n\n%s\n\nSplit the change into smaller modifications and apply them one at a time.",
			path, result.Changed(), w.threshold, result.Ratio(), w.maxRatio,
			result.Preview(previewLines),
		)
		logging.WorkspaceWarn("guard: rejected %s (+%d/-%d ratio=%.2f)", path, result.Added, result.Removed, result.Ratio())
		return decision, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return decision, fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}
	if err := atomicWrite(target, normProposed); err != nil {
		return decision, fmt.Errorf("failed to write %s: %w", path, err)
	}

	decision.Accepted = true
	logging.Workspace("guard: accepted %s (+%d/-%d ratio=%.2f)", path, result.Added, result.Removed, result.Ratio())
	return decision, nil
}
