// Package diff computes line-level diffs on the sergi/go-diff engine.
// It feeds the mutation guard: change counts, the change ratio against the
// original, and a unified-style preview for rejection messages.
package diff

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType represents the type of diff line.
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// Line is a single line operation in the diff.
type Line struct {
	Type    LineType
	Content string
	OldLine int // 1-based line number in the original, -1 for additions
	NewLine int // 1-based line number in the proposed, -1 for removals
}

// Result holds the computed diff between two documents.
type Result struct {
	Lines   []Line
	Added   int
	Removed int

	oldLineCount int
}

// Changed returns the total number of added and removed lines.
// Context lines do not count.
func (r *Result) Changed() int {
	return r.Added + r.Removed
}

// Ratio returns changed lines over the original line count. The
// denominator is clamped to 1 so new and empty files stay defined.
func (r *Result) Ratio() float64 {
	denom := r.oldLineCount
	if denom < 1 {
		denom = 1
	}
	return float64(r.Changed()) / float64(denom)
}

// Normalize converts CRLF and bare CR line endings to LF so that diffs
// reflect content changes rather than platform line-ending churn.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Engine provides diff computation with caching for identical input pairs.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates a new diff engine.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // Accuracy over speed for code diffs
	return &Engine{dmp: dmp}
}

// DefaultEngine is a singleton engine for general use.
var DefaultEngine = NewEngine()

// Compute diffs two documents at line granularity. Inputs are expected
// to be newline-normalized; see Normalize.
func (e *Engine) Compute(oldContent, newContent string) *Result {
	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		if r, ok := cached.(*Result); ok {
			return r
		}
	}

	result := &Result{oldLineCount: countLines(oldContent)}

	if oldContent != newContent {
		// Line-level reduction avoids newline boundary artifacts when
		// converting character diffs back to line ops.
		a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
		diffs := e.dmp.DiffMain(a, b, false)
		diffs = e.dmp.DiffCleanupSemantic(diffs)
		diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

		result.Lines = diffsToLines(diffs)
		for _, line := range result.Lines {
			switch line.Type {
			case LineAdded:
				result.Added++
			case LineRemoved:
				result.Removed++
			}
		}
	}

	e.cache.Store(key, result)
	return result
}

// Compute is a convenience function using the default engine.
func Compute(oldContent, newContent string) *Result {
	return DefaultEngine.Compute(oldContent, newContent)
}

// ClearCache clears the diff cache.
func (e *Engine) ClearCache() {
	e.cache = sync.Map{}
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// diffsToLines converts diffmatchpatch diffs to the line-op sequence.
func diffsToLines(diffs []diffmatchpatch.Diff) []Line {
	lines := make([]Line, 0)
	oldLine := 0
	newLine := 0

	for _, d := range diffs {
		parts := strings.Split(d.Text, "\n")
		// Split leaves a trailing empty element when the chunk ends in \n.
		if len(parts) > 0 && parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}

		for _, content := range parts {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldLine++
				newLine++
				lines = append(lines, Line{
					Type:    LineContext,
					Content: content,
					OldLine: oldLine,
					NewLine: newLine,
				})
			case diffmatchpatch.DiffDelete:
				oldLine++
				lines = append(lines, Line{
					Type:    LineRemoved,
					Content: content,
					OldLine: oldLine,
					NewLine: -1,
				})
			case diffmatchpatch.DiffInsert:
				newLine++
				lines = append(lines, Line{
					Type:    LineAdded,
					Content: content,
					OldLine: -1,
					NewLine: newLine,
				})
			}
		}
	}

	return lines
}

// Preview context lines around each change group.
const previewContext = 3

// Preview renders a unified-style diff capped at maxLines output lines.
// Truncation is marked so the reader knows the preview is partial.
func (r *Result) Preview(maxLines int) string {
	if r.Changed() == 0 {
		return ""
	}

	rendered := renderHunks(r.Lines)
	if maxLines > 0 && len(rendered) > maxLines {
		omitted := len(rendered) - maxLines
		rendered = rendered[:maxLines]
		rendered = append(rendered, fmt.Sprintf("... (%d more lines)", omitted))
	}

	return strings.Join(rendered, "\n")
}

// renderHunks walks the line ops, grouping changes with surrounding
// context under @@ headers.
func renderHunks(lines []Line) []string {
	out := make([]string, 0)

	i := 0
	for i < len(lines) {
		if lines[i].Type == LineContext {
			i++
			continue
		}

		// Found a change; back up for leading context.
		start := i - previewContext
		if start < 0 {
			start = 0
		}

		// Extend through the change group plus trailing context,
		// merging with any change that falls within the window.
		end := i
		lastChange := i
		for end < len(lines) {
			if lines[end].Type != LineContext {
				lastChange = end
			} else if end-lastChange > previewContext {
				break
			}
			end++
		}
		stop := lastChange + previewContext + 1
		if stop > len(lines) {
			stop = len(lines)
		}

		out = append(out, hunkHeader(lines[start:stop]))
		for _, line := range lines[start:stop] {
			switch line.Type {
			case LineAdded:
				out = append(out, "+"+line.Content)
			case LineRemoved:
				out = append(out, "-"+line.Content)
			default:
				out = append(out, " "+line.Content)
			}
		}

		i = stop
	}

	return out
}

func hunkHeader(hunk []Line) string {
	oldStart, newStart := 0, 0
	oldCount, newCount := 0, 0
	for _, line := range hunk {
		if line.Type != LineAdded {
			if oldStart == 0 && line.OldLine > 0 {
				oldStart = line.OldLine
			}
			oldCount++
		}
		if line.Type != LineRemoved {
			if newStart == 0 && line.NewLine > 0 {
				newStart = line.NewLine
			}
			newCount++
		}
	}
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", oldStart, oldCount, newStart, newCount)
}

// hash computes FNV-1a for cache keys.
func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
