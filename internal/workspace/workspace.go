// Package workspace confines every file operation to a root directory
// captured at startup and guards large modifications behind a line-diff
// threshold. Nothing in the agent touches the filesystem except through
// this package.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"paicode/internal/diff"
	"paicode/internal/logging"
)

// Sentinel errors for interpreter-side classification.
var (
	// ErrAccessDenied means the path escapes the root or touches a
	// protected name.
	ErrAccessDenied = errors.New("path is outside the workspace or protected")

	// ErrNotFound means the target does not exist.
	ErrNotFound = errors.New("path does not exist")
)

// defaultDenied are path segments no operation may traverse or target.
var defaultDenied = []string{
	".git",
	".env",
	"venv",
	"__pycache__",
	".pai",
	".idea",
	".vscode",
}

// Options configures a Workspace.
type Options struct {
	// ModifyThreshold is the changed-line count above which the ratio
	// check applies. Zero means the default of 500.
	ModifyThreshold int

	// MaxChangeRatio is the changed/original ratio limit. Zero means
	// the default of 0.5.
	MaxChangeRatio float64

	// DenyExtra adds segments to the protected set.
	DenyExtra []string
}

// Workspace is the path sandbox plus mutation guard. The root is
// resolved once at construction; later working-directory changes do not
// affect it.
type Workspace struct {
	root      string
	denied    map[string]struct{}
	threshold int
	maxRatio  float64
	engine    *diff.Engine
}

// New creates a Workspace rooted at dir. The directory must exist.
func New(dir string, opts Options) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", resolved)
	}

	threshold := opts.ModifyThreshold
	if threshold <= 0 {
		threshold = 500
	}
	maxRatio := opts.MaxChangeRatio
	if maxRatio <= 0 {
		maxRatio = 0.5
	}

	denied := make(map[string]struct{}, len(defaultDenied)+len(opts.DenyExtra))
	for _, name := range defaultDenied {
		denied[name] = struct{}{}
	}
	for _, name := range opts.DenyExtra {
		name = strings.TrimSpace(name)
		if name != "" {
			denied[name] = struct{}{}
		}
	}

	return &Workspace{
		root:      resolved,
		denied:    denied,
		threshold: threshold,
		maxRatio:  maxRatio,
		engine:    diff.NewEngine(),
	}, nil
}

// Root returns the resolved workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// IsSafe reports whether a relative path stays inside the root and
// avoids every protected segment.
func (w *Workspace) IsSafe(path string) bool {
	_, err := w.resolve(path)
	return err == nil
}

// resolve validates a path and returns its absolute location under the
// root. Symlinks along the existing portion of the path are resolved so
// a link cannot smuggle an operation outside the root.
func (w *Workspace) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "." || path == ".." {
		return "", fmt.Errorf("%w: %q", ErrAccessDenied, path)
	}

	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Clean(filepath.Join(w.root, path))
	}

	rel, err := filepath.Rel(w.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrAccessDenied, path)
	}
	if rel == "." {
		return "", fmt.Errorf("%w: %q", ErrAccessDenied, path)
	}

	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if _, bad := w.denied[segment]; bad {
			return "", fmt.Errorf("%w: %q", ErrAccessDenied, path)
		}
	}

	// Resolve symlinks on the deepest existing ancestor and re-check
	// root containment.
	if resolved, ok := resolveExisting(target); ok {
		relResolved, err := filepath.Rel(w.root, resolved)
		if err != nil || relResolved == ".." || strings.HasPrefix(relResolved, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %q", ErrAccessDenied, path)
		}
	}

	return target, nil
}

// resolveExisting runs EvalSymlinks against the longest existing prefix
// of target, reattaching the non-existing suffix.
func resolveExisting(target string) (string, bool) {
	remainder := ""
	current := target
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, remainder), true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

// ReadFile returns the content of a file inside the workspace.
func (w *Workspace) ReadFile(path string) (string, error) {
	target, err := w.resolve(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	logging.WorkspaceDebug("read %s (%d bytes)", path, len(data))
	return string(data), nil
}

// WriteFile writes content to a file, creating parent directories as
// needed. The write is atomic: content lands in a temp file that is
// renamed over the target.
func (w *Workspace) WriteFile(path, content string) error {
	target, err := w.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}

	if err := atomicWrite(target, content); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Workspace("wrote %s (%d bytes)", path, len(content))
	return nil
}

// atomicWrite writes content to a sibling temp file and renames it over
// the target, so a crash never leaves a half-written file.
func atomicWrite(target, content string) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".pai-write-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	// Preserve the mode of an existing target; default otherwise.
	mode := os.FileMode(0644)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Mkdir creates a directory (and parents) inside the workspace.
func (w *Workspace) Mkdir(path string) error {
	target, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	logging.Workspace("created directory %s", path)
	return nil
}

// Touch creates an empty file or updates the modification time of an
// existing one.
func (w *Workspace) Touch(path string) error {
	target, err := w.resolve(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(target); err == nil {
		now := time.Now()
		if err := os.Chtimes(target, now, now); err != nil {
			return fmt.Errorf("failed to touch %s: %w", path, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to touch %s: %w", path, err)
	}
	f.Close()

	logging.Workspace("touched %s", path)
	return nil
}

// Remove deletes a file or directory tree inside the workspace.
// Removing something that does not exist is an error.
func (w *Workspace) Remove(path string) error {
	target, err := w.resolve(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	logging.Workspace("removed %s", path)
	return nil
}

// Move renames a file or directory. Both endpoints must be safe paths.
func (w *Workspace) Move(src, dst string) error {
	srcTarget, err := w.resolve(src)
	if err != nil {
		return err
	}
	dstTarget, err := w.resolve(dst)
	if err != nil {
		return err
	}

	if _, err := os.Stat(srcTarget); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, src)
		}
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dstTarget), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", dst, err)
	}

	if err := os.Rename(srcTarget, dstTarget); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	logging.Workspace("moved %s to %s", src, dst)
	return nil
}

// List returns the entries of a directory, sorted, with directories
// suffixed by a separator. Protected entries are omitted.
func (w *Workspace) List(path string) ([]string, error) {
	var target string
	if strings.TrimSpace(path) == "" || path == "." {
		target = w.root
	} else {
		var err error
		target, err = w.resolve(path)
		if err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, bad := w.denied[entry.Name()]; bad {
			continue
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Tree renders a directory as an indented listing, depth-first with
// sorted entries. An empty path or "." means the workspace root.
// Protected directories are pruned.
func (w *Workspace) Tree(path string) (string, error) {
	var target string
	if strings.TrimSpace(path) == "" || path == "." {
		target = w.root
	} else {
		var err error
		target, err = w.resolve(path)
		if err != nil {
			return "", err
		}
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to walk %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}

	var b strings.Builder
	b.WriteString(filepath.Base(target) + "/\n")
	if err := w.writeTree(&b, target, 1); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (w *Workspace) writeTree(b *strings.Builder, dir string, depth int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if _, bad := w.denied[entry.Name()]; bad {
			continue
		}
		indent := strings.Repeat("  ", depth)
		if entry.IsDir() {
			b.WriteString(indent + entry.Name() + "/\n")
			if err := w.writeTree(b, filepath.Join(dir, entry.Name()), depth+1); err != nil {
				return err
			}
		} else {
			b.WriteString(indent + entry.Name() + "\n")
		}
	}
	return nil
}
