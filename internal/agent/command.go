package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Action is a command verb in the ACTION::arg1::arg2 line protocol.
type Action string

const (
	ActionRead     Action = "READ"
	ActionWrite    Action = "WRITE"
	ActionModify   Action = "MODIFY"
	ActionTree     Action = "TREE"
	ActionListPath Action = "LIST_PATH"
	ActionMkdir    Action = "MKDIR"
	ActionTouch    Action = "TOUCH"
	ActionRemove   Action = "RM"
	ActionMove     Action = "MV"
	ActionFinish   Action = "FINISH"
)

// ErrMalformed marks a line that failed strict command parsing.
var ErrMalformed = errors.New("malformed command")

// Command is a parsed protocol line. Which fields are populated depends
// on the action.
type Command struct {
	Action Action

	// Path is the primary target (source for MV).
	Path string

	// Dest is the MV destination.
	Dest string

	// Description is the content intent for WRITE and MODIFY, and the
	// optional completion note for FINISH.
	Description string
}

// argSpec describes the argument shape of each verb.
type argSpec struct {
	required int
	maximum  int
}

var commandSpecs = map[Action]argSpec{
	ActionRead:     {required: 1, maximum: 1},
	ActionWrite:    {required: 2, maximum: 2},
	ActionModify:   {required: 2, maximum: 2},
	ActionTree:     {required: 0, maximum: 1},
	ActionListPath: {required: 0, maximum: 1},
	ActionMkdir:    {required: 1, maximum: 1},
	ActionTouch:    {required: 1, maximum: 1},
	ActionRemove:   {required: 1, maximum: 1},
	ActionMove:     {required: 2, maximum: 2},
	ActionFinish:   {required: 0, maximum: 1},
}

// ParseCommand parses one protocol line into a Command. Parsing is
// strict: unknown verbs, missing required fields, and excess fields all
// fail here so malformed input never reaches execution half-validated.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	fields := strings.SplitN(line, "::", 3)
	verb := Action(strings.TrimSpace(fields[0]))

	spec, known := commandSpecs[verb]
	if !known {
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrMalformed, string(verb))
	}

	args := make([]string, 0, len(fields)-1)
	for _, f := range fields[1:] {
		args = append(args, strings.TrimSpace(f))
	}

	if len(args) > spec.maximum {
		return Command{}, fmt.Errorf("%w: %s takes at most %d argument(s), got %d", ErrMalformed, verb, spec.maximum, len(args))
	}
	if len(args) < spec.required {
		return Command{}, fmt.Errorf("%w: %s requires %d argument(s), got %d", ErrMalformed, verb, spec.required, len(args))
	}
	for i := 0; i < spec.required; i++ {
		if args[i] == "" {
			return Command{}, fmt.Errorf("%w: %s argument %d is empty", ErrMalformed, verb, i+1)
		}
	}

	cmd := Command{Action: verb}
	switch verb {
	case ActionRead, ActionMkdir, ActionTouch, ActionRemove:
		cmd.Path = args[0]
	case ActionListPath, ActionTree:
		if len(args) == 1 {
			cmd.Path = args[0]
		}
	case ActionWrite, ActionModify:
		cmd.Path = args[0]
		cmd.Description = args[1]
	case ActionMove:
		cmd.Path = args[0]
		cmd.Dest = args[1]
	case ActionFinish:
		if len(args) == 1 {
			cmd.Description = args[0]
		}
	}

	return cmd, nil
}

// IsCommandLine reports whether a model output line looks like a
// protocol command. Prose lines in a batch are skipped, not errors.
func IsCommandLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == string(ActionFinish) || line == string(ActionTree) {
		return true
	}
	return strings.Contains(line, "::")
}
