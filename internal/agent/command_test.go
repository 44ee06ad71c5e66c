package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandValid(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{"read", "READ::src/main.go", Command{Action: ActionRead, Path: "src/main.go"}},
		{"write", "WRITE::app.py::a flask hello world app", Command{Action: ActionWrite, Path: "app.py", Description: "a flask hello world app"}},
		{"modify", "MODIFY::README.md::add an install section", Command{Action: ActionModify, Path: "README.md", Description: "add an install section"}},
		{"tree", "TREE", Command{Action: ActionTree}},
		{"list with path", "LIST_PATH::src", Command{Action: ActionListPath, Path: "src"}},
		{"list bare", "LIST_PATH", Command{Action: ActionListPath}},
		{"mkdir", "MKDIR::docs", Command{Action: ActionMkdir, Path: "docs"}},
		{"touch", "TOUCH::.gitignore", Command{Action: ActionTouch, Path: ".gitignore"}},
		{"rm", "RM::old.txt", Command{Action: ActionRemove, Path: "old.txt"}},
		{"mv", "MV::a.txt::b.txt", Command{Action: ActionMove, Path: "a.txt", Dest: "b.txt"}},
		{"finish", "FINISH", Command{Action: ActionFinish}},
		{"finish with message", "FINISH::all files created", Command{Action: ActionFinish, Description: "all files created"}},
		{"tree with path", "TREE::src", Command{Action: ActionTree, Path: "src"}},
		{"surrounding space", "  READ::file.txt  ", Command{Action: ActionRead, Path: "file.txt"}},
		{"description with colon", "WRITE::x.md::notes: part one", Command{Action: ActionWrite, Path: "x.md", Description: "notes: part one"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"unknown verb", "DELETE::file.txt"},
		{"lowercase verb", "read::file.txt"},
		{"read missing path", "READ"},
		{"read empty path", "READ::"},
		{"write missing description", "WRITE::file.txt"},
		{"write empty description", "WRITE::file.txt::"},
		{"modify missing description", "MODIFY::file.txt"},
		{"mv missing dest", "MV::a.txt"},
		{"mv empty dest", "MV::a.txt::"},
		{"finish excess args", "FINISH::done::extra"},
		{"tree excess args", "TREE::src::deep"},
		{"prose", "I will now create the file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.line)
			assert.ErrorIs(t, err, ErrMalformed, "line %q", tt.line)
		})
	}
}

func TestParseCommandDescriptionCheckedBeforeExecution(t *testing.T) {
	// The missing description is a parse failure, so no model call can
	// ever be made for it.
	_, err := ParseCommand("WRITE::app.py::")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIsCommandLine(t *testing.T) {
	assert.True(t, IsCommandLine("READ::x"))
	assert.True(t, IsCommandLine("FINISH"))
	assert.True(t, IsCommandLine("TREE"))
	assert.False(t, IsCommandLine("Now I will read the file"))
	assert.False(t, IsCommandLine(""))
}
