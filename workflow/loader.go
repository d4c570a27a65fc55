package workflow

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/task"
)

// definitionFile is the YAML shape of a workflow definition. Only
// script-bodied tasks can be expressed in a file; inline bodies are a
// library-level construct.
type definitionFile struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	CancelGrace time.Duration  `yaml:"cancel_grace"`
	Tasks       []taskFileSpec `yaml:"tasks"`
}

type taskFileSpec struct {
	Name    string   `yaml:"name"`
	Script  string   `yaml:"script"`
	Args    []string `yaml:"args"`
	Weight  float64  `yaml:"weight"`
	OnError string   `yaml:"on_error"`
	Reboot  bool     `yaml:"reboot"`
}

// LoadDefinition reads and validates a workflow definition from a YAML
// file. A file without an id gets a generated one, so the same file
// loaded twice describes two distinct workflows; give the file an
// explicit id when the workflow must be resumable across invocations.
func LoadDefinition(fsys afero.Fs, path string) (*Definition, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read definition %s: %w", path, err)
	}

	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("workflow: parse definition %s: %w: %v", path, seqra.ErrValidation, err)
	}

	def := &Definition{
		Title:       file.Title,
		CancelGrace: file.CancelGrace,
	}

	if file.ID != "" {
		wfID, err := id.ParseWorkflowID(file.ID)
		if err != nil {
			return nil, fmt.Errorf("workflow: definition %s: %w: %v", path, seqra.ErrValidation, err)
		}
		def.ID = wfID
	} else {
		def.ID = id.NewWorkflowID()
	}

	for _, ts := range file.Tasks {
		spec := task.Spec{
			Name:   ts.Name,
			Body:   task.ScriptBody(ts.Script, ts.Args...),
			Weight: ts.Weight,
			Reboot: ts.Reboot,
		}
		switch ts.OnError {
		case "":
			// Defaults to stop.
		case string(task.PolicyStop):
			spec.OnError = task.PolicyStop
		case string(task.PolicyContinue):
			spec.OnError = task.PolicyContinue
		default:
			return nil, fmt.Errorf("workflow: definition %s: task %q: unknown on_error %q: %w",
				path, ts.Name, ts.OnError, seqra.ErrValidation)
		}
		def.Tasks = append(def.Tasks, spec)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("workflow: definition %s: %w", path, err)
	}
	return def, nil
}
