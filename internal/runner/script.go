package runner

import (
	"errors"
	"fmt"
	"os"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/engine"
)

// LoadScript reads and validates an action script. A leading "~" in path expands to the home directory.
func LoadScript(path string) (*schemas.Script, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand script path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	script, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", expanded, err)
	}
	if script.Name == "" {
		script.Name = expanded
	}
	return script, nil
}

// ParseScript decodes a JSON action script and validates every step.
func ParseScript(data []byte) (*schemas.Script, error) {
	var script schemas.Script
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("invalid script JSON: %w", err)
	}
	if len(script.Steps) == 0 && script.URL == "" {
		return nil, errors.New("script has no steps")
	}
	var errs []error
	for i, step := range script.Steps {
		if err := validateStep(step); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, step.Action, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &script, nil
}

func validateStep(s schemas.ScriptStep) error {
	if s.Action == schemas.StepNavigate {
		if s.URL == "" {
			return errors.New("url is required")
		}
		return nil
	}
	if err := validateTarget(s.TargetSpec); err != nil {
		return err
	}
	if _, err := schemas.ParseModifiers(s.Options.Modifiers); err != nil {
		return err
	}
	switch s.Action {
	case schemas.StepClick, schemas.StepDblClick, schemas.StepHover, schemas.StepTap,
		schemas.StepCheck, schemas.StepUncheck, schemas.StepFill, schemas.StepType,
		schemas.StepScrollIntoView:
	case schemas.StepSetChecked:
		if s.Checked == nil {
			return errors.New("checked is required")
		}
	case schemas.StepPress:
		if _, err := schemas.ParseKeyExpression(s.Key); err != nil {
			return err
		}
	case schemas.StepSelectOption:
		if len(s.Values) == 0 && s.Value == "" {
			return errors.New("value or values is required")
		}
	case schemas.StepSetInputFiles:
	case schemas.StepDragAndDrop:
		if s.Target == nil {
			return errors.New("target is required")
		}
		return validateTarget(*s.Target)
	case schemas.StepWaitForState:
		if _, ok := engine.ParseElementState(s.State); !ok {
			return fmt.Errorf("unknown state %q", s.State)
		}
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}

func validateTarget(t schemas.TargetSpec) error {
	if t.Selector == "" {
		return errors.New("selector is required")
	}
	if t.Within != nil {
		return validateTarget(*t.Within)
	}
	return nil
}
