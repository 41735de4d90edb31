package schemas

// -- Action Script Schemas --

// ScriptAction names one step kind in an action script.
type ScriptAction string

const (
	StepNavigate       ScriptAction = "navigate"
	StepClick          ScriptAction = "click"
	StepDblClick       ScriptAction = "dblclick"
	StepHover          ScriptAction = "hover"
	StepTap            ScriptAction = "tap"
	StepCheck          ScriptAction = "check"
	StepUncheck        ScriptAction = "uncheck"
	StepSetChecked     ScriptAction = "set_checked"
	StepFill           ScriptAction = "fill"
	StepType           ScriptAction = "type"
	StepPress          ScriptAction = "press"
	StepSelectOption   ScriptAction = "select_option"
	StepSetInputFiles  ScriptAction = "set_input_files"
	StepDragAndDrop    ScriptAction = "drag_and_drop"
	StepScrollIntoView ScriptAction = "scroll_into_view"
	StepWaitForState   ScriptAction = "wait_for_state"
)

// Script is a sequence of actions executed against one page.
type Script struct {
	Name  string       `json:"name,omitempty"`
	URL   string       `json:"url,omitempty"`
	Steps []ScriptStep `json:"steps"`
}

// TargetSpec describes a locator in a script.
type TargetSpec struct {
	Selector   string      `json:"selector"`
	HasText    string      `json:"has_text,omitempty"`
	HasNotText string      `json:"has_not_text,omitempty"`
	Role       string      `json:"role,omitempty"`
	Name       string      `json:"name,omitempty"`
	Nth        *int        `json:"nth,omitempty"`
	Within     *TargetSpec `json:"within,omitempty"`
}

// StepOptions mirrors the per-call action options.
type StepOptions struct {
	Force       bool     `json:"force,omitempty"`
	NoWaitAfter bool     `json:"no_wait_after,omitempty"`
	Trial       bool     `json:"trial,omitempty"`
	TimeoutMs   int      `json:"timeout_ms,omitempty"`
	Position    *Point   `json:"position,omitempty"`
	Modifiers   []string `json:"modifiers,omitempty"`
	DelayMs     int      `json:"delay_ms,omitempty"`
}

// ScriptStep is a single scripted action.
type ScriptStep struct {
	Action ScriptAction `json:"action"`
	TargetSpec
	URL     string      `json:"url,omitempty"`
	Value   string      `json:"value,omitempty"`
	Values  []string    `json:"values,omitempty"`
	Files   []string    `json:"files,omitempty"`
	Key     string      `json:"key,omitempty"`
	Checked *bool       `json:"checked,omitempty"`
	State   string      `json:"state,omitempty"`
	Target  *TargetSpec `json:"target,omitempty"`
	Options StepOptions `json:"options,omitempty"`
}
