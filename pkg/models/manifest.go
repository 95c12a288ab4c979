package models

// ToolManifest is the information.json descriptor found in each installed
// tool directory. The manifest supplies everything the prompt constructors
// need: the one-line summary shown by default and the detailed command
// reference shown after an instruction grant.
type ToolManifest struct {
	ToolName            string            `json:"tool_name"`
	ControlVariableName string            `json:"control_variable_name"`
	ToolDescription     string            `json:"tool_description"`
	AvailableCommands   []ManifestCommand `json:"available_commands"`
	ToolUsageGuidance   []string          `json:"tool_usage_guidance,omitempty"`
	ToolUsageExamples   []string          `json:"tool_usage_examples,omitempty"`
	TimeoutSeconds      int               `json:"timeout_seconds,omitempty"`
	CooldownSeconds     int               `json:"cooldown_seconds,omitempty"`
	Metadata            ManifestMetadata  `json:"metadata,omitempty"`
}

// ManifestCommand describes one invocable command of a tool.
type ManifestCommand struct {
	Command     string             `json:"command"`
	Description string             `json:"description"`
	Format      string             `json:"format,omitempty"`
	Arguments   []ManifestArgument `json:"arguments,omitempty"`
}

// ManifestArgument describes one positional argument of a command.
type ManifestArgument struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// ManifestMetadata carries display hints for front-ends; the core only
// stores it.
type ManifestMetadata struct {
	DisplayName string `json:"display_name,omitempty"`
	Category    string `json:"category,omitempty"`
	GUILabel    string `json:"gui_label,omitempty"`
	GUIIcon     string `json:"gui_icon,omitempty"`
}
