package builtin

// Manifests maps each builtin tool name to the information.json content
// installed into the tools directory on first run. External tools ship
// their own manifests; these keep the builtins discoverable through the
// same path.
var Manifests = map[string]string{
	"reminders": `{
  "tool_name": "reminders",
  "control_variable_name": "reminders_enabled",
  "tool_description": "Set reminders and timers, list pending ones, and cancel them",
  "available_commands": [
    {
      "command": "set",
      "description": "Set a reminder",
      "format": "reminders.set <description> <when>",
      "arguments": [
        {"name": "description", "type": "string", "required": true, "description": "What to be reminded of"},
        {"name": "when", "type": "string", "required": true, "description": "Trigger time: 'in 45m', '15:04', '2006-01-02 15:04', or RFC3339"}
      ]
    },
    {
      "command": "timer",
      "description": "Start a countdown timer that announces loudly when it finishes",
      "format": "reminders.timer <duration> [description]",
      "arguments": [
        {"name": "duration", "type": "string", "required": true, "description": "Go duration, e.g. 10m"},
        {"name": "description", "type": "string", "required": false, "description": "Timer label"}
      ]
    },
    {"command": "list", "description": "List pending reminders"},
    {
      "command": "cancel",
      "description": "Cancel a reminder by id prefix",
      "arguments": [
        {"name": "id", "type": "string", "required": true, "description": "First characters of the reminder id"}
      ]
    }
  ],
  "tool_usage_guidance": ["Use a timer for short countdowns the user asked for out loud."]
}`,

	"memory_search": `{
  "tool_name": "memory_search",
  "control_variable_name": "memory_search_enabled",
  "tool_description": "Search long-term memory, base knowledge, and yesterday's conversation",
  "available_commands": [
    {
      "command": "search",
      "description": "Search day summaries and recent conversation for a topic",
      "arguments": [
        {"name": "query", "type": "string", "required": true, "description": "What to look for"}
      ]
    },
    {
      "command": "knowledge",
      "description": "Search the base knowledge corpus",
      "arguments": [
        {"name": "query", "type": "string", "required": true, "description": "What to look for"}
      ]
    },
    {"command": "yesterday", "description": "Recall yesterday's conversation"}
  ]
}`,

	"system": `{
  "tool_name": "system",
  "control_variable_name": "system_enabled",
  "tool_description": "Introspection: current time, uptime, memory statistics",
  "available_commands": [
    {"command": "time", "description": "Report the current date and time"},
    {"command": "uptime", "description": "Report how long the agent has been running"},
    {"command": "stats", "description": "Report memory tier sizes"}
  ]
}`,
}
