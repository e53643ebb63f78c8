package translate

import "path"

// Capability is one row of the model-name glob table that holds
// model-specific quirks. Adding a quirk means adding a column here, not a
// branch at a call site.
type Capability struct {
	// Glob matches against the upstream model name using path.Match syntax.
	Glob string

	// RenameMaxTokens renames max_tokens to max_completion_tokens in the
	// translated OpenAI request, for models that dropped the legacy param.
	RenameMaxTokens bool

	// ToolConcurrencyWarning flags models known to misbehave with multiple
	// concurrent tool calls in one turn; diagnostic only.
	ToolConcurrencyWarning bool

	// ImageInput reports whether the model accepts image content blocks.
	// Only consulted for Anthropic-native providers; OpenAI-dialect
	// translation always forwards images.
	ImageInput bool
}

// capabilityTable is ordered; the first matching glob wins. A trailing
// catch-all row supplies the defaults for anything unrecognized.
var capabilityTable = []Capability{
	{Glob: "gpt-5*", RenameMaxTokens: true, ImageInput: true},
	{Glob: "o1*", RenameMaxTokens: true, ImageInput: false},
	{Glob: "o3*", RenameMaxTokens: true, ImageInput: false},
	{Glob: "o4*", RenameMaxTokens: true, ImageInput: false},
	{Glob: "*deepseek*", ToolConcurrencyWarning: true, ImageInput: false},
	{Glob: "*claude*", ImageInput: true},
	{Glob: "*gemini*", ImageInput: true},
	{Glob: "*", ImageInput: true}, // catch-all default
}

// LookupCapability returns the first capability row whose glob matches model.
func LookupCapability(model string) Capability {
	for _, c := range capabilityTable {
		if ok, _ := path.Match(c.Glob, model); ok {
			return c
		}
	}
	return capabilityTable[len(capabilityTable)-1]
}

// Capabilities returns a copy of the full table for the debug/routes
// diagnostic endpoint.
func Capabilities() []Capability {
	out := make([]Capability, len(capabilityTable))
	copy(out, capabilityTable)
	return out
}
