package bb

// ToolName is argv[0] of every external tool invocation. The executed
// binary itself comes from Config.ToolPath.
const ToolName = "lod"

// Verbs understood by the external staging tool.
const (
	VerbStart    = "start"
	VerbStageIn  = "stage_in"
	VerbStageOut = "stage_out"
	VerbStop     = "stop"
)

// ToolCmd builds an argument vector for the external staging tool as an
// ordered list of flag/value pairs, so flag order is explicit and no
// string concatenation or quoting is involved.
type ToolCmd struct {
	flags []toolFlag
}

type toolFlag struct {
	name  string
	value string
}

func NewToolCmd() *ToolCmd {
	return &ToolCmd{}
}

// Flag appends --name=value. Empty values are skipped, matching the
// "only pass options that are set" tool contract.
func (c *ToolCmd) Flag(name, value string) *ToolCmd {
	if value != "" {
		c.flags = append(c.flags, toolFlag{name, value})
	}
	return c
}

// Argv renders ["lod", --flags..., verb].
func (c *ToolCmd) Argv(verb string) []string {
	argv := make([]string, 0, len(c.flags)+2)
	argv = append(argv, ToolName)
	for _, f := range c.flags {
		argv = append(argv, "--"+f.name+"="+f.value)
	}
	return append(argv, verb)
}
