package bb

// Transfer is one stage-in or stage-out file specification.
type Transfer struct {
	Source      string
	SourceList  string
	Destination string
}

// Options holds a job's parsed staging directives. An Options is attached
// to its Job at validation time and is read-only afterwards; workers may
// read it without holding the store lock.
type Options struct {
	// Which phases the job asked for.
	Setup    bool
	StageIn  bool
	StageOut bool
	NeedStop bool

	// Resource parameters from the setup directive. All optional.
	Nodes      string
	MdtDevs    string
	OstDevs    string
	Inet       string
	MountPoint string

	// If stage_in or stage_out repeats in one script the whole triple is
	// overwritten; the last occurrence wins.
	In  Transfer
	Out Transfer
}
