package bb

// JobMeta is the identity of a job as the host scheduler knows it.
type JobMeta struct {
	JobID     uint32
	UserID    uint32
	Account   string
	Partition string
	QOS       string
}

// Job is the cached burst buffer record for one job. It is created
// lazily the first time a job with staging directives is validated and
// lives until the host removes it after a terminal state.
//
// All mutable fields are guarded by the owning Store's lock. Opts is
// immutable after creation.
type Job struct {
	JobMeta

	state        State
	opts         *Options
	setupStarted bool

	// In-flight markers enforcing one active worker per job per phase.
	stageInActive  bool
	stageOutActive bool
}

// Opts returns the job's parsed staging options. Never nil.
func (j *Job) Opts() *Options {
	return j.opts
}
