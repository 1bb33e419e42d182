package votesim

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Reporting constants.
const (
	PercentageMultiplier = 100
)

// Defaults applied to zero config values.
const (
	defaultVoters        = 50
	defaultVotesPerVoter = 20
	defaultWorkers       = 8
)
