package loadgen

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	outputFilePermission = 0o600
	directoryPermission  = 0o750
)
