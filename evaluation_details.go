package statsig

type EvaluationReason string

const (
	reasonNetwork       EvaluationReason = "Network"
	reasonBootstrap     EvaluationReason = "Bootstrap"
	reasonDataAdapter   EvaluationReason = "DataAdapter"
	reasonLocalOverride EvaluationReason = "LocalOverride"
	reasonUnrecognized  EvaluationReason = "Unrecognized"
	reasonUninitialized EvaluationReason = "Uninitialized"
	reasonUnsupported   EvaluationReason = "Unsupported"
)

// EvaluationDetails captures where the ruleset that served an evaluation
// came from and how fresh it was.
type EvaluationDetails struct {
	Reason         EvaluationReason `json:"reason"`
	ConfigSyncTime int64            `json:"configSyncTime"`
	InitTime       int64            `json:"initTime"`
	ServerTime     int64            `json:"serverTime"`
}

func newEvaluationDetails(reason EvaluationReason, configSyncTime int64, initTime int64) *EvaluationDetails {
	return &EvaluationDetails{
		Reason:         reason,
		ConfigSyncTime: configSyncTime,
		InitTime:       initTime,
		ServerTime:     getUnixMilli(),
	}
}
