package domain

// Defaults used when a user has no usable history or estimation fails.
const (
	DefaultProcrastinationCoefficient   = 1.5
	DefaultOnTimeDeliveryRate           = 0.7
	DefaultAverageCompletionTimeMinutes = 120.0

	MinProcrastinationCoefficient = 1.0
	MaxProcrastinationCoefficient = 3.0
)

// UserBehaviorProfile summarizes how a user historically delivers against deadlines.
// It is computed on demand and never persisted.
type UserBehaviorProfile struct {
	ProcrastinationCoefficient   float64 `json:"procrastination_coefficient"`
	OnTimeDeliveryRate           float64 `json:"on_time_delivery_rate"`
	AverageCompletionTimeMinutes float64 `json:"average_completion_time_minutes"`
}

// DefaultProfile is the fail-open profile.
var DefaultProfile = UserBehaviorProfile{
	ProcrastinationCoefficient:   DefaultProcrastinationCoefficient,
	OnTimeDeliveryRate:           DefaultOnTimeDeliveryRate,
	AverageCompletionTimeMinutes: DefaultAverageCompletionTimeMinutes,
}
