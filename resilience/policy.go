package resilience

import "time"

// PolicyName identifies one of the predefined retry/breaker policies.
type PolicyName string

const (
	PolicyStandard     PolicyName = "standard"
	PolicyNetwork      PolicyName = "network"
	PolicyConservative PolicyName = "conservative"
	PolicyDatabase     PolicyName = "database"
	PolicyWebhook      PolicyName = "webhook"
	PolicyValidation   PolicyName = "validation"
	PolicyCritical     PolicyName = "critical"
)

// Policies holds the global, compile-time retry policy registry named
// in the design notes: "Predefined policies are fixed parameters;
// encode them as compile-time constants referenced by name." Each
// policy configures a RetryExecutorConfig's backoff and attempt count;
// callers attach their own Budget/Breaker instances as needed.
var Policies = map[PolicyName]RetryExecutorConfig{
	PolicyStandard: {
		MaxAttempts: 3,
		Backoff: NewBackoffCalculator(BackoffConfig{
			Strategy: BackoffExponential, Preset: PresetStandard, MaxDelay: 30 * time.Second,
		}),
	},
	PolicyNetwork: {
		MaxAttempts: 3,
		Backoff: NewBackoffCalculator(BackoffConfig{
			Strategy: BackoffExponential, InitialDelay: 5 * time.Second, Multiplier: 2.0, MaxDelay: 60 * time.Second,
		}),
	},
	PolicyConservative: {
		MaxAttempts: 5,
		Backoff: NewBackoffCalculator(BackoffConfig{
			Strategy: BackoffExponential, Preset: PresetConservative, MaxDelay: 5 * time.Minute,
		}),
	},
	PolicyDatabase: {
		MaxAttempts: 5,
		Backoff: NewBackoffCalculator(BackoffConfig{
			Strategy: BackoffExponential, InitialDelay: 1 * time.Second, Multiplier: 2.0, MaxDelay: 30 * time.Second,
		}),
	},
	PolicyWebhook: {
		MaxAttempts: 3,
		Backoff: NewBackoffCalculator(BackoffConfig{
			Strategy: BackoffExponential, InitialDelay: 30 * time.Second, Multiplier: 2.0, MaxDelay: 5 * time.Minute,
		}),
	},
	PolicyValidation: {
		MaxAttempts: 1,
		Backoff: NewBackoffCalculator(BackoffConfig{
			Strategy: BackoffFixed, InitialDelay: 60 * time.Second, MaxDelay: 60 * time.Second,
		}),
	},
	PolicyCritical: {
		MaxAttempts: 5,
		Backoff: NewBackoffCalculator(BackoffConfig{
			Strategy: BackoffExponential, InitialDelay: 1 * time.Minute, Multiplier: 3.0, MaxDelay: 30 * time.Minute,
		}),
	},
}
