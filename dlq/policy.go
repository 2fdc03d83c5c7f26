package dlq

import "github.com/jonwraymond/toolops-ontology/resilience"

// reasonPolicy maps a DLQ reason to the resilience retry policy used to
// compute next_retry_time and retry attempt budgets, per the exact
// mapping table (not the divergent one used by the Python source):
// NETWORK->network, WEBHOOK_FAILED->webhook, TIMEOUT->network,
// EXECUTION_FAILED->critical, VALIDATION_FAILED->validation,
// AUTH_ERROR->auth (no dedicated auth preset exists, so it falls back
// to standard), default->standard.
var reasonPolicy = map[Reason]resilience.PolicyName{
	ReasonNetworkError:     resilience.PolicyNetwork,
	ReasonWebhookFailed:    resilience.PolicyWebhook,
	ReasonTimeout:          resilience.PolicyNetwork,
	ReasonExecutionFailed:  resilience.PolicyCritical,
	ReasonValidationFailed: resilience.PolicyValidation,
	ReasonAuthError:        resilience.PolicyStandard,
}

// policyFor resolves the retry policy for a reason, defaulting to standard.
func policyFor(reason Reason) resilience.PolicyName {
	if p, ok := reasonPolicy[reason]; ok {
		return p
	}
	return resilience.PolicyStandard
}
