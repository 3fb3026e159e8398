package credential

import "fmt"

// ConfigError means required OAuth configuration is absent.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("google oauth not configured: %s", e.Reason)
}

// AuthFlowError means the interactive authorization was denied, failed or
// timed out. Retrying requires invoking the operation again.
type AuthFlowError struct {
	Reason string
}

func (e *AuthFlowError) Error() string {
	return fmt.Sprintf("google authorization failed: %s", e.Reason)
}
