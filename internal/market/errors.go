package market

import "fmt"

// ConfigError reports missing or invalid market API configuration.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Configuration Error: %s", e.Message)
}

// TransportError reports a failed market API call. Status is zero when the
// request never produced an HTTP response.
type TransportError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("API Error: %d - %s", e.Status, e.Message)
	}
	return fmt.Sprintf("Unexpected error: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
