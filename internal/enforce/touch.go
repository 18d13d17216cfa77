package enforce

// Toucher creates a file or updates its modification time.
type Toucher interface {
	Touch() error
}
