package feed

// Notifier is the surface the feed core uses to reach the toast layer.
// The UI supplies an implementation; the core never renders anything.
type Notifier interface {
	// Info announces a successful background action.
	Info(msg string)
	// Error announces a failed action the user should retry.
	Error(msg string)
	// SessionExpired tells the user to re-authenticate. Kept separate
	// from Error so the UI can say "refresh and sign in" instead of
	// "try again".
	SessionExpired()
}

type noopNotifier struct{}

func (noopNotifier) Info(string)     {}
func (noopNotifier) Error(string)    {}
func (noopNotifier) SessionExpired() {}
