package session

// Observer receives controller lifecycle events (metrics, audit).
//
// Methods are called synchronously, StateChanged under the controller lock, so
// implementations must be fast and must not call back into the Controller.
type Observer interface {
	BootstrapFinished(outcome Outcome)
	RenewalFinished(err error)
	StateChanged(s Session)
}

type nopObserver struct{}

func (nopObserver) BootstrapFinished(Outcome) {}
func (nopObserver) RenewalFinished(error)     {}
func (nopObserver) StateChanged(Session)      {}
