package ports

import "context"

// PaymentObserver is the interface the Chain Watcher calls into when it
// detects an attributed Transfer (spec.md §2 data flow: Chain Watcher ->
// Clearing Core). Decoupling the watcher from the core this way means the
// watcher never needs to know how PaymentDetected is implemented — any
// struct satisfying this interface works, including a test fake.
type PaymentObserver interface {
	OnTransferDetected(ctx context.Context, t Transfer)
}

// ChainWatcher owns a watch-set of merchant addresses and emits attributed
// Transfer events to a single registered PaymentObserver (spec.md §4.2).
type ChainWatcher interface {
	// Watch adds an address to the watch-set. Only transfers *to* a
	// watched address are ever reported.
	Watch(addr string)

	// Run starts the polling loop; it blocks until ctx is cancelled.
	Run(ctx context.Context)
}
