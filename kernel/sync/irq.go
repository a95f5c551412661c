package sync

import "kcore/kernel/cpu"

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	interruptsEnabledFn = cpu.InterruptsEnabled
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
)

// SuspendInterrupts disables interrupt delivery and returns whether it was
// enabled before the call. The result must be passed to RestoreInterrupts.
func SuspendInterrupts() bool {
	if !interruptsEnabledFn() {
		return false
	}

	disableInterruptsFn()
	return true
}

// RestoreInterrupts re-enables interrupt delivery if wasEnabled is true.
func RestoreInterrupts(wasEnabled bool) {
	if wasEnabled {
		enableInterruptsFn()
	}
}

// WithoutInterrupts runs fn with interrupt delivery suspended and restores the
// previous interrupt state once fn returns, including when fn panics. Nested
// calls are safe: only the outermost call re-enables interrupts.
func WithoutInterrupts(fn func()) {
	defer RestoreInterrupts(SuspendInterrupts())
	fn()
}
