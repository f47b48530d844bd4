// ABOUTME: Typed table of the four KDMAPI entry points
// ABOUTME: Resolves every symbol or none
package kdmapi

// Driver entry point names.
const (
	SymInitializeStream = "InitializeKDMAPIStream"
	SymIsAvailable      = "IsKDMAPIAvailable"
	SymSendDirectData   = "SendDirectData"
	SymTerminateStream  = "TerminateKDMAPIStream"
)

// entryPoints is a fully resolved driver function table.
type entryPoints struct {
	initializeStream func() bool
	isAvailable      func() bool
	sendDirectData   func(uint32) uint32
	terminateStream  func() bool
}

// resolveEntryPoints binds all four entry points from mod. The table is
// returned only when every symbol resolved.
func resolveEntryPoints(mod Module) (*entryPoints, error) {
	var ep entryPoints
	bindings := []struct {
		symbol string
		fnPtr  any
	}{
		{SymInitializeStream, &ep.initializeStream},
		{SymIsAvailable, &ep.isAvailable},
		{SymSendDirectData, &ep.sendDirectData},
		{SymTerminateStream, &ep.terminateStream},
	}

	for _, b := range bindings {
		if err := mod.Bind(b.fnPtr, b.symbol); err != nil {
			return nil, &SymbolError{Symbol: b.symbol, Code: ErrorCode(err), Err: err}
		}
	}

	return &ep, nil
}
