// ABOUTME: Version information for kdmapi-go
// ABOUTME: Reported in bridge handshakes and -version output
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "kdmapi-go"

	// Manufacturer identifies the maintainer
	Manufacturer = "OmniMIDI community"
)
