package llmprovider

// ProviderID represents a unique provider identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// ProviderBedrock is Amazon Bedrock's Converse API
	ProviderBedrock ProviderID = "aws_bedrock"

	// ProviderAnthropic is Anthropic's Claude API
	ProviderAnthropic ProviderID = "anthropic"

	// ProviderLorem is the mock Lorem provider for testing
	ProviderLorem ProviderID = "lorem"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderBedrock, ProviderAnthropic, ProviderLorem:
		return true
	default:
		return false
	}
}

// KnownProviders lists every provider ID in display order.
func KnownProviders() []ProviderID {
	return []ProviderID{ProviderBedrock, ProviderAnthropic, ProviderLorem}
}
