package constants

// System wallet ids. External mirrors gateway inflows/outflows, Platform
// accumulates commissions and fees, Statutory accumulates the withheld
// social-security contributions pending remittance.
const (
	AccountExternalID  = "00000000-0000-0000-0000-000000000001"
	AccountPlatformID  = "00000000-0000-0000-0000-000000000002"
	AccountStatutoryID = "00000000-0000-0000-0000-000000000003"
)

// Actor roles accepted on mutating calls.
const (
	RoleSystem     = "system"
	RoleAdmin      = "admin"
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
)

// Supported payment gateways.
const (
	GatewayPaystack = "paystack"
	GatewayStripe   = "stripe"
)

const Currency = "GHS"
