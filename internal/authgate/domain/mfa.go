package domain

// MFAFactor is a provider-reported factor projected for API consumers.
type MFAFactor struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Status string `json:"status"` // "unverified" or "verified"
}

// MFAEnrollment is returned once per enrollment. The secret and provisioning
// URI must be shown to the user immediately; they are not retrievable later.
type MFAEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"` // otpauth:// payload, renderable as a QR code
	FactorID        string `json:"factorId"`
}
