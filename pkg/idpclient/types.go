package idpclient

// FactorTypeTOTP is the only factor type this gateway manages.
const FactorTypeTOTP = "totp"

// Factor statuses as reported by the provider.
const (
	FactorStatusUnverified = "unverified"
	FactorStatusVerified   = "verified"
)

// SignInResult is the outcome of a successful primary-credential sign-in.
type SignInResult struct {
	AccessToken string
	ExternalID  string
	Email       string
}

// Identity is the provider-side identity resolved from a bearer token.
type Identity struct {
	ExternalID string
	Email      string
}

// Factor is a provider-registered MFA factor.
type Factor struct {
	ID           string `json:"id"`
	Type         string `json:"factor_type"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
}

// FactorList splits the provider's factor listing the way callers consume it.
type FactorList struct {
	All  []Factor
	TOTP []Factor
}

// Enrollment is the material returned by a successful TOTP enrollment. The
// secret and provisioning URI are shown to the user exactly once.
type Enrollment struct {
	FactorID        string
	Secret          string
	ProvisioningURI string
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type factorsResponse struct {
	All  []Factor `json:"all"`
	TOTP []Factor `json:"totp"`
}

type enrollRequest struct {
	FactorType   string `json:"factor_type"`
	FriendlyName string `json:"friendly_name"`
	Issuer       string `json:"issuer"`
}

type enrollResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	TOTP struct {
		Secret string `json:"secret"`
		URI    string `json:"uri"`
	} `json:"totp"`
}

type challengeResponse struct {
	ID string `json:"id"`
}

type verifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type verifyResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
