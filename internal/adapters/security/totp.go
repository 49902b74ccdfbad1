package security

import (
	"fmt"
	"net/url"

	"github.com/pquerna/otp/totp"
)

// TOTPProvider implements time-based one-time-code enrollment and checks.
// Validation uses the library defaults: 30-second step, six digits, one step
// of clock-drift tolerance either way.
type TOTPProvider struct {
	issuer string
}

func NewTOTPProvider(issuer string) *TOTPProvider {
	if issuer == "" {
		issuer = "authd"
	}
	return &TOTPProvider{issuer: issuer}
}

func (p *TOTPProvider) Enroll(account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// ProvisioningURL rebuilds the otpauth URI for an already-enrolled secret so
// re-enrollment returns the same QR payload instead of rotating the secret.
func (p *TOTPProvider) ProvisioningURL(secret, account string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", p.issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")
	v.Set("period", "30")
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + p.issuer + ":" + account,
		RawQuery: v.Encode(),
	}
	return u.String()
}

func (p *TOTPProvider) Validate(code, secret string) bool {
	return totp.Validate(code, secret)
}
