package application

// Outbox event types emitted by the auth engine. Consumers subscribe by type;
// the partition key is always the user id so per-user ordering holds.
const (
	EventUserRegistered = "auth.user.registered"
	EventUserLogin      = "auth.user.login"
	EventOTPIssued      = "auth.otp.issued"
	EventPasswordForgot = "auth.password.forgot"
	EventPasswordReset  = "auth.password.reset"
	EventSessionRevoked = "auth.session.revoked"
)
