package ledger

// Kind classifies a redemption rejection.
type Kind string

const (
	KindUserUnknown        Kind = "user_unknown"
	KindRewardNotActivated Kind = "reward_not_activated"
	KindAlreadyRedeemed    Kind = "already_redeemed"
	KindNotYetAvailable    Kind = "not_yet_available"
	KindExpired            Kind = "expired"
)

// Error is a business-rule rejection returned by Redeem.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so callers can compare against the
// sentinels below even when the message differs.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUserUnknown        = &Error{Kind: KindUserUnknown, Message: "user does not exist"}
	ErrRewardNotActivated = &Error{Kind: KindRewardNotActivated, Message: "This reward has not been activated yet."}
	ErrAlreadyRedeemed    = &Error{Kind: KindAlreadyRedeemed, Message: "This reward has already been redeemed."}
	ErrNotYetAvailable    = &Error{Kind: KindNotYetAvailable, Message: "This reward is not available yet."}
	ErrExpired            = &Error{Kind: KindExpired, Message: "This reward has already expired."}
)

func userUnknown(userID string) *Error {
	return &Error{
		Kind:    KindUserUnknown,
		Message: "The user " + userID + " does not exist in the user table.",
	}
}
