package client

import "errors"

// Kind classifies a failed connect attempt.
type Kind int

const (
	KindAuthExpired  Kind = iota + 1 // credential expired or session dropped for auth reasons
	KindAuthRejected                 // backend answered 401
	KindTokenRequest                 // token endpoint failed or returned no token
	KindNetwork                      // transport failure or timeout
	KindValidation                   // frequency did not parse
)

func (k Kind) String() string {
	switch k {
	case KindAuthExpired:
		return "auth_expired"
	case KindAuthRejected:
		return "auth_rejected"
	case KindTokenRequest:
		return "token_request"
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	ErrBusy         = errors.New("client: a session is already connecting or open")
	ErrAuthExpired  = errors.New("client: credential expired")
	ErrAuthRejected = errors.New("client: credential rejected")
	ErrTokenRequest = errors.New("client: token request failed")
	ErrNetwork      = errors.New("client: network error")
	ErrValidation   = errors.New("client: invalid frequency")
)

func (k Kind) sentinel() error {
	switch k {
	case KindAuthExpired:
		return ErrAuthExpired
	case KindAuthRejected:
		return ErrAuthRejected
	case KindTokenRequest:
		return ErrTokenRequest
	case KindNetwork:
		return ErrNetwork
	case KindValidation:
		return ErrValidation
	default:
		return nil
	}
}

// User-visible messages.
const (
	msgTokenFallback = "Failed to get token"
	msgNetwork       = "Network error"
	msgAuthExpired   = "Session expired, please sign in again"
	msgAuthRejected  = "Not authorized, please sign in again"
	msgValidation    = "Invalid frequency"
)

// ConnectError is returned by Engine.Connect. Message is what the UI shows.
// It matches both the Kind's sentinel and the underlying cause with errors.Is.
type ConnectError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ConnectError) Error() string { return e.Message }

func (e *ConnectError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
