package domain

import "errors"

// Ledger domain errors. Each one is a stable kind reported to callers; wrap
// them with fmt.Errorf("%w: ...") to add detail.
var (
	// ErrCardNotFound is returned when a referenced card number has no record.
	ErrCardNotFound = errors.New("card not found")
	// ErrCardAlreadyExists is returned when a card number is already in use.
	ErrCardAlreadyExists = errors.New("card already exists")
	// ErrCustomerNotFound is returned when an owner or caller email is unknown.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCustomerAlreadyExists is returned when registering a taken email.
	ErrCustomerAlreadyExists = errors.New("customer already exists")
	// ErrNoAccessToOtherData is returned when the caller does not own the card.
	ErrNoAccessToOtherData = errors.New("no access to other customer's data")
	// ErrCardBlocked is returned when an operation needs an ACTIVE card.
	ErrCardBlocked = errors.New("card is not active")
	// ErrAlreadyBlocked is returned when a customer blocks a blocked card.
	ErrAlreadyBlocked = errors.New("card is already blocked")
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidIdempotencyKey is returned for a missing or blank idempotency key.
	ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")
	// ErrLockTimeout is returned when a row lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock timeout")
	// ErrRequestInProgress is returned when another request holds the idempotency key.
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
	// ErrValidation is returned when a request is malformed.
	ErrValidation = errors.New("validation error")
	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Kind is the stable, machine readable name of a domain failure.
type Kind string

const (
	KindCardNotFound          Kind = "CardNotFound"
	KindCardAlreadyExists     Kind = "CardAlreadyExists"
	KindCustomerNotFound      Kind = "CustomerNotFound"
	KindCustomerAlreadyExists Kind = "CustomerAlreadyExists"
	KindNoAccessToOtherData   Kind = "NoAccessToOtherData"
	KindCardBlocked           Kind = "CardBlocked"
	KindAlreadyBlocked        Kind = "AlreadyBlocked"
	KindInsufficientFunds     Kind = "InsufficientFunds"
	KindInvalidIdempotencyKey Kind = "InvalidIdempotencyKey"
	KindLockTimeout           Kind = "LockTimeout"
	KindRequestInProgress     Kind = "RequestInProgress"
	KindValidation            Kind = "ValidationError"
	KindInvalidCredentials    Kind = "InvalidCredentials"
	KindInternal              Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrCardNotFound, KindCardNotFound},
	{ErrCardAlreadyExists, KindCardAlreadyExists},
	{ErrCustomerNotFound, KindCustomerNotFound},
	{ErrCustomerAlreadyExists, KindCustomerAlreadyExists},
	{ErrNoAccessToOtherData, KindNoAccessToOtherData},
	{ErrCardBlocked, KindCardBlocked},
	{ErrAlreadyBlocked, KindAlreadyBlocked},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInvalidIdempotencyKey, KindInvalidIdempotencyKey},
	{ErrLockTimeout, KindLockTimeout},
	{ErrRequestInProgress, KindRequestInProgress},
	{ErrValidation, KindValidation},
	{ErrInvalidCredentials, KindInvalidCredentials},
}

// KindOf returns the kind of the first domain error in err's chain, or
// KindInternal when err carries none.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsRetryable reports whether the caller may retry with the same idempotency key
// and expect a different outcome.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrRequestInProgress)
}
