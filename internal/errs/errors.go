package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
    ErrNotFound  = errors.New("not_found")
    ErrForbidden = errors.New("forbidden")
    ErrInvalid   = errors.New("invalid")

    // ErrDuplicateUser indicates the username is already registered.
    ErrDuplicateUser = errors.New("duplicate_user")
    // ErrInvalidCredentials covers both an unknown user and a wrong password.
    ErrInvalidCredentials = errors.New("invalid_credentials")
    // ErrInvalidAmount is returned for non-positive or foreign-currency amounts.
    ErrInvalidAmount = errors.New("invalid_amount")
    // ErrInsufficientFunds rejects a withdrawal that would take a base or savings account below zero.
    ErrInsufficientFunds = errors.New("insufficient_funds")
    // ErrOverdraftExceeded rejects a checking withdrawal beyond balance + overdraft limit.
    ErrOverdraftExceeded = errors.New("overdraft_exceeded")
    // ErrStorage marks I/O or malformed-document failures; see StorageError.
    ErrStorage = errors.New("storage_error")
)

// StorageError wraps a persistence failure with the operation that produced it.
// errors.Is(err, ErrStorage) reports true for any StorageError.
type StorageError struct {
    Op  string
    Err error
}

func (e *StorageError) Error() string {
    if e.Err == nil { return "storage: " + e.Op }
    return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError unless it already is one. Nil stays nil.
func Storage(op string, err error) error {
    if err == nil { return nil }
    var se *StorageError
    if errors.As(err, &se) { return err }
    return &StorageError{Op: op, Err: err}
}
