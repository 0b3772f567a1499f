package auth

// Service is the operator account and session contract consumed by the admin
// and audit HTTP handlers.
type Service interface {
	Register(username, password string) (accountID uint64, sessionToken string, err error)
	Login(username, password string) (accountID uint64, sessionToken string, err error)
	ResolveSession(token string) (accountID uint64, username string, ok bool)
	Logout(token string)
	Close() error
}

// Allowlist reports whether username may register an operator account.
type Allowlist func(username string) bool

func allowAll(string) bool { return true }
