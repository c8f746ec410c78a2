package parley

// AccountType distinguishes automated bot credentials from end-user
// credentials. It changes how the token is presented to the remote service
// during authentication.
type AccountType uint8

const (
	AccountTypeBot AccountType = iota
	AccountTypeClient
)

func (at AccountType) String() string {
	switch at {
	case AccountTypeBot:
		return "bot"
	case AccountTypeClient:
		return "client"
	default:
		return "unknown"
	}
}

// authorization returns the token the way the gateway expects it for this
// account type.
func (at AccountType) authorization(token string) string {
	if at == AccountTypeBot {
		return "Bot " + token
	}
	return token
}
