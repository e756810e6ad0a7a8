package domain

// Principal is the authenticated identity bound to a single request.
// It is built once by the request authenticator and never persisted.
type Principal struct {
	Subject     string
	Authorities []string
}

// HasAuthority reports whether the principal was granted authority.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// ValidationResult is the answer of the remote token validation endpoint.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}
