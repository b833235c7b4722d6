package models

import "github.com/golang-jwt/jwt/v5"

// Service scopes
const (
	ScopeKPICompute       = "kpi:compute"
	ScopeAttestationWrite = "attestation:write"
	ScopeAttestationRead  = "attestation:verify"
	ScopeIngest           = "ingest:run"
)

// ServiceClaims identifies a calling service and what it may do.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// HasScope checks if the claims include a specific scope.
func (c *ServiceClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AllScopes returns every scope, for operator tokens.
func AllScopes() []string {
	return []string{
		ScopeKPICompute,
		ScopeAttestationWrite,
		ScopeAttestationRead,
		ScopeIngest,
	}
}
