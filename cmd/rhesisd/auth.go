package main

import (
	"github.com/rhesis-ai/rhesis-backend/fieldcrypt"
	"github.com/rhesis-ai/rhesis-backend/ginsrv"
)

// tokenLookup resolves bearer tokens by their hash. The configured admin
// token maps to an admin without an organization.
func tokenLookup(cfg *Config) ginsrv.TokenLookup {
	principals := make(map[string]ginsrv.Principal, len(cfg.Auth.Tokens)+1)
	for _, t := range cfg.Auth.Tokens {
		principals[t.Hash] = ginsrv.Principal{
			UserID:         t.UserID,
			OrganizationID: t.OrganizationID,
			Admin:          t.Admin,
		}
	}
	if cfg.Admin.Token != "" {
		principals[fieldcrypt.HashToken(cfg.Admin.Token)] = ginsrv.Principal{UserID: "admin", Admin: true}
	}

	return func(token string) (ginsrv.Principal, bool) {
		p, ok := principals[fieldcrypt.HashToken(token)]
		return p, ok
	}
}
