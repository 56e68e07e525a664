// seed creates development accounts: a@x.com (owner of "Acme") and member@x.com (member of the same org).
// Both use the password "correctpw". Idempotent: existing emails are left untouched.
package main

import (
	"context"
	"os"

	"crm-dashboard/backend/internal/config"
	"crm-dashboard/backend/internal/db"
	identityrepo "crm-dashboard/backend/internal/identity/repository"
	"crm-dashboard/backend/internal/identity/service"
	"crm-dashboard/backend/internal/logging"
	membershipdomain "crm-dashboard/backend/internal/membership/domain"
	membershiprepo "crm-dashboard/backend/internal/membership/repository"
	orgrepo "crm-dashboard/backend/internal/organization/repository"
	"crm-dashboard/backend/internal/security"
	userrepo "crm-dashboard/backend/internal/user/repository"
)

const devPassword = "correctpw"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Env: cfg.Env, Service: "crm-seed"})
	if cfg.IsProduction() {
		log.Error("seed: refusing to run with APP_ENV=production")
		os.Exit(1)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("seed: open database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	svc := service.NewAuthService(service.Deps{
		Users:       userrepo.NewSQLRepository(conn),
		Identities:  identityrepo.NewSQLRepository(conn),
		Orgs:        orgrepo.NewSQLRepository(conn),
		Memberships: membershiprepo.NewSQLRepository(conn),
		Tx:          db.NewTxManager(conn),
		Hasher:      security.NewHasher(cfg.BcryptCost),
		Log:         log,
	})

	ctx := context.Background()
	owner, err := svc.Seed(ctx, service.SeedAccount{
		Email: "a@x.com", Password: devPassword, FirstName: "Ada", LastName: "Lovelace", OrgName: "Acme",
	})
	if err != nil {
		log.Error("seed: owner", "error", err)
		os.Exit(1)
	}
	log.Info("seed: owner", "email", "a@x.com", "user_id", owner.UserID, "org_id", owner.OrgID, "created", owner.Created)

	member, err := svc.Seed(ctx, service.SeedAccount{
		Email: "member@x.com", Password: devPassword, FirstName: "Max", OrgID: owner.OrgID, Role: membershipdomain.RoleMember,
	})
	if err != nil {
		log.Error("seed: member", "error", err)
		os.Exit(1)
	}
	log.Info("seed: member", "email", "member@x.com", "user_id", member.UserID, "created", member.Created)
}
