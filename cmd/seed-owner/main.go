// seed-owner registers the bootstrap owner for a fresh deployment and
// prints a bearer token for it.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/seed-owner <owner-address> [owner-name]
//
// The address may also come from BOOTSTRAP_OWNER_ADDRESS. Rerunning with the
// same address is a no-op; a different address fails once an owner exists.
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"bitbucket.org/mmdatafocus/supplychain_backend/models"
	"bitbucket.org/mmdatafocus/supplychain_backend/utils"
)

func main() {
	address := ""
	if len(os.Args) > 1 {
		address = os.Args[1]
	}
	if address == "" {
		address = os.Getenv("BOOTSTRAP_OWNER_ADDRESS")
	}
	if address == "" {
		fmt.Fprintln(os.Stderr, "usage: seed-owner <owner-address> [owner-name] (or set BOOTSTRAP_OWNER_ADDRESS)")
		os.Exit(2)
	}
	name := "Bootstrap Owner"
	if len(os.Args) > 2 {
		name = os.Args[2]
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	member, err := models.EnsureBootstrapOwner(ctx, address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed owner: %v\n", err)
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(member.Address, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "owner seeded but token generation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Owner registered: address=%q (id=%d)\n", member.Address, member.ID)
	fmt.Printf("Bearer token:\n%s\n", token)
}
