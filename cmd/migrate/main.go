// Copyright 2026 The Adminkit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command migrate applies the database schema and, when an organization id
// is supplied, seeds the built-in roles for it:
//
//	migrate              apply schema only
//	migrate seed <org>   apply schema and seed roles for the organization
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/adminkit/adminkit/internal/authz"
	"github.com/adminkit/adminkit/internal/config"
	"github.com/adminkit/adminkit/internal/id"
	"github.com/adminkit/adminkit/internal/store/postgres"
)

// builtinRoles is the default role catalog granted to a freshly seeded
// organization. Role names are unique per organization.
var builtinRoles = map[string][]string{
	"admin": {
		authz.PermissionUsersImport,
		authz.PermissionUsersExport,
		authz.PermissionUsersManage,
		authz.PermissionJobsRead,
		authz.PermissionOrgsManage,
	},
	"operator": {
		authz.PermissionUsersImport,
		authz.PermissionUsersExport,
		authz.PermissionJobsRead,
	},
	"viewer": {
		authz.PermissionJobsRead,
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Println("Migration successful.")

	if len(os.Args) > 2 && os.Args[1] == "seed" {
		orgID := os.Args[2]
		if err := seedRoles(ctx, db, orgID); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		fmt.Printf("Seeded built-in roles for organization %s.\n", orgID)
	}
}

func seedRoles(ctx context.Context, db *postgres.DB, orgID string) error {
	perms := postgres.NewPermissionRepository(db)

	for name, codes := range builtinRoles {
		roleID, err := perms.EnsureRole(ctx, id.NewUUIDv7(), orgID, name)
		if err != nil {
			return fmt.Errorf("failed to ensure role %s: %w", name, err)
		}
		for _, code := range codes {
			if err := perms.GrantPermission(ctx, roleID, code); err != nil {
				return fmt.Errorf("failed to grant %s to %s: %w", code, name, err)
			}
		}
	}

	return nil
}
