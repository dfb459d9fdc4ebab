package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultRoles are created on startup when missing.
var DefaultRoles = []Role{
	{RoleName: "admin", Permissions: map[string]bool{"menu": true, "orders": true, "inventory": true, "reports": true, "users": true}},
	{RoleName: "chef", Permissions: map[string]bool{"orders": true}},
	{RoleName: "staff", Permissions: map[string]bool{"orders": true}},
}

// Seed creates the default roles and, on an empty users table, the first admin account.
func Seed(db *gorm.DB, adminUsername, adminPassword string) error {
	for _, role := range DefaultRoles {
		r := role
		if err := db.Where("role_name = ?", r.RoleName).FirstOrCreate(&r).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", r.RoleName, err)
		}
	}

	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	if adminPassword == "" {
		log.Warn().Msg("No users exist and ADMIN_PASSWORD is empty; skipping admin bootstrap")
		return nil
	}

	var admin Role
	if err := db.Where("role_name = ?", "admin").First(&admin).Error; err != nil {
		return fmt.Errorf("failed to load admin role: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	user := User{Username: adminUsername, PasswordHash: string(hash), RoleID: admin.ID}
	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	log.Info().Str("username", adminUsername).Msg("Bootstrap admin user created")
	return nil
}
