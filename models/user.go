package models

import (
	"log"
	"time"

	"gorm.io/gorm"
)

// User is a directory entry for the people bids are assigned to
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Role      string    `gorm:"default:'salesperson'" json:"role"` // salesperson, manager, admin
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User role constants
const (
	UserRoleSalesperson = "salesperson"
	UserRoleManager     = "manager"
	UserRoleAdmin       = "admin"
)

// ValidUserRoles returns valid user roles
func ValidUserRoles() []string {
	return []string{UserRoleSalesperson, UserRoleManager, UserRoleAdmin}
}

// IsValidUserRole checks if the role is valid
func IsValidUserRole(role string) bool {
	for _, valid := range ValidUserRoles() {
		if role == valid {
			return true
		}
	}
	return false
}

// MigrateUserModels runs database migrations for user models
func MigrateUserModels(db *gorm.DB) error {
	return db.AutoMigrate(&User{})
}

// SeedDefaultUser inserts the default directory entry when the table is empty
func SeedDefaultUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	user := User{
		Username: "admin",
		Role:     UserRoleAdmin,
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	log.Printf("Seeded default user: %s (role=%s)", user.Username, user.Role)
	return nil
}
