package database

import "workit/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.Message{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
	}
}
