package handlers

import (
	"errors"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/mounthank/go-imagegen/internal/auth"
	"github.com/mounthank/go-imagegen/models"
)

// GetUser returns the signed-in principal together with their stored
// profile row, if one exists yet.
func GetUser(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Not Authorized", http.StatusUnauthorized)
		return
	}

	var user models.User
	if err := db.Where("subject = ?", principal.ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Println("failed to load user:", err)
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     principal.ID,
		"name":   user.Name,
		"email":  user.Email,
		"avatar": user.AvatarURL,
	})
}
