package handlers

import (
	"log"
	"net/http"
	"sort"

	"github.com/mounthank/go-imagegen/internal/auth"
	"github.com/mounthank/go-imagegen/internal/catalog"
	"github.com/mounthank/go-imagegen/internal/store"
	"github.com/mounthank/go-imagegen/models"
)

// ListImages returns the signed-in user's generation history, newest first.
// The store hands back the whole collection; ownership filtering and
// ordering happen here.
func ListImages(w http.ResponseWriter, r *http.Request, st *store.Store) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Not Authorized", http.StatusUnauthorized)
		return
	}

	all, err := st.ListAll(r.Context(), store.ImagesCollection)
	if err != nil {
		log.Println("failed to list images:", err)
		http.Error(w, "Failed to load images", http.StatusInternalServerError)
		return
	}

	images := make([]models.SavedImage, 0)
	for _, img := range all {
		if img.UserID == principal.ID {
			images = append(images, img)
		}
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].CreatedAt.After(images[j].CreatedAt)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Fetched images successfully",
		"images":  images,
	})
}

// ListModels returns the model picker entries.
func ListModels(w http.ResponseWriter, r *http.Request) {
	entries := catalog.All()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	writeJSON(w, http.StatusOK, map[string]any{
		"models": entries,
	})
}
