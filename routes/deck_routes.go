package routes

import (
	"tablematch_server/controllers"
	"tablematch_server/services"

	"github.com/gorilla/mux"
)

// RegisterDeckRoutes sets up deck routes under /api/sessions/{id}/deck
func RegisterDeckRoutes(api *mux.Router, deckService *services.DeckService) {
	controller := controllers.NewDeckController(deckService)

	api.HandleFunc("/{id}/deck/init", controller.InitDeck).Methods("POST")
	api.HandleFunc("/{id}/deck", controller.GetDeckPage).Methods("GET")
	api.HandleFunc("/{id}/deck/expand", controller.ExpandDeck).Methods("POST")
}
