package routes

import (
	"tablematch_server/controllers"
	"tablematch_server/services"

	"github.com/gorilla/mux"
)

// RegisterSwipeRoutes sets up swipe and shortlist routes
func RegisterSwipeRoutes(api *mux.Router, swipeService *services.SwipeService, shortlistService *services.ShortlistService) {
	controller := controllers.NewSwipeController(swipeService, shortlistService)

	api.HandleFunc("/{id}/swipes", controller.RecordSwipe).Methods("POST")
	api.HandleFunc("/{id}/shortlist", controller.GetShortlist).Methods("GET")
}
