package routes

import (
	"tablematch_server/controllers"
	"tablematch_server/services"

	"github.com/gorilla/mux"
)

// RegisterSessionRoutes sets up session lifecycle routes on the /api/sessions subrouter
func RegisterSessionRoutes(api *mux.Router, sessionService *services.SessionService) {
	controller := controllers.NewSessionController(sessionService)

	api.HandleFunc("", controller.CreateSession).Methods("POST")
	api.HandleFunc("/join", controller.JoinSession).Methods("POST")
	api.HandleFunc("/{id}", controller.GetSession).Methods("GET")
	api.HandleFunc("/{id}/ready", controller.SetReady).Methods("POST")
	api.HandleFunc("/{id}/leave", controller.LeaveSession).Methods("POST")
	api.HandleFunc("/{id}/end", controller.EndSession).Methods("POST")
}
