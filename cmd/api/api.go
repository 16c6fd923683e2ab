package api

import (
	"log"
	"net/http"
	"time"

	"github.com/Sachin80-coder/fixfinder-server/cmd/utils"
	"github.com/Sachin80-coder/fixfinder-server/service/booking"
	"github.com/Sachin80-coder/fixfinder-server/service/catalog"
	"github.com/Sachin80-coder/fixfinder-server/service/contact"
	"github.com/Sachin80-coder/fixfinder-server/service/mailer"
	"github.com/Sachin80-coder/fixfinder-server/service/notification"
	"github.com/Sachin80-coder/fixfinder-server/service/request"
	"github.com/Sachin80-coder/fixfinder-server/service/review"
	"github.com/Sachin80-coder/fixfinder-server/service/user"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type APIServer struct {
	address    string
	db         *gorm.DB
	dispatcher *mailer.Dispatcher
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	// Protected routes share the subrouter prefix but pass through the
	// JWT middleware.
	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(utils.AuthMiddleware)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)
	userHandler.RegisterProtectedRoutes(protected)

	catalogHandler := catalog.NewHandler(s.db)
	catalogHandler.RegisterRoutes(subrouter)
	catalogHandler.RegisterProtectedRoutes(protected)

	requestHandler := request.NewHandler(s.db)
	requestHandler.RegisterProtectedRoutes(protected)

	bookingHandler := booking.NewHandler(s.db)
	bookingHandler.RegisterProtectedRoutes(protected)

	reviewHandler := review.NewHandler(s.db)
	reviewHandler.RegisterRoutes(subrouter)
	reviewHandler.RegisterProtectedRoutes(protected)

	notificationHandler := notification.NewHandler(s.db)
	notificationHandler.RegisterProtectedRoutes(protected)

	contactHandler := contact.NewHandler(s.db)
	contactHandler.RegisterRoutes(subrouter)
	contactHandler.RegisterProtectedRoutes(protected)

	fileServer := http.FileServer(http.Dir("uploads/service_images"))
	router.PathPrefix("/service_images/").Handler(http.StripPrefix("/service_images/", fileServer))

	if sender, err := mailer.NewSMTPSenderFromEnv(); err != nil {
		log.Printf("Mail dispatcher disabled: %v", err)
	} else {
		s.dispatcher = mailer.NewDispatcher(s.db, sender, 30*time.Second)
		s.dispatcher.Start()
		log.Println("Mail dispatcher started")
	}

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, corsHandler(router))
}

// Shutdown stops the background mail dispatcher.
func (s *APIServer) Shutdown() {
	if s.dispatcher != nil {
		s.dispatcher.Stop()
		log.Println("Mail dispatcher stopped")
	}
}
