package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Public code redemption: the system's only anonymous-write path,
	// rate limited per client IP
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(
			s.config.Security.RedeemRateLimit,
			s.config.Security.RedeemRateWindow,
		))
		r.Post("/access-codes/redeem", s.HandleRedeemAccessCode)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// System arm state
		r.Route("/system", func(r chi.Router) {
			r.Get("/state", s.HandleGetArmState)
			r.Put("/state", s.HandleRequestTransition)
			r.Post("/alarm", s.HandleTriggerAlarm)
		})

		// Zones
		r.Route("/zones", func(r chi.Router) {
			r.Get("/", s.HandleListZones)
			r.Post("/", s.HandleCreateZone)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetZone)
				r.Put("/", s.HandleUpdateZone)
				r.Delete("/", s.HandleDeleteZone)
				r.Post("/sensors", s.HandleAttachSensors)
				r.Put("/sensors/{sensor_id}", s.HandleAssignSensor)
				r.Delete("/sensors/{sensor_id}", s.HandleRemoveSensor)
			})
		})

		// Sensors
		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.HandleListSensors)
			r.Post("/", s.HandleCreateSensor)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetSensor)
				r.Put("/", s.HandleUpdateSensor)
				r.Delete("/", s.HandleDeleteSensor)
				r.Put("/status", s.HandleUpdateSensorStatus)
			})
		})

		// Access codes (owner-facing)
		r.Route("/access-codes", func(r chi.Router) {
			r.Get("/", s.HandleListAccessCodes)
			r.Post("/", s.HandleCreateAccessCode)
			r.Post("/generate", s.HandleGenerateAccessCode)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetAccessCode)
				r.Put("/", s.HandleUpdateAccessCode)
				r.Delete("/", s.HandleDeleteAccessCode)
			})
		})

		// Smart locks
		r.Route("/locks", func(r chi.Router) {
			r.Get("/", s.HandleListLocks)
			r.Post("/", s.HandleCreateLock)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetLock)
				r.Put("/", s.HandleUpdateLock)
				r.Delete("/", s.HandleDeleteLock)
				r.Post("/lock", s.HandleLock)
				r.Post("/unlock", s.HandleUnlock)
				r.Get("/events", s.HandleLockHistory)
			})
		})

		// Event log
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.HandleListEvents)
			r.Post("/read-all", s.HandleMarkAllEventsRead)
			r.Delete("/", s.HandlePurgeEvents)
			r.Post("/{id}/read", s.HandleMarkEventRead)
		})

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
				r.Delete("/", s.HandleDeleteUser)
			})
		})
	})
}
