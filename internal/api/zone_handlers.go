package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
)

// ========== Zone handlers ==========

// HandleListZones lists the caller's zones
func (s *RESTServer) HandleListZones(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	zones, err := s.services.Zones.ListZones(r.Context(), actor, actor.ID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"zones": zones,
		"total": len(zones),
	})
}

// HandleCreateZone creates a zone
func (s *RESTServer) HandleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name" validate:"required,min=1,max=100"`
		Color      string `json:"color"`
		ArmingMode string `json:"armingMode"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := actorFromContext(r.Context())
	zone, err := s.services.Zones.CreateZone(r.Context(), actor, &models.Zone{
		Name:       req.Name,
		Color:      req.Color,
		ArmingMode: models.ZoneArmingMode(req.ArmingMode),
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, zone)
}

// HandleGetZone gets a zone
func (s *RESTServer) HandleGetZone(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone ID")
		return
	}

	zone, err := s.services.Zones.GetZone(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, zone)
}

// HandleUpdateZone updates a zone
func (s *RESTServer) HandleUpdateZone(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone ID")
		return
	}

	var req struct {
		Name       string `json:"name" validate:"required,min=1,max=100"`
		Color      string `json:"color"`
		ArmingMode string `json:"armingMode"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	zone := &models.Zone{
		Name:       req.Name,
		Color:      req.Color,
		ArmingMode: models.ZoneArmingMode(req.ArmingMode),
	}
	zone.ID = id

	updated, err := s.services.Zones.UpdateZone(r.Context(), actorFromContext(r.Context()), zone)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

// HandleDeleteZone deletes a zone
func (s *RESTServer) HandleDeleteZone(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone ID")
		return
	}

	if err := s.services.Zones.DeleteZone(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleAttachSensors assigns a batch of sensors to a zone
func (s *RESTServer) HandleAttachSensors(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone ID")
		return
	}

	var req struct {
		SensorIDs []uuid.UUID `json:"sensorIds" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	zone, err := s.services.Zones.AttachSensors(r.Context(), actorFromContext(r.Context()), id, req.SensorIDs)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, zone)
}

// HandleAssignSensor assigns one sensor to a zone
func (s *RESTServer) HandleAssignSensor(w http.ResponseWriter, r *http.Request) {
	zoneID, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone ID")
		return
	}
	sensorID, err := parseUUIDParam(r, "sensor_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor ID")
		return
	}

	if err := s.services.Zones.AssignSensor(r.Context(), actorFromContext(r.Context()), zoneID, sensorID); err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveSensor removes one sensor from a zone
func (s *RESTServer) HandleRemoveSensor(w http.ResponseWriter, r *http.Request) {
	zoneID, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone ID")
		return
	}
	sensorID, err := parseUUIDParam(r, "sensor_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor ID")
		return
	}

	if err := s.services.Zones.RemoveSensor(r.Context(), actorFromContext(r.Context()), zoneID, sensorID); err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Sensor handlers ==========

// HandleListSensors lists the caller's sensors
func (s *RESTServer) HandleListSensors(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	sensors, err := s.services.Zones.ListSensors(r.Context(), actor, actor.ID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sensors": sensors,
		"total":   len(sensors),
	})
}

// HandleCreateSensor creates a sensor
func (s *RESTServer) HandleCreateSensor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string     `json:"name" validate:"required,min=1,max=100"`
		Type   string     `json:"type" validate:"required"`
		ZoneID *uuid.UUID `json:"zoneId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, err := s.services.Zones.CreateSensor(r.Context(), actorFromContext(r.Context()), &models.Sensor{
		Name:   req.Name,
		Type:   models.SensorType(req.Type),
		ZoneID: req.ZoneID,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, sensor)
}

// HandleGetSensor gets a sensor
func (s *RESTServer) HandleGetSensor(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor ID")
		return
	}

	sensor, err := s.services.Zones.GetSensor(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, sensor)
}

// HandleUpdateSensor updates a sensor's name and type
func (s *RESTServer) HandleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor ID")
		return
	}

	var req struct {
		Name string `json:"name" validate:"required,min=1,max=100"`
		Type string `json:"type" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor := &models.Sensor{
		Name: req.Name,
		Type: models.SensorType(req.Type),
	}
	sensor.ID = id

	updated, err := s.services.Zones.UpdateSensor(r.Context(), actorFromContext(r.Context()), sensor)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

// HandleDeleteSensor deletes a sensor
func (s *RESTServer) HandleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor ID")
		return
	}

	if err := s.services.Zones.DeleteSensor(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateSensorStatus records a sensor status report
func (s *RESTServer) HandleUpdateSensorStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor ID")
		return
	}

	var req struct {
		Status string `json:"status" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sensor, err := s.services.Zones.UpdateSensorStatus(r.Context(), actorFromContext(r.Context()), id, models.SensorStatus(req.Status))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, sensor)
}
