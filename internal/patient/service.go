package patient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hine2110/dental-clinic-client-sub000/internal/events"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/database"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/monitoring"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// gateResult is one cached completion-gate outcome
type gateResult struct {
	status  types.ProfileStatus
	missing []string
}

// Service implements the PatientService interface: profile CRUD plus the
// completion gate. Gate results are cached per patient and invalidated by
// profile.updated events, so a check after an update reflects the change
// without the client forcing a reload.
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	repository interfaces.PatientRepository
	publisher  interfaces.ProfileEventPublisher
	consumer   *events.ProfileConsumer
	db         *database.DB
	server     *http.Server
	metrics    *monitoring.MetricsCollector
	health     *monitoring.HealthManager

	mu    sync.RWMutex
	gates map[string]gateResult

	cancelConsumer context.CancelFunc
}

// New creates a new patient service
func New(cfg *config.Config, log *logger.Logger) interfaces.PatientService {
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		panic(err)
	}

	if err := db.CreateSchema(context.Background()); err != nil {
		log.WithError(err).Error("Failed to create database schema")
		panic(err)
	}

	repository := NewRepository(db, log)
	publisher := events.NewProfilePublisher(&cfg.Kafka, log)

	metrics := monitoring.NewMetricsCollector("patient-service")
	health := monitoring.NewHealthManager("patient-service", "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))

	s := &Service{
		config:     cfg,
		logger:     log,
		repository: repository,
		publisher:  publisher,
		db:         db,
		metrics:    metrics,
		health:     health,
		gates:      make(map[string]gateResult),
	}

	s.consumer = events.NewProfileConsumer(&cfg.Kafka, s.handleProfileUpdated, log)

	return s
}

// GetProfileStatus runs the completion gate for a patient. Results are
// cached until a profile.updated event for the patient arrives. Errors
// during checking resolve to incomplete, never to complete.
func (s *Service) GetProfileStatus(patientID string) (types.ProfileStatus, []string, error) {
	if patientID == "" {
		return types.ProfileIncomplete, nil, types.NewValidationError("PATIENT_ID_REQUIRED", "patient ID is required", nil)
	}

	s.mu.RLock()
	cached, ok := s.gates[patientID]
	s.mu.RUnlock()
	if ok {
		return cached.status, cached.missing, nil
	}

	status, missing := s.checkProfile(patientID)

	// Failed checks stay in the checking state and are not cached, so the
	// next call retries; the caller still gets the fail-closed incomplete
	// answer.
	if status == types.ProfileChecking {
		if s.metrics != nil {
			s.metrics.RecordProfileCheck(string(types.ProfileIncomplete))
		}
		return types.ProfileIncomplete, missing, nil
	}

	s.mu.Lock()
	s.gates[patientID] = gateResult{status: status, missing: missing}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordProfileCheck(string(status))
	}

	return status, missing, nil
}

// checkProfile performs one completeness check. The checking state is
// returned only on transient repository errors, which also fail closed to
// an incomplete answer for the caller.
func (s *Service) checkProfile(patientID string) (types.ProfileStatus, []string) {
	profile, err := s.repository.GetProfileByPatientID(patientID)
	if err != nil {
		if isNotFound(err) {
			empty := &types.PatientProfile{PatientID: patientID}
			return types.ProfileIncomplete, empty.MissingProfileFields()
		}
		// Fail closed: an unreadable profile prompts completion rather
		// than silently passing the gate.
		s.logger.WithError(err).WithField("patient_id", patientID).
			Warn("Profile check failed, treating as incomplete")
		return types.ProfileChecking, nil
	}

	if missing := profile.MissingProfileFields(); len(missing) > 0 {
		return types.ProfileIncomplete, missing
	}
	return types.ProfileComplete, nil
}

// GetProfile retrieves a patient profile
func (s *Service) GetProfile(patientID string) (*types.PatientProfile, error) {
	return s.repository.GetProfileByPatientID(patientID)
}

// UpdateProfile persists the profile and publishes a profile.updated event
func (s *Service) UpdateProfile(profile *types.PatientProfile, userID string) (*types.PatientProfile, error) {
	if profile.PatientID == "" {
		return nil, types.NewValidationError("PATIENT_ID_REQUIRED", "patient ID is required", nil)
	}

	profile.UpdatedAt = time.Now()
	if err := s.repository.UpsertProfile(profile); err != nil {
		return nil, err
	}

	// The local cache drops immediately; the broker event reaches every
	// other service instance.
	s.invalidateGate(profile.PatientID)

	event := &types.ProfileUpdatedEvent{
		PatientID: profile.PatientID,
		UpdatedAt: profile.UpdatedAt,
	}
	if err := s.publisher.PublishProfileUpdated(event); err != nil {
		if s.metrics != nil {
			s.metrics.RecordBrokerEvent(s.config.Kafka.ProfileTopic, "publish", false)
		}
		s.logger.WithError(err).Error("Profile saved but event publish failed")
	} else if s.metrics != nil {
		s.metrics.RecordBrokerEvent(s.config.Kafka.ProfileTopic, "publish", true)
	}

	s.logger.Audit(userID, "update_profile", "patient:"+profile.PatientID, true, nil)

	return s.repository.GetProfileByPatientID(profile.PatientID)
}

// handleProfileUpdated reacts to broker events by dropping the cached gate
// result so the next check is fresh.
func (s *Service) handleProfileUpdated(event *types.ProfileUpdatedEvent) error {
	s.invalidateGate(event.PatientID)
	if s.metrics != nil {
		s.metrics.RecordBrokerEvent(s.config.Kafka.ProfileTopic, "consume", true)
	}
	return nil
}

func (s *Service) invalidateGate(patientID string) {
	s.mu.Lock()
	delete(s.gates, patientID)
	s.mu.Unlock()
}

// Start starts the patient service HTTP server and the event consumer
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelConsumer = cancel
	go func() {
		if err := s.consumer.Run(ctx); err != nil {
			s.logger.WithError(err).Error("Profile event consumer stopped")
		}
	}()

	s.server = &http.Server{
		Addr:    addr,
		Handler: router,
	}

	s.logger.WithField("addr", addr).Info("Starting Patient Service")
	return s.server.ListenAndServe()
}

// Stop stops the patient service
func (s *Service) Stop() error {
	if s.cancelConsumer != nil {
		s.cancelConsumer()
	}
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close event consumer")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close event publisher")
		}
	}
	if s.server != nil {
		s.logger.Info("Stopping Patient Service")
		return s.server.Close()
	}
	return nil
}

func isNotFound(err error) bool {
	clinicErr, ok := err.(*types.ClinicError)
	return ok && clinicErr.Type == types.ErrorTypeNotFound
}
