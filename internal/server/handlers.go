package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/plumeworks/plume/internal/install"
	"github.com/plumeworks/plume/internal/lock"
	"github.com/plumeworks/plume/internal/model"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	svc         *install.Service
	startedAt   time.Time
	version     string
	openapiSpec []byte
}

// NewHandlers creates a new Handlers around the install service.
func NewHandlers(svc *install.Service, version string) *Handlers {
	return &Handlers{svc: svc, startedAt: time.Now(), version: version}
}

// HandleStatus handles GET /install/status. Read-only: it drives the
// wizard's polling loop and must stay side-effect-free.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.svc.Status(r.Context())
	writeResult(w, r, http.StatusOK, "", status)
}

// HandleDatabaseTest handles POST /install/database/test. Validates and
// connection-tests a candidate configuration without persisting it.
func (h *Handlers) HandleDatabaseTest(w http.ResponseWriter, r *http.Request) {
	var req model.DatabaseConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if err := h.svc.TestDatabase(r.Context(), req); err != nil {
		writeInstallError(w, r, err)
		return
	}
	writeResult(w, r, http.StatusOK, "database connection succeeded", nil)
}

// HandleDatabaseConfig handles POST /install/database/config.
func (h *Handlers) HandleDatabaseConfig(w http.ResponseWriter, r *http.Request) {
	var req model.DatabaseConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if err := h.svc.SaveDatabaseConfig(r.Context(), req); err != nil {
		writeInstallError(w, r, err)
		return
	}
	doc := h.svc.Config().Current()
	if doc == nil {
		if peeked, err := h.svc.Config().Peek(); err == nil {
			doc = peeked
		}
	}
	var data any
	if doc != nil {
		data = doc.Masked()
	}
	writeResult(w, r, http.StatusOK, "database configuration saved", data)
}

// HandleDatabaseInit handles POST /install/database/init.
func (h *Handlers) HandleDatabaseInit(w http.ResponseWriter, r *http.Request) {
	var req model.InitRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
			return
		}
	}
	result, err := h.svc.Initialize(r.Context(), req.Force)
	if err != nil {
		writeInstallError(w, r, err)
		return
	}
	msg := "database initialized"
	if result.AlreadyInitialized {
		msg = "database was already initialized"
	}
	writeResult(w, r, http.StatusOK, msg, result)
}

// HandleDatabaseRepair handles POST /install/database/repair: a forced
// full reinitialization that recovers from partially-created state.
func (h *Handlers) HandleDatabaseRepair(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Initialize(r.Context(), true)
	if err != nil {
		writeInstallError(w, r, err)
		return
	}
	writeResult(w, r, http.StatusOK, "database reinitialized", result)
}

// HandleCreateAdmin handles POST /install/admin.
func (h *Handlers) HandleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	creds, err := h.svc.CreateAdmin(r.Context(), req)
	if err != nil {
		writeInstallError(w, r, err)
		return
	}
	writeResult(w, r, http.StatusCreated, "admin account created", creds)
}

// HandleComplete handles POST /install/complete.
func (h *Handlers) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req model.CompleteRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
			return
		}
	}
	if err := h.svc.Complete(r.Context(), req); err != nil {
		writeInstallError(w, r, err)
		return
	}
	writeResult(w, r, http.StatusOK, "installation complete", nil)
}

// HandleConfigReload handles POST /install/config/reload. Validates the
// on-disk document and schedules a delayed restart so this response can
// still be delivered.
func (h *Handlers) HandleConfigReload(w http.ResponseWriter, r *http.Request) {
	if !h.svc.ShouldReload() && !h.svc.RestartPending() {
		writeResult(w, r, http.StatusOK, "configuration is current, no restart needed", nil)
		return
	}
	if err := h.svc.ReloadConfig(); err != nil {
		writeInstallError(w, r, err)
		return
	}
	scheduled := h.svc.TriggerRestart()
	msg := "restart already scheduled"
	if scheduled {
		msg = "configuration reloaded, restarting shortly"
	}
	writeResult(w, r, http.StatusOK, msg, nil)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pg := "ok"
	if err := h.svc.PingDatabase(r.Context()); err != nil {
		if install.KindOf(err) == install.KindValidation {
			pg = "unconfigured"
		} else {
			pg = "unreachable"
		}
	}
	writeResult(w, r, http.StatusOK, "", model.HealthResponse{
		Status:   "ok",
		Version:  h.version,
		Postgres: pg,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// writeInstallError maps the install error taxonomy onto HTTP statuses and
// outcome codes. Internal faults are logged upstream; only a generic
// message leaves the process.
func writeInstallError(w http.ResponseWriter, r *http.Request, err error) {
	switch install.KindOf(err) {
	case install.KindValidation:
		writeFailure(w, r, http.StatusUnprocessableEntity, model.ErrCodeInvalidInput, err.Error())
	case install.KindConflict:
		code := model.ErrCodeConflict
		if errors.Is(err, lock.ErrBusy) || errors.Is(err, lock.ErrHeldElsewhere) {
			code = model.ErrCodeBusy
		}
		writeFailure(w, r, http.StatusConflict, code, err.Error())
	case install.KindConnectivity:
		writeFailure(w, r, http.StatusServiceUnavailable, model.ErrCodeUnreachable, err.Error())
	case install.KindIntegrity:
		writeFailure(w, r, http.StatusInternalServerError, model.ErrCodeIntegrity, err.Error())
	default:
		writeFailure(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}
