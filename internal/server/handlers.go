package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conneroisu/mpwizard/internal/assembler"
	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/fragments"
	"github.com/conneroisu/mpwizard/internal/generator"
	"github.com/conneroisu/mpwizard/internal/session"
	"github.com/conneroisu/mpwizard/internal/version"
)

const (
	maxStateBytes  = 1 << 20
	maxImportBytes = 10 << 20
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// sessionView is the API representation of a session.
type sessionView struct {
	ID       string                      `json:"id"`
	State    session.State               `json:"state"`
	Imported *assembler.ImportedDocument `json:"imported,omitempty"`
}

type instanceRequest struct {
	Category string `json:"category,omitempty"`
	Key      string `json:"key"`
}

type discoveryRequest struct {
	Key         string `json:"key"`
	TargetClass string `json:"targetClass,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case errors.CodeOf(err) == errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.IsType(err, errors.ErrorTypeValidation):
		return http.StatusBadRequest
	case errors.IsType(err, errors.ErrorTypeParse):
		return http.StatusUnprocessableEntity
	case errors.IsType(err, errors.ErrorTypeFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *PreviewServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errors.Handle(r.Context(), err)

	writeJSON(w, statusFor(err), errorResponse{
		Error: errors.UserMessage(err),
		Code:  errors.CodeOf(err),
	})
}

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("read request body: %v", err))
	}

	return data, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	data, err := readBody(w, r, maxStateBytes)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError(errors.ErrCodeStateDecodeFailure,
			fmt.Sprintf("decode request: %v", err))
	}

	return nil
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"fragments": len(s.lib.All()),
			"sessions":  s.sessions.count(),
			"clients":   s.hub.count(),
		},
	})
}

func (s *PreviewServer) handleFragments(w http.ResponseWriter, r *http.Request) {
	defs := s.lib.All()

	if c := r.URL.Query().Get("category"); c != "" {
		cat, err := fragments.ParseCategory(c)
		if err != nil {
			s.writeError(w, r, errors.NewValidationError(errors.ErrCodeInvalidCategory, err.Error()))

			return
		}
		defs = s.lib.ByCategory(cat)
	}

	writeJSON(w, http.StatusOK, defs)
}

func (s *PreviewServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, maxStateBytes)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	sess := session.New(s.lib)
	if len(bytes.TrimSpace(data)) > 0 {
		var st session.State
		if err := json.Unmarshal(data, &st); err != nil {
			s.writeError(w, r, errors.NewValidationError(errors.ErrCodeStateDecodeFailure,
				fmt.Sprintf("decode state: %v", err)))

			return
		}
		if sess, err = session.FromState(s.lib, st); err != nil {
			s.writeError(w, r, err)

			return
		}
	}

	id := s.sessions.create(sess)
	s.logger.Info(r.Context(), "Session created", "session", id)

	writeJSON(w, http.StatusCreated, sessionView{ID: id, State: sess.State()})
}

func (s *PreviewServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, err := s.sessions.get(id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var view sessionView
	_ = e.view(func(sess *session.Session) error {
		view = sessionView{ID: id, State: sess.State(), Imported: sess.Imported}

		return nil
	})

	writeJSON(w, http.StatusOK, view)
}

func (s *PreviewServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.delete(r.PathValue("id")) {
		s.writeError(w, r, errors.NewValidationError(errors.ErrCodeSessionNotFound,
			fmt.Sprintf("session %q not found", r.PathValue("id"))))

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// mutate applies fn to the session named in the path, answers with the new
// state and schedules a preview push.
func (s *PreviewServer) mutate(w http.ResponseWriter, r *http.Request, status int,
	fn func(sess *session.Session) (*session.Session, interface{}, error),
) {
	id := r.PathValue("id")
	e, err := s.sessions.get(id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var body interface{}
	err = e.edit(func(sess *session.Session) (*session.Session, error) {
		next, out, err := fn(sess)
		if err != nil {
			return nil, err
		}
		if next != nil {
			next.Imported = sess.Imported
			sess = next
		}
		body = out
		if body == nil {
			body = sessionView{ID: id, State: sess.State(), Imported: sess.Imported}
		}

		return next, nil
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.hub.schedule(id)

	if status == http.StatusNoContent {
		w.WriteHeader(status)

		return
	}
	writeJSON(w, status, body)
}

func (s *PreviewServer) handleReplaceSession(w http.ResponseWriter, r *http.Request) {
	var st session.State
	if err := decodeJSON(w, r, &st); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.mutate(w, r, http.StatusOK, func(_ *session.Session) (*session.Session, interface{}, error) {
		next, err := session.FromState(s.lib, st)

		return next, nil, err
	})
}

func (s *PreviewServer) handleSetBasicInfo(w http.ResponseWriter, r *http.Request) {
	var b session.BasicInfo
	if err := decodeJSON(w, r, &b); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.mutate(w, r, http.StatusOK, func(sess *session.Session) (*session.Session, interface{}, error) {
		sess.SetBasicInfo(b)

		return nil, nil, nil
	})
}

func (s *PreviewServer) handleAddInstance(w http.ResponseWriter, r *http.Request) {
	var req instanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	if req.Category != "" {
		cat, err := fragments.ParseCategory(req.Category)
		if err != nil {
			s.writeError(w, r, errors.NewValidationError(errors.ErrCodeInvalidCategory, err.Error()))

			return
		}
		if def, ok := s.lib.Get(req.Key); ok && def.Category != cat {
			s.writeError(w, r, errors.NewValidationError(errors.ErrCodeInvalidCategory,
				fmt.Sprintf("fragment %q belongs to %s, not %s", req.Key, def.Category, cat)))

			return
		}
	}

	s.mutate(w, r, http.StatusCreated, func(sess *session.Session) (*session.Session, interface{}, error) {
		inst, err := sess.AddInstance(req.Key)
		if err != nil {
			return nil, nil, err
		}

		return nil, inst, nil
	})
}

func (s *PreviewServer) handleRemoveInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceID")

	s.mutate(w, r, http.StatusNoContent, func(sess *session.Session) (*session.Session, interface{}, error) {
		return nil, nil, sess.RemoveInstance(instanceID)
	})
}

func (s *PreviewServer) handleSetDiscovery(w http.ResponseWriter, r *http.Request) {
	var req discoveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.mutate(w, r, http.StatusOK, func(sess *session.Session) (*session.Session, interface{}, error) {
		switch req.Key {
		case "":
			sess.ClearDiscovery()
		case session.SkipDiscovery:
			sess.SkipDiscovery(req.TargetClass)
		default:
			if err := sess.SelectDiscovery(req.Key); err != nil {
				return nil, nil, err
			}
		}

		return nil, nil, nil
	})
}

func (s *PreviewServer) handleSetValue(w http.ResponseWriter, r *http.Request) {
	var v session.FieldValue
	if err := decodeJSON(w, r, &v); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.mutate(w, r, http.StatusNoContent, func(sess *session.Session) (*session.Session, interface{}, error) {
		return nil, nil, sess.Set(v)
	})
}

func (s *PreviewServer) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, maxImportBytes)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	imp, err := assembler.ParseImported(string(data))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.mutate(w, r, http.StatusOK, func(sess *session.Session) (*session.Session, interface{}, error) {
		sess.Imported = imp

		return nil, imp, nil
	})
}

func (s *PreviewServer) handleDetachImport(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, http.StatusNoContent, func(sess *session.Session) (*session.Session, interface{}, error) {
		sess.Imported = nil

		return nil, nil, nil
	})
}

func (s *PreviewServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	out, err := s.render(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeXML(w, out)
}

func (s *PreviewServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	e, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var (
		out  string
		name string
	)
	err = e.view(func(sess *session.Session) error {
		var err error
		out, err = s.generator.Generate(r.Context(), sess)
		if err != nil {
			return err
		}
		id, _ := sess.Identity()
		name = generator.Filename(id)

		return nil
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	writeXML(w, out)
}

func (s *PreviewServer) handleDeployScript(w http.ResponseWriter, r *http.Request) {
	e, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var b session.BasicInfo
	err = e.view(func(sess *session.Session) error {
		var err error
		b, err = sess.Identity()

		return err
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}
	if b.CompanyID == "" || b.AppName == "" {
		s.writeError(w, r, errors.NewValidationError(errors.ErrCodeMissingIdentity,
			"company id and application name are required"))

		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="Deploy-MP.ps1"`)
	_, _ = io.WriteString(w, generator.DeployScript(b, r.URL.Query().Get("managementGroup")))
}

// handleAssemble generates a document from a state without storing it.
func (s *PreviewServer) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var st session.State
	if err := decodeJSON(w, r, &st); err != nil {
		s.writeError(w, r, err)

		return
	}

	sess, err := session.FromState(s.lib, st)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	out, err := s.generator.Generate(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeXML(w, out)
}
