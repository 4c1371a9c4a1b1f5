package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/crud"
	"github.com/restforge/restforge/internal/metrics"
	"github.com/restforge/restforge/internal/query"
	"github.com/restforge/restforge/internal/schema"
	"github.com/restforge/restforge/internal/serialize"
)

// maxBodyBytes caps write payload size.
const maxBodyBytes = 1 << 20

func (a *API) handlerFor(route *RouteDescriptor) http.HandlerFunc {
	switch route.Operation {
	case OpList:
		return a.handleList(route)
	case OpGet:
		return a.handleGet(route)
	case OpCreate:
		return a.handleCreate(route)
	case OpUpdate:
		return a.handleUpdate(route)
	case OpDelete:
		return a.handleDelete(route)
	case OpRelation:
		return a.handleRelation(route)
	default:
		return func(w http.ResponseWriter, r *http.Request) {
			a.writeError(w, r, fmt.Errorf("unhandled operation %s", route.Operation))
		}
	}
}

func (a *API) handleList(route *RouteDescriptor) http.HandlerFunc {
	svc := a.services[route.Model.Name]
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := a.compiler.Compile(route.Model, r.URL.Query())
		if err != nil {
			metrics.QueryErrors.WithLabelValues(route.Model.Endpoint).Inc()
			a.writeError(w, r, err)
			return
		}

		result, err := svc.List(r.Context(), plan)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		value := a.applyCallback(route.Model, route.Operation,
			a.renderRecords(r.Context(), route.Model, result.Records))

		env := serialize.NewEnvelope(value, http.StatusOK, a.cfg.Version).
			WithPagination(r.URL, result.Total, plan.Page, plan.Limit)
		a.writeEnvelope(w, env)
	}
}

func (a *API) handleGet(route *RouteDescriptor) http.HandlerFunc {
	svc := a.services[route.Model.Name]
	return func(w http.ResponseWriter, r *http.Request) {
		pk, pkValue, err := a.recordKey(route.Model, r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		record, err := svc.Get(r.Context(), pk, pkValue)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		value := a.applyCallback(route.Model, route.Operation,
			a.renderRecord(r.Context(), route.Model, record))
		a.writeEnvelope(w, serialize.NewEnvelope(value, http.StatusOK, a.cfg.Version))
	}
}

func (a *API) handleCreate(route *RouteDescriptor) http.HandlerFunc {
	svc := a.services[route.Model.Name]
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := decodeBody(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		record, err := svc.Create(r.Context(), data)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		value := a.applyCallback(route.Model, route.Operation,
			a.renderRecord(r.Context(), route.Model, record))
		a.writeEnvelope(w, serialize.NewEnvelope(value, http.StatusCreated, a.cfg.Version))
	}
}

func (a *API) handleUpdate(route *RouteDescriptor) http.HandlerFunc {
	svc := a.services[route.Model.Name]
	return func(w http.ResponseWriter, r *http.Request) {
		_, pkValue, err := a.recordKey(route.Model, r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		data, err := decodeBody(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		record, err := svc.Update(r.Context(), pkValue, data)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		value := a.applyCallback(route.Model, route.Operation,
			a.renderRecord(r.Context(), route.Model, record))
		a.writeEnvelope(w, serialize.NewEnvelope(value, http.StatusOK, a.cfg.Version))
	}
}

func (a *API) handleDelete(route *RouteDescriptor) http.HandlerFunc {
	svc := a.services[route.Model.Name]
	return func(w http.ResponseWriter, r *http.Request) {
		_, pkValue, err := a.recordKey(route.Model, r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		cascade := isTruthy(r.URL.Query().Get("cascade_delete"))
		if err := svc.Delete(r.Context(), pkValue, cascade); err != nil {
			a.writeError(w, r, err)
			return
		}

		value := a.applyCallback(route.Model, route.Operation, "deleted")
		a.writeEnvelope(w, serialize.NewEnvelope(value, http.StatusOK, a.cfg.Version))
	}
}

func (a *API) handleRelation(route *RouteDescriptor) http.HandlerFunc {
	svc := a.services[route.Model.Name]
	rel := route.Relationship
	return func(w http.ResponseWriter, r *http.Request) {
		_, pkValue, err := a.recordKey(route.Model, r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		target, ok := a.registry.Get(rel.Target)
		if !ok {
			a.writeError(w, r, fmt.Errorf("unregistered relation target %s", rel.Target))
			return
		}

		plan, err := a.compiler.Compile(target, r.URL.Query())
		if err != nil {
			metrics.QueryErrors.WithLabelValues(target.Endpoint).Inc()
			a.writeError(w, r, err)
			return
		}

		result, err := svc.ListRelated(r.Context(), rel, pkValue, plan)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		value := a.applyCallback(target, OpList,
			a.renderRecords(r.Context(), target, result.Records))

		env := serialize.NewEnvelope(value, http.StatusOK, a.cfg.Version).
			WithPagination(r.URL, result.Total, plan.Page, plan.Limit)
		a.writeEnvelope(w, env)
	}
}

// recordKey extracts and coerces the {pk} path value. An unparseable value
// cannot address any record, so it reads as not found.
func (a *API) recordKey(m *schema.Model, r *http.Request) (*schema.Column, interface{}, error) {
	pk, err := m.PrimaryKey()
	if err != nil {
		return nil, nil, err
	}

	raw := chi.URLParam(r, "pk")
	switch pk.Type {
	case schema.TypeInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, nil, crud.ErrNotFound
		}
		return pk, n, nil
	case schema.TypeUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, nil, crud.ErrNotFound
		}
		return pk, id, nil
	default:
		return pk, raw, nil
	}
}

func (a *API) applyCallback(m *schema.Model, op Operation, value interface{}) interface{} {
	if m.Config == nil || m.Config.Callback == nil {
		return value
	}
	return m.Config.Callback(op.String(), value)
}

func decodeBody(r *http.Request) (map[string]interface{}, error) {
	defer r.Body.Close()

	var data map[string]interface{}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, &malformedBodyError{cause: err}
	}
	return normalizeNumbers(data), nil
}

// normalizeNumbers converts json.Number values to int64 or float64 so the
// store drivers receive native numerics.
func normalizeNumbers(data map[string]interface{}) map[string]interface{} {
	for k, v := range data {
		num, ok := v.(json.Number)
		if !ok {
			continue
		}
		if n, err := num.Int64(); err == nil {
			data[k] = n
			continue
		}
		if f, err := num.Float64(); err == nil {
			data[k] = f
		}
	}
	return data
}

type malformedBodyError struct {
	cause error
}

func (e *malformedBodyError) Error() string {
	return fmt.Sprintf("invalid request body: %v", e.cause)
}

func isTruthy(s string) bool {
	switch s {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func (a *API) writeEnvelope(w http.ResponseWriter, env *serialize.Envelope) {
	status := env.StatusCode
	env.Restrict(a.envelope)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps an operation error to its HTTP status and renders the
// error envelope.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	reason := err.Error()

	var compileErr *query.CompileError
	var bodyErr *malformedBodyError
	var conflict *crud.DeleteConflictError

	switch {
	case errors.As(err, &compileErr),
		errors.As(err, &bodyErr),
		crud.IsUnknownField(err),
		errors.Is(err, crud.ErrCheckViolation),
		errors.Is(err, crud.ErrNotNullViolation):
		status = http.StatusBadRequest
	case crud.IsNotFound(err):
		status = http.StatusNotFound
	case errors.As(err, &conflict), crud.IsUniqueViolation(err), crud.IsForeignKeyViolation(err):
		status = http.StatusConflict
	default:
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		reason = "an internal error occurred"
	}

	env := serialize.ErrorMessage(status, a.cfg.Version, http.StatusText(status), reason)
	a.writeEnvelope(w, env)
}
