package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// maxBodyBytes bounds push payloads.
const maxBodyBytes = 32 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps service errors to status codes. Unexpected errors are logged and
// reported without detail.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrUnknownTable), errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func sinceParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(out)
}

func (s *HTTPServer) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *HTTPServer) session(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	writeJSON(w, http.StatusOK, sess)
}

func (s *HTTPServer) push(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	table := entity.Table(mux.Vars(r)["table"])

	var rows []json.RawMessage
	if err := decodeBody(w, r, &rows); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of rows")
		return
	}

	results, err := s.sync.Push(r.Context(), sess, table, rows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity.PushResponse{Results: results})
}

func (s *HTTPServer) pushDeleted(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	var ts []entity.Tombstone
	if err := decodeBody(w, r, &ts); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of tombstones")
		return
	}

	results, err := s.sync.PushDeleted(r.Context(), sess, ts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity.PushResponse{Results: results})
}

func (s *HTTPServer) pull(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	table := entity.Table(mux.Vars(r)["table"])

	since, err := sinceParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be an integer")
		return
	}

	rows, err := s.sync.Pull(r.Context(), sess, table, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]entity.Record{string(table): rows})
}

// pullMany serves several tables in one response, keyed by table name. With
// no tables parameter every table is returned.
func (s *HTTPServer) pullMany(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	since, err := sinceParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be an integer")
		return
	}

	tables := entity.Tables()
	if raw := r.URL.Query().Get("tables"); raw != "" {
		tables = tables[:0]
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				tables = append(tables, entity.Table(name))
			}
		}
	}

	byTable, err := s.sync.PullMany(r.Context(), sess, tables, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make(map[string][]entity.Record, len(byTable))
	for t, rows := range byTable {
		out[string(t)] = rows
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) pullDeleted(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	since, err := sinceParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be an integer")
		return
	}

	ts, err := s.sync.PullDeleted(r.Context(), sess, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]entity.Tombstone{string(entity.TableDeleted): ts})
}

func (s *HTTPServer) iconAssets(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	assets, err := s.icons.IconAssets(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]entity.IconAsset{"assets": assets})
}
