package handlers

import (
	"log/slog"
	"net/http"
)

// DirectoryHandler serves the public doctor directory the booking form is
// populated from. No session required.
type DirectoryHandler struct {
	ids    IdentityDirectory
	logger *slog.Logger
}

func NewDirectoryHandler(ids IdentityDirectory, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{ids: ids, logger: logger}
}

type doctorJSON struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	DisplayText    string `json:"display_text"`
}

func (h *DirectoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, http.StatusMethodNotAllowed, "Only GET method allowed")
		return
	}

	doctors, err := h.ids.ListDoctors(r.Context())
	if err != nil {
		h.logger.Error("doctor directory query failed", "err", err)
		fail(w, http.StatusInternalServerError, "Failed to fetch doctors")
		return
	}

	list := make([]doctorJSON, 0, len(doctors))
	for _, d := range doctors {
		name := d.FirstName + " " + d.LastName
		list = append(list, doctorJSON{
			ID:             d.ID,
			Name:           name,
			Specialization: d.Specialization,
			DisplayText:    "Dr. " + name + " - " + d.Specialization,
		})
	}
	ok(w, http.StatusOK, "Doctors retrieved", map[string]any{"doctors": list})
}
