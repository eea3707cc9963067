package api

import (
	"net/http"

	"github.com/metaco/metaco/internal/identity"
)

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	var info identity.Info
	if h.info != nil {
		info = h.info()
	} else {
		info = identity.Get("", "")
	}
	writeJSON(w, http.StatusOK, info)
}
