package controllers

import (
	"net/http"
	"time"

	"github.com/balcaopos/balcao-backend/api/middleware"
	"github.com/balcaopos/balcao-backend/api/responses"
	"github.com/balcaopos/balcao-backend/internal/quota"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/logger"
)

// QuotaRemaining reports how many mutation slots the caller has left today.
// -1 means unlimited.
func QuotaRemaining(tracker quota.Tracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		remaining, err := tracker.Remaining(r.Context(), actor.ID, actor.Role, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"remaining": remaining})
	}
}
