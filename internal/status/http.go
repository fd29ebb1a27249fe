package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const defaultWaitTimeout = 30 * time.Second

type pollResponse struct {
	StudentID int     `json:"student_id"`
	Outcome   Outcome `json:"outcome"`
}

// Handler answers saga status polls. A recorded outcome returns
// immediately; otherwise the request blocks on the waiter until the
// saga settles or the wait window closes with 504.
func Handler(waiter *Waiter, store Store, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		studentID, err := strconv.Atoi(r.URL.Query().Get("student_id"))
		if err != nil || studentID <= 0 {
			http.Error(w, "student_id must be a positive integer", http.StatusBadRequest)
			return
		}

		outcome, found, err := store.Lookup(r.Context(), studentID)
		if err != nil {
			http.Error(w, "status lookup failed", http.StatusInternalServerError)
			return
		}
		if !found {
			outcome, err = waiter.Wait(r.Context(), studentID, timeout)
			if err != nil {
				if errors.Is(err, ErrTimeout) {
					http.Error(w, "saga still in progress", http.StatusGatewayTimeout)
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				http.Error(w, "status wait failed", http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pollResponse{StudentID: studentID, Outcome: outcome})
	})
}
