package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/achievements"
)

const (
	progressWriteWait = 10 * time.Second
	dateLayout        = "2006-01-02"
)

// BackfillStreamer starts a backfill and reports its progress
type BackfillStreamer interface {
	Stream(ctx context.Context, opts achievements.BackfillOptions) <-chan achievements.BackfillProgress
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleBackfillStream runs a backfill for the optional start_date/end_date query range and
// writes every progress checkpoint to the socket as JSON. Closing the socket cancels the run;
// awards already made stay in place.
func (s *Server) handleBackfillStream(w http.ResponseWriter, r *http.Request) {
	opts, err := backfillOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Backfill stream upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the read loop only exists to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.WithFields(logrus.Fields{
		"start_date": r.URL.Query().Get("start_date"),
		"end_date":   r.URL.Query().Get("end_date"),
	}).Info("Backfill stream started")

	for progress := range s.backfill.Stream(ctx, opts) {
		_ = conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
		if err := conn.WriteJSON(progress); err != nil {
			s.logger.WithError(err).Warn("Backfill stream client went away")
			cancel()
			// drain so the producer can observe cancellation and exit
			continue
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "backfill finished"),
		time.Now().Add(progressWriteWait))
}

func backfillOptions(r *http.Request) (achievements.BackfillOptions, error) {
	var opts achievements.BackfillOptions
	q := r.URL.Query()

	if v := q.Get("start_date"); v != "" {
		start, err := time.Parse(dateLayout, v)
		if err != nil {
			return opts, err
		}
		opts.StartDate = &start
	}
	if v := q.Get("end_date"); v != "" {
		end, err := time.Parse(dateLayout, v)
		if err != nil {
			return opts, err
		}
		// inclusive of the whole end day
		end = end.Add(24*time.Hour - time.Nanosecond)
		opts.EndDate = &end
	}
	opts.GenerateImages = q.Get("generate_images") == "true"
	return opts, nil
}
