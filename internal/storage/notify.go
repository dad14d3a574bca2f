package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Notifier publishes summary-update events over a Postgres NOTIFY channel
// so clinician dashboards can refresh without polling. The payload
// contract is backend-independent: "<patientID>/<date>" with the date in
// YYYY-MM-DD form; subscribers must not assume anything else about it.
type Notifier struct {
	db      *sql.DB
	channel string
}

func NewNotifier(db *sql.DB, channel string) *Notifier {
	if channel == "" {
		channel = "summary_updates"
	}
	return &Notifier{db: db, channel: channel}
}

// Notify announces that the summary for patientID/date changed.
func (n *Notifier) Notify(ctx context.Context, patientID, date string) error {
	payload := patientID + "/" + date
	_, err := n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", n.channel, payload)
	return err
}

// Listen subscribes to the channel and yields payloads until ctx ends or
// the listener's connection closes.
func (n *Notifier) Listen(ctx context.Context, dsn string) (<-chan string, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(n.channel); err != nil {
		listener.Close()
		return nil, err
	}

	ch := make(chan string)
	go func() {
		defer listener.Close()
		forwardNotifications(ctx, listener.Notify, ch)
	}()
	return ch, nil
}

// forwardNotifications pumps payloads from the driver's notification
// channel to out, dropping the nil events pq emits on reconnection.
func forwardNotifications(ctx context.Context, events <-chan *pq.Notification, out chan<- string) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev != nil {
				out <- ev.Extra
			}
		}
	}
}
