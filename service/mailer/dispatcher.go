package mailer

import (
	"log"
	"time"

	"github.com/Sachin80-coder/fixfinder-server/cmd/models"
	"gorm.io/gorm"
)

const (
	maxAttempts   = 5
	dispatchBatch = 50
)

// Dispatcher drains the email outbox in the background. State mutations
// commit before their emails leave the process, so delivery problems only
// delay mail, they never surface to the user.
type Dispatcher struct {
	db       *gorm.DB
	sender   Sender
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewDispatcher(db *gorm.DB, sender Sender, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Dispatcher{
		db:       db,
		sender:   sender,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := d.DispatchPending(); err != nil {
					log.Printf("Outbox dispatch error: %v", err)
				}
			case <-d.stop:
				return
			}
		}
	}()
}

func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

// DispatchPending delivers one batch of pending outbox rows and returns how
// many were sent. A row that keeps failing is marked failed after
// maxAttempts; other rows keep flowing.
func (d *Dispatcher) DispatchPending() (int, error) {
	var pending []models.EmailOutbox
	err := d.db.Where("status = ?", models.OutboxPending).
		Order("id").Limit(dispatchBatch).Find(&pending).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range pending {
		entry := &pending[i]
		entry.Attempts++
		if err := d.sender.Send(entry.Recipient, entry.Subject, entry.Body); err != nil {
			entry.LastError = err.Error()
			if entry.Attempts >= maxAttempts {
				entry.Status = models.OutboxFailed
				log.Printf("Giving up on email to %s after %d attempts: %v", entry.Recipient, entry.Attempts, err)
			}
		} else {
			now := time.Now()
			entry.Status = models.OutboxSent
			entry.SentAt = &now
			entry.LastError = ""
			sent++
		}
		if err := d.db.Save(entry).Error; err != nil {
			log.Printf("Error updating outbox entry %d: %v", entry.ID, err)
		}
	}
	return sent, nil
}
