package email

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const sendTimeout = 30 * time.Second

// Dispatcher turns domain events into mails and delivers them in the
// background. Delivery is retried with a doubling backoff; a message that
// still fails is logged and dropped. Events already delivered are skipped by id.
type Dispatcher struct {
	mailer  Mailer
	logger  *logrus.Logger
	retries int
	backoff time.Duration

	wg        sync.WaitGroup
	mutex     sync.Mutex
	delivered map[uuid.UUID]bool
}

func NewDispatcher(mailer Mailer, logger *logrus.Logger, retries int) *Dispatcher {
	return &Dispatcher{
		mailer:    mailer,
		logger:    logger,
		retries:   retries,
		backoff:   time.Second,
		delivered: make(map[uuid.UUID]bool),
	}
}

// Notify queues the mail for evt and returns immediately
func (d *Dispatcher) Notify(evt models.Event) {
	msg, ok := compose(evt)
	if !ok {
		d.logger.Debugf("No mail for event %s (%s)", evt.ID, evt.Type)
		return
	}

	d.mutex.Lock()
	if d.delivered[evt.ID] {
		d.mutex.Unlock()
		d.logger.Debugf("Event %s already delivered", evt.ID)
		return
	}
	d.delivered[evt.ID] = true
	d.mutex.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.deliver(msg); err != nil {
			d.mutex.Lock()
			delete(d.delivered, evt.ID)
			d.mutex.Unlock()
			d.logger.Errorf("Failed to deliver %s notification to %s: %v", evt.Type, msg.To, err)
		}
	}()
}

// Wait blocks until every queued mail has been delivered or given up on
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(msg Message) error {
	var err error
	wait := d.backoff
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			d.logger.Warnf("Retrying mail to %s in %s (attempt %d): %v", msg.To, wait, attempt+1, err)
			time.Sleep(wait)
			wait *= 2
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err = d.mailer.Send(ctx, msg)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

func field(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// compose builds the mail for evt; false means the event has no recipient
// or no mail template
func compose(evt models.Event) (Message, bool) {
	to := field(evt.Payload, "student_email")
	if to == "" {
		return Message{}, false
	}
	greeting := fmt.Sprintf("Dear %s,\n\n", field(evt.Payload, "student_name"))
	closing := "\nBest regards,\nInstitute Accounts"

	switch evt.Type {
	case models.EventPaymentRecorded:
		return Message{
			To:      to,
			Subject: "Payment Received",
			Text: greeting + fmt.Sprintf(
				"We have received INR %s towards installment %s on %s.\n"+
					"Installment status: %s\n"+
					"Remaining course balance: INR %s\n",
				field(evt.Payload, "amount"), field(evt.Payload, "number"), field(evt.Payload, "paid_on"),
				field(evt.Payload, "status"), field(evt.Payload, "remaining"),
			) + closing,
		}, true
	case models.EventInstallmentOverdue:
		return Message{
			To:      to,
			Subject: "Overdue Installment Notification",
			Text: greeting + fmt.Sprintf(
				"Installment %s of INR %s was due on %s and is now overdue.\n"+
					"Outstanding amount: INR %s\n"+
					"Please make the payment as soon as possible.\n",
				field(evt.Payload, "number"), field(evt.Payload, "amount"),
				field(evt.Payload, "due_date"), field(evt.Payload, "outstanding"),
			) + closing,
		}, true
	case models.EventCertificateEligible:
		return Message{
			To:      to,
			Subject: fmt.Sprintf("Certificate Available: %s", field(evt.Payload, "course_name")),
			Text: greeting + fmt.Sprintf(
				"Congratulations! You are eligible for the %s certificate.\n"+
					"Score: %s%% (grade %s)\n"+
					"Verification code: %s\n",
				field(evt.Payload, "course_name"), field(evt.Payload, "percentage"),
				field(evt.Payload, "grade"), field(evt.Payload, "verification_code"),
			) + closing,
		}, true
	}
	return Message{}, false
}
