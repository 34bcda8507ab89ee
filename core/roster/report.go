package roster

import "fmt"

// Outcome of one record.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeMatched        Outcome = "matched"
	OutcomeSkippedInvalid Outcome = "skipped_invalid"
	OutcomeError          Outcome = "error"
)

// EmailStatus of one first access notification.
type EmailStatus string

const (
	EmailSent      EmailStatus = "sent"
	EmailSavedFile EmailStatus = "saved_to_file"
	EmailSimulated EmailStatus = "simulated"
	EmailError     EmailStatus = "error"
)

type (
	RecordResult struct {
		GroupCode      string  `json:"group_code"`
		Index          int     `json:"index"`
		Email          string  `json:"email,omitempty"`
		RegistrationID string  `json:"registration_id,omitempty"`
		UserID         string  `json:"user_id,omitempty"`
		Outcome        Outcome `json:"outcome"`
		Enrolled       bool    `json:"enrolled"`
		Message        string  `json:"message,omitempty"`
	}

	Stats struct {
		UsersProcessed     int      `json:"users_processed"`
		UsersCreated       int      `json:"users_created"`
		UsersMatched       int      `json:"users_matched"`
		EnrollmentsCreated int      `json:"enrollments_created"`
		Errors             []string `json:"errors"`
		Warnings           []string `json:"warnings,omitempty"`
		EmailsSent         int      `json:"emails_sent"`
		EmailErrors        int      `json:"email_errors"`
	}

	EmailDetail struct {
		UserID    string      `json:"user_id"`
		Email     string      `json:"email"`
		Name      string      `json:"name"`
		Status    EmailStatus `json:"status"`
		Token     string      `json:"token,omitempty"`
		ResetLink string      `json:"reset_link,omitempty"`
		Error     string      `json:"error,omitempty"`
	}

	// Report is the outcome of one import call. It is never stored.
	Report struct {
		Records      []RecordResult
		Stats        Stats
		EmailDetails []EmailDetail
	}

	// Envelope is the transport independent response of a successful import.
	Envelope struct {
		Success      bool          `json:"success"`
		Message      string        `json:"message"`
		Stats        Stats         `json:"stats"`
		EmailDetails []EmailDetail `json:"email_details"`
	}

	// FailureEnvelope is the response of an import that did not run.
	FailureEnvelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
)

func newReport() Report {
	return Report{
		Records:      make([]RecordResult, 0),
		Stats:        Stats{Errors: make([]string, 0)},
		EmailDetails: make([]EmailDetail, 0),
	}
}

func (r *Report) addRecord(res RecordResult) {
	r.Records = append(r.Records, res)
	switch res.Outcome {
	case OutcomeCreated:
		r.Stats.UsersProcessed++
		r.Stats.UsersCreated++
	case OutcomeMatched:
		r.Stats.UsersProcessed++
		r.Stats.UsersMatched++
	default:
		r.addError(res.Message)
	}
	if res.Enrolled {
		r.Stats.EnrollmentsCreated++
	}
}

func (r *Report) addError(msg string) {
	r.Stats.Errors = append(r.Stats.Errors, msg)
}

func (r *Report) addWarning(msg string) {
	r.Stats.Warnings = append(r.Stats.Warnings, msg)
}

func (r *Report) addEmailDetails(details []EmailDetail) {
	for _, d := range details {
		if d.Status == EmailError {
			r.Stats.EmailErrors++
		} else {
			r.Stats.EmailsSent++
		}
		r.EmailDetails = append(r.EmailDetails, d)
	}
}

// Envelope wraps the report in a successful response.
func (r Report) Envelope() Envelope {
	details := r.EmailDetails
	if details == nil {
		details = make([]EmailDetail, 0)
	}
	stats := r.Stats
	if stats.Errors == nil {
		stats.Errors = make([]string, 0)
	}
	return Envelope{
		Success: true,
		Message: fmt.Sprintf("import finished: %d users processed, %d errors, %d emails sent",
			stats.UsersProcessed, len(stats.Errors), stats.EmailsSent),
		Stats:        stats,
		EmailDetails: details,
	}
}

func Failure(msg string) FailureEnvelope {
	return FailureEnvelope{Success: false, Message: msg}
}
