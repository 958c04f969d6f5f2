package compliance

import (
	"context"
	"fmt"
	"strings"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/notify"
)

// EmailNotifier mails one digest per sweep run rather than one message
// per patient; a 40-patient census must not produce 40 emails.
type EmailNotifier struct {
	Mailer     notify.Mailer
	Recipients []string
}

func (n *EmailNotifier) NotifyFindings(ctx context.Context, asOf caldate.Date, findings []Finding) error {
	if len(n.Recipients) == 0 {
		return fmt.Errorf("notify: no recipients configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hospice compliance sweep for %s\n\n", asOf.Format())
	for _, f := range findings {
		switch f.Status {
		case StatusOverdue:
			fmt.Fprintf(&b, "OVERDUE: %s (%s) recert was due %s (%d days ago)\n",
				f.Patient.FullName(), f.Result.PeriodName,
				f.Result.CertEndDate.Format(), -f.Result.DaysUntilCertEnd)
		case StatusAtRisk:
			fmt.Fprintf(&b, "DUE SOON: %s (%s) recert due %s (%d days)\n",
				f.Patient.FullName(), f.Result.PeriodName,
				f.Result.CertEndDate.Format(), f.Result.DaysUntilCertEnd)
		}
		if f.F2FOverdue {
			fmt.Fprintf(&b, "F2F NEEDED: %s requires a face-to-face encounter before %s\n",
				f.Patient.FullName(), f.Result.CertEndDate.Format())
		}
	}

	subject := fmt.Sprintf("Compliance alerts for %s: %d patient(s) need attention", asOf.Format(), len(findings))
	return n.Mailer.Send(ctx, notify.Message{
		To:      n.Recipients,
		Subject: subject,
		Text:    b.String(),
	})
}
