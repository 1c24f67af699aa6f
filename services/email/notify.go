package emailsvc

import (
	"net/mail"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
)

// ApplicationEmailData feeds the application_* templates.
type ApplicationEmailData struct {
	StudentName string
	JobTitle    string
	CompanyName string
	Rounds      portal.InterviewRounds
}

// ApplicationNotifier tells applicants about shortlisting and rejection.
type ApplicationNotifier struct {
	svc core.EmailService
}

func NewApplicationNotifier(svc core.EmailService) *ApplicationNotifier {
	return &ApplicationNotifier{svc: svc}
}

// Notify emails the applicant about the new status; it reports whether an email was queued.
func (n *ApplicationNotifier) Notify(app portal.Application, status portal.ApplicationStatus, rounds portal.InterviewRounds) bool {
	if app.ApplicantEmail == "" {
		return false
	}
	msg := &core.EmailMessage{
		To: []mail.Address{{Name: app.ApplicantName, Address: app.ApplicantEmail}},
		TemplateData: ApplicationEmailData{
			StudentName: app.ApplicantName,
			JobTitle:    app.JobTitle,
			CompanyName: app.CompanyName,
			Rounds:      rounds,
		},
	}
	switch status {
	case portal.StatusShortlisted:
		msg.Subject = "Congratulations! You've been shortlisted for " + app.JobTitle
		msg.TemplateName = "application_shortlisted"
	case portal.StatusRejected:
		msg.Subject = "Application Status - " + app.JobTitle
		msg.TemplateName = "application_rejected"
	default:
		return false
	}
	n.svc.SendMessages(msg)
	return true
}
