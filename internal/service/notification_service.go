package service

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/pkg/jobs"
	"github.com/noah-isme/ctp-enrollment-api/pkg/mailer"
)

// Notification kinds, also used as job types and metric labels.
const (
	NotificationConfirmation = "enrollment_confirmation"
	NotificationAdminAlert   = "enrollment_admin_alert"
)

const confirmationHTML = `<p>Hola {{.FullName}},</p>
<p>Recibimos tu matrícula en <strong>{{.CareerName}}</strong>{{if .CareerShift}} ({{.CareerShift}}){{end}}.</p>
<p>Número de registro: <code>{{.ID}}</code></p>
<p>{{.Center}}</p>`

const confirmationText = `Hola {{.FullName}},

Recibimos tu matrícula en {{.CareerName}}{{if .CareerShift}} ({{.CareerShift}}){{end}}.
Número de registro: {{.ID}}

{{.Center}}`

const adminAlertHTML = `<p>Nueva matrícula pública recibida.</p>
<ul>
<li>Nombre: {{.FullName}}</li>
<li>Carrera: {{.CareerName}}</li>
<li>Teléfono: {{.Phone}}</li>
<li>Municipio: {{.Municipality}}, {{.Community}}</li>
<li>Registro: {{.ID}}</li>
</ul>`

const adminAlertText = `Nueva matrícula pública recibida.
Nombre: {{.FullName}}
Carrera: {{.CareerName}}
Teléfono: {{.Phone}}
Municipio: {{.Municipality}}, {{.Community}}
Registro: {{.ID}}`

// NotificationConfig configures outgoing enrollment emails.
type NotificationConfig struct {
	AdminEmail string
	CenterName string
}

type notificationTemplates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

type notificationView struct {
	models.Enrollment
	Center string
}

// NotificationService composes enrollment emails and delivers them through
// the job queue when it is running, inline otherwise. Delivery failures are
// logged and counted, never returned to the caller.
type NotificationService struct {
	mailer    mailer.Mailer
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       NotificationConfig
	templates map[string]notificationTemplates

	mu    sync.RWMutex
	queue *jobs.Queue
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(m mailer.Mailer, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = mailer.NopMailer{Logger: logger}
	}
	if cfg.CenterName == "" {
		cfg.CenterName = "Centro Tecnológico"
	}
	return &NotificationService{
		mailer:  m,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		templates: map[string]notificationTemplates{
			NotificationConfirmation: {
				html: htmltemplate.Must(htmltemplate.New(NotificationConfirmation).Parse(confirmationHTML)),
				text: texttemplate.Must(texttemplate.New(NotificationConfirmation).Parse(confirmationText)),
			},
			NotificationAdminAlert: {
				html: htmltemplate.Must(htmltemplate.New(NotificationAdminAlert).Parse(adminAlertHTML)),
				text: texttemplate.Must(texttemplate.New(NotificationAdminAlert).Parse(adminAlertText)),
			},
		},
	}
}

// UseQueue routes deliveries through q.
func (s *NotificationService) UseQueue(q *jobs.Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = q
}

// EnrollmentCreated sends the confirmation when the enrollment carries an
// email and the admin alert for public submissions.
func (s *NotificationService) EnrollmentCreated(ctx context.Context, enrollment models.Enrollment) {
	if enrollment.Email != nil && *enrollment.Email != "" {
		s.dispatch(ctx, NotificationConfirmation, enrollment, *enrollment.Email, enrollment.FullName,
			fmt.Sprintf("Confirmación de matrícula - %s", enrollment.CareerName))
	}
	if enrollment.UserID == nil && s.cfg.AdminEmail != "" {
		s.dispatch(ctx, NotificationAdminAlert, enrollment, s.cfg.AdminEmail, "",
			fmt.Sprintf("Nueva matrícula pública: %s", enrollment.FullName))
	}
}

// Deliver is the jobs.Handler for queued notifications.
func (s *NotificationService) Deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	id, err := s.mailer.Send(ctx, msg)
	if err != nil {
		return err
	}
	s.metrics.RecordNotification(job.Type, true)
	s.logger.Info("notification sent", zap.String("kind", job.Type), zap.String("message_id", id))
	return nil
}

// Dropped is the jobs OnDrop hook for notifications that exhausted retries.
func (s *NotificationService) Dropped(job jobs.Job, err error) {
	s.metrics.RecordNotification(job.Type, false)
	s.logger.Error("notification abandoned", zap.String("kind", job.Type), zap.String("job_id", job.ID), zap.Error(err))
}

func (s *NotificationService) dispatch(ctx context.Context, kind string, enrollment models.Enrollment, to, toName, subject string) {
	msg, err := s.render(kind, enrollment)
	if err != nil {
		s.metrics.RecordNotification(kind, false)
		s.logger.Error("failed to render notification", zap.String("kind", kind), zap.Error(err))
		return
	}
	msg.To = to
	msg.ToName = toName
	msg.Subject = subject

	job := jobs.Job{ID: uuid.NewString(), Type: kind, Payload: msg}
	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()
	if queue != nil && queue.Started() {
		err := queue.Enqueue(job)
		if err == nil {
			return
		}
		s.logger.Warn("notification queue unavailable, sending inline", zap.String("kind", kind), zap.Error(err))
	}
	if err := s.Deliver(ctx, job); err != nil {
		s.Dropped(job, err)
	}
}

func (s *NotificationService) render(kind string, enrollment models.Enrollment) (mailer.Message, error) {
	tpl, ok := s.templates[kind]
	if !ok {
		return mailer.Message{}, fmt.Errorf("unknown notification %s", kind)
	}
	view := notificationView{Enrollment: enrollment, Center: s.cfg.CenterName}
	var html, text bytes.Buffer
	if err := tpl.html.Execute(&html, view); err != nil {
		return mailer.Message{}, err
	}
	if err := tpl.text.Execute(&text, view); err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{HTML: html.String(), Text: text.String()}, nil
}
